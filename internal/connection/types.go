package connection

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrHeartbeatTimeout   = errors.New("no heartbeat response")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrSuperseded         = errors.New("connection superseded by disconnect")
)

// CloseHeartbeatTimeout is the close code used when the liveness deadline
// expires. It is outside the normal-closure range, so it takes the
// reconnect path.
const CloseHeartbeatTimeout = 4000

// State is the lifecycle state of the push connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the connection state.
type Status struct {
	State             State
	ReconnectAttempts int
	Latency           time.Duration // Last measured ping round trip
	Stable            bool          // Latency below the stable threshold
	ConnectedAt       time.Time
	Err               error // Last transport error, nil once connected again
}

// Connected reports whether the socket is open.
func (s Status) Connected() bool {
	return s.State == StateConnected
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// CloseEvent describes how a socket ended.
type CloseEvent struct {
	Code   int
	Reason string
	Err    error // Read error that ended the socket, if any
}

// Clean reports whether the close was a normal closure.
func (e CloseEvent) Clean() bool {
	return e.Code == websocket.CloseNormalClosure
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Fully built endpoint URL including query flags
	Compression      bool          // Negotiate per-message deflate
	UserAgent        string        // Sent as User-Agent on the handshake
	HandshakeTimeout time.Duration // Dial + upgrade timeout
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// Config configures the connection Manager.
type Config struct {
	URL                  string        // Push endpoint, e.g. wss://feed.example.com/ws
	Compression          bool          // Adds compression=true to the endpoint query
	Comfort              bool          // Comfort mode: softer reconnect timing
	ReconnectInterval    time.Duration // Backoff base delay
	MaxReconnectAttempts int           // Reconnects allowed before giving up
	HeartbeatInterval    time.Duration // Ping period; liveness deadline is twice this
	LatencyTimeout       time.Duration // Max wait for a pong before marking unstable
	StableLatency        time.Duration // Round trips below this are "stable"
	Client               ClientConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 5,
		HeartbeatInterval:    30 * time.Second,
		LatencyTimeout:       5 * time.Second,
		StableLatency:        200 * time.Millisecond,
		Client:               DefaultClientConfig(),
	}
}

// reconnectBase returns the backoff base delay, scaled to 0.8x in comfort
// mode.
func (c Config) reconnectBase() time.Duration {
	if c.Comfort {
		return c.ReconnectInterval * 4 / 5
	}
	return c.ReconnectInterval
}

// Stats counts traffic through the manager.
type Stats struct {
	MessagesReceived    int64
	MessagesDispatched  int64
	ParseErrors         int64
	HandlerPanics       int64
	ReconnectsScheduled int64
}
