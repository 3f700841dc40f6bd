package connection

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/rickgao/bumpfeed/internal/clock"
	"github.com/rickgao/bumpfeed/internal/message"
	"github.com/rickgao/bumpfeed/internal/notify"
	"github.com/rickgao/bumpfeed/internal/version"
)

// MessageHandler receives a decoded inbound message.
type MessageHandler func(message.Inbound)

// ConnectionHandler receives a status snapshot after every state change.
type ConnectionHandler func(Status)

// Option configures a Manager.
type Option func(*Manager)

// WithScheduler sets the scheduler used for every timer.
func WithScheduler(s clock.Scheduler) Option {
	return func(m *Manager) { m.sched = s }
}

// WithSink sets the notification sink for user-visible connection failures.
func WithSink(s notify.Sink) Option {
	return func(m *Manager) { m.sink = s }
}

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) { m.newClient = f }
}

type handlerEntry struct {
	id uint64
	fn MessageHandler
}

type connHandlerEntry struct {
	id uint64
	fn ConnectionHandler
}

// Manager owns one push socket: it connects, keeps the link alive with
// application-level pings, measures latency, and reconnects with backoff
// after unclean closes.
type Manager struct {
	cfg       Config
	logger    *slog.Logger
	sched     clock.Scheduler
	sink      notify.Sink
	newClient ClientFactory

	mu          sync.Mutex
	state       State
	attempts    int
	latency     time.Duration
	stable      bool
	connectedAt time.Time
	lastErr     error
	client      Client
	gen         uint64 // Bumped for every socket and on Disconnect; stale callbacks compare against it
	backoff     *backoff.ExponentialBackOff

	// Timers, all cancelled on Disconnect
	heartbeatCancel clock.CancelFunc
	livenessCancel  clock.CancelFunc
	latencyCancel   clock.CancelFunc
	reconnectCancel clock.CancelFunc

	handlersMu    sync.RWMutex
	handlers      map[string][]handlerEntry
	connHandlers  []connHandlerEntry
	nextHandlerID uint64

	received   atomic.Int64
	dispatched atomic.Int64
	parseErrs  atomic.Int64
	panics     atomic.Int64
	scheduled  atomic.Int64
}

// NewManager creates a connection Manager. Zero config fields fall back to
// DefaultConfig values; a negative MaxReconnectAttempts disables reconnects.
func NewManager(cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = withDefaults(cfg)

	m := &Manager{
		cfg:       cfg,
		logger:    logger,
		sched:     clock.NewReal(),
		sink:      notify.Discard{},
		newClient: NewClient,
		handlers:  make(map[string][]handlerEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.backoff = newReconnectBackoff(cfg.reconnectBase())

	return m
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = def.ReconnectInterval
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = def.MaxReconnectAttempts
	} else if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.LatencyTimeout <= 0 {
		cfg.LatencyTimeout = def.LatencyTimeout
	}
	if cfg.StableLatency <= 0 {
		cfg.StableLatency = def.StableLatency
	}
	if cfg.Client.HandshakeTimeout <= 0 {
		cfg.Client.HandshakeTimeout = def.Client.HandshakeTimeout
	}
	if cfg.Client.WriteTimeout <= 0 {
		cfg.Client.WriteTimeout = def.Client.WriteTimeout
	}
	if cfg.Client.BufferSize <= 0 {
		cfg.Client.BufferSize = def.Client.BufferSize
	}
	if cfg.Client.UserAgent == "" {
		cfg.Client.UserAgent = version.UserAgent()
	}
	return cfg
}

// newReconnectBackoff returns a jitter-free schedule of base * 1.5^n.
func newReconnectBackoff(base time.Duration) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          1.5,
		MaxInterval:         time.Duration(math.MaxInt64),
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// EndpointURL returns the configured URL with the transport query flags.
func EndpointURL(cfg Config) (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse endpoint url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("endpoint url scheme %q: want ws or wss", u.Scheme)
	}

	q := u.Query()
	q.Set("compression", strconv.FormatBool(cfg.Compression))
	if cfg.Comfort {
		q.Set("optimizations", "comfort")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Connect opens the socket. It returns an error if the transport cannot be
// built or dialed, and nil once the socket is open. Calls made while a
// connection is open or being opened return nil without dialing again.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.cancelTimerLocked(&m.reconnectCancel)
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.notifyConnection()

	if err := m.dial(ctx, gen); err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.state = StateDisconnected
			m.lastErr = err
		}
		m.mu.Unlock()

		m.logger.Warn("connect failed", "error", err)
		m.notifyConnection()
		return fmt.Errorf("connect: %w", err)
	}

	return nil
}

// Disconnect closes the socket with a normal closure and cancels every
// timer. It is safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.stopTimersLocked()
	m.cancelTimerLocked(&m.reconnectCancel)
	client := m.client
	m.client = nil
	prev := m.state
	m.state = StateDisconnected
	m.mu.Unlock()

	if client != nil {
		if err := client.Close(); err != nil {
			m.logger.Debug("close socket", "error", err)
		}
	}

	if prev != StateDisconnected {
		m.logger.Info("disconnected", "previous_state", prev)
		m.notifyConnection()
	}
}

// Reconnect tears down the current socket and connects afresh with the
// attempt counter reset.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.Disconnect()

	m.mu.Lock()
	m.attempts = 0
	m.backoff.Reset()
	m.lastErr = nil
	m.mu.Unlock()

	return m.Connect(ctx)
}

// Send encodes and writes a message. It returns false, without side
// effects, when the socket is not open or the write fails.
func (m *Manager) Send(msgType string, payload any, id string) bool {
	m.mu.Lock()
	if m.state != StateConnected || m.client == nil {
		m.mu.Unlock()
		return false
	}
	client := m.client
	m.mu.Unlock()

	data, err := message.Encode(msgType, payload, id, m.sched.Now())
	if err != nil {
		m.logger.Warn("encode outbound message", "type", msgType, "error", err)
		return false
	}

	if err := client.Send(data); err != nil {
		m.logger.Warn("send failed", "type", msgType, "error", err)
		return false
	}
	return true
}

// OnMessage registers a handler for msgType. The returned function removes it.
func (m *Manager) OnMessage(msgType string, fn MessageHandler) func() {
	m.handlersMu.Lock()
	m.nextHandlerID++
	id := m.nextHandlerID
	m.handlers[msgType] = append(m.handlers[msgType], handlerEntry{id: id, fn: fn})
	m.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.handlersMu.Lock()
			defer m.handlersMu.Unlock()
			entries := m.handlers[msgType]
			for i, e := range entries {
				if e.id == id {
					m.handlers[msgType] = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
			if len(m.handlers[msgType]) == 0 {
				delete(m.handlers, msgType)
			}
		})
	}
}

// OnConnection registers a status listener. The returned function removes it.
func (m *Manager) OnConnection(fn ConnectionHandler) func() {
	m.handlersMu.Lock()
	m.nextHandlerID++
	id := m.nextHandlerID
	m.connHandlers = append(m.connHandlers, connHandlerEntry{id: id, fn: fn})
	m.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.handlersMu.Lock()
			defer m.handlersMu.Unlock()
			for i, e := range m.connHandlers {
				if e.id == id {
					m.connHandlers = append(m.connHandlers[:i:i], m.connHandlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Stats returns traffic counters.
func (m *Manager) Stats() Stats {
	return Stats{
		MessagesReceived:    m.received.Load(),
		MessagesDispatched:  m.dispatched.Load(),
		ParseErrors:         m.parseErrs.Load(),
		HandlerPanics:       m.panics.Load(),
		ReconnectsScheduled: m.scheduled.Load(),
	}
}

func (m *Manager) statusLocked() Status {
	return Status{
		State:             m.state,
		ReconnectAttempts: m.attempts,
		Latency:           m.latency,
		Stable:            m.stable,
		ConnectedAt:       m.connectedAt,
		Err:               m.lastErr,
	}
}

// dial builds a client for generation gen and, once it is open, installs it.
func (m *Manager) dial(ctx context.Context, gen uint64) error {
	endpoint, err := EndpointURL(m.cfg)
	if err != nil {
		return err
	}

	clientCfg := m.cfg.Client
	clientCfg.URL = endpoint
	clientCfg.Compression = m.cfg.Compression

	client := m.newClient(clientCfg, m.logger.With("gen", gen))
	if err := client.Connect(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		client.Close()
		return ErrSuperseded
	}
	recovered := m.attempts > 0
	m.client = client
	m.state = StateConnected
	m.attempts = 0
	m.backoff.Reset()
	m.lastErr = nil
	m.connectedAt = m.sched.Now()
	m.stable = false
	m.armHeartbeatLocked(gen)
	m.armLivenessLocked(gen)
	m.mu.Unlock()

	go m.readLoop(client, gen)

	m.logger.Info("connected", "url", endpoint, "recovered", recovered)

	if recovered {
		m.sink.Add(notify.Notification{
			Title:    "Back online",
			Type:     notify.TypeSuccess,
			Duration: 3 * time.Second,
		})
	}

	m.sendPing(gen)
	m.notifyConnection()
	return nil
}

// readLoop delivers frames from one socket in transport order, then handles
// its close.
func (m *Manager) readLoop(client Client, gen uint64) {
	for {
		select {
		case msg := <-client.Messages():
			m.handleFrame(gen, msg)

		case ev := <-client.Closed():
			// Frames queued before the close still count.
			for {
				select {
				case msg := <-client.Messages():
					m.handleFrame(gen, msg)
					continue
				default:
				}
				break
			}
			m.handleClose(gen, ev)
			return
		}
	}
}

// handleFrame decodes and routes one frame. The received counter moves
// only once the frame is fully handled.
func (m *Manager) handleFrame(gen uint64, raw TimestampedMessage) {
	defer m.received.Add(1)

	in, err := message.Decode(raw.Data, raw.ReceivedAt)
	if err != nil {
		m.parseErrs.Add(1)
		m.logger.Warn("failed to decode message", "error", err)
		return
	}

	switch p := in.Payload.(type) {
	case message.Pong:
		m.handlePong(gen, p)
		return
	case message.Heartbeat:
		m.mu.Lock()
		if m.gen == gen {
			m.armLivenessLocked(gen)
		}
		m.mu.Unlock()
		return
	}

	m.dispatch(in)
}

// dispatch invokes every handler registered for the message type, in
// registration order. A panicking handler does not stop the others.
func (m *Manager) dispatch(in message.Inbound) {
	m.handlersMu.RLock()
	entries := append([]handlerEntry(nil), m.handlers[in.Type]...)
	m.handlersMu.RUnlock()

	if len(entries) == 0 {
		m.logger.Debug("no handler for message type", "type", in.Type)
		return
	}

	for _, e := range entries {
		m.invoke(in, e.fn)
	}
	m.dispatched.Add(1)
}

func (m *Manager) invoke(in message.Inbound, fn MessageHandler) {
	defer func() {
		if r := recover(); r != nil {
			m.panics.Add(1)
			m.logger.Error("message handler panicked",
				"type", in.Type,
				"id", in.ID,
				"panic", r,
			)
		}
	}()
	fn(in)
}

func (m *Manager) handlePong(gen uint64, p message.Pong) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	latency := m.sched.Now().Sub(time.UnixMilli(p.PingTimestamp))
	if latency < 0 {
		latency = 0
	}
	m.latency = latency
	m.stable = latency < m.cfg.StableLatency
	m.cancelTimerLocked(&m.latencyCancel)
	m.armLivenessLocked(gen)
	m.mu.Unlock()

	m.logger.Debug("pong", "latency", latency)
	m.notifyConnection()
}

// handleClose decides between staying down and scheduling a reconnect.
func (m *Manager) handleClose(gen uint64, ev CloseEvent) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.stopTimersLocked()
	m.client = nil

	if ev.Clean() {
		m.state = StateDisconnected
		m.mu.Unlock()

		m.logger.Info("connection closed", "code", ev.Code)
		m.notifyConnection()
		return
	}

	m.lastErr = fmt.Errorf("connection closed with code %d: %s", ev.Code, closeReason(ev))
	m.logger.Warn("connection lost",
		"code", ev.Code,
		"reason", ev.Reason,
		"error", ev.Err,
	)
	exhausted := m.scheduleReconnectLocked()
	m.mu.Unlock()

	m.notifyConnection()
	if exhausted {
		m.surfaceExhausted()
	}
}

func closeReason(ev CloseEvent) string {
	if ev.Reason != "" {
		return ev.Reason
	}
	if ev.Code == CloseHeartbeatTimeout {
		return ErrHeartbeatTimeout.Error()
	}
	if ev.Err != nil {
		return ev.Err.Error()
	}
	return "abnormal closure"
}

// scheduleReconnectLocked arms the next reconnect, or gives up once the
// attempt budget is spent. It reports whether it gave up.
func (m *Manager) scheduleReconnectLocked() bool {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.state = StateDisconnected
		m.lastErr = ErrReconnectExhausted
		m.logger.Error("giving up on reconnect", "attempts", m.attempts)
		return true
	}

	delay := m.backoff.NextBackOff()
	m.attempts++
	m.state = StateReconnecting
	m.scheduled.Add(1)

	gen := m.gen
	m.reconnectCancel = m.sched.After(delay, func() { m.attemptReconnect(gen) })

	m.logger.Info("reconnect scheduled",
		"attempt", m.attempts,
		"max_attempts", m.cfg.MaxReconnectAttempts,
		"delay", delay,
	)
	return false
}

func (m *Manager) attemptReconnect(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnectCancel = nil
	m.gen++
	next := m.gen
	timeout := m.cfg.Client.HandshakeTimeout
	m.mu.Unlock()

	m.logger.Info("attempting reconnection", "attempt", m.Status().ReconnectAttempts)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := m.dial(ctx, next)
	if err == nil {
		return
	}

	m.mu.Lock()
	if m.gen != next {
		m.mu.Unlock()
		return
	}
	m.lastErr = err
	m.logger.Warn("reconnection failed", "error", err)
	exhausted := m.scheduleReconnectLocked()
	m.mu.Unlock()

	m.notifyConnection()
	if exhausted {
		m.surfaceExhausted()
	}
}

func (m *Manager) surfaceExhausted() {
	m.sink.Add(notify.Notification{
		Title:       "Live updates paused",
		Description: "We couldn't reach the family feed. Your posts are safe; we'll show new updates as soon as you reconnect.",
		Type:        notify.TypeError,
	})
}

// sendPing writes a ping and arms the latency timer.
func (m *Manager) sendPing(gen uint64) {
	now := m.sched.Now()
	if !m.Send(message.TypePing, message.Ping{PingTimestamp: now.UnixMilli()}, "") {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.cancelTimerLocked(&m.latencyCancel)
	m.latencyCancel = m.sched.After(m.cfg.LatencyTimeout, func() { m.onLatencyTimeout(gen) })
}

func (m *Manager) onLatencyTimeout(gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.latencyCancel = nil
	m.stable = false
	m.mu.Unlock()

	m.logger.Warn("ping unanswered", "timeout", m.cfg.LatencyTimeout)
	m.notifyConnection()
}

func (m *Manager) armHeartbeatLocked(gen uint64) {
	m.cancelTimerLocked(&m.heartbeatCancel)
	m.heartbeatCancel = m.sched.After(m.cfg.HeartbeatInterval, func() {
		m.mu.Lock()
		if m.gen != gen || m.state != StateConnected {
			m.mu.Unlock()
			return
		}
		m.armHeartbeatLocked(gen)
		m.mu.Unlock()

		m.sendPing(gen)
	})
}

// armLivenessLocked (re)starts the deadline after which a silent socket is
// force-closed.
func (m *Manager) armLivenessLocked(gen uint64) {
	m.cancelTimerLocked(&m.livenessCancel)
	m.livenessCancel = m.sched.After(2*m.cfg.HeartbeatInterval, func() {
		m.mu.Lock()
		if m.gen != gen || m.client == nil {
			m.mu.Unlock()
			return
		}
		m.livenessCancel = nil
		client := m.client
		m.mu.Unlock()

		m.logger.Warn("no heartbeat response, closing socket",
			"deadline", 2*m.cfg.HeartbeatInterval,
		)
		client.Abort(CloseHeartbeatTimeout, ErrHeartbeatTimeout.Error())
	})
}

func (m *Manager) stopTimersLocked() {
	m.cancelTimerLocked(&m.heartbeatCancel)
	m.cancelTimerLocked(&m.livenessCancel)
	m.cancelTimerLocked(&m.latencyCancel)
}

func (m *Manager) cancelTimerLocked(c *clock.CancelFunc) {
	if *c != nil {
		(*c)()
		*c = nil
	}
}

// notifyConnection sends the current status to every listener.
func (m *Manager) notifyConnection() {
	status := m.Status()

	m.handlersMu.RLock()
	entries := append([]connHandlerEntry(nil), m.connHandlers...)
	m.handlersMu.RUnlock()

	for _, e := range entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.panics.Add(1)
					m.logger.Error("connection handler panicked", "panic", r)
				}
			}()
			e.fn(status)
		}()
	}
}
