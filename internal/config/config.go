package config

import "time"

// FeedClientConfig is the root configuration for a feed client instance.
type FeedClientConfig struct {
	Client        ClientConfig        `yaml:"client"`
	Transport     TransportConfig     `yaml:"transport"`
	Connection    ConnectionConfig    `yaml:"connection"`
	Mutations     MutationsConfig     `yaml:"mutations"`
	Window        WindowConfig        `yaml:"window"`
	API           APIConfig           `yaml:"api"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Log           LogConfig           `yaml:"log"`
}

// ClientConfig identifies the user and device.
type ClientConfig struct {
	UserID   string `yaml:"user_id"`
	UserName string `yaml:"user_name"`
	DeviceID string `yaml:"device_id"`
	Comfort  bool   `yaml:"comfort"` // Softer timing, eased scrolling, haptics
}

// TransportConfig holds push socket settings.
type TransportConfig struct {
	URL              string        `yaml:"url"` // ws:// or wss:// endpoint
	Compression      bool          `yaml:"compression"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// ConnectionConfig holds liveness and reconnect settings.
type ConnectionConfig struct {
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	LatencyTimeout       time.Duration `yaml:"latency_timeout"`
	StableLatency        time.Duration `yaml:"stable_latency"`
}

// MutationsConfig holds optimistic update settings.
type MutationsConfig struct {
	MaxRetries      int           `yaml:"max_retries"` // -1 disables retries
	RetryDelay      time.Duration `yaml:"retry_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	NotifyOnTimeout bool          `yaml:"notify_on_timeout"`
	Haptics         *bool         `yaml:"haptics"` // Defaults to true
}

// WindowConfig holds virtual list settings.
type WindowConfig struct {
	ItemHeight      float64       `yaml:"item_height"`
	BufferSize      int           `yaml:"buffer_size"`
	ContainerHeight float64       `yaml:"container_height"`
	Overscan        *int          `yaml:"overscan"` // Defaults to 3; 0 is allowed
	ScrollDebounce  time.Duration `yaml:"scroll_debounce"`
	MaxScrollStep   float64       `yaml:"max_scroll_step"`
}

// APIConfig holds REST API settings.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Token        string        `yaml:"token"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RefreshLimit int           `yaml:"refresh_limit"` // Posts loaded at start and after a reconnect
	PollInterval time.Duration `yaml:"poll_interval"` // REST refresh period while the socket is down
}

// TelemetryConfig holds the outcome recorder settings.
type TelemetryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// NotificationsConfig holds user notification settings.
type NotificationsConfig struct {
	QueueLimit int         `yaml:"queue_limit"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds the cross-device notification relay.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
