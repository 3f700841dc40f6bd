package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultTransportBuffer      = 256
	DefaultReconnectInterval    = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultLatencyTimeout       = 5 * time.Second
	DefaultStableLatency        = 200 * time.Millisecond
	DefaultMutationRetries      = 3
	DefaultRetryDelay           = 1 * time.Second
	DefaultMutationTimeout      = 5 * time.Second
	DefaultItemHeight           = 200
	DefaultWindowBuffer         = 5
	DefaultContainerHeight      = 600
	DefaultOverscan             = 3
	DefaultScrollDebounce       = 150 * time.Millisecond
	DefaultMaxScrollStep        = 48
	DefaultAPITimeout           = 15 * time.Second
	DefaultAPIRetries           = 2
	DefaultRefreshLimit         = 50
	DefaultPollInterval         = 30 * time.Second
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultTelemetryBatchSize   = 500
	DefaultFlushInterval        = 5 * time.Second
	DefaultQueueLimit           = 5
	DefaultRedisChannel         = "bumpfeed:notifications"
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

func (c *FeedClientConfig) applyDefaults() {
	// Transport defaults
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.BufferSize == 0 {
		c.Transport.BufferSize = DefaultTransportBuffer
	}

	// Connection defaults
	if c.Connection.ReconnectInterval == 0 {
		c.Connection.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Connection.MaxReconnectAttempts == 0 {
		c.Connection.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.LatencyTimeout == 0 {
		c.Connection.LatencyTimeout = DefaultLatencyTimeout
	}
	if c.Connection.StableLatency == 0 {
		c.Connection.StableLatency = DefaultStableLatency
	}

	// Mutation defaults
	if c.Mutations.MaxRetries == 0 {
		c.Mutations.MaxRetries = DefaultMutationRetries
	}
	if c.Mutations.RetryDelay == 0 {
		c.Mutations.RetryDelay = DefaultRetryDelay
	}
	if c.Mutations.Timeout == 0 {
		c.Mutations.Timeout = DefaultMutationTimeout
	}
	if c.Mutations.Haptics == nil {
		haptics := true
		c.Mutations.Haptics = &haptics
	}

	// Window defaults
	if c.Window.ItemHeight == 0 {
		c.Window.ItemHeight = DefaultItemHeight
	}
	if c.Window.BufferSize == 0 {
		c.Window.BufferSize = DefaultWindowBuffer
	}
	if c.Window.ContainerHeight == 0 {
		c.Window.ContainerHeight = DefaultContainerHeight
	}
	if c.Window.Overscan == nil {
		overscan := DefaultOverscan
		c.Window.Overscan = &overscan
	}
	if c.Window.ScrollDebounce == 0 {
		c.Window.ScrollDebounce = DefaultScrollDebounce
	}
	if c.Window.MaxScrollStep == 0 {
		c.Window.MaxScrollStep = DefaultMaxScrollStep
	}

	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultAPIRetries
	}
	if c.API.RefreshLimit == 0 {
		c.API.RefreshLimit = DefaultRefreshLimit
	}
	if c.API.PollInterval == 0 {
		c.API.PollInterval = DefaultPollInterval
	}

	// Telemetry defaults
	applyDBDefaults(&c.Telemetry.Database)
	if c.Telemetry.BatchSize == 0 {
		c.Telemetry.BatchSize = DefaultTelemetryBatchSize
	}
	if c.Telemetry.FlushInterval == 0 {
		c.Telemetry.FlushInterval = DefaultFlushInterval
	}

	// Notification defaults
	if c.Notifications.QueueLimit == 0 {
		c.Notifications.QueueLimit = DefaultQueueLimit
	}
	if c.Notifications.Redis.Channel == "" {
		c.Notifications.Redis.Channel = DefaultRedisChannel
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
