package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *FeedClientConfig) Validate() error {
	if c.Client.UserID == "" {
		return errors.New("client.user_id is required")
	}

	if c.Transport.URL == "" {
		return errors.New("transport.url is required")
	}
	u, err := url.Parse(c.Transport.URL)
	if err != nil {
		return fmt.Errorf("transport.url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("transport.url must use ws or wss, got %q", u.Scheme)
	}
	if c.Transport.BufferSize < 1 {
		return errors.New("transport.buffer_size must be >= 1")
	}

	if c.Connection.MaxReconnectAttempts < -1 {
		return errors.New("connection.max_reconnect_attempts must be >= -1")
	}
	if c.Connection.ReconnectInterval < 0 || c.Connection.HeartbeatInterval < 0 {
		return errors.New("connection intervals must be positive")
	}

	if c.Mutations.MaxRetries < -1 {
		return errors.New("mutations.max_retries must be >= -1")
	}
	if c.Mutations.Timeout < 0 || c.Mutations.RetryDelay < 0 {
		return errors.New("mutations durations must be positive")
	}

	if c.Window.ItemHeight <= 0 {
		return errors.New("window.item_height must be > 0")
	}
	if c.Window.ContainerHeight <= 0 {
		return errors.New("window.container_height must be > 0")
	}
	if c.Window.BufferSize < 0 {
		return errors.New("window.buffer_size must be >= 0")
	}
	if c.Window.Overscan != nil && *c.Window.Overscan < 0 {
		return errors.New("window.overscan must be >= 0")
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.PollInterval < time.Second {
		return errors.New("api.poll_interval must be at least 1s")
	}

	if c.Telemetry.Enabled {
		if err := c.Telemetry.Database.validate("telemetry.database"); err != nil {
			return err
		}
		if c.Telemetry.BatchSize < 1 {
			return errors.New("telemetry.batch_size must be >= 1")
		}
	}

	if c.Notifications.Redis.Enabled && c.Notifications.Redis.Addr == "" {
		return errors.New("notifications.redis.addr is required when redis is enabled")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
