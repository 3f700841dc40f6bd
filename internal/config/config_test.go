package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
client:
  user_id: user-42
  user_name: Maya
  comfort: true
transport:
  url: wss://feed.example.com/ws
  compression: true
api:
  base_url: https://api.example.com/v1
telemetry:
  enabled: true
  database:
    host: localhost
    port: 5433
    name: bumpfeed
    user: feed
    password: pass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Client.UserID != "user-42" {
		t.Errorf("Client.UserID = %q, want %q", cfg.Client.UserID, "user-42")
	}
	if !cfg.Client.Comfort {
		t.Error("Client.Comfort = false, want true")
	}
	if cfg.Transport.URL != "wss://feed.example.com/ws" {
		t.Errorf("Transport.URL = %q, want %q", cfg.Transport.URL, "wss://feed.example.com/ws")
	}
	if cfg.Telemetry.Database.Port != 5433 {
		t.Errorf("Telemetry.Database.Port = %d, want 5433", cfg.Telemetry.Database.Port)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_FEED_TOKEN", "tok-123")
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
client:
  user_id: user-42
api:
  base_url: https://api.example.com/v1
  token: ${TEST_FEED_TOKEN}
telemetry:
  database:
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Token != "tok-123" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "tok-123")
	}
	if cfg.Telemetry.Database.Password != "secret123" {
		t.Errorf("Telemetry.Database.Password = %q, want %q", cfg.Telemetry.Database.Password, "secret123")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Errorf("Load() error = %v, want read config file error", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
client:
  user_id: user-42
transport:
  url: ws://localhost:8080/ws
api:
  base_url: http://localhost:8080
window:
  overscan: 0
mutations:
  haptics: false
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Connection.ReconnectInterval != DefaultReconnectInterval {
		t.Errorf("Connection.ReconnectInterval = %v, want %v", cfg.Connection.ReconnectInterval, DefaultReconnectInterval)
	}
	if cfg.Connection.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("Connection.MaxReconnectAttempts = %d, want %d", cfg.Connection.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
	if cfg.Connection.HeartbeatInterval != 30*time.Second {
		t.Errorf("Connection.HeartbeatInterval = %v, want 30s", cfg.Connection.HeartbeatInterval)
	}
	if cfg.Mutations.MaxRetries != DefaultMutationRetries {
		t.Errorf("Mutations.MaxRetries = %d, want %d", cfg.Mutations.MaxRetries, DefaultMutationRetries)
	}
	if cfg.Mutations.Timeout != 5*time.Second {
		t.Errorf("Mutations.Timeout = %v, want 5s", cfg.Mutations.Timeout)
	}
	if cfg.Mutations.Haptics == nil || *cfg.Mutations.Haptics {
		t.Errorf("Mutations.Haptics = %v, want explicit false kept", cfg.Mutations.Haptics)
	}
	if cfg.Window.ItemHeight != DefaultItemHeight {
		t.Errorf("Window.ItemHeight = %v, want %v", cfg.Window.ItemHeight, DefaultItemHeight)
	}
	if cfg.Window.Overscan == nil || *cfg.Window.Overscan != 0 {
		t.Errorf("Window.Overscan = %v, want explicit 0 kept", cfg.Window.Overscan)
	}
	if cfg.Telemetry.Database.SSLMode != DefaultDBSSLMode {
		t.Errorf("Telemetry.Database.SSLMode = %q, want %q", cfg.Telemetry.Database.SSLMode, DefaultDBSSLMode)
	}
	if cfg.Notifications.Redis.Channel != DefaultRedisChannel {
		t.Errorf("Notifications.Redis.Channel = %q, want %q", cfg.Notifications.Redis.Channel, DefaultRedisChannel)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
}

func TestLoadAndValidate(t *testing.T) {
	yaml := `
client:
  user_id: user-42
transport:
  url: https://feed.example.com/ws
api:
  base_url: https://api.example.com/v1
`
	path := writeTempFile(t, yaml)

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("LoadAndValidate() expected error, got nil")
	}
	want := `validate config: transport.url must use ws or wss, got "https"`
	if err.Error() != want {
		t.Errorf("LoadAndValidate() error = %q, want %q", err.Error(), want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FeedClientConfig)
		wantErr string
	}{
		{
			name:    "missing user id",
			mutate:  func(c *FeedClientConfig) { c.Client.UserID = "" },
			wantErr: "client.user_id is required",
		},
		{
			name:    "missing transport url",
			mutate:  func(c *FeedClientConfig) { c.Transport.URL = "" },
			wantErr: "transport.url is required",
		},
		{
			name:    "negative reconnect attempts",
			mutate:  func(c *FeedClientConfig) { c.Connection.MaxReconnectAttempts = -2 },
			wantErr: "connection.max_reconnect_attempts must be >= -1",
		},
		{
			name:    "reconnects disabled",
			mutate:  func(c *FeedClientConfig) { c.Connection.MaxReconnectAttempts = -1 },
			wantErr: "",
		},
		{
			name:    "retries disabled",
			mutate:  func(c *FeedClientConfig) { c.Mutations.MaxRetries = -1 },
			wantErr: "",
		},
		{
			name:    "retries below disabled",
			mutate:  func(c *FeedClientConfig) { c.Mutations.MaxRetries = -2 },
			wantErr: "mutations.max_retries must be >= -1",
		},
		{
			name:    "zero item height",
			mutate:  func(c *FeedClientConfig) { c.Window.ItemHeight = 0 },
			wantErr: "window.item_height must be > 0",
		},
		{
			name: "negative overscan",
			mutate: func(c *FeedClientConfig) {
				n := -1
				c.Window.Overscan = &n
			},
			wantErr: "window.overscan must be >= 0",
		},
		{
			name:    "missing api base url",
			mutate:  func(c *FeedClientConfig) { c.API.BaseURL = "" },
			wantErr: "api.base_url is required",
		},
		{
			name:    "poll interval too short",
			mutate:  func(c *FeedClientConfig) { c.API.PollInterval = 100 * time.Millisecond },
			wantErr: "api.poll_interval must be at least 1s",
		},
		{
			name:    "telemetry without database host",
			mutate:  func(c *FeedClientConfig) { c.Telemetry.Enabled = true },
			wantErr: "telemetry.database.host is required",
		},
		{
			name: "telemetry min_conns exceeds max_conns",
			mutate: func(c *FeedClientConfig) {
				c.Telemetry.Enabled = true
				c.Telemetry.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "telemetry.database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "redis without addr",
			mutate:  func(c *FeedClientConfig) { c.Notifications.Redis.Enabled = true },
			wantErr: "notifications.redis.addr is required when redis is enabled",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *FeedClientConfig) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *FeedClientConfig) { c.Log.Level = "trace" },
			wantErr: `log.level must be one of debug, info, warn, error, got "trace"`,
		},
		{
			name:    "valid config",
			mutate:  func(c *FeedClientConfig) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func validConfig() *FeedClientConfig {
	cfg := &FeedClientConfig{
		Client:    ClientConfig{UserID: "user-42", UserName: "Maya"},
		Transport: TransportConfig{URL: "wss://feed.example.com/ws"},
		API:       APIConfig{BaseURL: "https://api.example.com/v1"},
	}
	cfg.applyDefaults()
	return cfg
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
