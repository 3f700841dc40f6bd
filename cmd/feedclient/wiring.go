package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/bumpfeed/internal/config"
	"github.com/rickgao/bumpfeed/internal/connection"
	"github.com/rickgao/bumpfeed/internal/optimistic"
	"github.com/rickgao/bumpfeed/internal/version"
	"github.com/rickgao/bumpfeed/internal/window"
)

func connectionConfig(cfg *config.FeedClientConfig) connection.Config {
	return connection.Config{
		URL:                  cfg.Transport.URL,
		Compression:          cfg.Transport.Compression,
		Comfort:              cfg.Client.Comfort,
		ReconnectInterval:    cfg.Connection.ReconnectInterval,
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
		HeartbeatInterval:    cfg.Connection.HeartbeatInterval,
		LatencyTimeout:       cfg.Connection.LatencyTimeout,
		StableLatency:        cfg.Connection.StableLatency,
		Client: connection.ClientConfig{
			UserAgent:        version.UserAgent(),
			HandshakeTimeout: cfg.Transport.HandshakeTimeout,
			WriteTimeout:     cfg.Transport.WriteTimeout,
			BufferSize:       cfg.Transport.BufferSize,
		},
	}
}

func mutationConfig(cfg *config.FeedClientConfig) optimistic.Config {
	haptics := cfg.Mutations.Haptics == nil || *cfg.Mutations.Haptics
	return optimistic.Config{
		MaxRetries:      cfg.Mutations.MaxRetries,
		RetryDelay:      cfg.Mutations.RetryDelay,
		Timeout:         cfg.Mutations.Timeout,
		Comfort:         cfg.Client.Comfort,
		NotifyOnTimeout: cfg.Mutations.NotifyOnTimeout,
		Haptics:         haptics,
	}
}

func windowConfig(cfg *config.FeedClientConfig) window.Config {
	overscan := config.DefaultOverscan
	if cfg.Window.Overscan != nil {
		overscan = *cfg.Window.Overscan
	}
	return window.Config{
		ItemHeight:      cfg.Window.ItemHeight,
		BufferSize:      cfg.Window.BufferSize,
		ContainerHeight: cfg.Window.ContainerHeight,
		Overscan:        overscan,
		Comfort:         cfg.Client.Comfort,
		ScrollDebounce:  cfg.Window.ScrollDebounce,
		MaxScrollStep:   cfg.Window.MaxScrollStep,
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// logSurface stands in for a rendering surface in a headless client.
type logSurface struct {
	logger *slog.Logger
}

func (s *logSurface) ScrollTo(top float64, smooth bool) {
	s.logger.Debug("scroll", "top", top, "smooth", smooth)
}

func (s *logSurface) Vibrate(pattern []time.Duration) {
	s.logger.Debug("vibrate", "pattern", pattern)
}

func (s *logSurface) Measure(string) (float64, bool) {
	return 0, false
}
