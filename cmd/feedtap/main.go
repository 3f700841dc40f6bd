// feedtap connects to the feed push socket and prints every decoded message
// to the console. It is a debugging tool for the wire protocol.
// Usage: go run ./cmd/feedtap --config configs/feedclient.local.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/bumpfeed/internal/config"
	"github.com/rickgao/bumpfeed/internal/connection"
	"github.com/rickgao/bumpfeed/internal/message"
	"github.com/rickgao/bumpfeed/internal/notify"
	"github.com/rickgao/bumpfeed/internal/telemetry"
	"github.com/rickgao/bumpfeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedclient.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	manager := connection.NewManager(connection.Config{
		URL:                  cfg.Transport.URL,
		Compression:          cfg.Transport.Compression,
		Comfort:              cfg.Client.Comfort,
		ReconnectInterval:    cfg.Connection.ReconnectInterval,
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
		HeartbeatInterval:    cfg.Connection.HeartbeatInterval,
		Client: connection.ClientConfig{
			UserAgent:  version.UserAgent(),
			BufferSize: cfg.Transport.BufferSize,
		},
	}, logger, connection.WithSink(notify.NewLogSink(logger)))

	// Handlers only enqueue; printMessages drains on its own goroutine
	queue := telemetry.NewQueue[message.Inbound](1000)
	for _, t := range tappedTypes {
		manager.OnMessage(t, func(in message.Inbound) { queue.Push(in) })
	}
	manager.OnConnection(func(st connection.Status) {
		logger.Info("connection", "state", st.State, "attempts", st.ReconnectAttempts, "latency", st.Latency)
	})

	if err := manager.Connect(ctx); err != nil {
		logger.Error("failed to connect", "url", cfg.Transport.URL, "error", err)
		os.Exit(1)
	}

	go printMessages(ctx, queue, *verbose)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := manager.Stats()
				qs := queue.Stats()
				logger.Info("stats",
					"received", st.MessagesReceived,
					"dispatched", st.MessagesDispatched,
					"parse_errors", st.ParseErrors,
					"queued", qs.Count,
					"queue_capacity", qs.Capacity,
				)
			}
		}
	}()

	logger.Info("tapping feed - press Ctrl+C to stop", "url", cfg.Transport.URL)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	manager.Disconnect()
	queue.Close()

	logger.Info("shutdown complete")
}

func printMessages(ctx context.Context, queue *telemetry.Queue[message.Inbound], verbose bool) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, in := range queue.Drain(0) {
				fmt.Println(formatMessage(in, verbose))
			}
		}
	}
}
