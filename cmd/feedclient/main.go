// feedclient runs the feed sync engine against a live server: it keeps the
// push socket open, applies pushed changes, and accepts feed commands on
// stdin. Health and Prometheus metrics are served on the metrics port.
//
// Usage: go run ./cmd/feedclient --config configs/feedclient.local.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/bumpfeed/internal/api"
	"github.com/rickgao/bumpfeed/internal/clock"
	"github.com/rickgao/bumpfeed/internal/config"
	"github.com/rickgao/bumpfeed/internal/connection"
	"github.com/rickgao/bumpfeed/internal/database"
	"github.com/rickgao/bumpfeed/internal/feed"
	"github.com/rickgao/bumpfeed/internal/metrics"
	"github.com/rickgao/bumpfeed/internal/model"
	"github.com/rickgao/bumpfeed/internal/notify"
	"github.com/rickgao/bumpfeed/internal/optimistic"
	"github.com/rickgao/bumpfeed/internal/poller"
	"github.com/rickgao/bumpfeed/internal/telemetry"
	"github.com/rickgao/bumpfeed/internal/version"
	"github.com/rickgao/bumpfeed/internal/window"
)

func main() {
	configPath := flag.String("config", "configs/feedclient.local.yaml", "path to config file")
	flag.Parse()

	// Bootstrap logger until the configured level is known
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting feedclient",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"user_id", cfg.Client.UserID,
		"comfort", cfg.Client.Comfort,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	sched := clock.NewReal()
	surface := &logSurface{logger: logger.With("component", "surface")}

	// Notifications: local toast queue, log, and optionally other devices
	queue := notify.NewQueue(cfg.Notifications.QueueLimit, sched)
	sinks := notify.Tee{queue, notify.NewLogSink(logger.With("component", "notify"))}
	if cfg.Notifications.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Notifications.Redis.Addr,
			Password: cfg.Notifications.Redis.Password,
			DB:       cfg.Notifications.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, notifications stay local", "addr", cfg.Notifications.Redis.Addr, "error", err)
		} else {
			sinks = append(sinks, notify.NewRedisSink(rdb, cfg.Notifications.Redis.Channel, cfg.Client.DeviceID, logger))
			logger.Info("notification relay connected", "addr", cfg.Notifications.Redis.Addr)
		}
	}

	manager := connection.NewManager(connectionConfig(cfg), logger.With("component", "connection"),
		connection.WithScheduler(sched),
		connection.WithSink(sinks),
	)

	tracker := optimistic.NewTracker[model.Post](mutationConfig(cfg), logger.With("component", "optimistic"),
		optimistic.WithScheduler(sched),
		optimistic.WithSink(sinks),
		optimistic.WithVibrator(surface),
	)
	defer tracker.Close()

	win := window.New(windowConfig(cfg), feed.Key, sched, surface, logger.With("component", "window"))
	defer win.Close()

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.Token,
		api.WithLogger(logger.With("component", "api")),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	store := feed.NewStore()
	controller := feed.NewController(feed.Config{
		UserID:         cfg.Client.UserID,
		UserName:       cfg.Client.UserName,
		RefreshLimit:   cfg.API.RefreshLimit,
		RequestTimeout: cfg.API.Timeout,
	}, store, manager, apiClient, tracker, win, logger.With("component", "feed"))

	// Metrics
	m := metrics.New(prometheus.NewRegistry())
	defer metrics.TrackMutations(m, tracker)()
	defer m.WatchConnection(manager)()
	win.OnRangeChange(m.ObserveRange)

	// Telemetry
	var recorder *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		var pool *pgxpool.Pool
		recorder, pool, err = startTelemetry(ctx, cfg, manager, tracker, logger)
		if err != nil {
			logger.Error("failed to start telemetry", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
	}

	// Start health and metrics server
	var telemetryStats telemetrySource
	if recorder != nil {
		telemetryStats = recorder
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHandler(cfg.Metrics.Path, controller, manager, telemetryStats, m),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	if err := controller.Start(ctx); err != nil {
		logger.Error("failed to start feed controller", "error", err)
		os.Exit(1)
	}

	if err := controller.Load(ctx); err != nil {
		logger.Warn("initial feed load failed", "error", err)
	}

	if err := manager.Connect(ctx); err != nil {
		logger.Error("failed to connect push socket", "error", err)
		os.Exit(1)
	}

	fallback := poller.New(poller.Config{
		Interval: cfg.API.PollInterval,
		Timeout:  cfg.API.Timeout,
	}, controller, manager, logger.With("component", "poller"))
	if err := fallback.Start(ctx); err != nil {
		logger.Error("failed to start fallback poller", "error", err)
		os.Exit(1)
	}

	go runCommands(ctx, os.Stdin, os.Stdout, controller, win, logger)

	logger.Info("feedclient running",
		"posts", store.Len(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := fallback.Stop(shutdownCtx); err != nil {
		logger.Warn("fallback poller stop", "error", err)
	}
	manager.Disconnect()
	if err := controller.Stop(shutdownCtx); err != nil {
		logger.Warn("feed controller stop", "error", err)
	}
	if recorder != nil {
		if err := recorder.Stop(shutdownCtx); err != nil {
			logger.Warn("telemetry stop", "error", err)
		}
	}
	server.Shutdown(shutdownCtx)

	logger.Info("feedclient stopped", "stats", tracker.Stats())
}

// startTelemetry connects to the telemetry database and starts recording
// mutation outcomes and connection changes.
func startTelemetry(
	ctx context.Context,
	cfg *config.FeedClientConfig,
	manager *connection.Manager,
	tracker *optimistic.Tracker[model.Post],
	logger *slog.Logger,
) (*telemetry.Recorder, *pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, cfg.Telemetry.Database, logger.With("component", "database"))
	if err != nil {
		return nil, nil, err
	}

	rcfg := telemetry.DefaultConfig()
	rcfg.SessionID = cfg.Client.DeviceID
	rcfg.BatchSize = cfg.Telemetry.BatchSize
	rcfg.FlushInterval = cfg.Telemetry.FlushInterval

	recorder := telemetry.NewRecorder(rcfg, pool, logger.With("component", "telemetry"))
	if err := recorder.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := recorder.Start(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	telemetry.TrackMutations(recorder, tracker)
	recorder.WatchConnection(manager)

	return recorder, pool, nil
}
