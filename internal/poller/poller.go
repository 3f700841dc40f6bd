package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/bumpfeed/internal/connection"
)

// Refresher reloads the feed. *feed.Controller implements it.
type Refresher interface {
	Load(ctx context.Context) error
}

// StatusSource reports the push connection state. *connection.Manager
// implements it.
type StatusSource interface {
	Status() connection.Status
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 30s)
	Timeout  time.Duration // Per-refresh timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Stats counts poll cycles.
type Stats struct {
	Polls   int64 // Refreshes attempted
	Skipped int64 // Ticks skipped because the socket was up
	Errors  int64 // Failed refreshes
}

// Poller periodically refreshes the feed while the socket is not connected.
type Poller struct {
	cfg    Config
	feed   Refresher
	status StatusSource
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	polls   atomic.Int64
	skipped atomic.Int64
	errors  atomic.Int64
}

// New creates a new Poller. Zero config fields fall back to DefaultConfig.
func New(cfg Config, feed Refresher, status StatusSource, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:    cfg,
		feed:   feed,
		status: status,
		logger: logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("fallback poller started", "interval", p.cfg.Interval)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("fallback poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns poll counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Polls:   p.polls.Load(),
		Skipped: p.skipped.Load(),
		Errors:  p.errors.Load(),
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll refreshes once unless the socket is connected. It reports whether a
// refresh ran.
func (p *Poller) poll() bool {
	st := p.status.Status()
	if st.Connected() {
		p.skipped.Add(1)
		return false
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	p.polls.Add(1)
	if err := p.feed.Load(ctx); err != nil {
		p.errors.Add(1)
		p.logger.Warn("fallback refresh failed",
			"state", st.State,
			"err", err,
		)
		return true
	}

	p.logger.Debug("fallback refresh complete",
		"state", st.State,
		"duration", time.Since(start),
	)
	return true
}
