package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/bumpfeed/internal/connection"
	"github.com/rickgao/bumpfeed/internal/metrics"
	"github.com/rickgao/bumpfeed/internal/optimistic"
)

// DB is the part of a pgx pool the recorder needs. *pgxpool.Pool
// implements it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Recorder batches telemetry rows into PostgreSQL.
type Recorder struct {
	cfg    Config
	db     DB
	logger *slog.Logger
	now    func() time.Time

	mutations   *Queue[mutationRow]
	connections *Queue[connectionRow]

	flushMu sync.Mutex // One flush at a time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	kick   chan struct{}

	inserted atomic.Int64
	dropped  atomic.Int64
	errors   atomic.Int64
	flushes  atomic.Int64
}

// NewRecorder creates a Recorder. Zero config fields fall back to
// DefaultConfig values.
func NewRecorder(cfg Config, db DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	return &Recorder{
		cfg:         cfg,
		db:          db,
		logger:      logger.With("session", cfg.SessionID),
		now:         time.Now,
		mutations:   NewQueue[mutationRow](cfg.QueueSize),
		connections: NewQueue[connectionRow](cfg.QueueSize),
		kick:        make(chan struct{}, 1),
	}
}

// EnsureSchema creates the telemetry tables if they are missing.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, Schema)
	return err
}

// Start begins periodic flushing.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("telemetry recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop ends periodic flushing, closes the queues, and writes whatever is
// left.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping telemetry recorder")

	if r.cancel != nil {
		r.cancel()
	}
	r.mutations.Close()
	r.connections.Close()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("telemetry recorder stop timed out")
	}

	// Final flush
	r.flushAll(ctx)

	r.logger.Info("telemetry recorder stopped", "inserted", r.inserted.Load())
	return nil
}

// Stats returns current counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Queued:   r.mutations.Len() + r.connections.Len(),
		Inserted: r.inserted.Load(),
		Dropped:  r.dropped.Load(),
		Errors:   r.errors.Load(),
		Flushes:  r.flushes.Load(),
	}
}

// recordMutation queues a resolved mutation.
func (r *Recorder) recordMutation(id, key string, kind optimistic.Kind, retries int, ev optimistic.EventType, latency time.Duration, err error) {
	row := mutationRow{
		OpID:       id,
		OpKey:      key,
		Kind:       string(kind),
		Outcome:    metrics.Outcome(ev, err),
		LatencyMs:  latency.Milliseconds(),
		Retries:    retries,
		ResolvedAt: r.now(),
	}
	if err != nil {
		row.Error = err.Error()
	}
	if !r.mutations.Push(row) {
		r.dropped.Add(1)
		return
	}
	r.maybeKick(r.mutations.Len())
}

// RecordConnection queues a connection status change.
func (r *Recorder) RecordConnection(st connection.Status) {
	row := connectionRow{
		State:             st.State.String(),
		ReconnectAttempts: st.ReconnectAttempts,
		LatencyMs:         st.Latency.Milliseconds(),
		Stable:            st.Stable,
		ObservedAt:        r.now(),
	}
	if st.Err != nil {
		row.Error = st.Err.Error()
	}
	if !r.connections.Push(row) {
		r.dropped.Add(1)
		return
	}
	r.maybeKick(r.connections.Len())
}

// WatchConnection records every status change from src. The returned
// function stops it.
func (r *Recorder) WatchConnection(src interface {
	OnConnection(fn connection.ConnectionHandler) func()
}) func() {
	return src.OnConnection(r.RecordConnection)
}

// TrackMutations records every operation t resolves. The returned function
// stops it.
func TrackMutations[T any](r *Recorder, t *optimistic.Tracker[T]) func() {
	return t.Subscribe(func(ev optimistic.Event[T]) {
		op := ev.Operation
		r.recordMutation(op.ID, op.Key, op.Kind, op.Retries, ev.Type, ev.Latency, ev.Err)
	})
}

// maybeKick wakes the flush loop once a full batch is waiting.
func (r *Recorder) maybeKick(queued int) {
	if queued < r.cfg.BatchSize {
		return
	}
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// flushLoop flushes on every tick and whenever a batch fills.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
		case <-r.kick:
		}
		r.flushAll(r.ctx)
	}
}

// Flush writes everything queued so far.
func (r *Recorder) Flush(ctx context.Context) {
	r.flushAll(ctx)
}

func (r *Recorder) flushAll(ctx context.Context) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	for {
		muts := r.mutations.Drain(r.cfg.BatchSize)
		conns := r.connections.Drain(r.cfg.BatchSize - len(muts))
		if len(muts) == 0 && len(conns) == 0 {
			return
		}
		if !r.flush(ctx, muts, conns) {
			return
		}
	}
}

// flush writes one batch. It reports whether the write succeeded.
func (r *Recorder) flush(ctx context.Context, muts []mutationRow, conns []connectionRow) bool {
	count := len(muts) + len(conns)
	start := time.Now()

	// Rows drained during Stop still get written after the run context ends.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.WriteTimeout)
	defer cancel()

	if err := r.batchInsert(ctx, muts, conns); err != nil {
		r.logger.Error("telemetry batch insert failed", "error", err, "count", count)
		r.errors.Add(1)
		r.dropped.Add(int64(count))
		return false
	}

	r.inserted.Add(int64(count))
	r.flushes.Add(1)

	r.logger.Debug("flushed telemetry",
		"mutations", len(muts),
		"connections", len(conns),
		"duration", time.Since(start),
	)
	return true
}

// batchInsert writes rows using one pgx.Batch.
func (r *Recorder) batchInsert(ctx context.Context, muts []mutationRow, conns []connectionRow) error {
	batch := &pgx.Batch{}
	for _, m := range muts {
		batch.Queue(`
			INSERT INTO mutation_outcomes (session_id, op_id, op_key, kind, outcome, latency_ms, retries, error, resolved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, r.cfg.SessionID, m.OpID, m.OpKey, m.Kind, m.Outcome, m.LatencyMs, m.Retries, m.Error, m.ResolvedAt)
	}
	for _, c := range conns {
		batch.Queue(`
			INSERT INTO connection_events (session_id, state, reconnect_attempts, latency_ms, stable, error, observed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.cfg.SessionID, c.State, c.ReconnectAttempts, c.LatencyMs, c.Stable, c.Error, c.ObservedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
