package optimistic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/bumpfeed/internal/clock"
	"github.com/rickgao/bumpfeed/internal/notify"
)

// Vibrator plays a haptic pattern.
type Vibrator interface {
	Vibrate(pattern []time.Duration)
}

// RetryFunc re-sends a mutation. A nil result with a nil error commits
// without replacing the optimistic data.
type RetryFunc[T any] func(ctx context.Context) (*T, error)

// Option configures a Tracker.
type Option func(*options)

type options struct {
	sched    clock.Scheduler
	sink     notify.Sink
	vibrator Vibrator
}

// WithScheduler sets the scheduler for retry delays and auto-rollback.
func WithScheduler(s clock.Scheduler) Option {
	return func(o *options) { o.sched = s }
}

// WithSink sets where rollback messages go.
func WithSink(s notify.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithVibrator enables haptic feedback on rollbacks in comfort mode.
func WithVibrator(v Vibrator) Option {
	return func(o *options) { o.vibrator = v }
}

type listenerEntry[T any] struct {
	id uint64
	fn Listener[T]
}

// Tracker records optimistic mutations until they commit or roll back.
// It is safe for concurrent use.
type Tracker[T any] struct {
	cfg      Config
	logger   *slog.Logger
	sched    clock.Scheduler
	sink     notify.Sink
	vibrator Vibrator

	mu       sync.Mutex
	pending  map[string]*Operation[T]
	failed   map[string]*Operation[T]
	retrying map[string]bool
	timeouts map[string]clock.CancelFunc

	total        int64
	successful   int64
	failures     int64
	timedOut     int64
	retries      int64
	avgLatency   time.Duration
	satisfaction int

	listenersMu    sync.RWMutex
	listeners      []listenerEntry[T]
	nextListenerID uint64
}

// NewTracker creates a Tracker. Zero config fields fall back to
// DefaultConfig values; MaxRetries may be set to a negative value to
// disable retries entirely.
func NewTracker[T any](cfg Config, logger *slog.Logger, opts ...Option) *Tracker[T] {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	} else if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	o := options{sched: clock.NewReal(), sink: notify.Discard{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return &Tracker[T]{
		cfg:          cfg,
		logger:       logger,
		sched:        o.sched,
		sink:         o.sink,
		vibrator:     o.vibrator,
		pending:      make(map[string]*Operation[T]),
		failed:       make(map[string]*Operation[T]),
		retrying:     make(map[string]bool),
		timeouts:     make(map[string]clock.CancelFunc),
		satisfaction: maxSatisfaction,
	}
}

// Apply records a mutation the caller has already made visible and returns
// its operation ID. It never blocks on I/O.
func (t *Tracker[T]) Apply(m Mutation[T]) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applyLocked(m)
}

// Batch applies several mutations with no other Apply interleaved and
// returns their IDs in input order.
func (t *Tracker[T]) Batch(ms []Mutation[T]) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = t.applyLocked(m)
	}
	return ids
}

func (t *Tracker[T]) applyLocked(m Mutation[T]) string {
	now := t.sched.Now()
	id := t.newIDLocked(m.Key, now)

	t.pending[id] = &Operation[T]{
		ID:         id,
		Key:        m.Key,
		Kind:       m.Kind,
		Data:       m.Data,
		Original:   m.Original,
		CreatedAt:  now,
		MaxRetries: t.cfg.MaxRetries,
		rollback:   m.Rollback,
	}
	t.total++

	t.logger.Debug("operation applied", "op", id, "kind", m.Kind)
	return id
}

// newIDLocked returns {key}-{unixMillis}-{random}, unused by any live or
// failed operation.
func (t *Tracker[T]) newIDLocked(key string, now time.Time) string {
	for {
		suffix := uuid.NewString()[:8]
		id := fmt.Sprintf("%s-%d-%s", key, now.UnixMilli(), suffix)
		if _, ok := t.pending[id]; ok {
			continue
		}
		if _, ok := t.failed[id]; ok {
			continue
		}
		return id
	}
}

// Commit marks an operation confirmed. serverData, when non-nil, replaces
// the optimistic data. It returns false if opID is not pending.
func (t *Tracker[T]) Commit(opID string, serverData *T) bool {
	t.mu.Lock()
	op, ok := t.pending[opID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.pending, opID)
	delete(t.retrying, opID)
	t.cancelTimeoutLocked(opID)

	if serverData != nil {
		op.Data = *serverData
	}

	latency := t.sched.Now().Sub(op.CreatedAt)
	t.avgLatency = (t.avgLatency*time.Duration(t.successful) + latency) / time.Duration(t.successful+1)
	t.successful++
	t.satisfaction = min(maxSatisfaction, t.satisfaction+satisfactionGain)
	resolved := *op
	t.mu.Unlock()

	t.logger.Debug("operation committed", "op", opID, "latency", latency)
	t.emit(Event[T]{Type: EventCommitted, Operation: resolved, Latency: latency})
	return true
}

// Rollback reverts a pending operation and moves it to the failed set.
// A panicking rollback action is recovered and logged. It returns false if
// opID is not pending.
func (t *Tracker[T]) Rollback(opID string, err error, notifyUser bool) bool {
	t.mu.Lock()
	op, ok := t.pending[opID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.pending, opID)
	delete(t.retrying, opID)
	t.cancelTimeoutLocked(opID)
	t.failed[opID] = op

	t.failures++
	t.satisfaction = max(0, t.satisfaction-satisfactionPenalty)
	latency := t.sched.Now().Sub(op.CreatedAt)
	resolved := *op
	t.mu.Unlock()

	t.logger.Warn("operation rolled back",
		"op", opID,
		"kind", op.Kind,
		"retries", op.Retries,
		"error", err,
	)

	t.runRollback(op)

	if notifyUser {
		t.sink.Add(rollbackNotice(op.Kind, err))
		if t.cfg.Comfort && t.cfg.Haptics && t.vibrator != nil {
			t.vibrator.Vibrate(rollbackVibration)
		}
	}

	t.emit(Event[T]{Type: EventRolledBack, Operation: resolved, Latency: latency, Err: err})
	return true
}

func (t *Tracker[T]) runRollback(op *Operation[T]) {
	if op.rollback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("rollback action panicked", "op", op.ID, "panic", r)
		}
	}()
	op.rollback()
}

// Retry re-runs fn for a pending operation until it succeeds or the retry
// budget is spent. The nth retry waits n*RetryDelay first. Success commits
// with fn's result; running out of retries rolls the operation back with
// notification. Only one Retry runs per operation at a time; a concurrent
// call returns false immediately. Retry blocks until the chain ends and
// reports whether the operation committed.
func (t *Tracker[T]) Retry(ctx context.Context, opID string, fn RetryFunc[T]) bool {
	t.mu.Lock()
	if _, ok := t.pending[opID]; !ok || t.retrying[opID] {
		t.mu.Unlock()
		return false
	}
	t.retrying[opID] = true
	t.mu.Unlock()

	var lastErr error
	for {
		t.mu.Lock()
		op, ok := t.pending[opID]
		if !ok {
			t.mu.Unlock()
			return false
		}
		op.Retries++
		attempt := op.Retries
		if attempt > op.MaxRetries {
			t.mu.Unlock()

			cause := ErrRetriesExhausted
			if lastErr != nil {
				cause = fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
			}
			t.Rollback(opID, cause, true)
			return false
		}
		t.retries++
		delay := t.cfg.retryDelay(attempt)
		t.mu.Unlock()

		t.logger.Info("retrying operation",
			"op", opID,
			"attempt", attempt,
			"max_retries", op.MaxRetries,
			"delay", delay,
		)

		if !t.wait(ctx, delay) {
			t.mu.Lock()
			delete(t.retrying, opID)
			t.mu.Unlock()
			return false
		}

		t.mu.Lock()
		if _, ok := t.pending[opID]; !ok {
			t.mu.Unlock()
			return false
		}
		// Each attempt gets a fresh deadline when auto-rollback is armed.
		if _, armed := t.timeouts[opID]; armed {
			t.armTimeoutLocked(opID)
		}
		t.mu.Unlock()

		data, err := fn(ctx)
		if err == nil {
			return t.Commit(opID, data)
		}
		lastErr = err

		t.logger.Warn("retry failed", "op", opID, "attempt", attempt, "error", err)
	}
}

// wait blocks for d on the scheduler. It returns false if ctx ends first.
func (t *Tracker[T]) wait(ctx context.Context, d time.Duration) bool {
	done := make(chan struct{})
	cancel := t.sched.After(d, func() { close(done) })

	select {
	case <-done:
		return true
	case <-ctx.Done():
		cancel()
		return false
	}
}

// SetupAutoRollback arms the timeout after which a still-pending operation
// is rolled back with ErrTimeout. It returns false if opID is not pending.
func (t *Tracker[T]) SetupAutoRollback(opID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[opID]; !ok {
		return false
	}
	t.armTimeoutLocked(opID)
	return true
}

func (t *Tracker[T]) armTimeoutLocked(opID string) {
	t.cancelTimeoutLocked(opID)
	t.timeouts[opID] = t.sched.After(t.cfg.Timeout, func() {
		t.mu.Lock()
		if _, ok := t.pending[opID]; !ok {
			t.mu.Unlock()
			return
		}
		delete(t.timeouts, opID)
		t.timedOut++
		t.mu.Unlock()

		t.logger.Warn("operation timed out", "op", opID, "timeout", t.cfg.Timeout)
		t.Rollback(opID, ErrTimeout, t.cfg.NotifyOnTimeout)
	})
}

func (t *Tracker[T]) cancelTimeoutLocked(opID string) {
	if cancel, ok := t.timeouts[opID]; ok {
		cancel()
		delete(t.timeouts, opID)
	}
}

// ClearFailed forgets a failed operation. It returns false if opID is not
// in the failed set.
func (t *Tracker[T]) ClearFailed(opID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.failed[opID]; !ok {
		return false
	}
	delete(t.failed, opID)
	return true
}

// ClearAllFailed empties the failed set.
func (t *Tracker[T]) ClearAllFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.failed)
}

// Pending returns a copy of a pending operation.
func (t *Tracker[T]) Pending(opID string) (Operation[T], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.pending[opID]
	if !ok {
		return Operation[T]{}, false
	}
	return *op, true
}

// Failed returns a copy of a failed operation.
func (t *Tracker[T]) Failed(opID string) (Operation[T], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.failed[opID]
	if !ok {
		return Operation[T]{}, false
	}
	return *op, true
}

// PendingCount returns the number of unconfirmed operations.
func (t *Tracker[T]) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// FailedCount returns the number of failed operations not yet cleared.
func (t *Tracker[T]) FailedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failed)
}

// Stats returns a snapshot of tracker statistics.
func (t *Tracker[T]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		TotalOperations:      t.total,
		SuccessfulOperations: t.successful,
		FailedOperations:     t.failures,
		TimedOutOperations:   t.timedOut,
		RetryAttempts:        t.retries,
		AverageLatency:       t.avgLatency,
		Satisfaction:         t.satisfaction,
		Pending:              len(t.pending),
		Failed:               len(t.failed),
	}
}

// Subscribe registers a listener for commit and rollback events. The
// returned function removes it.
func (t *Tracker[T]) Subscribe(fn Listener[T]) func() {
	t.listenersMu.Lock()
	t.nextListenerID++
	id := t.nextListenerID
	t.listeners = append(t.listeners, listenerEntry[T]{id: id, fn: fn})
	t.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.listenersMu.Lock()
			defer t.listenersMu.Unlock()
			for i, l := range t.listeners {
				if l.id == id {
					t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (t *Tracker[T]) emit(ev Event[T]) {
	t.listenersMu.RLock()
	listeners := append([]listenerEntry[T](nil), t.listeners...)
	t.listenersMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error("listener panicked", "op", ev.Operation.ID, "panic", r)
				}
			}()
			l.fn(ev)
		}()
	}
}

// Close rolls back every pending operation without notifying the user.
func (t *Tracker[T]) Close() {
	t.mu.Lock()
	ids := make([]string, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		t.Rollback(id, ErrClosed, false)
	}

	if len(ids) > 0 {
		t.logger.Info("tracker closed", "rolled_back", len(ids))
	}
}
