package optimistic

import (
	"errors"
	"time"
)

// Errors
var (
	ErrTimeout          = errors.New("operation timeout exceeded")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrClosed           = errors.New("tracker closed")
)

// Kind is the shape of a mutation.
type Kind string

const (
	KindAdd    Kind = "add"
	KindUpdate Kind = "update"
	KindRemove Kind = "remove"
)

// Mutation describes a change the caller has already applied locally.
type Mutation[T any] struct {
	Key      string // Semantic ID of the mutated item, e.g. a post ID
	Kind     Kind
	Data     T
	Original *T     // Value before the change, if any
	Rollback func() // Reverts the local change; may be nil
}

// Operation is a tracked mutation awaiting confirmation.
type Operation[T any] struct {
	ID         string
	Key        string
	Kind       Kind
	Data       T
	Original   *T
	CreatedAt  time.Time
	Retries    int
	MaxRetries int

	rollback func()
}

// EventType says how an operation resolved.
type EventType int

const (
	EventCommitted EventType = iota
	EventRolledBack
)

func (e EventType) String() string {
	switch e {
	case EventCommitted:
		return "committed"
	case EventRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Event reports a resolved operation to subscribers.
type Event[T any] struct {
	Type      EventType
	Operation Operation[T] // Data holds server data after a commit that supplied it
	Latency   time.Duration
	Err       error // Rollback cause
}

// Listener receives resolution events. It runs outside the tracker lock.
type Listener[T any] func(Event[T])

// Config configures a Tracker.
type Config struct {
	MaxRetries      int           // Retries before an operation is rolled back
	RetryDelay      time.Duration // Delay unit; the nth retry waits n units
	Timeout         time.Duration // Auto-rollback deadline
	Comfort         bool          // Comfort mode: 0.8x retry delays and haptics
	NotifyOnTimeout bool          // Show a message when auto-rollback fires
	Haptics         bool          // Vibrate on user-visible rollback in comfort mode
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: time.Second,
		Timeout:    5 * time.Second,
		Haptics:    true,
	}
}

// retryDelay returns the wait before retry number n (1-based).
func (c Config) retryDelay(n int) time.Duration {
	d := c.RetryDelay * time.Duration(n)
	if c.Comfort {
		d = d * 4 / 5
	}
	return d
}

// Stats summarizes tracker activity.
type Stats struct {
	TotalOperations      int64
	SuccessfulOperations int64
	FailedOperations     int64
	TimedOutOperations   int64
	RetryAttempts        int64
	AverageLatency       time.Duration // Rolling mean apply-to-commit time
	Satisfaction         int           // 0..100; +1 per commit, -5 per rollback
	Pending              int
	Failed               int
}

const (
	maxSatisfaction     = 100
	satisfactionGain    = 1
	satisfactionPenalty = 5
)

// rollbackVibration is the haptic pattern for a user-visible rollback.
var rollbackVibration = []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 50 * time.Millisecond}
