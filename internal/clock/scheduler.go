package clock

import (
	"sync"
	"time"
)

// FrameInterval is the delay Real uses to emulate the next animation frame.
const FrameInterval = 16 * time.Millisecond

// CancelFunc stops a scheduled callback. Calling it more than once, or after
// the callback ran, has no effect.
type CancelFunc func()

// Scheduler runs callbacks after a delay or on the next render frame.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time

	// After runs fn once d has elapsed.
	After(d time.Duration, fn func()) CancelFunc

	// NextFrame runs fn on the next render frame.
	NextFrame(fn func()) CancelFunc
}

// Real is a Scheduler backed by time.AfterFunc.
type Real struct{}

// NewReal returns the wall-clock scheduler.
func NewReal() Real {
	return Real{}
}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// After schedules fn with time.AfterFunc.
func (Real) After(d time.Duration, fn func()) CancelFunc {
	if d < 0 {
		d = 0
	}
	t := time.AfterFunc(d, fn)
	var once sync.Once
	return func() {
		once.Do(func() { t.Stop() })
	}
}

// NextFrame schedules fn one FrameInterval from now.
func (r Real) NextFrame(fn func()) CancelFunc {
	return r.After(FrameInterval, fn)
}
