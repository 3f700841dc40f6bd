package clock

import (
	"sync"
	"time"
)

// Manual is a Scheduler whose time only moves when Advance is called.
// Callbacks run synchronously on the caller of Advance or Frame, never
// while Manual's own lock is held, so they may schedule further work.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[uint64]*manualTimer
	frames []manualFrame
}

type manualTimer struct {
	seq uint64
	due time.Time
	fn  func()
}

type manualFrame struct {
	seq uint64
	fn  func()
}

// NewManual creates a Manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:    start,
		timers: make(map[uint64]*manualTimer),
	}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After registers fn to run when the clock reaches now+d.
func (m *Manual) After(d time.Duration, fn func()) CancelFunc {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	m.seq++
	id := m.seq
	m.timers[id] = &manualTimer{seq: id, due: m.now.Add(d), fn: fn}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.timers, id)
		m.mu.Unlock()
	}
}

// NextFrame queues fn until the next call to Frame.
func (m *Manual) NextFrame(fn func()) CancelFunc {
	m.mu.Lock()
	m.seq++
	id := m.seq
	m.frames = append(m.frames, manualFrame{seq: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, f := range m.frames {
			if f.seq == id {
				m.frames = append(m.frames[:i], m.frames[i+1:]...)
				return
			}
		}
	}
}

// Advance moves the clock forward by d, firing every timer that falls due
// in order of due time. Timers scheduled by callbacks fire in the same call
// when they fall within the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.earliestLocked(target)
		if next == nil {
			if m.now.Before(target) {
				m.now = target
			}
			m.mu.Unlock()
			return
		}
		delete(m.timers, next.seq)
		if next.due.After(m.now) {
			m.now = next.due
		}
		m.mu.Unlock()

		next.fn()
	}
}

// Frame runs every callback queued with NextFrame before this call.
// Callbacks queued while the frame runs wait for the following Frame.
func (m *Manual) Frame() int {
	m.mu.Lock()
	frames := m.frames
	m.frames = nil
	m.mu.Unlock()

	for _, f := range frames {
		f.fn()
	}
	return len(frames)
}

// PendingTimers returns the number of armed timers.
func (m *Manual) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// PendingFrames returns the number of queued frame callbacks.
func (m *Manual) PendingFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// earliestLocked returns the timer due first at or before limit.
func (m *Manual) earliestLocked(limit time.Time) *manualTimer {
	var best *manualTimer
	for _, t := range m.timers {
		if t.due.After(limit) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}
