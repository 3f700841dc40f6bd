package window

import "math"

// OnScroll records a scroll event. It derives velocity and direction from
// the previous event, marks the list as scrolling until ScrollDebounce
// passes without another event, and re-runs only the visible-range search.
func (w *Window[T]) OnScroll(scrollTop float64) {
	now := w.sched.Now()

	w.mu.Lock()
	delta := scrollTop - w.metrics.ScrollTop
	var velocity float64
	if !w.lastScroll.IsZero() {
		if ms := float64(now.Sub(w.lastScroll).Microseconds()) / 1000; ms > 0 {
			velocity = math.Abs(delta) / ms
		}
	}

	direction := DirectionIdle
	switch {
	case delta > 0:
		direction = DirectionDown
	case delta < 0:
		direction = DirectionUp
	}

	w.metrics = ScrollMetrics{ScrollTop: scrollTop, Velocity: velocity, Direction: direction}
	w.lastScroll = now
	w.scrolling = true

	if w.debounceCancel != nil {
		w.debounceCancel()
	}
	w.debounceCancel = w.sched.After(w.cfg.ScrollDebounce, w.scrollEnded)

	changed := w.updateRangeLocked()
	start, end := w.start, w.end
	w.mu.Unlock()

	if changed {
		w.notify(start, end)
	}
}

func (w *Window[T]) scrollEnded() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.debounceCancel = nil
	w.scrolling = false
	w.metrics.Direction = DirectionIdle
	w.metrics.Velocity = 0
}

// Metrics returns the latest scroll metrics.
func (w *Window[T]) Metrics() ScrollMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// IsScrolling reports whether a scroll event arrived within ScrollDebounce.
func (w *Window[T]) IsScrolling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scrolling
}

// ScrollToItem asks the surface to bring item index to the top of the
// viewport. Out-of-range indices are ignored and return false. In comfort
// mode the move is animated with eased, capped steps, one per frame,
// whatever the behavior.
func (w *Window[T]) ScrollToItem(index int, behavior Behavior) bool {
	w.mu.Lock()
	if index < 0 || index >= len(w.tops) {
		w.mu.Unlock()
		return false
	}
	target := w.tops[index]
	from := w.metrics.ScrollTop

	if w.animCancel != nil {
		w.animCancel()
		w.animCancel = nil
	}
	w.animGen++

	if w.cfg.Comfort && target != from {
		w.animateLocked(w.animGen, from, target)
		w.mu.Unlock()
		return true
	}
	w.mu.Unlock()

	w.surface.ScrollTo(target, behavior == BehaviorSmooth)
	return true
}

// animateLocked schedules the next comfort-scroll frame from pos to target.
// A newer ScrollToItem or Close bumps animGen and strands older frames.
func (w *Window[T]) animateLocked(gen uint64, pos, target float64) {
	w.animCancel = w.sched.NextFrame(func() {
		next, done := easeStep(pos, target, w.cfg.MaxScrollStep)

		w.mu.Lock()
		if w.animGen != gen {
			w.mu.Unlock()
			return
		}
		w.animCancel = nil
		if !done {
			w.animateLocked(gen, next, target)
		}
		w.mu.Unlock()

		w.surface.ScrollTo(next, false)
	})
}

// easeStep moves pos a fixed share of the way to target, never more than
// maxStep and never less than one pixel. It reports whether target was
// reached.
func easeStep(pos, target, maxStep float64) (float64, bool) {
	remaining := target - pos
	if math.Abs(remaining) <= 1 {
		return target, true
	}

	step := remaining * easeFactor
	if math.Abs(step) > maxStep {
		step = math.Copysign(maxStep, remaining)
	}
	if math.Abs(step) < 1 {
		step = math.Copysign(1, remaining)
	}
	return pos + step, false
}
