package window

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/bumpfeed/internal/clock"
)

// Window tracks item positions and the visible range for one list.
// It is safe for concurrent use; Surface calls are made outside the lock.
type Window[T any] struct {
	cfg     Config
	key     func(T) string
	sched   clock.Scheduler
	surface Surface
	logger  *slog.Logger

	mu       sync.Mutex
	items    []T
	keys     []string
	heights  []float64
	tops     []float64
	measured map[string]float64
	total    float64

	metrics    ScrollMetrics
	lastScroll time.Time
	scrolling  bool
	start, end int // Visible range, end exclusive

	debounceCancel  clock.CancelFunc
	recomputeCancel clock.CancelFunc
	animCancel      clock.CancelFunc
	animGen         uint64
	recomputes      int64

	listenersMu sync.RWMutex
	listeners   []RangeListener
}

// New creates a Window. key must return a stable identifier per item.
// ItemHeight and ContainerHeight default when not positive; BufferSize and
// Overscan are taken as given.
func New[T any](cfg Config, key func(T) string, sched clock.Scheduler, surface Surface, logger *slog.Logger) *Window[T] {
	def := DefaultConfig()
	if cfg.ItemHeight <= 0 {
		cfg.ItemHeight = def.ItemHeight
	}
	if cfg.ContainerHeight <= 0 {
		cfg.ContainerHeight = def.ContainerHeight
	}
	if cfg.BufferSize < 0 {
		cfg.BufferSize = 0
	}
	if cfg.Overscan < 0 {
		cfg.Overscan = 0
	}
	if cfg.ScrollDebounce <= 0 {
		cfg.ScrollDebounce = def.ScrollDebounce
	}
	if cfg.MaxScrollStep <= 0 {
		cfg.MaxScrollStep = def.MaxScrollStep
	}
	if sched == nil {
		sched = clock.NewReal()
	}
	if surface == nil {
		surface = NopSurface{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Window[T]{
		cfg:      cfg,
		key:      key,
		sched:    sched,
		surface:  surface,
		logger:   logger,
		measured: make(map[string]float64),
		metrics:  ScrollMetrics{Direction: DirectionIdle},
	}
}

// SetItems replaces the backing list and recomputes every position.
// Measured heights are kept for keys still present.
func (w *Window[T]) SetItems(items []T) {
	w.mu.Lock()
	w.items = append(w.items[:0:0], items...)
	w.keys = make([]string, len(items))
	present := make(map[string]struct{}, len(items))
	for i, it := range items {
		k := w.key(it)
		w.keys[i] = k
		present[k] = struct{}{}
	}
	for k := range w.measured {
		if _, ok := present[k]; !ok {
			delete(w.measured, k)
		}
	}
	changed := w.recomputeLocked()
	start, end := w.start, w.end
	w.mu.Unlock()

	if changed {
		w.notify(start, end)
	}
}

// recomputeLocked rebuilds every position in one pass and then the visible
// range. It reports whether the range moved.
func (w *Window[T]) recomputeLocked() bool {
	n := len(w.keys)
	if cap(w.heights) < n {
		w.heights = make([]float64, n)
		w.tops = make([]float64, n)
	}
	w.heights = w.heights[:n]
	w.tops = w.tops[:n]

	var top float64
	for i, k := range w.keys {
		h, ok := w.measured[k]
		if !ok {
			h = w.cfg.ItemHeight
		}
		w.heights[i] = h
		w.tops[i] = top
		top += h
	}
	w.total = top
	w.recomputes++

	return w.updateRangeLocked()
}

// updateRangeLocked finds the first item crossing the padded viewport top
// and the first item past its bottom. It reports whether the range moved.
func (w *Window[T]) updateRangeLocked() bool {
	lo, hi := w.boundsLocked()
	n := len(w.tops)

	start := 0
	for start < n && w.tops[start]+w.heights[start] <= lo {
		start++
	}
	end := start
	for end < n && w.tops[end] <= hi {
		end++
	}

	changed := start != w.start || end != w.end
	w.start, w.end = start, end
	return changed
}

// boundsLocked returns the padded viewport [lo, hi].
func (w *Window[T]) boundsLocked() (lo, hi float64) {
	m := w.cfg.margin()
	top := w.metrics.ScrollTop
	return top - m, top + w.cfg.ContainerHeight + m
}

// Visible returns the items in the visible range, in order.
func (w *Window[T]) Visible() []Item[T] {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Item[T], 0, w.end-w.start)
	for i := w.start; i < w.end; i++ {
		out = append(out, w.itemLocked(i, true))
	}
	return out
}

// Items returns every item with its position.
func (w *Window[T]) Items() []Item[T] {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Item[T], len(w.items))
	for i := range w.items {
		out[i] = w.itemLocked(i, i >= w.start && i < w.end)
	}
	return out
}

func (w *Window[T]) itemLocked(i int, visible bool) Item[T] {
	return Item[T]{
		Key:     w.keys[i],
		Index:   i,
		Height:  w.heights[i],
		Top:     w.tops[i],
		Visible: visible,
		Data:    w.items[i],
	}
}

// Range returns the visible index range [start, end).
func (w *Window[T]) Range() (start, end int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.start, w.end
}

// TotalHeight returns the height of the whole list.
func (w *Window[T]) TotalHeight() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// Len returns the number of items.
func (w *Window[T]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// Recomputes returns how many full position passes have run.
func (w *Window[T]) Recomputes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.recomputes
}

// SetContainerHeight resizes the viewport.
func (w *Window[T]) SetContainerHeight(h float64) {
	if h <= 0 {
		return
	}
	w.mu.Lock()
	w.cfg.ContainerHeight = h
	changed := w.updateRangeLocked()
	start, end := w.start, w.end
	w.mu.Unlock()

	if changed {
		w.notify(start, end)
	}
}

// Measure records an item's rendered height. A changed height schedules one
// position recompute on the next frame; further measurements before that
// frame share it. It reports whether the height changed.
func (w *Window[T]) Measure(key string, height float64) bool {
	if height <= 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	prev, ok := w.measured[key]
	if !ok {
		prev = w.cfg.ItemHeight
	}
	w.measured[key] = height
	if prev == height {
		return false
	}

	if w.recomputeCancel == nil {
		w.recomputeCancel = w.sched.NextFrame(w.frameRecompute)
	}
	return true
}

// Remeasure asks the surface for the height of every visible item.
func (w *Window[T]) Remeasure() int {
	visible := w.Visible()

	changed := 0
	for _, it := range visible {
		if h, ok := w.surface.Measure(it.Key); ok && w.Measure(it.Key, h) {
			changed++
		}
	}
	return changed
}

func (w *Window[T]) frameRecompute() {
	w.mu.Lock()
	w.recomputeCancel = nil
	changed := w.recomputeLocked()
	start, end := w.start, w.end
	total := w.total
	w.mu.Unlock()

	w.logger.Debug("positions recomputed after measurement",
		"total_height", total,
		"range_start", start,
		"range_end", end,
	)

	if changed {
		w.notify(start, end)
	}
}

// RangeListener receives the new visible range.
type RangeListener func(start, end int)

// OnRangeChange registers fn to run whenever the visible range moves.
func (w *Window[T]) OnRangeChange(fn RangeListener) {
	w.listenersMu.Lock()
	w.listeners = append(w.listeners, fn)
	w.listenersMu.Unlock()
}

func (w *Window[T]) notify(start, end int) {
	w.listenersMu.RLock()
	listeners := append([]RangeListener(nil), w.listeners...)
	w.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(start, end)
	}
}

// Close cancels pending frames and timers.
func (w *Window[T]) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.animGen++
	for _, c := range []*clock.CancelFunc{&w.debounceCancel, &w.recomputeCancel, &w.animCancel} {
		if *c != nil {
			(*c)()
			*c = nil
		}
	}
}
