package window

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/bumpfeed/internal/clock"
)

type row struct {
	ID string
}

func rowKey(r row) string { return r.ID }

func rows(n int) []row {
	out := make([]row, n)
	for i := range out {
		out[i] = row{ID: fmt.Sprintf("post-%d", i)}
	}
	return out
}

type scrollCall struct {
	top    float64
	smooth bool
}

// fakeSurface records scroll requests and serves fixed measurements.
type fakeSurface struct {
	mu       sync.Mutex
	scrolls  []scrollCall
	heights  map[string]float64
	vibrated int
}

func (s *fakeSurface) ScrollTo(top float64, smooth bool) {
	s.mu.Lock()
	s.scrolls = append(s.scrolls, scrollCall{top, smooth})
	s.mu.Unlock()
}

func (s *fakeSurface) Vibrate([]time.Duration) {
	s.mu.Lock()
	s.vibrated++
	s.mu.Unlock()
}

func (s *fakeSurface) Measure(key string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.heights[key]
	return h, ok
}

func newTestWindow(cfg Config) (*Window[row], *clock.Manual, *fakeSurface) {
	sched := clock.NewManual(time.UnixMilli(1_700_000_000_000))
	surface := &fakeSurface{heights: make(map[string]float64)}
	return New[row](cfg, rowKey, sched, surface, nil), sched, surface
}

func checkPositions(t *testing.T, w *Window[row]) {
	t.Helper()
	items := w.Items()
	for i := 0; i+1 < len(items); i++ {
		if items[i+1].Top != items[i].Top+items[i].Height {
			t.Fatalf("top[%d] = %v, want %v + %v", i+1, items[i+1].Top, items[i].Top, items[i].Height)
		}
	}
	if len(items) > 0 {
		last := items[len(items)-1]
		if w.TotalHeight() != last.Top+last.Height {
			t.Errorf("TotalHeight = %v, want %v", w.TotalHeight(), last.Top+last.Height)
		}
	}
}

func checkVisible(t *testing.T, w *Window[row], cfg Config) {
	t.Helper()
	margin := float64(cfg.BufferSize+cfg.Overscan) * cfg.ItemHeight
	top := w.Metrics().ScrollTop
	lo, hi := top-margin, top+cfg.ContainerHeight+margin

	for _, it := range w.Items() {
		intersects := it.Top <= hi && it.Top+it.Height > lo
		if it.Visible != intersects {
			t.Fatalf("item %d [%v,%v) visible=%v, intersects [%v,%v]=%v",
				it.Index, it.Top, it.Top+it.Height, it.Visible, lo, hi, intersects)
		}
	}
}

func TestVisibleRange_Scenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Overscan = 0
	w, _, _ := newTestWindow(cfg)

	w.SetItems(rows(1000))
	w.OnScroll(4000)

	start, end := w.Range()
	if start != 15 || end != 29 {
		t.Errorf("range = [%d,%d), want [15,29)", start, end)
	}

	visible := w.Visible()
	if visible[0].Index == 0 {
		t.Error("item 0 reported visible")
	}
	for _, it := range visible {
		if it.Top < 3000 || it.Top > 5600 {
			t.Errorf("item %d top %v outside [3000,5600]", it.Index, it.Top)
		}
	}
	checkVisible(t, w, cfg)
}

func TestVisibleRange_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	w, _, _ := newTestWindow(cfg)
	w.SetItems(rows(50))

	// Margin is (5+3)*200 = 1600 above and below a 600px viewport
	start, end := w.Range()
	if start != 0 || end != 12 {
		t.Errorf("range at top = [%d,%d), want [0,12)", start, end)
	}
	checkVisible(t, w, cfg)

	w.OnScroll(5000)
	checkVisible(t, w, cfg)
}

func TestVisibleRange_Randomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cfg := DefaultConfig()
	cfg.BufferSize = 1
	cfg.Overscan = 1
	w, sched, _ := newTestWindow(cfg)

	items := rows(300)
	w.SetItems(items)

	for round := 0; round < 50; round++ {
		for i := 0; i < 10; i++ {
			w.Measure(items[rng.Intn(len(items))].ID, float64(50+rng.Intn(400)))
		}
		sched.Frame()
		w.OnScroll(float64(rng.Intn(int(w.TotalHeight()))))
		checkPositions(t, w)
		checkVisible(t, w, cfg)
	}
}

func TestEmptyList(t *testing.T) {
	w, _, surface := newTestWindow(DefaultConfig())
	w.SetItems(nil)

	if start, end := w.Range(); start != 0 || end != 0 {
		t.Errorf("range = [%d,%d), want empty", start, end)
	}
	if w.TotalHeight() != 0 {
		t.Errorf("TotalHeight = %v", w.TotalHeight())
	}
	if w.ScrollToItem(0, BehaviorAuto) {
		t.Error("ScrollToItem on empty list returned true")
	}
	if len(surface.scrolls) != 0 {
		t.Error("surface scrolled for empty list")
	}
}

func TestMeasure_BatchedRecompute(t *testing.T) {
	w, sched, _ := newTestWindow(DefaultConfig())
	w.SetItems(rows(10))
	before := w.Recomputes()

	if !w.Measure("post-1", 350) {
		t.Error("Measure with new height returned false")
	}
	if !w.Measure("post-3", 80) {
		t.Error("Measure with new height returned false")
	}
	if w.Measure("post-5", 200) {
		t.Error("Measure equal to estimate returned true")
	}

	if sched.PendingFrames() != 1 {
		t.Fatalf("pending frames = %d, want 1", sched.PendingFrames())
	}
	if w.Items()[2].Top != 400 {
		t.Error("positions changed before the frame")
	}

	sched.Frame()

	if got := w.Recomputes() - before; got != 1 {
		t.Errorf("recomputes = %d, want 1", got)
	}
	items := w.Items()
	if items[2].Top != 550 || items[4].Top != 200+350+200+80 {
		t.Errorf("tops = %v, %v", items[2].Top, items[4].Top)
	}
	checkPositions(t, w)

	// Same height again is not a change
	if w.Measure("post-1", 350) {
		t.Error("repeated measurement returned true")
	}
	if sched.PendingFrames() != 0 {
		t.Error("repeated measurement scheduled a frame")
	}
}

func TestSetItems_KeepsMeasurementsByKey(t *testing.T) {
	w, sched, _ := newTestWindow(DefaultConfig())
	items := rows(5)
	w.SetItems(items)
	w.Measure("post-2", 500)
	sched.Frame()

	// Prepend a new post; post-2 keeps its measured height at its new index
	w.SetItems(append([]row{{ID: "post-new"}}, items...))

	got := w.Items()
	if got[3].Key != "post-2" || got[3].Height != 500 {
		t.Errorf("item 3 = %+v, want post-2 at 500px", got[3])
	}
	checkPositions(t, w)

	// Removing an item forgets its measurement
	w.SetItems(rows(2))
	w.SetItems(rows(3))
	if h := w.Items()[2].Height; h != 200 {
		t.Errorf("re-added post-2 height = %v, want estimate 200", h)
	}
}

func TestRemeasure(t *testing.T) {
	w, sched, surface := newTestWindow(DefaultConfig())
	w.SetItems(rows(100))
	surface.heights["post-0"] = 320
	surface.heights["post-1"] = 200
	surface.heights["post-99"] = 10

	if got := w.Remeasure(); got != 1 {
		t.Errorf("Remeasure changed %d, want 1", got)
	}
	sched.Frame()

	if h := w.Items()[0].Height; h != 320 {
		t.Errorf("post-0 height = %v, want 320", h)
	}
	if h := w.Items()[99].Height; h != 200 {
		t.Errorf("off-screen post-99 measured: %v", h)
	}
}

func TestOnScroll_Metrics(t *testing.T) {
	w, sched, _ := newTestWindow(DefaultConfig())
	w.SetItems(rows(100))

	w.OnScroll(0)
	sched.Advance(10 * time.Millisecond)
	w.OnScroll(100)

	m := w.Metrics()
	if m.Direction != DirectionDown || m.Velocity != 10 || m.ScrollTop != 100 {
		t.Errorf("metrics = %+v, want down at 10px/ms", m)
	}
	if !w.IsScrolling() {
		t.Error("IsScrolling false during scroll")
	}

	sched.Advance(20 * time.Millisecond)
	w.OnScroll(60)
	if m := w.Metrics(); m.Direction != DirectionUp || m.Velocity != 2 {
		t.Errorf("metrics = %+v, want up at 2px/ms", m)
	}

	sched.Advance(149 * time.Millisecond)
	if !w.IsScrolling() {
		t.Error("scrolling ended before debounce")
	}

	sched.Advance(time.Millisecond)
	if w.IsScrolling() {
		t.Error("still scrolling after debounce")
	}
	if m := w.Metrics(); m.Direction != DirectionIdle || m.ScrollTop != 60 {
		t.Errorf("metrics after idle = %+v", m)
	}

	w.OnScroll(100)
	sched.Advance(10 * time.Millisecond)
	w.OnScroll(100)
	if m := w.Metrics(); m.Direction != DirectionIdle || m.Velocity != 0 {
		t.Errorf("metrics after zero delta = %+v, want idle at rest", m)
	}
	if !w.IsScrolling() {
		t.Error("zero-delta event did not mark the list as scrolling")
	}
}

func TestOnScroll_OnlyRangeSearch(t *testing.T) {
	w, _, _ := newTestWindow(DefaultConfig())
	w.SetItems(rows(100))
	before := w.Recomputes()

	for top := 0.0; top < 5000; top += 250 {
		w.OnScroll(top)
	}

	if w.Recomputes() != before {
		t.Error("scroll triggered a full position recompute")
	}
}

func TestOnRangeChange(t *testing.T) {
	w, _, _ := newTestWindow(DefaultConfig())

	var ranges [][2]int
	w.OnRangeChange(func(start, end int) { ranges = append(ranges, [2]int{start, end}) })

	w.SetItems(rows(100))
	w.OnScroll(10)
	w.OnScroll(4000)

	if len(ranges) != 2 {
		t.Fatalf("range changes = %v, want 2", ranges)
	}
	if ranges[1][0] == 0 {
		t.Errorf("range after scroll = %v", ranges[1])
	}
}

func TestScrollToItem(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		behavior Behavior
		want     []scrollCall
		ok       bool
	}{
		{"auto", 10, BehaviorAuto, []scrollCall{{2000, false}}, true},
		{"smooth", 3, BehaviorSmooth, []scrollCall{{600, true}}, true},
		{"negative", -1, BehaviorAuto, nil, false},
		{"past end", 20, BehaviorAuto, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, surface := newTestWindow(DefaultConfig())
			w.SetItems(rows(20))

			if got := w.ScrollToItem(tt.index, tt.behavior); got != tt.ok {
				t.Errorf("ScrollToItem = %v, want %v", got, tt.ok)
			}
			if len(surface.scrolls) != len(tt.want) {
				t.Fatalf("scrolls = %v, want %v", surface.scrolls, tt.want)
			}
			for i := range tt.want {
				if surface.scrolls[i] != tt.want[i] {
					t.Errorf("scroll[%d] = %v, want %v", i, surface.scrolls[i], tt.want[i])
				}
			}
		})
	}
}

func TestScrollToItem_ComfortEases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Comfort = true
	w, sched, surface := newTestWindow(cfg)
	w.SetItems(rows(20))

	if !w.ScrollToItem(5, BehaviorAuto) {
		t.Fatal("ScrollToItem returned false")
	}
	if len(surface.scrolls) != 0 {
		t.Fatal("comfort mode jumped immediately")
	}

	for i := 0; i < 500 && sched.PendingFrames() > 0; i++ {
		sched.Frame()
	}

	if sched.PendingFrames() != 0 {
		t.Fatal("animation never finished")
	}
	if len(surface.scrolls) < 2 {
		t.Fatalf("scrolls = %v, want several steps", surface.scrolls)
	}

	prev := 0.0
	for i, s := range surface.scrolls {
		if s.smooth {
			t.Errorf("step %d asked the surface to smooth-scroll", i)
		}
		if step := s.top - prev; step <= 0 || step > cfg.MaxScrollStep {
			t.Errorf("step %d moved %v px, want (0,%v]", i, step, cfg.MaxScrollStep)
		}
		prev = s.top
	}
	if last := surface.scrolls[len(surface.scrolls)-1].top; last != 1000 {
		t.Errorf("final position = %v, want 1000", last)
	}
}

func TestScrollToItem_ComfortSuperseded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Comfort = true
	w, sched, surface := newTestWindow(cfg)
	w.SetItems(rows(20))

	w.ScrollToItem(10, BehaviorSmooth)
	sched.Frame()
	w.ScrollToItem(0, BehaviorSmooth)

	for i := 0; i < 500 && sched.PendingFrames() > 0; i++ {
		sched.Frame()
	}

	// The first animation ran one step; the second target needs no easing
	want := []scrollCall{{48, false}, {0, true}}
	if len(surface.scrolls) != len(want) {
		t.Fatalf("scrolls = %v, want %v", surface.scrolls, want)
	}
	for i := range want {
		if surface.scrolls[i] != want[i] {
			t.Errorf("scroll[%d] = %v, want %v", i, surface.scrolls[i], want[i])
		}
	}
}

func TestEaseStep(t *testing.T) {
	tests := []struct {
		pos, target, maxStep float64
		want                 float64
		done                 bool
	}{
		{0, 1000, 48, 48, false},
		{0, 100, 48, 20, false},
		{0, 3, 48, 1, false},
		{99.5, 100, 48, 100, true},
		{1000, 0, 48, 952, false},
	}

	for _, tt := range tests {
		got, done := easeStep(tt.pos, tt.target, tt.maxStep)
		if got != tt.want || done != tt.done {
			t.Errorf("easeStep(%v,%v,%v) = %v,%v want %v,%v",
				tt.pos, tt.target, tt.maxStep, got, done, tt.want, tt.done)
		}
	}
}

func TestSetContainerHeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 0
	cfg.Overscan = 0
	w, _, _ := newTestWindow(cfg)
	w.SetItems(rows(100))

	if _, end := w.Range(); end != 4 {
		t.Errorf("end = %d, want 4", end)
	}
	w.SetContainerHeight(1000)
	if _, end := w.Range(); end != 6 {
		t.Errorf("end after resize = %d, want 6", end)
	}
}
