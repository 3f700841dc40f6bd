package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestManual_AdvanceFiresInOrder(t *testing.T) {
	m := NewManual(epoch)

	var order []string
	m.After(300*time.Millisecond, func() { order = append(order, "c") })
	m.After(100*time.Millisecond, func() { order = append(order, "a") })
	m.After(200*time.Millisecond, func() { order = append(order, "b") })

	m.Advance(250 * time.Millisecond)

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b]", order)
	}
	if got := m.Now(); !got.Equal(epoch.Add(250 * time.Millisecond)) {
		t.Errorf("Now() = %v, want %v", got, epoch.Add(250*time.Millisecond))
	}
	if m.PendingTimers() != 1 {
		t.Errorf("PendingTimers() = %d, want 1", m.PendingTimers())
	}
}

func TestManual_Cancel(t *testing.T) {
	m := NewManual(epoch)

	fired := false
	cancel := m.After(time.Second, func() { fired = true })
	cancel()
	cancel() // second call is harmless

	m.Advance(2 * time.Second)

	if fired {
		t.Error("cancelled timer fired")
	}
}

func TestManual_NestedScheduling(t *testing.T) {
	m := NewManual(epoch)

	var at []time.Duration
	var tick func()
	tick = func() {
		at = append(at, m.Now().Sub(epoch))
		if len(at) < 3 {
			m.After(time.Second, tick)
		}
	}
	m.After(time.Second, tick)

	m.Advance(10 * time.Second)

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	if len(at) != len(want) {
		t.Fatalf("fired %d times, want %d", len(at), len(want))
	}
	for i := range want {
		if at[i] != want[i] {
			t.Errorf("tick %d at %v, want %v", i, at[i], want[i])
		}
	}
}

func TestManual_Frame(t *testing.T) {
	m := NewManual(epoch)

	count := 0
	m.NextFrame(func() {
		count++
		m.NextFrame(func() { count++ })
	})
	cancel := m.NextFrame(func() { count += 100 })
	cancel()

	if n := m.Frame(); n != 1 {
		t.Errorf("Frame() ran %d callbacks, want 1", n)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if m.PendingFrames() != 1 {
		t.Errorf("PendingFrames() = %d, want 1", m.PendingFrames())
	}

	m.Frame()
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestReal_After(t *testing.T) {
	done := make(chan struct{})
	NewReal().After(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestReal_CancelStopsTimer(t *testing.T) {
	fired := make(chan struct{}, 1)
	cancel := NewReal().After(20*time.Millisecond, func() { fired <- struct{}{} })
	cancel()

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(60 * time.Millisecond):
	}
}
