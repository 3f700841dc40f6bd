package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/bumpfeed/internal/clock"
	"github.com/rickgao/bumpfeed/internal/connection"
	"github.com/rickgao/bumpfeed/internal/optimistic"
)

// value returns the value of the metric named name whose labels include
// every given pair.
func value(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						found = true
					}
				}
				if !found {
					continue metrics
				}
			}
			switch {
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

type fakeConnection struct {
	stats    connection.Stats
	handlers []connection.ConnectionHandler
}

func (f *fakeConnection) OnConnection(fn connection.ConnectionHandler) func() {
	f.handlers = append(f.handlers, fn)
	return func() { f.handlers = nil }
}

func (f *fakeConnection) Stats() connection.Stats {
	return f.stats
}

func (f *fakeConnection) emit(st connection.Status) {
	for _, h := range f.handlers {
		h(st)
	}
}

func TestWatchConnection(t *testing.T) {
	m := New(nil)
	src := &fakeConnection{}
	stop := m.WatchConnection(src)

	src.emit(connection.Status{State: connection.StateConnecting})
	src.emit(connection.Status{
		State:   connection.StateConnected,
		Latency: 40 * time.Millisecond,
		Stable:  true,
	})

	reg := m.Registry()
	if v := value(t, reg, "bumpfeed_connection_state"); v != 2 {
		t.Errorf("connection_state = %v, want 2", v)
	}
	if v := value(t, reg, "bumpfeed_connection_latency_seconds"); v != 0.04 {
		t.Errorf("latency = %v, want 0.04", v)
	}
	if v := value(t, reg, "bumpfeed_connection_stable"); v != 1 {
		t.Errorf("stable = %v, want 1", v)
	}
	if v := value(t, reg, "bumpfeed_connection_transitions_total", "state", "connected"); v != 1 {
		t.Errorf("transitions{connected} = %v, want 1", v)
	}

	src.stats = connection.Stats{MessagesReceived: 12, ParseErrors: 2, ReconnectsScheduled: 3}
	if v := value(t, reg, "bumpfeed_messages_received_total"); v != 12 {
		t.Errorf("messages_received = %v, want 12", v)
	}
	if v := value(t, reg, "bumpfeed_message_parse_errors_total"); v != 2 {
		t.Errorf("parse_errors = %v, want 2", v)
	}
	if v := value(t, reg, "bumpfeed_reconnects_scheduled_total"); v != 3 {
		t.Errorf("reconnects = %v, want 3", v)
	}

	stop()
	src.emit(connection.Status{State: connection.StateReconnecting, ReconnectAttempts: 1})
	if v := value(t, reg, "bumpfeed_connection_state"); v != 2 {
		t.Errorf("connection_state changed after stop: %v", v)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		ev   optimistic.EventType
		err  error
		want string
	}{
		{optimistic.EventCommitted, nil, OutcomeCommitted},
		{optimistic.EventRolledBack, optimistic.ErrTimeout, OutcomeTimedOut},
		{optimistic.EventRolledBack, errors.New("network request failed"), OutcomeRolledBack},
		{optimistic.EventRolledBack, optimistic.ErrRetriesExhausted, OutcomeRolledBack},
	}

	for _, tt := range tests {
		if got := Outcome(tt.ev, tt.err); got != tt.want {
			t.Errorf("Outcome(%v, %v) = %q, want %q", tt.ev, tt.err, got, tt.want)
		}
	}
}

type note struct{ Text string }

func TestTrackMutations(t *testing.T) {
	m := New(nil)
	sched := clock.NewManual(time.Unix(0, 0))
	tracker := optimistic.NewTracker[note](optimistic.DefaultConfig(), nil, optimistic.WithScheduler(sched))
	stop := TrackMutations(m, tracker)
	defer stop()

	a := tracker.Apply(optimistic.Mutation[note]{Key: "a", Kind: optimistic.KindAdd})
	b := tracker.Apply(optimistic.Mutation[note]{Key: "b", Kind: optimistic.KindUpdate})
	c := tracker.Apply(optimistic.Mutation[note]{Key: "c", Kind: optimistic.KindRemove})
	tracker.SetupAutoRollback(c)

	reg := m.Registry()
	if v := value(t, reg, "bumpfeed_mutations_pending"); v != 3 {
		t.Errorf("pending = %v, want 3", v)
	}

	sched.Advance(300 * time.Millisecond)
	tracker.Commit(a, nil)
	tracker.Rollback(b, errors.New("server said no"), false)
	sched.Advance(5 * time.Second)

	if v := value(t, reg, "bumpfeed_mutations_total", "kind", "add", "outcome", OutcomeCommitted); v != 1 {
		t.Errorf("mutations{add,committed} = %v, want 1", v)
	}
	if v := value(t, reg, "bumpfeed_mutations_total", "kind", "update", "outcome", OutcomeRolledBack); v != 1 {
		t.Errorf("mutations{update,rolled_back} = %v, want 1", v)
	}
	if v := value(t, reg, "bumpfeed_mutations_total", "kind", "remove", "outcome", OutcomeTimedOut); v != 1 {
		t.Errorf("mutations{remove,timed_out} = %v, want 1", v)
	}
	if v := value(t, reg, "bumpfeed_mutation_latency_seconds", "outcome", OutcomeCommitted); v != 1 {
		t.Errorf("latency samples = %v, want 1", v)
	}
	if v := value(t, reg, "bumpfeed_mutations_failed"); v != 2 {
		t.Errorf("failed = %v, want 2", v)
	}
	// 100 capped, then two rollbacks at -5 each.
	if v := value(t, reg, "bumpfeed_satisfaction_score"); v != 90 {
		t.Errorf("satisfaction = %v, want 90", v)
	}
	if v := value(t, reg, "bumpfeed_mutation_average_latency_seconds"); v != 0.3 {
		t.Errorf("average latency = %v, want 0.3", v)
	}
}

func TestObserveRange(t *testing.T) {
	m := New(nil)
	m.ObserveRange(15, 29)

	if v := value(t, m.Registry(), "bumpfeed_window_range_start"); v != 15 {
		t.Errorf("range_start = %v, want 15", v)
	}
	if v := value(t, m.Registry(), "bumpfeed_window_visible_items"); v != 14 {
		t.Errorf("visible_items = %v, want 14", v)
	}
}

func TestHandler(t *testing.T) {
	m := New(nil)
	m.ObserveConnection(connection.Status{State: connection.StateConnected})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "bumpfeed_connection_state 2") {
		t.Errorf("exposition missing connection_state:\n%s", body)
	}
}
