package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/bumpfeed/internal/connection"
	"github.com/rickgao/bumpfeed/internal/optimistic"
)

const namespace = "bumpfeed"

// Mutation outcome labels.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeTimedOut   = "timed_out"
)

// ConnectionSource is the part of the connection manager the metrics read.
type ConnectionSource interface {
	OnConnection(fn connection.ConnectionHandler) func()
	Stats() connection.Stats
}

// TrackerStats reports optimistic tracker statistics.
type TrackerStats interface {
	Stats() optimistic.Stats
}

// Metrics holds every collector.
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	connectionState    prometheus.Gauge
	connectionLatency  prometheus.Gauge
	connectionStable   prometheus.Gauge
	reconnectAttempts  prometheus.Gauge
	stateTransitions   *prometheus.CounterVec
	mutations          *prometheus.CounterVec
	mutationLatency    *prometheus.HistogramVec
	windowVisibleItems prometheus.Gauge
	windowRangeStart   prometheus.Gauge
}

// New creates the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		factory:  f,

		connectionState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Push connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting)",
		}),
		connectionLatency: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_latency_seconds",
			Help:      "Last measured ping round trip",
		}),
		connectionStable: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_stable",
			Help:      "1 when the last round trip was below the stable threshold",
		}),
		reconnectAttempts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts",
			Help:      "Reconnect attempts since the last successful connect",
		}),
		stateTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_transitions_total",
			Help:      "Connection status updates by state",
		}, []string{"state"}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Resolved optimistic mutations by kind and outcome",
		}, []string{"kind", "outcome"}),
		mutationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_latency_seconds",
			Help:      "Time from optimistic apply to commit or rollback",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		windowVisibleItems: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_visible_items",
			Help:      "Items in the visible range including overscan",
		}),
		windowRangeStart: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_range_start",
			Help:      "Index of the first visible item",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveConnection records a connection status snapshot.
func (m *Metrics) ObserveConnection(st connection.Status) {
	m.connectionState.Set(float64(st.State))
	m.connectionLatency.Set(st.Latency.Seconds())
	m.reconnectAttempts.Set(float64(st.ReconnectAttempts))
	if st.Stable {
		m.connectionStable.Set(1)
	} else {
		m.connectionStable.Set(0)
	}
	m.stateTransitions.WithLabelValues(st.State.String()).Inc()
}

// ObserveMutation records one resolved mutation.
func (m *Metrics) ObserveMutation(kind optimistic.Kind, ev optimistic.EventType, latency time.Duration, err error) {
	outcome := Outcome(ev, err)
	m.mutations.WithLabelValues(string(kind), outcome).Inc()
	m.mutationLatency.WithLabelValues(outcome).Observe(latency.Seconds())
}

// Outcome names how a mutation resolved.
func Outcome(ev optimistic.EventType, err error) string {
	switch {
	case ev == optimistic.EventCommitted:
		return OutcomeCommitted
	case errors.Is(err, optimistic.ErrTimeout):
		return OutcomeTimedOut
	default:
		return OutcomeRolledBack
	}
}

// ObserveRange records the window's visible range.
func (m *Metrics) ObserveRange(start, end int) {
	m.windowRangeStart.Set(float64(start))
	m.windowVisibleItems.Set(float64(end - start))
}

// WatchConnection follows src's status changes and exports its traffic
// counters. The returned function stops the status subscription.
func (m *Metrics) WatchConnection(src ConnectionSource) func() {
	counters := []struct {
		name, help string
		value      func(connection.Stats) int64
	}{
		{"messages_received_total", "Frames read from the push socket", func(s connection.Stats) int64 { return s.MessagesReceived }},
		{"messages_dispatched_total", "Messages delivered to handlers", func(s connection.Stats) int64 { return s.MessagesDispatched }},
		{"message_parse_errors_total", "Frames that failed to decode", func(s connection.Stats) int64 { return s.ParseErrors }},
		{"handler_panics_total", "Recovered panics in message and status handlers", func(s connection.Stats) int64 { return s.HandlerPanics }},
		{"reconnects_scheduled_total", "Reconnect attempts scheduled", func(s connection.Stats) int64 { return s.ReconnectsScheduled }},
	}
	for _, c := range counters {
		value := c.value
		m.factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      c.name,
			Help:      c.help,
		}, func() float64 { return float64(value(src.Stats())) })
	}

	return src.OnConnection(m.ObserveConnection)
}

// WatchTracker exports a tracker's live counts and satisfaction score.
func (m *Metrics) WatchTracker(src TrackerStats) {
	gauges := []struct {
		name, help string
		value      func(optimistic.Stats) float64
	}{
		{"mutations_pending", "Operations awaiting confirmation", func(s optimistic.Stats) float64 { return float64(s.Pending) }},
		{"mutations_failed", "Rolled back operations not yet cleared", func(s optimistic.Stats) float64 { return float64(s.Failed) }},
		{"satisfaction_score", "User satisfaction estimate, 0 to 100", func(s optimistic.Stats) float64 { return float64(s.Satisfaction) }},
		{"mutation_average_latency_seconds", "Rolling mean apply-to-commit time", func(s optimistic.Stats) float64 { return s.AverageLatency.Seconds() }},
	}
	for _, g := range gauges {
		value := g.value
		m.factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      g.name,
			Help:      g.help,
		}, func() float64 { return value(src.Stats()) })
	}
}

// TrackMutations subscribes m to t's resolution events and exports its
// live counts. The returned function stops the subscription.
func TrackMutations[T any](m *Metrics, t *optimistic.Tracker[T]) func() {
	m.WatchTracker(t)
	return t.Subscribe(func(ev optimistic.Event[T]) {
		m.ObserveMutation(ev.Operation.Kind, ev.Type, ev.Latency, ev.Err)
	})
}
