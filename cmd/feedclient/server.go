package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/bumpfeed/internal/connection"
	"github.com/rickgao/bumpfeed/internal/feed"
	"github.com/rickgao/bumpfeed/internal/telemetry"
)

type healthSource interface {
	Health(status connection.Status) feed.Health
	Stats() feed.Stats
}

type statusSource interface {
	Status() connection.Status
}

type telemetrySource interface {
	Stats() telemetry.Stats
}

// createHandler serves /health and the Prometheus handler at metricsPath.
// rec may be nil when telemetry is disabled.
func createHandler(metricsPath string, ctrl healthSource, conn statusSource, rec telemetrySource, metrics interface{ Handler() http.Handler }) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		st := conn.Status()
		h := ctrl.Health(st)
		stats := ctrl.Stats()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Push connection
		socket := map[string]interface{}{
			"state":              st.State.String(),
			"reconnect_attempts": st.ReconnectAttempts,
			"latency_ms":         st.Latency.Milliseconds(),
			"stable":             st.Stable,
		}
		if st.Err != nil {
			socket["error"] = st.Err.Error()
		}
		health.Components["connection"] = socket
		switch st.State {
		case connection.StateReconnecting, connection.StateConnecting:
			health.Status = "degraded"
		case connection.StateDisconnected:
			health.Status = "unhealthy"
		}

		// Feed and mutations
		health.Components["feed"] = map[string]interface{}{
			"items":           h.Items,
			"range_start":     h.RangeStart,
			"range_end":       h.RangeEnd,
			"inbound_applied": stats.InboundApplied,
			"refreshes":       stats.Refreshes,
			"refresh_errors":  stats.RefreshErrors,
		}
		health.Components["mutations"] = map[string]interface{}{
			"pending": h.Pending,
			"failed":  h.Failed,
		}
		if h.Failed > 0 && health.Status == "healthy" {
			health.Status = "degraded"
		}

		if rec != nil {
			ts := rec.Stats()
			health.Components["telemetry"] = map[string]interface{}{
				"queued":   ts.Queued,
				"inserted": ts.Inserted,
				"dropped":  ts.Dropped,
				"errors":   ts.Errors,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.Handle(metricsPath, metrics.Handler())

	return mux
}
