// Package metrics exposes Prometheus metrics for the feed engine.
//
// Key metrics:
//   - Push connection state, latency, and reconnect attempts
//   - Inbound message, parse error, and handler panic counts
//   - Optimistic mutation outcomes and apply-to-resolve latency
//   - Pending and failed operation counts and the satisfaction score
//   - Virtual window size and visible range
//
// All collectors register on a caller-supplied registry so tests and
// embedding applications stay isolated from the global default.
package metrics
