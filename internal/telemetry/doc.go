// Package telemetry records how the feed engine behaves in the field.
//
// A Recorder queues one row per resolved optimistic mutation and one per
// connection status change, and writes them to PostgreSQL in batches:
//
//	mutation_outcomes  - kind, outcome, latency, retries, error
//	connection_events  - state, reconnect attempts, latency, stability
//
// Recording never blocks the caller. Rows accumulate in a growable queue
// and are flushed when a batch fills or on a fixed interval. A failed
// batch is logged, counted, and dropped.
package telemetry
