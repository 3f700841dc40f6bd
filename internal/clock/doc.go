// Package clock provides the scheduling capability used by the sync engine.
//
// Every timer in the engine (heartbeat, reconnect backoff, retry delay,
// auto-rollback, scroll debounce) and every deferred position recompute
// goes through a Scheduler:
//   - Real uses the runtime timers and a fixed frame interval
//   - Manual only advances when a test tells it to
package clock
