// Package notify defines the notification sink the sync engine uses to
// surface user-visible failures and successes.
//
// The engine depends only on the Sink interface. Implementations:
//   - Queue: bounded in-memory toast queue with auto-dismiss
//   - LogSink: writes notifications to a slog.Logger
//   - RedisSink: publishes notifications to a Redis channel for other devices
//   - Tee: fans one notification out to several sinks under a single ID
package notify
