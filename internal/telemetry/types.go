package telemetry

import "time"

// Config configures a Recorder.
type Config struct {
	SessionID     string        // Tags every row; generated when empty
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Maximum time rows wait in the queue
	QueueSize     int           // Initial queue capacity; the queue grows as needed
	WriteTimeout  time.Duration // Deadline for one batch insert
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
		QueueSize:     256,
		WriteTimeout:  10 * time.Second,
	}
}

// Stats holds recorder counters.
type Stats struct {
	Queued   int   // Rows waiting for the next flush
	Inserted int64 // Rows written
	Dropped  int64 // Rows lost to failed batches or recorded after Stop
	Errors   int64 // Failed batches
	Flushes  int64 // Successful batches
}

// mutationRow is one row of mutation_outcomes.
type mutationRow struct {
	OpID       string
	OpKey      string
	Kind       string
	Outcome    string
	LatencyMs  int64
	Retries    int
	Error      string // Empty on commit
	ResolvedAt time.Time
}

// connectionRow is one row of connection_events.
type connectionRow struct {
	State             string
	ReconnectAttempts int
	LatencyMs         int64
	Stable            bool
	Error             string
	ObservedAt        time.Time
}

// Schema creates the telemetry tables.
const Schema = `
CREATE TABLE IF NOT EXISTS mutation_outcomes (
	session_id  TEXT        NOT NULL,
	op_id       TEXT        NOT NULL,
	op_key      TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	outcome     TEXT        NOT NULL,
	latency_ms  BIGINT      NOT NULL,
	retries     INTEGER     NOT NULL,
	error       TEXT        NOT NULL DEFAULT '',
	resolved_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS connection_events (
	session_id         TEXT        NOT NULL,
	state              TEXT        NOT NULL,
	reconnect_attempts INTEGER     NOT NULL,
	latency_ms         BIGINT      NOT NULL,
	stable             BOOLEAN     NOT NULL,
	error              TEXT        NOT NULL DEFAULT '',
	observed_at        TIMESTAMPTZ NOT NULL
);
`
