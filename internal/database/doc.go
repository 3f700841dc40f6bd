// Package database opens the PostgreSQL pool used by the telemetry recorder.
//
// The pool is optional: a client with telemetry disabled never dials the
// database.
package database
