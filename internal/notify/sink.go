package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification for presentation.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Notification is a user-visible message.
type Notification struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Type        Type          `json:"type"`
	Duration    time.Duration `json:"duration"`
}

// Sink receives notifications. Implementations must not panic and must not
// block for long; failures are logged, not returned.
type Sink interface {
	// Add shows n and returns its ID. If n.ID is empty one is generated.
	Add(n Notification) string

	// Remove dismisses a notification by ID.
	Remove(id string)

	// Clear dismisses everything.
	Clear()
}

// ensureID fills in a notification ID.
func ensureID(n *Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
}

// LogSink writes notifications to a logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs every notification.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Add logs n at a level matching its type.
func (s *LogSink) Add(n Notification) string {
	ensureID(&n)

	level := slog.LevelInfo
	switch n.Type {
	case TypeError:
		level = slog.LevelError
	case TypeWarning:
		level = slog.LevelWarn
	}

	s.logger.Log(context.Background(), level, "notification",
		"id", n.ID,
		"title", n.Title,
		"description", n.Description,
		"type", n.Type,
	)
	return n.ID
}

// Remove logs the dismissal.
func (s *LogSink) Remove(id string) {
	s.logger.Debug("notification dismissed", "id", id)
}

// Clear logs the dismissal of all notifications.
func (s *LogSink) Clear() {
	s.logger.Debug("notifications cleared")
}

// Tee fans notifications out to several sinks.
type Tee []Sink

// Add forwards n to every sink under one shared ID.
func (t Tee) Add(n Notification) string {
	ensureID(&n)
	for _, s := range t {
		if s != nil {
			s.Add(n)
		}
	}
	return n.ID
}

// Remove forwards to every sink.
func (t Tee) Remove(id string) {
	for _, s := range t {
		if s != nil {
			s.Remove(id)
		}
	}
}

// Clear forwards to every sink.
func (t Tee) Clear() {
	for _, s := range t {
		if s != nil {
			s.Clear()
		}
	}
}

// Discard is a Sink that drops everything.
type Discard struct{}

func (Discard) Add(n Notification) string {
	ensureID(&n)
	return n.ID
}

func (Discard) Remove(string) {}

func (Discard) Clear() {}
