package message

import (
	"encoding/json"
	"time"
)

// Message types on the wire.
const (
	TypePing      = "ping"
	TypePong      = "pong"
	TypeHeartbeat = "heartbeat"
	TypeReaction  = "reaction"
	TypeComment   = "comment"
	TypeMilestone = "milestone"
	TypePost      = "post"
)

// Envelope is the wire format shared by inbound and outbound frames.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	ID        string          `json:"id,omitempty"`
}

// Payload is implemented by every decoded payload type.
type Payload interface {
	MessageType() string
}

// Inbound is a decoded frame. It is never modified after Decode returns.
type Inbound struct {
	Type       string
	ID         string
	Timestamp  int64     // Sender timestamp (Unix milliseconds)
	ReceivedAt time.Time // Local time the frame was read
	Payload    Payload
}

// Ping is the outbound liveness probe.
type Ping struct {
	PingTimestamp int64 `json:"pingTimestamp"` // Unix milliseconds
}

// Pong answers a Ping and echoes its timestamp.
type Pong struct {
	PingTimestamp int64 `json:"pingTimestamp"`
}

// Heartbeat is a server-initiated keepalive.
type Heartbeat struct {
	ServerTime int64 `json:"serverTime,omitempty"`
}

// Reaction reports an emoji reaction added to or removed from a post.
type Reaction struct {
	PostID  string `json:"postId"`
	UserID  string `json:"userId"`
	Emoji   string `json:"emoji"`
	Removed bool   `json:"removed,omitempty"`
}

// Comment reports a new comment on a post.
type Comment struct {
	PostID     string `json:"postId"`
	CommentID  string `json:"commentId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Text       string `json:"text"`
	CreatedAt  int64  `json:"createdAt"`
}

// Milestone announces a pregnancy milestone entry for the feed.
type Milestone struct {
	ID          string `json:"id"`
	Week        int    `json:"week"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

// Post announces a new or edited post from another family member.
type Post struct {
	ID         string `json:"id"`
	ClientID   string `json:"clientId,omitempty"` // Echoed from the author's create request
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Text       string `json:"text"`
	Mood       string `json:"mood,omitempty"`
	Week       int    `json:"week,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
	Edited     bool   `json:"edited,omitempty"`
}

// Unknown carries a payload whose type this client does not model.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (Ping) MessageType() string      { return TypePing }
func (Pong) MessageType() string      { return TypePong }
func (Heartbeat) MessageType() string { return TypeHeartbeat }
func (Reaction) MessageType() string  { return TypeReaction }
func (Comment) MessageType() string   { return TypeComment }
func (Milestone) MessageType() string { return TypeMilestone }
func (Post) MessageType() string      { return TypePost }
func (u Unknown) MessageType() string { return u.Type }

// IsReserved reports whether t is consumed by the connection itself rather
// than forwarded to registered handlers.
func IsReserved(t string) bool {
	return t == TypePong || t == TypeHeartbeat
}
