package message

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecode_KnownTypes(t *testing.T) {
	receivedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, p Payload)
	}{
		{
			name:  "reaction",
			frame: `{"type":"reaction","payload":{"postId":"p1","userId":"u9","emoji":"❤️"},"timestamp":1709283600000,"id":"m1"}`,
			check: func(t *testing.T, p Payload) {
				r, ok := p.(Reaction)
				if !ok {
					t.Fatalf("payload type = %T, want Reaction", p)
				}
				if r.PostID != "p1" || r.UserID != "u9" || r.Emoji != "❤️" || r.Removed {
					t.Errorf("reaction = %+v", r)
				}
			},
		},
		{
			name:  "comment",
			frame: `{"type":"comment","payload":{"postId":"p1","commentId":"c1","authorName":"Grandma","text":"So exciting!"},"timestamp":1}`,
			check: func(t *testing.T, p Payload) {
				c, ok := p.(Comment)
				if !ok {
					t.Fatalf("payload type = %T, want Comment", p)
				}
				if c.CommentID != "c1" || c.Text != "So exciting!" || c.AuthorName != "Grandma" {
					t.Errorf("comment = %+v", c)
				}
			},
		},
		{
			name:  "milestone",
			frame: `{"type":"milestone","payload":{"id":"ms-20","week":20,"title":"Halfway there"},"timestamp":1}`,
			check: func(t *testing.T, p Payload) {
				m, ok := p.(Milestone)
				if !ok {
					t.Fatalf("payload type = %T, want Milestone", p)
				}
				if m.Week != 20 || m.Title != "Halfway there" {
					t.Errorf("milestone = %+v", m)
				}
			},
		},
		{
			name:  "pong",
			frame: `{"type":"pong","payload":{"pingTimestamp":1709283600000},"timestamp":1709283600040}`,
			check: func(t *testing.T, p Payload) {
				pong, ok := p.(Pong)
				if !ok {
					t.Fatalf("payload type = %T, want Pong", p)
				}
				if pong.PingTimestamp != 1709283600000 {
					t.Errorf("PingTimestamp = %d", pong.PingTimestamp)
				}
			},
		},
		{
			name:  "heartbeat without payload",
			frame: `{"type":"heartbeat","timestamp":1}`,
			check: func(t *testing.T, p Payload) {
				if _, ok := p.(Heartbeat); !ok {
					t.Fatalf("payload type = %T, want Heartbeat", p)
				}
			},
		},
		{
			name:  "unknown type",
			frame: `{"type":"ultrasound","payload":{"url":"x"},"timestamp":1}`,
			check: func(t *testing.T, p Payload) {
				u, ok := p.(Unknown)
				if !ok {
					t.Fatalf("payload type = %T, want Unknown", p)
				}
				if u.MessageType() != "ultrasound" {
					t.Errorf("MessageType() = %q", u.MessageType())
				}
				if string(u.Raw) != `{"url":"x"}` {
					t.Errorf("Raw = %s", u.Raw)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Decode([]byte(tt.frame), receivedAt)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !in.ReceivedAt.Equal(receivedAt) {
				t.Errorf("ReceivedAt = %v, want %v", in.ReceivedAt, receivedAt)
			}
			if in.Payload.MessageType() != in.Type {
				t.Errorf("payload type %q does not match envelope type %q", in.Payload.MessageType(), in.Type)
			}
			tt.check(t, in.Payload)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte(`not json`), time.Now()); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := Decode([]byte(`{"payload":{}}`), time.Now()); !errors.Is(err, ErrMissingType) {
		t.Errorf("err = %v, want ErrMissingType", err)
	}
	if _, err := Decode([]byte(`{"type":"reaction","payload":"oops"}`), time.Now()); err == nil {
		t.Error("expected error for mistyped payload")
	}
}

func TestEncode(t *testing.T) {
	now := time.UnixMilli(1709283600000)

	data, err := Encode(TypePing, Ping{PingTimestamp: now.UnixMilli()}, "abc", now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypePing || env.ID != "abc" || env.Timestamp != 1709283600000 {
		t.Errorf("envelope = %+v", env)
	}
	if string(env.Payload) != `{"pingTimestamp":1709283600000}` {
		t.Errorf("payload = %s", env.Payload)
	}

	data, err = Encode("custom", nil, "", now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(env.Payload) != `{}` {
		t.Errorf("nil payload encoded as %s, want {}", env.Payload)
	}

	if _, err := Encode("", nil, "", now); !errors.Is(err, ErrMissingType) {
		t.Errorf("err = %v, want ErrMissingType", err)
	}
}

func TestIsReserved(t *testing.T) {
	for _, typ := range []string{TypePong, TypeHeartbeat} {
		if !IsReserved(typ) {
			t.Errorf("IsReserved(%q) = false", typ)
		}
	}
	for _, typ := range []string{TypeReaction, TypeComment, TypeMilestone, TypePing, "other"} {
		if IsReserved(typ) {
			t.Errorf("IsReserved(%q) = true", typ)
		}
	}
}
