package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingType = errors.New("message has no type")
)

// Decode parses a frame into an Inbound. Known types get their concrete
// payload; anything else becomes Unknown.
func Decode(data []byte, receivedAt time.Time) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Inbound{}, ErrMissingType
	}

	payload, err := decodePayload(env.Type, env.Payload)
	if err != nil {
		return Inbound{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}

	return Inbound{
		Type:       env.Type,
		ID:         env.ID,
		Timestamp:  env.Timestamp,
		ReceivedAt: receivedAt,
		Payload:    payload,
	}, nil
}

func decodePayload(msgType string, raw json.RawMessage) (Payload, error) {
	switch msgType {
	case TypePing:
		return unmarshalAs[Ping](raw)
	case TypePong:
		return unmarshalAs[Pong](raw)
	case TypeHeartbeat:
		return unmarshalAs[Heartbeat](raw)
	case TypeReaction:
		return unmarshalAs[Reaction](raw)
	case TypeComment:
		return unmarshalAs[Comment](raw)
	case TypeMilestone:
		return unmarshalAs[Milestone](raw)
	case TypePost:
		return unmarshalAs[Post](raw)
	default:
		return Unknown{Type: msgType, Raw: raw}, nil
	}
}

func unmarshalAs[T Payload](raw json.RawMessage) (Payload, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Encode builds an outbound frame stamped with now.
func Encode(msgType string, payload any, id string, now time.Time) ([]byte, error) {
	if msgType == "" {
		return nil, ErrMissingType
	}

	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
		raw = json.RawMessage("{}")
	case json.RawMessage:
		raw = p
	case Unknown:
		raw = p.Raw
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		raw = b
	}

	return json.Marshal(Envelope{
		Type:      msgType,
		Payload:   raw,
		Timestamp: now.UnixMilli(),
		ID:        id,
	})
}
