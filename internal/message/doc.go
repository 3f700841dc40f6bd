// Package message defines the push-transport wire envelope and the typed
// payloads carried in it.
//
// Every frame, in both directions, is a JSON envelope:
//
//	{"type": "...", "payload": {...}, "timestamp": 1709283600000, "id": "..."}
//
// Decode turns an envelope into an Inbound whose Payload is one concrete
// type per known message type, or Unknown for types this client does not
// understand yet.
package message
