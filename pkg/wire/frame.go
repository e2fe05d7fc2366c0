// Package wire defines the frame format exchanged with the realtime server.
// Every message on the socket is one JSON-encoded Frame.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the kind of frame.
type MessageType string

// Control frame types. These are consumed by the connection and
// subscription layers and never reach application handlers.
const (
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"
	TypePong        MessageType = "pong"
)

// Application frame types observed by dashboard consumers.
const (
	TypeNotification     MessageType = "notification"
	TypeAlert            MessageType = "alert"
	TypeDataUpdate       MessageType = "data_update"
	TypeAttendanceUpdate MessageType = "attendance_update"
	TypeGradeUpdate      MessageType = "grade_update"
	TypePaymentUpdate    MessageType = "payment_update"
	TypeUserOnline       MessageType = "user_online"
	TypeUserOffline      MessageType = "user_offline"
)

var knownTypes = map[MessageType]bool{
	TypeSubscribe:        true,
	TypeUnsubscribe:      true,
	TypePing:             true,
	TypePong:             true,
	TypeNotification:     true,
	TypeAlert:            true,
	TypeDataUpdate:       true,
	TypeAttendanceUpdate: true,
	TypeGradeUpdate:      true,
	TypePaymentUpdate:    true,
	TypeUserOnline:       true,
	TypeUserOffline:      true,
}

// Valid reports whether t is a known frame type.
func (t MessageType) Valid() bool {
	return knownTypes[t]
}

// IsControl reports whether t is a protocol control type.
func (t MessageType) IsControl() bool {
	switch t {
	case TypeSubscribe, TypeUnsubscribe, TypePing, TypePong:
		return true
	}
	return false
}

// String returns the string representation of the message type.
func (t MessageType) String() string {
	return string(t)
}

// Frame is one discrete message unit on the transport.
// Channel scopes application frames to a logical topic
// (e.g. "school:42:attendance"); it is empty for most control frames.
// Seq is an optional server-assigned sequence number; it is opaque to
// this client and carried through to handlers unchanged.
type Frame struct {
	Type    MessageType            `json:"type"`
	Channel string                 `json:"channel,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Seq     int64                  `json:"seq,omitempty"`
}

// NewFrame creates a frame with the given type, channel and payload.
func NewFrame(typ MessageType, channel string, payload map[string]interface{}) *Frame {
	return &Frame{
		Type:    typ,
		Channel: channel,
		Payload: payload,
	}
}

// NewSubscribe creates a subscribe control frame for a channel.
func NewSubscribe(channel string) *Frame {
	return &Frame{Type: TypeSubscribe, Channel: channel}
}

// NewUnsubscribe creates an unsubscribe control frame for a channel.
func NewUnsubscribe(channel string) *Frame {
	return &Frame{Type: TypeUnsubscribe, Channel: channel}
}

// NewPing creates a heartbeat ping frame carrying the current unix timestamp.
func NewPing() *Frame {
	return &Frame{
		Type:    TypePing,
		Payload: map[string]interface{}{"ts": time.Now().Unix()},
	}
}

// NewPong creates a heartbeat pong frame.
func NewPong() *Frame {
	return &Frame{Type: TypePong}
}

// Encode serializes the frame to JSON.
func (f *Frame) Encode() ([]byte, error) {
	if !f.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}

	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}

	return data, nil
}

// Decode parses a frame from JSON. It rejects malformed JSON, frames
// without a type, and frames with an unrecognized type, so a single bad
// frame can be dropped at the boundary without reaching any handler.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	if !f.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}

	return &f, nil
}

// UserID extracts the "user_id" payload field from presence frames.
// Returns an empty string when the field is absent or not a string.
func (f *Frame) UserID() string {
	if f.Payload == nil {
		return ""
	}

	id, _ := f.Payload["user_id"].(string)

	return id
}
