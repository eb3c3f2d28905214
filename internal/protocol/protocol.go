package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Represents the type of a canvas event
type EventType string

// Inbound events
const (
	EventJoin           EventType = "join"
	EventJoinRoom       EventType = "join_room" // alias emitted by older clients
	EventStrokeComplete EventType = "stroke_complete"
	EventDrawingStep    EventType = "drawing_step"
	EventCursorMove     EventType = "cursor_move"
	EventUndo           EventType = "undo_stroke"
	EventRedo           EventType = "redo_stroke"
	EventClearCanvas    EventType = "clear_canvas"
)

// Outbound events
const (
	EventSessionCreated EventType = "session_created"
	EventSyncStrokes    EventType = "sync_strokes"
	EventUsersList      EventType = "users_list"
	EventUserJoined     EventType = "user_joined"
	EventUserLeft       EventType = "user_left"
	EventStrokeReceived EventType = "stroke_received"
	EventDrawingUpdate  EventType = "drawing_update"
	EventCursorUpdate   EventType = "cursor_update"
	EventCanvasCleared  EventType = "canvas_cleared"
)

const DefaultRoom = "default"

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrUnknownType  = errors.New("unknown event type")
)

var inbound = map[EventType]bool{
	EventJoin:           true,
	EventJoinRoom:       true,
	EventStrokeComplete: true,
	EventDrawingStep:    true,
	EventCursorMove:     true,
	EventUndo:           true,
	EventRedo:           true,
	EventClearCanvas:    true,
}

// Transient events are live previews: relayed to the room, never stored
func (t EventType) Transient() bool {
	return t == EventCursorMove || t == EventDrawingStep
}

// Envelope is the frame carried by every websocket text message.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses an inbound frame and rejects event types a client may not send.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if len(raw) == 0 {
		return env, ErrEmptyMessage
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return env, ErrEmptyMessage
	}
	if !inbound[env.Type] {
		return env, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if env.Type == EventJoinRoom {
		env.Type = EventJoin
	}
	return env, nil
}

// Encode builds an outbound frame. A nil payload yields a frame without data.
func Encode(t EventType, payload any) ([]byte, error) {
	env := Envelope{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Unmarshals the payload of an envelope into v. Missing data leaves v untouched.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
