package protocol

import "github.com/manpreetbhatti/inkwell/internal/room"

type Point = room.Point

// JoinRequest accepts both the userName and displayName spellings.
type JoinRequest struct {
	RoomID      string `json:"roomId"`
	UserName    string `json:"userName,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func (j JoinRequest) Name() string {
	if j.DisplayName != "" {
		return j.DisplayName
	}
	return j.UserName
}

func (j JoinRequest) Room() string {
	if j.RoomID == "" {
		return DefaultRoom
	}
	return j.RoomID
}

type SessionCreated struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Color    string `json:"color"`
	RoomID   string `json:"roomId"`
}

// StrokeInput is what a client sends on stroke_complete. The server fills in
// identity, id and timestamp.
type StrokeInput struct {
	Color      string  `json:"color,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Tool       string  `json:"tool,omitempty"`
	Points     []Point `json:"points"`
	StartPoint *Point  `json:"startPoint,omitempty"`
	EndPoint   *Point  `json:"endPoint,omitempty"`
}

// Segment is one increment of an in-progress stroke.
type Segment struct {
	Start Point   `json:"start"`
	End   Point   `json:"end"`
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
}

type DrawingUpdate struct {
	UserID   string    `json:"userId"`
	Segments []Segment `json:"segments"`
}

type CursorUpdate struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Color    string `json:"color"`
	Position Point  `json:"position"`
}

// UserNotice is sent for user_joined (with color) and user_left (without).
type UserNotice struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Color    string `json:"color,omitempty"`
}

type ParticipantView struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	Color          string `json:"color"`
	CursorPosition Point  `json:"cursorPosition"`
}
