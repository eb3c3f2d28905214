package room

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Palette assigned to participants in join order
var Palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F",
	"#BB8FCE", "#85C1E9", "#F8B500", "#FF8C00",
}

// The per-connection identity inside a room
type Participant struct {
	ConnID   string `json:"-"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Name     string `json:"userName"`
	Color    string `json:"color"`
	Cursor   Point  `json:"cursorPosition"`
	JoinedAt int64  `json:"joinedAt"`
}

type roster struct {
	participants map[string]*Participant
	mu           sync.RWMutex
}

// Directory maps connections to rooms and tracks each room's participants.
type Directory struct {
	rooms    map[string]*roster
	sessions map[string]*Participant
	mu       sync.RWMutex

	rng   *rand.Rand
	rngMu sync.Mutex
	now   func() int64
}

func NewDirectory() *Directory {
	return &Directory{
		rooms:    make(map[string]*roster),
		sessions: make(map[string]*Participant),
		rng:      rand.New(rand.NewSource(rand.Int63())),
		now:      unixMilli,
	}
}

// Registers connID in roomID, creating the room if needed
func (d *Directory) Join(roomID, connID, userID, name string) Participant {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		r = &roster{participants: make(map[string]*Participant)}
		d.rooms[roomID] = r
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("User %d", len(r.participants)+1)
	}

	p := &Participant{
		ConnID:   connID,
		RoomID:   roomID,
		UserID:   userID,
		Name:     name,
		Color:    d.nextColor(r),
		JoinedAt: d.now(),
	}
	r.participants[connID] = p
	d.sessions[connID] = p
	return *p
}

// First palette color not in use in the room, or a random pick once all are taken.
// Caller holds r.mu.
func (d *Directory) nextColor(r *roster) string {
	used := make(map[string]bool, len(r.participants))
	for _, p := range r.participants {
		used[p.Color] = true
	}
	for _, c := range Palette {
		if !used[c] {
			return c
		}
	}

	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return Palette[d.rng.Intn(len(Palette))]
}

// Removes the connection's participant. emptied reports whether the room
// was deleted because it had no participants left.
func (d *Directory) Leave(connID string) (p Participant, emptied bool, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, ok := d.sessions[connID]
	if !ok {
		return Participant{}, false, false
	}
	delete(d.sessions, connID)

	r, exists := d.rooms[session.RoomID]
	if !exists {
		return *session, false, true
	}

	r.mu.Lock()
	p = *session
	delete(r.participants, connID)
	emptied = len(r.participants) == 0
	r.mu.Unlock()

	if emptied {
		delete(d.rooms, session.RoomID)
	}
	return p, emptied, true
}

// Snapshot of the room's participants. Order is not meaningful.
func (d *Directory) Participants(roomID string) []Participant {
	d.mu.RLock()
	r, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return []Participant{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		list = append(list, *p)
	}
	return list
}

// Overwrites the last known cursor position; no-op without a session
func (d *Directory) UpdateCursor(connID string, pos Point) {
	d.mu.RLock()
	session, ok := d.sessions[connID]
	var r *roster
	if ok {
		r = d.rooms[session.RoomID]
	}
	d.mu.RUnlock()
	if !ok || r == nil {
		return
	}

	r.mu.Lock()
	session.Cursor = pos
	r.mu.Unlock()
}

func (d *Directory) RoomOf(connID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if session, ok := d.sessions[connID]; ok {
		return session.RoomID, true
	}
	return "", false
}

func (d *Directory) Session(connID string) (Participant, bool) {
	d.mu.RLock()
	session, ok := d.sessions[connID]
	var r *roster
	if ok {
		r = d.rooms[session.RoomID]
	}
	d.mu.RUnlock()
	if !ok {
		return Participant{}, false
	}
	if r != nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return *session, true
}

func unixMilli() int64 {
	return time.Now().UnixMilli()
}

func (d *Directory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

func (d *Directory) ParticipantCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// Room ID to participant count for every non-empty room
func (d *Directory) ActiveRooms() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make(map[string]int, len(d.rooms))
	for id, r := range d.rooms {
		r.mu.RLock()
		result[id] = len(r.participants)
		r.mu.RUnlock()
	}
	return result
}
