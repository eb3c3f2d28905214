package relay

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/manpreetbhatti/inkwell/internal/protocol"
	"github.com/manpreetbhatti/inkwell/internal/room"
)

// A participant's transport connection. Send must never block: it returns
// false when the message cannot be queued.
type Conn interface {
	ID() string
	Send(msg []byte) bool
	Close()
}

// Receives the last stroke history of a room when it is cleared or closed
type Archiver interface {
	Submit(roomID, reason string, strokes []room.Stroke)
}

// Mirrors room occupancy somewhere outside the process
type Presence interface {
	Update(roomID string, participants int)
}

type Config struct {
	QueueSize         int
	DefaultWidth      float64
	ClearRedoOnAppend bool
	Archive           Archiver
	Presence          Presence
}

func DefaultConfig() Config {
	return Config{
		QueueSize:    256,
		DefaultWidth: 5,
	}
}

// Hub routes connection events to one worker goroutine per room
type Hub struct {
	directory *room.Directory
	strokes   *room.StrokeLog

	// Room workers by room ID
	workers map[string]*worker

	// Connection ID to the room its events are routed to
	routes map[string]string

	mu sync.Mutex

	config Config
	newID  func() string
	now    func() int64
}

func NewHub(config Config) *Hub {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.DefaultWidth <= 0 {
		config.DefaultWidth = DefaultConfig().DefaultWidth
	}
	if config.Archive == nil {
		config.Archive = noopArchive{}
	}
	if config.Presence == nil {
		config.Presence = noopPresence{}
	}

	strokes := room.NewStrokeLog()
	strokes.ClearRedoOnAppend = config.ClearRedoOnAppend

	return &Hub{
		directory: room.NewDirectory(),
		strokes:   strokes,
		workers:   make(map[string]*worker),
		routes:    make(map[string]string),
		config:    config,
		newID:     uuid.NewString,
		now:       unixMilli,
	}
}

// Dispatch hands a decoded event to the room the connection belongs to.
// Events from connections without a session are dropped.
func (h *Hub) Dispatch(conn Conn, env protocol.Envelope) {
	if env.Type == protocol.EventJoin {
		var req protocol.JoinRequest
		if err := env.Bind(&req); err != nil {
			log.Printf("⚠️ Invalid join from %s: %v", conn.ID(), err)
			return
		}
		h.join(conn, req)
		return
	}

	h.mu.Lock()
	w := h.routed(conn.ID())
	if w != nil {
		w.pending.Add(1)
	}
	h.mu.Unlock()

	if w == nil {
		return
	}
	w.events <- event{kind: eventMessage, conn: conn, env: env}
}

func (h *Hub) join(conn Conn, req protocol.JoinRequest) {
	// Last join wins: leave the current room before entering the next one.
	h.mu.Lock()
	prev := h.routed(conn.ID())
	if prev != nil {
		prev.pending.Add(1)
	}
	h.mu.Unlock()

	if prev != nil {
		done := make(chan struct{})
		prev.events <- event{kind: eventLeave, conn: conn, done: done}
		<-done
	}

	roomID := req.Room()

	h.mu.Lock()
	w, ok := h.workers[roomID]
	if !ok {
		w = newWorker(h, roomID)
		h.workers[roomID] = w
		go w.run()
	}
	h.routes[conn.ID()] = roomID
	w.pending.Add(1)
	h.mu.Unlock()

	w.events <- event{kind: eventJoin, conn: conn, join: req}
}

// Disconnect ends the connection's session. Connections that never joined
// are closed without notifying anyone.
func (h *Hub) Disconnect(conn Conn) {
	h.mu.Lock()
	w := h.routed(conn.ID())
	delete(h.routes, conn.ID())
	if w != nil {
		w.pending.Add(1)
	}
	h.mu.Unlock()

	if w == nil {
		conn.Close()
		return
	}
	w.events <- event{kind: eventDisconnect, conn: conn}
}

// Caller holds h.mu
func (h *Hub) routed(connID string) *worker {
	roomID, ok := h.routes[connID]
	if !ok {
		return nil
	}
	return h.workers[roomID]
}

// Removes the route for a connection dropped by its room worker
func (h *Hub) forget(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.routes[connID] == roomID {
		delete(h.routes, connID)
	}
}

// Stops tracking an idle worker. Returns false if events are still in flight.
func (h *Hub) retire(w *worker) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if w.pending.Load() != 0 {
		return false
	}
	if h.workers[w.roomID] == w {
		delete(h.workers, w.roomID)
	}
	return true
}

// Number of rooms with at least one participant
func (h *Hub) GetRoomCount() int {
	return h.directory.RoomCount()
}

// Number of joined connections across all rooms
func (h *Hub) GetClientCount() int {
	return h.directory.ParticipantCount()
}

// Room ID to participant count
func (h *Hub) GetActiveRooms() map[string]int {
	return h.directory.ActiveRooms()
}

func (h *Hub) GetStrokeCount() int {
	return h.strokes.TotalStrokes()
}

type RoomView struct {
	ID           string             `json:"id"`
	Participants []room.Participant `json:"participants"`
	StrokeCount  int                `json:"stroke_count"`
}

// Live view of a room; false when nobody is in it
func (h *Hub) GetRoom(roomID string) (RoomView, bool) {
	participants := h.directory.Participants(roomID)
	if len(participants) == 0 {
		return RoomView{}, false
	}
	return RoomView{
		ID:           roomID,
		Participants: participants,
		StrokeCount:  h.strokes.Len(roomID),
	}, true
}

type noopArchive struct{}

func (noopArchive) Submit(string, string, []room.Stroke) {}

type noopPresence struct{}

func (noopPresence) Update(string, int) {}
