package relay

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/manpreetbhatti/inkwell/internal/protocol"
	"github.com/manpreetbhatti/inkwell/internal/room"
)

type eventKind int

const (
	eventMessage eventKind = iota
	eventJoin
	eventLeave
	eventDisconnect
)

type event struct {
	kind eventKind
	conn Conn
	env  protocol.Envelope
	join protocol.JoinRequest

	// Closed once a leave has been applied
	done chan struct{}
}

// worker owns every mutation of one room. Events are handled one at a time,
// so the room's stroke log and roster never see interleaved handlers.
type worker struct {
	hub    *Hub
	roomID string
	events chan event

	// Events enqueued but not yet handled. Incremented under hub.mu.
	pending atomic.Int64

	// Joined connections, by connection ID
	conns map[string]Conn

	// Recipients whose queue overflowed during the current event
	slow []Conn
}

func newWorker(h *Hub, roomID string) *worker {
	return &worker{
		hub:    h,
		roomID: roomID,
		events: make(chan event, h.config.QueueSize),
		conns:  make(map[string]Conn),
	}
}

func (w *worker) run() {
	for ev := range w.events {
		w.handle(ev)
		w.dropSlow()
		w.pending.Add(-1)

		if len(w.conns) == 0 && w.hub.retire(w) {
			return
		}
	}
}

func (w *worker) handle(ev event) {
	switch ev.kind {
	case eventJoin:
		w.onJoin(ev.conn, ev.join)
	case eventLeave:
		w.leave(ev.conn, false)
		close(ev.done)
	case eventDisconnect:
		w.leave(ev.conn, true)
	case eventMessage:
		session, ok := w.hub.directory.Session(ev.conn.ID())
		if !ok || session.RoomID != w.roomID {
			return
		}
		w.onMessage(ev.conn, session, ev.env)
	}
}

func (w *worker) onMessage(conn Conn, session room.Participant, env protocol.Envelope) {
	switch env.Type {
	case protocol.EventStrokeComplete:
		w.onStrokeComplete(conn, session, env)
	case protocol.EventDrawingStep:
		w.onDrawingStep(conn, session, env)
	case protocol.EventCursorMove:
		w.onCursorMove(conn, session, env)
	case protocol.EventUndo:
		w.onUndo(session)
	case protocol.EventRedo:
		w.onRedo(session)
	case protocol.EventClearCanvas:
		w.onClear(session)
	}
}

func (w *worker) onJoin(conn Conn, req protocol.JoinRequest) {
	h := w.hub
	p := h.directory.Join(w.roomID, conn.ID(), h.newID(), req.Name())
	w.conns[conn.ID()] = conn

	log.Printf("🎨 %s (%s) joined room %s (total: %d)", p.Name, p.UserID, w.roomID, len(w.conns))

	w.sendTo(conn, protocol.EventSessionCreated, protocol.SessionCreated{
		UserID:   p.UserID,
		UserName: p.Name,
		Color:    p.Color,
		RoomID:   w.roomID,
	})

	if strokes := h.strokes.List(w.roomID); len(strokes) > 0 {
		w.sendTo(conn, protocol.EventSyncStrokes, strokes)
	}

	roster := h.directory.Participants(w.roomID)
	views := make([]protocol.ParticipantView, len(roster))
	for i, member := range roster {
		views[i] = protocol.ParticipantView{
			UserID:         member.UserID,
			UserName:       member.Name,
			Color:          member.Color,
			CursorPosition: member.Cursor,
		}
	}
	w.sendTo(conn, protocol.EventUsersList, views)

	w.broadcast(conn, protocol.EventUserJoined, protocol.UserNotice{
		UserID:   p.UserID,
		UserName: p.Name,
		Color:    p.Color,
	})

	h.config.Presence.Update(w.roomID, len(w.conns))
}

func (w *worker) onStrokeComplete(conn Conn, session room.Participant, env protocol.Envelope) {
	var input protocol.StrokeInput
	if err := env.Bind(&input); err != nil {
		log.Printf("⚠️ Invalid stroke from %s in room %s: %v", session.UserID, w.roomID, err)
		return
	}

	h := w.hub
	stroke := room.Stroke{
		AuthorID:   session.UserID,
		AuthorName: session.Name,
		Color:      input.Color,
		Width:      input.Width,
		Tool:       input.Tool,
		Points:     input.Points,
		StartPoint: input.StartPoint,
		EndPoint:   input.EndPoint,
		Timestamp:  h.now(),
	}
	if !stroke.HasGeometry() {
		return
	}
	stroke.ID = h.newID()
	if stroke.Color == "" {
		stroke.Color = session.Color
	}
	if stroke.Width <= 0 {
		stroke.Width = h.config.DefaultWidth
	}
	if stroke.Points == nil {
		stroke.Points = []room.Point{}
	}

	h.strokes.Append(w.roomID, stroke)
	w.broadcast(conn, protocol.EventStrokeReceived, stroke)
}

func (w *worker) onDrawingStep(conn Conn, session room.Participant, env protocol.Envelope) {
	var segments []protocol.Segment
	if err := env.Bind(&segments); err != nil {
		log.Printf("⚠️ Invalid drawing step from %s in room %s: %v", session.UserID, w.roomID, err)
		return
	}

	w.broadcast(conn, protocol.EventDrawingUpdate, protocol.DrawingUpdate{
		UserID:   session.UserID,
		Segments: segments,
	})
}

func (w *worker) onCursorMove(conn Conn, session room.Participant, env protocol.Envelope) {
	var position protocol.Point
	if err := env.Bind(&position); err != nil {
		return
	}

	w.hub.directory.UpdateCursor(conn.ID(), position)
	w.broadcast(conn, protocol.EventCursorUpdate, protocol.CursorUpdate{
		UserID:   session.UserID,
		UserName: session.Name,
		Color:    session.Color,
		Position: position,
	})
}

// Any earlier stroke may have been removed, so everyone gets the full history.
func (w *worker) onUndo(session room.Participant) {
	undone, ok := w.hub.strokes.Undo(w.roomID, session.UserID)
	if !ok {
		return
	}

	w.broadcast(nil, protocol.EventSyncStrokes, w.hub.strokes.List(w.roomID))
	log.Printf("↩️ %s undid stroke %s", session.Name, undone.ID)
}

// Redo always appends at the tail, so the single stroke is enough.
func (w *worker) onRedo(session room.Participant) {
	redone, ok := w.hub.strokes.Redo(w.roomID, session.UserID)
	if !ok {
		return
	}

	w.broadcast(nil, protocol.EventStrokeReceived, redone)
	log.Printf("↪️ %s redid stroke %s", session.Name, redone.ID)
}

func (w *worker) onClear(session room.Participant) {
	h := w.hub
	if last := h.strokes.List(w.roomID); len(last) > 0 {
		h.config.Archive.Submit(w.roomID, "cleared", last)
	}
	h.strokes.Clear(w.roomID)

	w.broadcast(nil, protocol.EventCanvasCleared, nil)
	log.Printf("🧹 %s cleared the canvas in room %s", session.Name, w.roomID)
}

// Removes conn from the room. A terminal leave also closes the connection.
func (w *worker) leave(conn Conn, terminal bool) {
	h := w.hub
	delete(w.conns, conn.ID())
	if terminal {
		conn.Close()
	}

	p, emptied, ok := h.directory.Leave(conn.ID())
	if !ok {
		return
	}

	log.Printf("👋 %s left room %s (remaining: %d)", p.Name, w.roomID, len(w.conns))
	w.broadcast(conn, protocol.EventUserLeft, protocol.UserNotice{
		UserID:   p.UserID,
		UserName: p.Name,
	})

	if !emptied {
		h.config.Presence.Update(w.roomID, len(w.conns))
		return
	}

	if last := h.strokes.Drop(w.roomID); len(last) > 0 {
		h.config.Archive.Submit(w.roomID, "closed", last)
	}
	h.config.Presence.Update(w.roomID, 0)
	log.Printf("Room %s closed (empty)", w.roomID)
}

// Disconnects recipients that could not keep up
func (w *worker) dropSlow() {
	for len(w.slow) > 0 {
		conn := w.slow[0]
		w.slow = w.slow[1:]

		if _, ok := w.conns[conn.ID()]; !ok {
			continue
		}
		log.Printf("🐢 Dropping slow client %s in room %s", conn.ID(), w.roomID)
		w.hub.forget(conn.ID(), w.roomID)
		w.leave(conn, true)
	}
}

func (w *worker) sendTo(conn Conn, t protocol.EventType, payload any) {
	msg, err := protocol.Encode(t, payload)
	if err != nil {
		log.Printf("Failed to encode %s: %v", t, err)
		return
	}
	if !conn.Send(msg) {
		w.slow = append(w.slow, conn)
	}
}

// Sends to every connection in the room except skip (nil sends to all)
func (w *worker) broadcast(skip Conn, t protocol.EventType, payload any) {
	msg, err := protocol.Encode(t, payload)
	if err != nil {
		log.Printf("Failed to encode %s: %v", t, err)
		return
	}

	for id, conn := range w.conns {
		if skip != nil && id == skip.ID() {
			continue
		}
		if !conn.Send(msg) {
			w.slow = append(w.slow, conn)
		}
	}
}

func unixMilli() int64 {
	return time.Now().UnixMilli()
}
