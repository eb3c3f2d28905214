package room

import (
	"sync"
)

// Per-room committed history and per-user redo stacks
type history struct {
	strokes []Stroke
	redo    map[string][]Stroke
	mu      sync.RWMutex
}

func newHistory() *history {
	return &history{
		strokes: make([]Stroke, 0),
		redo:    make(map[string][]Stroke),
	}
}

// StrokeLog holds the canonical stroke history of every room. Each room is
// guarded by its own lock; the outer lock only protects the room map.
type StrokeLog struct {
	rooms map[string]*history
	mu    sync.RWMutex

	// When set, a new stroke discards its author's pending redo entries.
	ClearRedoOnAppend bool
}

func NewStrokeLog() *StrokeLog {
	return &StrokeLog{
		rooms: make(map[string]*history),
	}
}

func (l *StrokeLog) lookup(roomID string) *history {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rooms[roomID]
}

func (l *StrokeLog) room(roomID string) *history {
	if h := l.lookup(roomID); h != nil {
		return h
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.rooms[roomID]; ok {
		return h
	}
	h := newHistory()
	l.rooms[roomID] = h
	return h
}

// Adds a stroke at the tail of the room's history
func (l *StrokeLog) Append(roomID string, stroke Stroke) {
	h := l.room(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.strokes = append(h.strokes, stroke)
	if l.ClearRedoOnAppend {
		delete(h.redo, stroke.AuthorID)
	}
}

// Returns a copy of the room's history, oldest first
func (l *StrokeLog) List(roomID string) []Stroke {
	h := l.lookup(roomID)
	if h == nil {
		return []Stroke{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	strokes := make([]Stroke, len(h.strokes))
	copy(strokes, h.strokes)
	return strokes
}

// Removes the most recent stroke authored by userID and pushes it onto that
// user's redo stack. Reports false when the user has nothing to undo.
func (l *StrokeLog) Undo(roomID, userID string) (Stroke, bool) {
	h := l.room(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.strokes) - 1; i >= 0; i-- {
		if h.strokes[i].AuthorID != userID {
			continue
		}
		stroke := h.strokes[i]
		h.strokes = append(h.strokes[:i], h.strokes[i+1:]...)
		h.redo[userID] = append(h.redo[userID], stroke)
		return stroke, true
	}
	return Stroke{}, false
}

// Pops the user's most recently undone stroke and appends it at the current
// tail. The original position is not restored.
func (l *StrokeLog) Redo(roomID, userID string) (Stroke, bool) {
	h := l.room(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	stack := h.redo[userID]
	if len(stack) == 0 {
		return Stroke{}, false
	}

	stroke := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(h.redo, userID)
	} else {
		h.redo[userID] = stack[:len(stack)-1]
	}
	h.strokes = append(h.strokes, stroke)
	return stroke, true
}

// Discards the room's history and every redo stack in it
func (l *StrokeLog) Clear(roomID string) {
	h := l.lookup(roomID)
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.strokes = make([]Stroke, 0)
	h.redo = make(map[string][]Stroke)
}

// Forgets the room entirely, returning its last history
func (l *StrokeLog) Drop(roomID string) []Stroke {
	l.mu.Lock()
	h, ok := l.rooms[roomID]
	delete(l.rooms, roomID)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	strokes := make([]Stroke, len(h.strokes))
	copy(strokes, h.strokes)
	return strokes
}

func (l *StrokeLog) Len(roomID string) int {
	h := l.lookup(roomID)
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.strokes)
}

// Total number of committed strokes across all rooms
func (l *StrokeLog) TotalStrokes() int {
	l.mu.RLock()
	rooms := make([]*history, 0, len(l.rooms))
	for _, h := range l.rooms {
		rooms = append(rooms, h)
	}
	l.mu.RUnlock()

	total := 0
	for _, h := range rooms {
		h.mu.RLock()
		total += len(h.strokes)
		h.mu.RUnlock()
	}
	return total
}

func (l *StrokeLog) RoomCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rooms)
}
