package room

import (
	"fmt"
	"sync"
	"testing"
)

func stroke(id, author string) Stroke {
	return Stroke{
		ID:       id,
		AuthorID: author,
		Color:    "#000000",
		Width:    5,
		Points:   []Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}},
	}
}

func ids(strokes []Stroke) []string {
	out := make([]string, len(strokes))
	for i, s := range strokes {
		out[i] = s.ID
	}
	return out
}

func assertIDs(t *testing.T, got []Stroke, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected strokes %v, got %v", want, ids(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("Expected strokes %v, got %v", want, ids(got))
		}
	}
}

func TestStrokeLogAppendAndList(t *testing.T) {
	log := NewStrokeLog()

	log.Append("r1", stroke("s1", "u1"))
	log.Append("r1", stroke("s2", "u2"))
	log.Append("r2", stroke("s3", "u1"))

	assertIDs(t, log.List("r1"), "s1", "s2")
	assertIDs(t, log.List("r2"), "s3")

	if log.Len("r1") != 2 {
		t.Errorf("Expected length 2, got %d", log.Len("r1"))
	}
	if log.TotalStrokes() != 3 {
		t.Errorf("Expected 3 strokes in total, got %d", log.TotalStrokes())
	}
}

func TestStrokeLogListReturnsCopy(t *testing.T) {
	log := NewStrokeLog()
	log.Append("r1", stroke("s1", "u1"))

	list := log.List("r1")
	list[0].ID = "mutated"

	assertIDs(t, log.List("r1"), "s1")
}

func TestStrokeLogUnknownRoomIsEmpty(t *testing.T) {
	log := NewStrokeLog()

	if got := log.List("nowhere"); len(got) != 0 {
		t.Errorf("Expected empty list, got %v", ids(got))
	}
	if _, ok := log.Undo("nowhere", "u1"); ok {
		t.Error("Undo in an unknown room should report nothing undone")
	}
	if _, ok := log.Redo("nowhere", "u1"); ok {
		t.Error("Redo in an unknown room should report nothing redone")
	}
	log.Clear("nowhere")
}

func TestStrokeLogUndoIsAuthorScoped(t *testing.T) {
	log := NewStrokeLog()
	log.Append("r1", stroke("s1", "u1"))
	log.Append("r1", stroke("s2", "u2"))

	undone, ok := log.Undo("r1", "u1")
	if !ok {
		t.Fatal("Expected u1 to undo a stroke")
	}
	if undone.ID != "s1" {
		t.Errorf("Expected s1 to be undone, got %s", undone.ID)
	}
	assertIDs(t, log.List("r1"), "s2")
}

func TestStrokeLogUndoNeverTouchesOtherAuthors(t *testing.T) {
	log := NewStrokeLog()
	log.Append("r1", stroke("a1", "A"))
	log.Append("r1", stroke("b1", "B"))
	log.Append("r1", stroke("a2", "A"))

	for i := 0; i < 3; i++ {
		if s, ok := log.Undo("r1", "B"); ok && s.AuthorID != "B" {
			t.Fatalf("B undid a stroke authored by %s", s.AuthorID)
		}
	}
	assertIDs(t, log.List("r1"), "a1", "a2")
}

func TestStrokeLogUndoPreservesOrder(t *testing.T) {
	log := NewStrokeLog()
	log.Append("r1", stroke("s1", "u1"))
	log.Append("r1", stroke("s2", "u2"))
	log.Append("r1", stroke("s3", "u1"))
	log.Append("r1", stroke("s4", "u2"))

	if s, _ := log.Undo("r1", "u1"); s.ID != "s3" {
		t.Errorf("Expected s3 undone first, got %s", s.ID)
	}
	assertIDs(t, log.List("r1"), "s1", "s2", "s4")
}

func TestStrokeLogRedoAppendsAtTail(t *testing.T) {
	log := NewStrokeLog()
	log.Append("r1", stroke("s1", "u1"))
	log.Append("r1", stroke("s2", "u2"))

	log.Undo("r1", "u1")
	log.Append("r1", stroke("s3", "u2"))

	redone, ok := log.Redo("r1", "u1")
	if !ok || redone.ID != "s1" {
		t.Fatalf("Expected s1 to be redone, got %q (ok=%v)", redone.ID, ok)
	}
	assertIDs(t, log.List("r1"), "s2", "s3", "s1")
}

func TestStrokeLogUndoRedoRoundTrip(t *testing.T) {
	log := NewStrokeLog()
	original := stroke("s1", "u1")
	log.Append("r1", original)

	undone, _ := log.Undo("r1", "u1")
	redone, ok := log.Redo("r1", "u1")
	if !ok {
		t.Fatal("Expected redo to succeed")
	}
	if undone.ID != redone.ID || len(redone.Points) != len(original.Points) {
		t.Errorf("Redo restored different content: %+v vs %+v", redone, original)
	}
	assertIDs(t, log.List("r1"), "s1")

	if _, ok := log.Redo("r1", "u1"); ok {
		t.Error("Second redo with an empty stack should report nothing")
	}
	assertIDs(t, log.List("r1"), "s1")
}

func TestStrokeLogRedoIsLIFO(t *testing.T) {
	log := NewStrokeLog()
	log.Append("r1", stroke("s1", "u1"))
	log.Append("r1", stroke("s2", "u1"))

	log.Undo("r1", "u1")
	log.Undo("r1", "u1")

	first, _ := log.Redo("r1", "u1")
	second, _ := log.Redo("r1", "u1")
	if first.ID != "s1" || second.ID != "s2" {
		t.Errorf("Expected redo order s1, s2; got %s, %s", first.ID, second.ID)
	}
}

func TestStrokeLogRedoStacksArePerUser(t *testing.T) {
	log := NewStrokeLog()
	log.Append("r1", stroke("s1", "u1"))
	log.Undo("r1", "u1")

	if _, ok := log.Redo("r1", "u2"); ok {
		t.Error("u2 must not redo a stroke undone by u1")
	}
	if _, ok := log.Redo("r2", "u1"); ok {
		t.Error("Redo stacks must not leak across rooms")
	}
}

func TestStrokeLogAppendKeepsRedoByDefault(t *testing.T) {
	log := NewStrokeLog()
	log.Append("r1", stroke("s1", "u1"))
	log.Undo("r1", "u1")
	log.Append("r1", stroke("s2", "u1"))

	redone, ok := log.Redo("r1", "u1")
	if !ok || redone.ID != "s1" {
		t.Fatalf("Expected pending redo to survive a new stroke, got %q (ok=%v)", redone.ID, ok)
	}
	assertIDs(t, log.List("r1"), "s2", "s1")
}

func TestStrokeLogClearRedoOnAppend(t *testing.T) {
	log := NewStrokeLog()
	log.ClearRedoOnAppend = true

	log.Append("r1", stroke("s1", "u1"))
	log.Append("r1", stroke("s2", "u2"))
	log.Undo("r1", "u1")
	log.Undo("r1", "u2")
	log.Append("r1", stroke("s3", "u1"))

	if _, ok := log.Redo("r1", "u1"); ok {
		t.Error("A new stroke should discard its author's redo stack")
	}
	if s, ok := log.Redo("r1", "u2"); !ok || s.ID != "s2" {
		t.Error("Other authors' redo stacks must be untouched")
	}
}

func TestStrokeLogClear(t *testing.T) {
	log := NewStrokeLog()
	log.Append("r1", stroke("s1", "u1"))
	log.Append("r1", stroke("s2", "u2"))
	log.Undo("r1", "u2")
	log.Append("r2", stroke("s3", "u1"))

	log.Clear("r1")

	assertIDs(t, log.List("r1"))
	if _, ok := log.Undo("r1", "u1"); ok {
		t.Error("Undo after clear should report nothing")
	}
	if _, ok := log.Redo("r1", "u2"); ok {
		t.Error("Clear should drop redo stacks")
	}
	assertIDs(t, log.List("r2"), "s3")
}

func TestStrokeLogDrop(t *testing.T) {
	log := NewStrokeLog()
	log.Append("r1", stroke("s1", "u1"))

	last := log.Drop("r1")
	assertIDs(t, last, "s1")

	if log.RoomCount() != 0 {
		t.Errorf("Expected 0 rooms after drop, got %d", log.RoomCount())
	}
	if log.Drop("r1") != nil {
		t.Error("Dropping an unknown room should return nil")
	}
}

// Replaying the same operations against a fresh log yields the same history.
func TestStrokeLogDeterministic(t *testing.T) {
	type op struct {
		kind string
		user string
		id   string
	}
	ops := []op{
		{"append", "A", "a1"}, {"append", "B", "b1"}, {"append", "A", "a2"},
		{"undo", "A", ""}, {"append", "B", "b2"}, {"undo", "B", ""},
		{"redo", "A", ""}, {"undo", "A", ""}, {"undo", "A", ""},
		{"redo", "B", ""}, {"append", "A", "a3"}, {"redo", "A", ""},
	}

	replay := func() []Stroke {
		log := NewStrokeLog()
		for _, o := range ops {
			switch o.kind {
			case "append":
				log.Append("r", stroke(o.id, o.user))
			case "undo":
				log.Undo("r", o.user)
			case "redo":
				log.Redo("r", o.user)
			}
		}
		return log.List("r")
	}

	first := ids(replay())
	for i := 0; i < 5; i++ {
		if got := ids(replay()); fmt.Sprint(got) != fmt.Sprint(first) {
			t.Fatalf("Replay %d diverged: %v vs %v", i, got, first)
		}
	}
	assertIDs(t, replay(), "b1", "b2", "a3", "a1")
}

func TestStrokeLogConcurrentRooms(t *testing.T) {
	log := NewStrokeLog()

	var wg sync.WaitGroup
	for r := 0; r < 10; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			roomID := fmt.Sprintf("room-%d", r)
			for i := 0; i < 100; i++ {
				log.Append(roomID, stroke(fmt.Sprintf("s%d", i), "u"))
			}
		}(r)
	}
	wg.Wait()

	if log.RoomCount() != 10 {
		t.Errorf("Expected 10 rooms, got %d", log.RoomCount())
	}
	if log.TotalStrokes() != 1000 {
		t.Errorf("Expected 1000 strokes, got %d", log.TotalStrokes())
	}
}
