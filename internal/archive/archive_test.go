package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/manpreetbhatti/inkwell/internal/db"
	"github.com/manpreetbhatti/inkwell/internal/room"
)

func setupTestDB(t *testing.T) *db.Database {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "inkwell-archive-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	database, err := db.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create database: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
		os.RemoveAll(tmpDir)
	})
	return database
}

func sampleStrokes() []room.Stroke {
	return []room.Stroke{
		{ID: "s1", AuthorID: "u1", AuthorName: "Alice", Color: "#FF6B6B", Width: 5,
			Points: []room.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}},
		{ID: "s2", AuthorID: "u2", AuthorName: "Bob", Color: "#4ECDC4", Width: 3, Tool: "rectangle",
			StartPoint: &room.Point{X: 1, Y: 1}, EndPoint: &room.Point{X: 5, Y: 5}},
	}
}

func TestSubmitPersistsSnapshot(t *testing.T) {
	database := setupTestDB(t)
	service := New(database, Config{QueueSize: 4})
	service.Start()

	service.Submit("r1", ReasonCleared, sampleStrokes())
	// Stop drains the queue
	service.Stop()

	snapshots, err := database.ListSnapshots("r1", 10, 0)
	if err != nil {
		t.Fatalf("Failed to list snapshots: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(snapshots))
	}
	if snapshots[0].Reason != ReasonCleared || snapshots[0].StrokeCount != 2 {
		t.Errorf("Unexpected snapshot: %+v", snapshots[0])
	}

	full, err := database.GetSnapshot(snapshots[0].ID)
	if err != nil {
		t.Fatalf("Failed to get snapshot: %v", err)
	}
	strokes, err := Load(full)
	if err != nil {
		t.Fatalf("Failed to load strokes: %v", err)
	}
	if len(strokes) != 2 || strokes[0].ID != "s1" || strokes[1].EndPoint == nil || strokes[1].EndPoint.X != 5 {
		t.Errorf("Strokes did not survive the round trip: %+v", strokes)
	}
}

func TestSubmitAfterStopIsDropped(t *testing.T) {
	database := setupTestDB(t)
	service := New(database, DefaultConfig())
	service.Start()
	service.Stop()
	service.Stop()

	service.Submit("late", ReasonClosed, sampleStrokes())

	count, err := database.GetSnapshotCount("late")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no snapshots after stop, got %d", count)
	}
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	database := setupTestDB(t)
	// Not started, so nothing drains the queue
	service := New(database, Config{QueueSize: 1})

	service.Submit("r1", ReasonClosed, nil)
	service.Submit("r1", ReasonClosed, nil)

	if len(service.jobs) != 1 {
		t.Errorf("Expected 1 queued job, got %d", len(service.jobs))
	}
}

func TestPruneNow(t *testing.T) {
	database := setupTestDB(t)
	for i := 0; i < 5; i++ {
		database.SaveSnapshot("a", ReasonCleared, []byte("[]"), i)
	}
	for i := 0; i < 2; i++ {
		database.SaveSnapshot("b", ReasonCleared, []byte("[]"), i)
	}

	service := New(database, Config{KeepSnapshots: 2})
	if removed := service.PruneNow(); removed != 3 {
		t.Errorf("Expected 3 pruned, got %d", removed)
	}

	if count, _ := database.GetSnapshotCount("a"); count != 2 {
		t.Errorf("Expected 2 snapshots for a, got %d", count)
	}
	if count, _ := database.GetSnapshotCount("b"); count != 2 {
		t.Errorf("Expected 2 snapshots for b, got %d", count)
	}
}

func TestLoadEmpty(t *testing.T) {
	strokes, err := Load(&db.Snapshot{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strokes == nil || len(strokes) != 0 {
		t.Errorf("Expected empty slice, got %v", strokes)
	}
}
