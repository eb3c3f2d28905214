package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

type Room struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// A stroke history captured when a canvas was cleared or its room closed
type Snapshot struct {
	ID          int64     `json:"id"`
	RoomID      string    `json:"room_id"`
	Reason      string    `json:"reason"`
	StrokeCount int       `json:"stroke_count"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

func New(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	log.Printf("Database initialized at %s", dbPath)
	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS canvas_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		stroke_count INTEGER NOT NULL DEFAULT 0,
		data BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_canvas_snapshots_room_id ON canvas_snapshots(room_id, id DESC);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Room operations

func (d *Database) TouchRoom(id string) error {
	_, err := d.db.Exec(`
		INSERT INTO rooms (id) VALUES (?)
		ON CONFLICT(id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
	`, id)
	return err
}

func (d *Database) GetRoom(id string) (*Room, error) {
	row := d.db.QueryRow(
		"SELECT id, created_at, updated_at FROM rooms WHERE id = ?",
		id,
	)

	var room Room
	err := row.Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (d *Database) ListRooms(limit, offset int) ([]Room, error) {
	rows, err := d.db.Query(
		"SELECT id, created_at, updated_at FROM rooms ORDER BY updated_at DESC, id LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// Deletes the room and, through the foreign key, its snapshots
func (d *Database) DeleteRoom(id string) error {
	_, err := d.db.Exec("DELETE FROM rooms WHERE id = ?", id)
	return err
}

// Snapshot operations

func (d *Database) SaveSnapshot(roomID, reason string, data []byte, strokeCount int) (*Snapshot, error) {
	if err := d.TouchRoom(roomID); err != nil {
		return nil, err
	}

	result, err := d.db.Exec(
		"INSERT INTO canvas_snapshots (room_id, reason, stroke_count, data) VALUES (?, ?, ?, ?)",
		roomID, reason, strokeCount, data,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return d.GetSnapshot(id)
}

// GetSnapshot returns the snapshot including its stroke data, or nil if missing
func (d *Database) GetSnapshot(id int64) (*Snapshot, error) {
	row := d.db.QueryRow(`
		SELECT id, room_id, reason, stroke_count, data, created_at
		FROM canvas_snapshots WHERE id = ?
	`, id)

	var s Snapshot
	err := row.Scan(&s.ID, &s.RoomID, &s.Reason, &s.StrokeCount, &s.Data, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSnapshots returns snapshot metadata for a room, newest first
func (d *Database) ListSnapshots(roomID string, limit, offset int) ([]Snapshot, error) {
	rows, err := d.db.Query(`
		SELECT id, room_id, reason, stroke_count, created_at
		FROM canvas_snapshots
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.RoomID, &s.Reason, &s.StrokeCount, &s.CreatedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func (d *Database) GetSnapshotCount(roomID string) (int, error) {
	var count int
	err := d.db.QueryRow(
		"SELECT COUNT(*) FROM canvas_snapshots WHERE room_id = ?",
		roomID,
	).Scan(&count)
	return count, err
}

func (d *Database) DeleteSnapshot(id int64) error {
	_, err := d.db.Exec("DELETE FROM canvas_snapshots WHERE id = ?", id)
	return err
}

// PruneSnapshots keeps only the newest keepCount snapshots of a room
func (d *Database) PruneSnapshots(roomID string, keepCount int) (int64, error) {
	result, err := d.db.Exec(`
		DELETE FROM canvas_snapshots
		WHERE room_id = ? AND id NOT IN (
			SELECT id FROM canvas_snapshots
			WHERE room_id = ?
			ORDER BY id DESC
			LIMIT ?
		)
	`, roomID, roomID, keepCount)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Stats

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var roomCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&roomCount); err != nil {
		return nil, err
	}
	stats["room_count"] = roomCount

	var snapshotCount int
	var strokeCount int
	if err := d.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(stroke_count), 0) FROM canvas_snapshots",
	).Scan(&snapshotCount, &strokeCount); err != nil {
		return nil, err
	}
	stats["snapshot_count"] = snapshotCount
	stats["archived_strokes"] = strokeCount

	return stats, nil
}
