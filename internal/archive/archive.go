package archive

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/manpreetbhatti/inkwell/internal/db"
	"github.com/manpreetbhatti/inkwell/internal/room"
)

const (
	ReasonCleared = "cleared"
	ReasonClosed  = "closed"
)

type Config struct {
	Interval      time.Duration
	KeepSnapshots int
	QueueSize     int
}

func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Minute,
		KeepSnapshots: 20,
		QueueSize:     64,
	}
}

type job struct {
	roomID  string
	reason  string
	strokes []room.Stroke
}

// Service writes stroke histories to the snapshot store off the relay's hot
// path and periodically prunes old snapshots.
type Service struct {
	database *db.Database
	config   Config
	jobs     chan job
	stop     chan struct{}
	wg       sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func New(database *db.Database, config Config) *Service {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.KeepSnapshots <= 0 {
		config.KeepSnapshots = defaults.KeepSnapshots
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}

	return &Service{
		database: database,
		config:   config,
		jobs:     make(chan job, config.QueueSize),
		stop:     make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(2)
	go s.write()
	go s.prune()
	log.Printf("🗄️ Archive service started (prune interval: %v, keep: %d snapshots)",
		s.config.Interval, s.config.KeepSnapshots)
}

// Stop flushes queued snapshots before returning
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stop)
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("🗄️ Archive service stopped")
}

// Submit queues a snapshot without blocking. Snapshots are dropped when the
// queue is full or the service has stopped.
func (s *Service) Submit(roomID, reason string, strokes []room.Stroke) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return
	}

	select {
	case s.jobs <- job{roomID: roomID, reason: reason, strokes: strokes}:
	default:
		log.Printf("⚠️ Archive queue full, dropping %s snapshot of room %s (%d strokes)",
			reason, roomID, len(strokes))
	}
}

func (s *Service) write() {
	defer s.wg.Done()

	for j := range s.jobs {
		if err := s.save(j); err != nil {
			log.Printf("Archive: failed to save snapshot of room %s: %v", j.roomID, err)
		}
	}
}

func (s *Service) save(j job) error {
	if j.strokes == nil {
		j.strokes = []room.Stroke{}
	}
	data, err := json.Marshal(j.strokes)
	if err != nil {
		return err
	}

	snapshot, err := s.database.SaveSnapshot(j.roomID, j.reason, data, len(j.strokes))
	if err != nil {
		return err
	}

	log.Printf("🗄️ Archived room %s (%s): %d strokes → snapshot %d",
		j.roomID, j.reason, len(j.strokes), snapshot.ID)
	return nil
}

func (s *Service) prune() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.PruneNow()
		}
	}
}

// PruneNow trims every archived room to the configured number of snapshots
// and returns how many were removed.
func (s *Service) PruneNow() int64 {
	rooms, err := s.database.ListRooms(1000, 0)
	if err != nil {
		log.Printf("Archive: failed to list rooms: %v", err)
		return 0
	}

	var removed int64
	for _, r := range rooms {
		n, err := s.database.PruneSnapshots(r.ID, s.config.KeepSnapshots)
		if err != nil {
			log.Printf("Archive: prune failed for room %s: %v", r.ID, err)
			continue
		}
		removed += n
	}

	if removed > 0 {
		log.Printf("🗄️ Pruned %d snapshots across %d rooms", removed, len(rooms))
	}
	return removed
}

// Load decodes the stroke history stored in a snapshot
func Load(snapshot *db.Snapshot) ([]room.Stroke, error) {
	strokes := []room.Stroke{}
	if len(snapshot.Data) == 0 {
		return strokes, nil
	}
	if err := json.Unmarshal(snapshot.Data, &strokes); err != nil {
		return nil, err
	}
	return strokes, nil
}
