package presence

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKey = "canvas:presence"
	DefaultTTL = 10 * time.Minute
)

type update struct {
	roomID       string
	participants int
}

// Mirror publishes room occupancy to a Redis hash (room ID → participant
// count) so other processes can see which canvases are live. Updates are
// applied in order by a single goroutine; the relay never waits on Redis.
type Mirror struct {
	client  *redis.Client
	key     string
	ttl     time.Duration
	timeout time.Duration
	updates chan update
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Connect dials Redis and verifies the connection before returning a running
// mirror.
func Connect(ctx context.Context, addr, password string, db int) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	m := newMirror(client)
	go m.run()
	log.Printf("📡 Presence mirror connected to %s (key: %s)", addr, m.key)
	return m, nil
}

func newMirror(client *redis.Client) *Mirror {
	return &Mirror{
		client:  client,
		key:     DefaultKey,
		ttl:     DefaultTTL,
		timeout: 2 * time.Second,
		updates: make(chan update, 256),
		done:    make(chan struct{}),
	}
}

// Update records the participant count of a room. A count of zero removes
// the room from the hash.
func (m *Mirror) Update(roomID string, participants int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return
	}

	select {
	case m.updates <- update{roomID: roomID, participants: participants}:
	default:
		log.Printf("⚠️ Presence queue full, dropping update for room %s", roomID)
	}
}

// Rooms reads the mirrored occupancy
func (m *Mirror) Rooms(ctx context.Context) (map[string]int, error) {
	raw, err := m.client.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}

	rooms := make(map[string]int, len(raw))
	for roomID, value := range raw {
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		rooms[roomID] = n
	}
	return rooms, nil
}

// Close flushes pending updates and closes the Redis client
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.updates)
	m.mu.Unlock()

	<-m.done
	return m.client.Close()
}

func (m *Mirror) run() {
	defer close(m.done)

	for u := range m.updates {
		if err := m.apply(u); err != nil {
			log.Printf("Presence: failed to update room %s: %v", u.roomID, err)
		}
	}
}

func (m *Mirror) apply(u update) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if u.participants <= 0 {
		return m.client.HDel(ctx, m.key, u.roomID).Err()
	}

	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, m.key, u.roomID, u.participants)
	pipe.Expire(ctx, m.key, m.ttl)
	_, err := pipe.Exec(ctx)
	return err
}
