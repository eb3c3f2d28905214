package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiterBurst(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter := newLimiter(1, 3, clock.Now)

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("Request %d within burst should be allowed", i)
		}
	}
	if limiter.Allow() {
		t.Error("Request beyond burst should be denied")
	}
}

func TestLimiterRefill(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter := newLimiter(2, 2, clock.Now)

	limiter.AllowN(2)
	if limiter.Allow() {
		t.Fatal("Bucket should be empty")
	}

	clock.Advance(500 * time.Millisecond)
	if !limiter.Allow() {
		t.Error("One token should have been refilled after 500ms at 2/s")
	}

	clock.Advance(time.Hour)
	if !limiter.AllowN(2) {
		t.Error("Bucket should refill up to burst")
	}
	if limiter.Allow() {
		t.Error("Refill must be capped at burst")
	}
}

func TestLimiterAllowN(t *testing.T) {
	limiter := NewLimiter(1, 5)

	if limiter.AllowN(6) {
		t.Error("AllowN above burst should be denied")
	}
	if !limiter.AllowN(5) {
		t.Error("AllowN at burst should be allowed")
	}
}

func TestClientLimitersGet(t *testing.T) {
	cl := NewClientLimiters(1, 1)
	defer cl.Stop()

	a := cl.Get("10.0.0.1")
	if a != cl.Get("10.0.0.1") {
		t.Error("Same client should share a limiter")
	}
	if a == cl.Get("10.0.0.2") {
		t.Error("Different clients should get different limiters")
	}

	if !a.Allow() || a.Allow() {
		t.Error("Limiter should honour burst of 1")
	}
	if !cl.Get("10.0.0.2").Allow() {
		t.Error("Other clients must not be affected")
	}

	cl.Remove("10.0.0.1")
	if cl.Len() != 1 {
		t.Errorf("Expected 1 limiter after remove, got %d", cl.Len())
	}
}

func TestClientLimitersEvictIdle(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cl := NewClientLimiters(1, 1)
	defer cl.Stop()
	cl.now = clock.Now

	cl.Get("old").Allow()
	clock.Advance(cl.idleTTL / 2)
	cl.Get("recent").Allow()
	clock.Advance(cl.idleTTL/2 + time.Second)

	if evicted := cl.evictIdle(); evicted != 1 {
		t.Errorf("Expected 1 eviction, got %d", evicted)
	}
	if cl.Len() != 1 {
		t.Errorf("Expected recent limiter to remain, got %d limiters", cl.Len())
	}
}

func TestClientLimitersStopTwice(t *testing.T) {
	cl := NewClientLimiters(1, 1)
	cl.Stop()
	cl.Stop()
}
