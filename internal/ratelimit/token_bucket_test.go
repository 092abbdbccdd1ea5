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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenBucket_StartsFullAndDrains(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 3, 1)

	for i := 0; i < 3; i++ {
		if !b.Allow(1) {
			t.Fatalf("Allow(1) call %d = false, want true", i+1)
		}
	}
	if b.Allow(1) {
		t.Fatalf("Allow(1) after drain = true, want false")
	}
}

func TestTokenBucket_RefillsAtRate(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 10, 2)

	if !b.Allow(10) {
		t.Fatalf("Allow(10) on full bucket = false")
	}
	if b.Allow(1) {
		t.Fatalf("Allow(1) on empty bucket = true")
	}

	clk.Advance(500 * time.Millisecond)
	if !b.Allow(1) {
		t.Fatalf("Allow(1) after 500ms at 2/s = false, want true")
	}
	if b.Allow(1) {
		t.Fatalf("second Allow(1) after 500ms = true, want false")
	}
}

func TestTokenBucket_ClampsToCapacity(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 2, 100)

	if !b.Allow(2) {
		t.Fatalf("Allow(2) on full bucket = false")
	}
	clk.Advance(time.Hour)
	if !b.Allow(2) {
		t.Fatalf("Allow(2) after long idle = false")
	}
	if b.Allow(1) {
		t.Fatalf("Allow(1) beyond capacity = true, want false")
	}
}

func TestTokenBucket_ClockGoingBackwardsDoesNotRefill(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	b := NewTokenBucket(clk, 1, 1)

	if !b.Allow(1) {
		t.Fatalf("Allow(1) on full bucket = false")
	}
	clk.Advance(-time.Minute)
	if b.Allow(1) {
		t.Fatalf("Allow(1) after clock regression = true, want false")
	}
}

func TestTokenBucket_NonPositiveCostAlwaysAllowed(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 0, 0)

	if !b.Allow(0) {
		t.Fatalf("Allow(0) = false, want true")
	}
	if !b.Allow(-5) {
		t.Fatalf("Allow(-5) = false, want true")
	}
	if b.Allow(1) {
		t.Fatalf("Allow(1) on zero-capacity bucket = true, want false")
	}
}
