package ratelimit

import (
	"sync"
	"time"
)

// One token is 1e9 nano-tokens, so a fill rate of N tokens/sec adds exactly
// N nano-tokens per elapsed nanosecond. Fixed-point arithmetic keeps refill
// deterministic under a fake clock (no float drift).
const nanosPerToken int64 = int64(time.Second)

const maxInt64 = int64(^uint64(0) >> 1)

// TokenBucket limits inbound signaling messages per connection. It refills
// at an integer tokens/sec rate from the provided Clock and never blocks.
type TokenBucket struct {
	mu sync.Mutex

	clock Clock

	capacity int64 // tokens
	rate     int64 // tokens/sec

	available int64 // nano-tokens
	last      time.Time
}

// NewTokenBucket returns a bucket that starts full. A nil clock falls back
// to the wall clock. Non-positive capacity or rate yields a bucket that
// admits nothing once drained.
func NewTokenBucket(clock Clock, capacity, rate int64) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if capacity < 0 {
		capacity = 0
	}
	if rate < 0 {
		rate = 0
	}
	return &TokenBucket{
		clock:     clock,
		capacity:  capacity,
		rate:      rate,
		available: toNanoTokens(capacity),
		last:      clock.Now(),
	}
}

// Allow consumes n tokens if available. n <= 0 always succeeds.
func (b *TokenBucket) Allow(n int64) bool {
	if n <= 0 {
		return true
	}
	cost := toNanoTokens(n)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.available < cost {
		return false
	}
	b.available -= cost
	return true
}

func (b *TokenBucket) refillLocked() {
	now := b.clock.Now()
	if now.Before(b.last) {
		// Clock went backwards; re-anchor without refilling.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}
	b.last = now

	if b.rate <= 0 || b.capacity <= 0 {
		return
	}

	full := toNanoTokens(b.capacity)
	if b.available >= full {
		b.available = full
		return
	}

	// rate tokens/sec == rate nano-tokens/ns under the fixed-point encoding.
	// Clamp instead of multiplying when the elapsed time alone is enough to
	// refill the bucket, which also avoids overflow on long idle periods.
	need := full - b.available
	if elapsed.Nanoseconds() >= need/b.rate {
		b.available = full
		return
	}
	b.available += elapsed.Nanoseconds() * b.rate
	if b.available > full {
		b.available = full
	}
}

func toNanoTokens(tokens int64) int64 {
	if tokens <= 0 {
		return 0
	}
	if tokens > maxInt64/nanosPerToken {
		return maxInt64
	}
	return tokens * nanosPerToken
}
