package ratelimit

import (
	"sync"
	"time"
)

// Budget is a non-blocking request allowance
type Budget interface {
	// Allow consumes one request if any remain
	Allow() bool
	// ResetAt returns when the allowance next refills
	ResetAt() time.Time
	// Reset restores the full allowance
	Reset()
}

// TokenBucket grants capacity requests per refill period; the whole bucket
// refills at once when the period elapses, matching X's fixed windows
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	now          func() time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a full bucket
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return newTokenBucket(capacity, refillPeriod, time.Now)
}

func newTokenBucket(capacity int, refillPeriod time.Duration, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   now(),
		now:          now,
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Remaining returns the requests left in the current period
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

// ResetAt returns the end of the current period
func (tb *TokenBucket) ResetAt() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.lastRefill.Add(tb.refillPeriod)
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// Observe aligns the bucket with a server-reported allowance
func (tb *TokenBucket) Observe(remaining int, resetAt time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if remaining >= 0 && remaining < tb.tokens {
		tb.tokens = remaining
	}
	if !resetAt.IsZero() {
		tb.lastRefill = resetAt.Add(-tb.refillPeriod)
	}
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}
