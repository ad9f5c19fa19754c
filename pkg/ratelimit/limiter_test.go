package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestTokenBucket(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := newTokenBucket(3, 15*time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		require.True(t, tb.Allow(), "request %d", i)
	}
	assert.False(t, tb.Allow())
	assert.Equal(t, 0, tb.Remaining())
	assert.Equal(t, clock.Now().Add(15*time.Minute), tb.ResetAt())

	clock.Advance(14 * time.Minute)
	assert.False(t, tb.Allow())

	clock.Advance(time.Minute)
	assert.True(t, tb.Allow())
	assert.Equal(t, 2, tb.Remaining())
}

func TestTokenBucketReset(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestTokenBucketObserve(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: start}
	tb := newTokenBucket(50, 15*time.Minute, clock.Now)

	reset := start.Add(5 * time.Minute)
	tb.Observe(1, reset)

	assert.Equal(t, 1, tb.Remaining())
	assert.Equal(t, reset, tb.ResetAt())
	require.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	// a larger server count never loosens the bucket
	tb.Observe(40, time.Time{})
	assert.Equal(t, 0, tb.Remaining())

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 50, tb.Remaining())
}

func TestTokenBucketConcurrent(t *testing.T) {
	tb := NewTokenBucket(100, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tb.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, allowed)
}
