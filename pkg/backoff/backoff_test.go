package backoff

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xscraper/pkg/config"
)

func TestRateLimitSchedule(t *testing.T) {
	c := NewController(DefaultSchedule())

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1020 * time.Second},
		{1, 600 * time.Second},
		{2, 300 * time.Second},
		{3, 300 * time.Second},
		{10, 300 * time.Second},
		{-1, 1020 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.NextDelay(KindRateLimit, tt.attempt, time.Time{}), "attempt %d", tt.attempt)
	}
}

func TestRateLimitResetHint(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(DefaultSchedule()).WithClock(func() time.Time { return now })

	t.Run("future hint wins", func(t *testing.T) {
		d := c.NextDelay(KindRateLimit, 0, now.Add(4*time.Minute))
		assert.Equal(t, 4*time.Minute+5*time.Second, d)
	})

	t.Run("past hint falls back to ladder", func(t *testing.T) {
		d := c.NextDelay(KindRateLimit, 1, now.Add(-time.Minute))
		assert.Equal(t, 600*time.Second, d)
	})

	t.Run("hint ignored when disabled", func(t *testing.T) {
		s := DefaultSchedule()
		s.UseResetHint = false
		c := NewController(s).WithClock(func() time.Time { return now })
		assert.Equal(t, 1020*time.Second, c.NextDelay(KindRateLimit, 0, now.Add(time.Minute)))
	})
}

func TestFixedDelays(t *testing.T) {
	c := NewController(DefaultSchedule())
	assert.Equal(t, 900*time.Second, c.NextDelay(KindEmptyRun, 0, time.Time{}))
	assert.Equal(t, 1200*time.Second, c.NextDelay(KindQuota, 0, time.Time{}))
	assert.Equal(t, time.Duration(0), c.NextDelay(Kind(42), 0, time.Time{}))
}

func TestPacingWholeSeconds(t *testing.T) {
	c := NewController(DefaultSchedule()).WithRand(rand.New(rand.NewSource(1)))

	seen := map[time.Duration]bool{}
	for i := 0; i < 500; i++ {
		d := c.NextDelay(KindPacing, 0, time.Time{})
		require.GreaterOrEqual(t, d, 2*time.Second)
		require.LessOrEqual(t, d, 5*time.Second)
		require.Zero(t, d%time.Second)
		seen[d] = true
	}
	assert.Len(t, seen, 4)
}

func TestPacingSubSecond(t *testing.T) {
	s := DefaultSchedule()
	s.PacingMin = 10 * time.Millisecond
	s.PacingMax = 20 * time.Millisecond
	c := NewController(s)

	for i := 0; i < 100; i++ {
		d := c.NextDelay(KindPacing, 0, time.Time{})
		require.GreaterOrEqual(t, d, 10*time.Millisecond)
		require.LessOrEqual(t, d, 20*time.Millisecond)
	}

	s.PacingMax = s.PacingMin
	assert.Equal(t, 10*time.Millisecond, NewController(s).NextDelay(KindPacing, 0, time.Time{}))
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backoff.RateLimitSchedule = []time.Duration{time.Minute}
	cfg.Quota.Cooldown = 3 * time.Minute

	s := FromConfig(cfg.Backoff, cfg.Quota)
	assert.Equal(t, []time.Duration{time.Minute}, s.RateLimit)
	assert.Equal(t, 3*time.Minute, s.Quota)

	// the schedule owns its slice
	cfg.Backoff.RateLimitSchedule[0] = time.Hour
	assert.Equal(t, time.Minute, s.RateLimit[0])
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "rate_limit", KindRateLimit.String())
	assert.Equal(t, "empty_run", KindEmptyRun.String())
	assert.Equal(t, "pacing", KindPacing.String())
	assert.Equal(t, "quota", KindQuota.String())
}

func TestRecordingWaiter(t *testing.T) {
	w := &RecordingWaiter{}
	require.NoError(t, w.Wait(context.Background(), time.Minute, "quota"))
	require.NoError(t, w.Wait(context.Background(), time.Second, "pacing"))

	assert.Equal(t, 1, w.Count("quota"))
	assert.Equal(t, time.Minute, w.Waits[0].Duration)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Wait(ctx, time.Second, "pacing"), context.Canceled)
}
