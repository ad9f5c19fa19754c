package backoff

import (
	"context"
	"time"

	"xscraper/pkg/logger"
	"xscraper/pkg/ui"
)

// Waiter blocks for a cool-down
type Waiter interface {
	// Wait sleeps for d or until ctx is done, returning ctx.Err() in that case
	Wait(ctx context.Context, d time.Duration, reason string) error
}

// TimedWaiter waits on a single timer and logs the remaining time on a
// fixed cadence
type TimedWaiter struct {
	interval time.Duration
	logger   logger.Logger
}

// NewTimedWaiter creates a waiter reporting progress every interval
func NewTimedWaiter(interval time.Duration, log logger.Logger) *TimedWaiter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &TimedWaiter{interval: interval, logger: log}
}

// Wait implements Waiter
func (w *TimedWaiter) Wait(ctx context.Context, d time.Duration, reason string) error {
	if d <= 0 {
		return ctx.Err()
	}

	deadline := time.Now().Add(d)
	w.logger.InfoWithFields("Waiting", map[string]interface{}{
		"reason":    reason,
		"duration":  d,
		"remaining": ui.FormatRemaining(d),
	})

	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			w.logger.DebugWithFields("Wait finished", map[string]interface{}{"reason": reason})
			return nil
		case <-ticker.C:
			w.logger.InfoWithFields("Waiting...", map[string]interface{}{
				"reason":    reason,
				"remaining": ui.FormatRemaining(time.Until(deadline)),
			})
		}
	}
}

// Sleep waits for d without progress reporting
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordingWaiter records requested waits and returns immediately
type RecordingWaiter struct {
	Waits []RecordedWait
	// Err, when set, is returned from every Wait
	Err error
}

// RecordedWait is one call captured by RecordingWaiter
type RecordedWait struct {
	Duration time.Duration
	Reason   string
}

// Wait implements Waiter
func (r *RecordingWaiter) Wait(ctx context.Context, d time.Duration, reason string) error {
	r.Waits = append(r.Waits, RecordedWait{Duration: d, Reason: reason})
	if r.Err != nil {
		return r.Err
	}
	return ctx.Err()
}

// Count returns how many recorded waits had the given reason
func (r *RecordingWaiter) Count(reason string) int {
	n := 0
	for _, w := range r.Waits {
		if w.Reason == reason {
			n++
		}
	}
	return n
}
