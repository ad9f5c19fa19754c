package backoff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

// Exponential is a short doubling backoff for request-level retries, such
// as the steps of the login flow
type Exponential struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultExponential returns 1s doubling up to 30s
func DefaultExponential() Exponential {
	return Exponential{BaseDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}
}

// Delay returns the wait before retry number attempt (1-based)
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(e.BaseDelay) * math.Pow(e.Multiplier, float64(attempt-1))
	if delay > float64(e.MaxDelay) {
		delay = float64(e.MaxDelay)
	}
	return time.Duration(delay)
}

// Retryable reports whether a request-level retry makes sense for err.
// Rate limits are left to the pagination driver
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch errs.TypeOf(err) {
	case errs.ErrorTypeTransient, errs.ErrorTypeConnectivity:
		return true
	default:
		return false
	}
}

// Retry runs op up to maxAttempts times while it fails with a retryable error
func Retry[T any](ctx context.Context, maxAttempts int, policy Exponential, log logger.Logger, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; maxAttempts <= 0 || attempt <= maxAttempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Retryable(err) || attempt == maxAttempts {
			break
		}

		delay := policy.Delay(attempt)
		if log != nil {
			log.WarnWithFields("Retrying request", map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
				"error":   err.Error(),
			})
		}
		if err := Sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return zero, lastErr
}
