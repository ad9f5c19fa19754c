package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

func fastPolicy() Exponential {
	return Exponential{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestExponentialDelay(t *testing.T) {
	e := Exponential{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, time.Duration(0), e.Delay(0))
	assert.Equal(t, 100*time.Millisecond, e.Delay(1))
	assert.Equal(t, 200*time.Millisecond, e.Delay(2))
	assert.Equal(t, 800*time.Millisecond, e.Delay(4))
	assert.Equal(t, time.Second, e.Delay(5))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(errs.NewTransient("503", nil)))
	assert.True(t, Retryable(errs.NewConnectivity("dial", nil)))
	assert.False(t, Retryable(errs.NewRateLimited("429", time.Time{})))
	assert.False(t, Retryable(errs.NewAuth("denied", nil)))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(errors.New("plain")))
	assert.False(t, Retryable(nil))
}

func TestRetrySucceedsAfterTransient(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), 3, fastPolicy(), logger.NewNopLogger(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errs.NewTransient("flaky", nil)
		}
		return "token", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "token", got)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), 5, fastPolicy(), nil, func() (int, error) {
		calls++
		return 0, errs.NewAuth("bad password", nil)
	})

	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	assert.Equal(t, 1, calls)
}

func TestRetryExhausts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), 2, fastPolicy(), nil, func() (int, error) {
		calls++
		return 0, errs.NewTransient("still down", nil)
	})

	assert.True(t, errs.Is(err, errs.ErrorTypeTransient))
	assert.Equal(t, 2, calls)
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, 3, DefaultExponential(), nil, func() (int, error) {
		return 0, errs.NewTransient("down", nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
}
