package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xscraper/pkg/backoff"
	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

func testConfig(url string) config.ConnectivityConfig {
	return config.ConnectivityConfig{
		ProbeURL:     url,
		ProbeTimeout: time.Second,
		PollInterval: 5 * time.Minute,
	}
}

func TestIsReachable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"no content", http.StatusNoContent, false},
		{"server error", http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			m := New(testConfig(server.URL), &backoff.RecordingWaiter{}, nil)
			assert.Equal(t, tt.want, m.IsReachable(context.Background()))
		})
	}
}

func TestIsReachableUnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	m := New(testConfig(url), &backoff.RecordingWaiter{}, nil)
	assert.False(t, m.IsReachable(context.Background()))
}

func TestIsReachableTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.ProbeTimeout = 20 * time.Millisecond
	m := New(cfg, &backoff.RecordingWaiter{}, nil)

	start := time.Now()
	assert.False(t, m.IsReachable(context.Background()))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAwaitReachableRecovers(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	waiter := &backoff.RecordingWaiter{}
	log := logger.NewTestLogger()
	m := New(testConfig(server.URL), waiter, log)

	require.NoError(t, m.AwaitReachable(context.Background()))

	// initial probe plus three polls
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	require.Len(t, waiter.Waits, 3)
	for _, w := range waiter.Waits {
		assert.Equal(t, 5*time.Minute, w.Duration)
		assert.Equal(t, "connectivity", w.Reason)
	}
	assert.True(t, log.HasMessage("Internet connection restored"))
}

func TestAwaitReachableAlreadyOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	waiter := &backoff.RecordingWaiter{}
	m := New(testConfig(server.URL), waiter, nil)

	require.NoError(t, m.AwaitReachable(context.Background()))
	assert.Empty(t, waiter.Waits)
}

func TestAwaitReachableCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	waiter := &backoff.RecordingWaiter{}
	m := New(testConfig(server.URL), waiter, nil)

	// the waiter reports cancellation on the first poll
	waiter.Err = context.Canceled
	err := m.AwaitReachable(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwaitReachableMaxWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.PollInterval = 5 * time.Millisecond
	cfg.MaxWait = 30 * time.Millisecond
	m := New(cfg, backoff.NewTimedWaiter(time.Second, nil), nil)

	err := m.AwaitReachable(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeConnectivity))
}
