// Package connectivity probes general network reachability so the harvester
// can tell "offline" apart from "X is refusing us".
package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"xscraper/pkg/backoff"
	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

// Monitor checks reachability of a probe URL
type Monitor struct {
	client       *http.Client
	probeURL     string
	timeout      time.Duration
	pollInterval time.Duration
	maxWait      time.Duration
	waiter       backoff.Waiter
	logger       logger.Logger
}

// New creates a Monitor from the connectivity config section
func New(cfg config.ConnectivityConfig, waiter backoff.Waiter, log logger.Logger) *Monitor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Monitor{
		client:       &http.Client{},
		probeURL:     cfg.ProbeURL,
		timeout:      cfg.ProbeTimeout,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
		waiter:       waiter,
		logger:       log.WithField("component", "connectivity"),
	}
}

// WithHTTPClient replaces the probe client
func (m *Monitor) WithHTTPClient(c *http.Client) *Monitor {
	m.client = c
	return m
}

// IsReachable performs one bounded GET and reports true only on HTTP 200
func (m *Monitor) IsReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		m.logger.WithError(err).Error("Invalid probe request")
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.WithError(err).Debug("Probe failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// AwaitReachable blocks until the probe succeeds, polling every poll
// interval. It returns ctx.Err() on cancellation and a connectivity error
// once the configured max wait is exceeded
func (m *Monitor) AwaitReachable(ctx context.Context) error {
	if m.IsReachable(ctx) {
		return nil
	}

	start := time.Now()
	m.logger.WarnWithFields("Internet connection lost, waiting for reconnection", map[string]interface{}{
		"probe":         m.probeURL,
		"poll_interval": m.pollInterval,
	})

	for attempt := 1; ; attempt++ {
		wait := m.pollInterval
		if m.maxWait > 0 {
			left := m.maxWait - time.Since(start)
			if left <= 0 {
				return errs.NewConnectivity(
					fmt.Sprintf("network unreachable for more than %s", m.maxWait), nil)
			}
			if left < wait {
				wait = left
			}
		}

		if err := m.waiter.Wait(ctx, wait, "connectivity"); err != nil {
			return err
		}

		if m.IsReachable(ctx) {
			m.logger.InfoWithFields("Internet connection restored", map[string]interface{}{
				"polls":   attempt,
				"offline": time.Since(start).Round(time.Second),
			})
			return nil
		}
		m.logger.InfoWithFields("Still offline", map[string]interface{}{"polls": attempt})
	}
}
