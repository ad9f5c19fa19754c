package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xscraper/pkg/backoff"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/post"
	"xscraper/pkg/provider"
)

// Monitor reports and waits for network reachability
type Monitor interface {
	IsReachable(ctx context.Context) bool
	AwaitReachable(ctx context.Context) error
}

// Sink receives posts in arrival order
type Sink interface {
	Accept(ctx context.Context, p post.Post) error
	FlushProgress() int
	TotalSaved() int
	BatchSaved() int
	Skipped() int
}

// Checkpointer persists the position after each processed page
type Checkpointer interface {
	Record(cursor string, pages, totalSaved int) error
}

// Driver runs the page loop for one handle. It is not safe for concurrent Runs
type Driver struct {
	cfg        RunConfig
	provider   provider.Provider
	monitor    Monitor
	backoff    *backoff.Controller
	waiter     backoff.Waiter
	sink       Sink
	checkpoint Checkpointer
	logger     logger.Logger

	state     RunState
	result    Result
	refreshed bool
}

// New creates a driver; cfg should already be validated
func New(cfg RunConfig, p provider.Provider, m Monitor, ctrl *backoff.Controller, w backoff.Waiter, s Sink, log logger.Logger) *Driver {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Driver{
		cfg:      cfg,
		provider: p,
		monitor:  m,
		backoff:  ctrl,
		waiter:   w,
		sink:     s,
		logger:   log.WithFields(map[string]interface{}{"component": "harvest", "handle": cfg.Handle}),
		state:    RunState{Phase: StateInit},
	}
}

// WithCheckpointer enables position recording after every page
func (d *Driver) WithCheckpointer(c Checkpointer) *Driver {
	d.checkpoint = c
	return d
}

// State returns a copy of the current run state
func (d *Driver) State() RunState {
	return d.state
}

func (d *Driver) transition(to State) {
	if d.state.Phase == to {
		return
	}
	logger.LogStateTransition(d.logger, string(d.state.Phase), string(to), map[string]interface{}{
		"page":   d.state.Pages,
		"cursor": d.state.Cursor,
	})
	d.state.Phase = to
}

// Run harvests until the timeline is exhausted, a stop condition holds,
// ctx is cancelled or a fatal error occurs. Cancellation returns the
// partial result with ctx's error
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	d.state = RunState{Phase: StateInit, Cursor: d.cfg.StartCursor, Pages: d.cfg.StartPages}
	d.result = Result{}
	d.refreshed = false

	d.logger.InfoWithFields("Starting harvest", map[string]interface{}{
		"stop_on_empty": d.cfg.StopOnEmpty,
		"max_pages":     d.cfg.MaxPages,
		"resumed":       d.cfg.StartCursor != "",
	})

	reason, err := d.loop(ctx)
	if err != nil {
		if isCancelled(ctx, err) {
			reason = ReasonCancelled
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			d.transition(StateDone)
		} else {
			reason = ReasonFatal
			d.transition(StateFatal)
		}
	} else {
		d.transition(StateDone)
	}

	res := d.finish(reason, time.Since(start))
	fields := map[string]interface{}{
		"reason":      res.Reason,
		"pages":       res.Pages,
		"total_saved": res.TotalSaved,
		"skipped":     res.Skipped,
	}
	if err != nil && reason == ReasonFatal {
		d.logger.WithError(err).ErrorWithFields("Harvest failed", fields)
	} else {
		d.logger.InfoWithFields("Harvest finished", fields)
	}
	return res, err
}

func (d *Driver) finish(reason string, elapsed time.Duration) *Result {
	d.syncCounts()
	d.result.Pages = d.state.Pages
	d.result.TotalSaved = d.state.TotalSaved
	d.result.Skipped = d.sink.Skipped()
	d.result.Reason = reason
	d.result.Cursor = d.state.Cursor
	d.result.Duration = elapsed
	res := d.result
	return &res
}

func (d *Driver) syncCounts() {
	d.state.TotalSaved = d.sink.TotalSaved()
	d.state.BatchSaved = d.sink.BatchSaved()
}

// authenticate returns a nil session without error when the failure is
// worth retrying before the next fetch
func (d *Driver) authenticate(ctx context.Context) (provider.Session, error) {
	d.transition(StateAuthenticating)
	session, err := d.provider.Authenticate(ctx)
	if err == nil {
		d.logger.Info("Authenticated")
		return session, nil
	}
	if isCancelled(ctx, err) || errs.Is(err, errs.ErrorTypeAuth) {
		return nil, err
	}
	d.logger.WithError(err).Warn("Authentication failed, retrying before the next fetch")
	return nil, nil
}

func (d *Driver) loop(ctx context.Context) (string, error) {
	session, err := d.authenticate(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		if err := d.emptyPage(ctx, false); err != nil {
			return "", err
		}
	}

	first := true
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if d.cfg.MaxPages > 0 && d.state.Pages >= d.cfg.MaxPages {
			d.logger.InfoWithFields("Page limit reached", map[string]interface{}{"max_pages": d.cfg.MaxPages})
			return ReasonMaxPages, nil
		}

		d.transition(StateFetching)
		if !first {
			if err := d.waiter.Wait(ctx, d.backoff.NextDelay(backoff.KindPacing, 0, time.Time{}), backoff.KindPacing.String()); err != nil {
				return "", err
			}
		}
		first = false

		if !d.monitor.IsReachable(ctx) {
			if err := d.awaitNetwork(ctx); err != nil {
				return "", err
			}
		}

		if session == nil {
			if session, err = d.authenticate(ctx); err != nil {
				return "", err
			}
			if session == nil {
				// failed logins share the empty-run cool-down with failed fetches
				if err := d.emptyPage(ctx, false); err != nil {
					return "", err
				}
				continue
			}
			d.transition(StateFetching)
		}

		page, err := session.FetchPage(ctx, d.cfg.Handle, d.state.Cursor)
		if err != nil {
			if errs.Is(err, errs.ErrorTypeAuth) && d.refreshSession(err) {
				session = nil
				continue
			}
			retry, fatal := d.handleFetchError(ctx, err)
			if fatal != nil {
				return "", fatal
			}
			if retry {
				continue
			}
			// other failures count as an empty page on the same cursor,
			// but never end the run
			d.transition(StateProcessing)
			if err := d.emptyPage(ctx, false); err != nil {
				return "", err
			}
			continue
		}

		d.state.RateLimitAttempt = 0
		d.state.Pages++
		d.transition(StateProcessing)

		if page.Len() == 0 {
			d.logger.InfoWithFields("Empty page", map[string]interface{}{
				"page":              d.state.Pages,
				"consecutive_empty": d.state.ConsecutiveEmpty + 1,
			})
			if d.cfg.StopOnEmpty {
				return ReasonEmptyPage, nil
			}
			if err := d.emptyPage(ctx, true); err != nil {
				return "", err
			}
			continue
		}

		reason, err := d.processPage(ctx, page)
		if err != nil || reason != "" {
			return reason, err
		}
	}
}

// handleFetchError deals with rate limits, connectivity loss and auth
// failures. retry means the same fetch should be attempted again; a
// non-nil fatal ends the run
func (d *Driver) handleFetchError(ctx context.Context, err error) (retry bool, fatal error) {
	if isCancelled(ctx, err) {
		return false, err
	}

	switch errs.TypeOf(err) {
	case errs.ErrorTypeRateLimit:
		d.transition(StateBackingOff)
		resetAt := errs.ResetHint(err)
		wait := d.backoff.NextDelay(backoff.KindRateLimit, d.state.RateLimitAttempt, resetAt)
		logger.LogRateLimit(d.logger, d.state.RateLimitAttempt, wait, resetAt)
		d.state.RateLimitAttempt++
		d.result.RateLimitHits++
		if err := d.waiter.Wait(ctx, wait, backoff.KindRateLimit.String()); err != nil {
			return false, err
		}
		return true, nil

	case errs.ErrorTypeConnectivity:
		d.logger.WithError(err).Warn("Connection lost during fetch")
		if err := d.awaitNetwork(ctx); err != nil {
			return false, err
		}
		return true, nil

	case errs.ErrorTypeAuth:
		return false, fmt.Errorf("fetch page: %w", err)

	default:
		d.logger.WithError(err).WarnWithFields("Fetch failed, treating as empty page", map[string]interface{}{
			"page":   d.state.Pages + 1,
			"cursor": d.state.Cursor,
		})
		return false, nil
	}
}

// refreshSession discards a rejected persisted session once per run so the
// next authentication logs in again
func (d *Driver) refreshSession(cause error) bool {
	r, ok := d.provider.(provider.Refresher)
	if !ok || d.refreshed {
		return false
	}
	if !r.Discard() {
		return false
	}
	d.refreshed = true
	d.logger.WithError(cause).Warn("Stored session rejected, authenticating again")
	return true
}

func (d *Driver) awaitNetwork(ctx context.Context) error {
	d.transition(StateBackingOff)
	if err := d.monitor.AwaitReachable(ctx); err != nil {
		if isCancelled(ctx, err) {
			return err
		}
		return fmt.Errorf("await connectivity: %w", err)
	}
	return nil
}

// emptyPage counts an empty result and cools down once the limit is hit
func (d *Driver) emptyPage(ctx context.Context, fromResponse bool) error {
	d.state.ConsecutiveEmpty++
	if d.state.ConsecutiveEmpty < d.cfg.EmptyBatchLimit {
		return nil
	}

	d.transition(StateBackingOff)
	wait := d.backoff.NextDelay(backoff.KindEmptyRun, 0, time.Time{})
	logger.LogCooldown(d.logger, backoff.KindEmptyRun.String(), wait, map[string]interface{}{
		"consecutive_empty": d.state.ConsecutiveEmpty,
		"from_response":     fromResponse,
	})
	d.result.EmptyCooldowns++
	d.state.ConsecutiveEmpty = 0
	return d.waiter.Wait(ctx, wait, backoff.KindEmptyRun.String())
}

// processPage writes every post in order and advances the cursor. It
// returns a non-empty reason when the run should end
func (d *Driver) processPage(ctx context.Context, page *provider.Page) (string, error) {
	d.state.ConsecutiveEmpty = 0

	stopped := false
	for _, p := range page.Posts {
		if err := d.sink.Accept(ctx, p); err != nil {
			return "", err
		}
		if d.beforeThreshold(p) {
			stopped = true
			break
		}
	}

	saved := d.sink.FlushProgress()
	d.syncCounts()
	logger.LogBatch(d.logger, d.state.Pages, saved, d.state.TotalSaved)

	if stopped {
		d.result.StoppedEarly = true
		d.logger.InfoWithFields("Reached a post older than the threshold, stopping", map[string]interface{}{
			"stop_before": d.cfg.StopBefore.Format("2006-01-02"),
		})
		return ReasonStopBefore, nil
	}

	d.state.Cursor = page.Cursor
	if d.checkpoint != nil {
		if err := d.checkpoint.Record(d.state.Cursor, d.state.Pages, d.state.TotalSaved); err != nil {
			d.logger.WithError(err).Warn("Failed to record checkpoint")
		}
	}

	if page.Cursor == "" {
		d.logger.Info("No further pages")
		return ReasonExhausted, nil
	}
	return "", nil
}

func (d *Driver) beforeThreshold(p post.Post) bool {
	if d.cfg.StopBefore.IsZero() {
		return false
	}
	created, ok := p.Created()
	return ok && created.Before(d.cfg.StopBefore)
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
