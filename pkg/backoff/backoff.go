package backoff

import (
	"math/rand"
	"sync"
	"time"

	"xscraper/pkg/config"
)

// Kind selects which delay rule applies
type Kind int

const (
	// KindRateLimit is the escalating cool-down after a rate limit signal
	KindRateLimit Kind = iota
	// KindEmptyRun is the cool-down after consecutive empty pages
	KindEmptyRun
	// KindPacing is the short jitter between page requests
	KindPacing
	// KindQuota is the pause after the soft record quota is reached
	KindQuota
)

func (k Kind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindEmptyRun:
		return "empty_run"
	case KindPacing:
		return "pacing"
	case KindQuota:
		return "quota"
	default:
		return "unknown"
	}
}

// Schedule holds every delay the harvester uses
type Schedule struct {
	// RateLimit is indexed by attempt; the last step repeats
	RateLimit    []time.Duration
	UseResetHint bool
	ResetMargin  time.Duration
	EmptyRun     time.Duration
	PacingMin    time.Duration
	PacingMax    time.Duration
	Quota        time.Duration
}

// DefaultSchedule returns the stock 17m/10m/5m rate limit ladder
func DefaultSchedule() Schedule {
	return FromConfig(config.DefaultConfig().Backoff, config.DefaultConfig().Quota)
}

// FromConfig builds a Schedule from the backoff and quota config sections
func FromConfig(b config.BackoffConfig, q config.QuotaConfig) Schedule {
	return Schedule{
		RateLimit:    append([]time.Duration(nil), b.RateLimitSchedule...),
		UseResetHint: b.UseResetHint,
		ResetMargin:  b.ResetMargin,
		EmptyRun:     b.EmptyRunCooldown,
		PacingMin:    b.PacingMin,
		PacingMax:    b.PacingMax,
		Quota:        q.Cooldown,
	}
}

// Controller computes delays; it holds no per-run state
type Controller struct {
	schedule Schedule
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewController creates a Controller for the schedule
func NewController(schedule Schedule) *Controller {
	return &Controller{
		schedule: schedule,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock replaces the time source used to evaluate reset hints
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// WithRand replaces the pacing random source
func (c *Controller) WithRand(r *rand.Rand) *Controller {
	c.mu.Lock()
	c.rng = r
	c.mu.Unlock()
	return c
}

// Schedule returns the configured schedule
func (c *Controller) Schedule() Schedule {
	return c.schedule
}

// NextDelay returns how long to wait for kind. attempt is the zero-based
// rate limit retry count; resetHint is the server reset time, zero if unknown
func (c *Controller) NextDelay(kind Kind, attempt int, resetHint time.Time) time.Duration {
	switch kind {
	case KindRateLimit:
		return c.rateLimitDelay(attempt, resetHint)
	case KindEmptyRun:
		return c.schedule.EmptyRun
	case KindPacing:
		return c.pacingDelay()
	case KindQuota:
		return c.schedule.Quota
	default:
		return 0
	}
}

func (c *Controller) rateLimitDelay(attempt int, resetHint time.Time) time.Duration {
	if c.schedule.UseResetHint && !resetHint.IsZero() {
		if until := resetHint.Sub(c.now()); until > 0 {
			return until + c.schedule.ResetMargin
		}
	}

	steps := c.schedule.RateLimit
	if len(steps) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(steps) {
		attempt = len(steps) - 1
	}
	return steps[attempt]
}

// pacingDelay draws whole seconds from [PacingMin, PacingMax] when both bounds
// are whole seconds, otherwise a uniform duration in the range
func (c *Controller) pacingDelay() time.Duration {
	lo, hi := c.schedule.PacingMin, c.schedule.PacingMax
	if hi <= lo {
		return lo
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if lo%time.Second == 0 && hi%time.Second == 0 {
		span := int64((hi - lo) / time.Second)
		return lo + time.Duration(c.rng.Int63n(span+1))*time.Second
	}
	return lo + time.Duration(c.rng.Int63n(int64(hi-lo)+1))
}
