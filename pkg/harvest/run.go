package harvest

import (
	"fmt"
	"strings"
	"time"

	"xscraper/pkg/config"
)

// RunConfig holds the per-run policy
type RunConfig struct {
	Handle string
	// StopOnEmpty ends the run on the first empty page instead of counting
	// it towards the empty-run cool-down
	StopOnEmpty     bool
	EmptyBatchLimit int
	// StopBefore stops after the first post created strictly before it; zero disables
	StopBefore time.Time
	// MaxPages bounds successful responses; 0 is unlimited
	MaxPages int
	// StartCursor and StartPages resume a checkpointed run
	StartCursor string
	StartPages  int
}

// RunConfigFromConfig extracts the run policy from the loaded configuration
func RunConfigFromConfig(cfg *config.Config) (RunConfig, error) {
	stopBefore, err := cfg.StopBeforeTime()
	if err != nil {
		return RunConfig{}, err
	}
	rc := RunConfig{
		Handle:          strings.TrimPrefix(cfg.Account.Handle, "@"),
		StopOnEmpty:     cfg.Pagination.StopOnEmpty,
		EmptyBatchLimit: cfg.Pagination.EmptyBatchLimit,
		StopBefore:      stopBefore,
		MaxPages:        cfg.Pagination.MaxPages,
	}
	return rc, rc.Validate()
}

// Validate checks the run policy
func (c RunConfig) Validate() error {
	if c.Handle == "" {
		return fmt.Errorf("handle is required")
	}
	if c.EmptyBatchLimit < 1 {
		return fmt.Errorf("empty batch limit must be at least 1, got %d", c.EmptyBatchLimit)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	return nil
}

// State is a driver phase
type State string

const (
	StateInit           State = "INIT"
	StateAuthenticating State = "AUTHENTICATING"
	StateFetching       State = "FETCHING"
	StateProcessing     State = "PROCESSING"
	StateBackingOff     State = "BACKING_OFF"
	StateDone           State = "DONE"
	StateFatal          State = "FATAL"
)

// RunState is the driver's mutable position; it lives for one run
type RunState struct {
	Phase            State
	Cursor           string
	Pages            int
	TotalSaved       int
	BatchSaved       int
	ConsecutiveEmpty int
	RateLimitAttempt int
}

// Reasons a run ends
const (
	ReasonExhausted  = "exhausted"
	ReasonEmptyPage  = "empty_page"
	ReasonStopBefore = "stop_before"
	ReasonMaxPages   = "max_pages"
	ReasonCancelled  = "cancelled"
	ReasonFatal      = "fatal"
)

// Result summarises a finished run
type Result struct {
	Pages          int
	TotalSaved     int
	Skipped        int
	EmptyCooldowns int
	RateLimitHits  int
	StoppedEarly   bool
	Reason         string
	Cursor         string
	Duration       time.Duration
}
