package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogStateTransition records a driver state change
func LogStateTransition(l Logger, from, to string, fields map[string]interface{}) {
	merged := map[string]interface{}{"from": from, "to": to}
	for k, v := range fields {
		merged[k] = v
	}
	l.DebugWithFields("State transition", merged)
}

// LogRateLimit records a rate limit signal and the chosen cool-down
func LogRateLimit(l Logger, attempt int, wait time.Duration, resetAt time.Time) {
	fields := map[string]interface{}{
		"attempt": attempt,
		"wait":    wait,
		"action":  "rate_limited",
	}
	if !resetAt.IsZero() {
		fields["reset_at"] = resetAt
	}
	l.WarnWithFields("Rate limit reached, backing off", fields)
}

// LogCooldown records the start of a fixed cool-down such as the empty-run pause
func LogCooldown(l Logger, kind string, wait time.Duration, fields map[string]interface{}) {
	merged := map[string]interface{}{"kind": kind, "wait": wait}
	for k, v := range fields {
		merged[k] = v
	}
	l.InfoWithFields("Cooling down", merged)
}

// LogBatch records the outcome of one processed page at debug level; the
// sink already reports the saved count
func LogBatch(l Logger, page, saved, total int) {
	l.DebugWithFields("Batch processed", map[string]interface{}{
		"page":        page,
		"saved":       saved,
		"total_saved": total,
	})
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
