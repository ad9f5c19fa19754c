package main

import (
	"context"
	"errors"
)

// reportedError marks an error already shown to the user
type reportedError struct {
	err error
}

func (r *reportedError) Error() string { return r.err.Error() }
func (r *reportedError) Unwrap() error { return r.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

func isReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// exitCode maps a command outcome to the process exit status. An interrupted
// run has already persisted everything it fetched, so it exits cleanly
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}
