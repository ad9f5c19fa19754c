package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the closed set of failure kinds the harvester handles
type ErrorType string

const (
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeTransient    ErrorType = "transient"
	ErrorTypeConnectivity ErrorType = "connectivity"
	ErrorTypeProjection   ErrorType = "projection"
	ErrorTypeFileIO       ErrorType = "file_io"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error represents a classified failure with optional HTTP status and reset hint
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// ResetAt is the server-supplied time the rate limit lifts, zero if unknown
	ResetAt time.Time
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasResetHint reports whether the error carries a usable server reset time
func (e *Error) HasResetHint() bool {
	return !e.ResetAt.IsZero()
}

// NewAuth creates an authentication failure
func NewAuth(msg string, err error) *Error {
	return &Error{Type: ErrorTypeAuth, Message: msg, Err: err}
}

// NewRateLimited creates a rate limit signal; resetAt may be zero
func NewRateLimited(msg string, resetAt time.Time) *Error {
	return &Error{Type: ErrorTypeRateLimit, Message: msg, Code: http.StatusTooManyRequests, ResetAt: resetAt}
}

// NewTransient creates a retryable fetch failure
func NewTransient(msg string, err error) *Error {
	return &Error{Type: ErrorTypeTransient, Message: msg, Err: err}
}

// NewConnectivity creates a network reachability failure
func NewConnectivity(msg string, err error) *Error {
	return &Error{Type: ErrorTypeConnectivity, Message: msg, Err: err}
}

// NewProjection creates a per-record extraction failure
func NewProjection(msg string, err error) *Error {
	return &Error{Type: ErrorTypeProjection, Message: msg, Err: err}
}

// NewFileIO creates an output file failure
func NewFileIO(msg string, err error) *Error {
	return &Error{Type: ErrorTypeFileIO, Message: msg, Err: err}
}

// FromStatusCode classifies a non-200 HTTP response
func FromStatusCode(code int, msg string) *Error {
	var t ErrorType
	switch {
	case code == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		t = ErrorTypeAuth
	case code >= 500:
		t = ErrorTypeTransient
	default:
		t = ErrorTypeUnknown
	}
	return &Error{Type: t, Message: msg, Code: code}
}

// TypeOf returns the classified type of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err is a classified error of type t
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// ResetHint extracts the rate limit reset time from err, zero if none
func ResetHint(err error) time.Time {
	var e *Error
	if stderrors.As(err, &e) {
		return e.ResetAt
	}
	return time.Time{}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeConnectivity:
		return true
	default:
		return false
	}
}

// IsFatal checks if an error type terminates a run
func IsFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeAuth, ErrorTypeFileIO:
		return true
	default:
		return false
	}
}
