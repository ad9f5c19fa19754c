package x

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	errs "xscraper/pkg/errors"
)

// X API error codes that change how a response is handled
const (
	codeAuthFailed    = 32
	codeSuspended     = 64
	codeRateLimited   = 88
	codeInternal      = 131
	codeAccountLocked = 326
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// bodyErrors extracts the top-level errors array, if any
func bodyErrors(body []byte) []apiError {
	var resp struct {
		Errors []apiError `json:"errors"`
	}
	if json.Unmarshal(body, &resp) != nil {
		return nil
	}
	return resp.Errors
}

// classifyResponse maps a finished HTTP exchange onto the error taxonomy.
// It returns nil for a usable 200 response
func classifyResponse(op string, status int, header http.Header, body []byte) error {
	if status == http.StatusTooManyRequests {
		return errs.NewRateLimited(fmt.Sprintf("%s: HTTP 429", op), parseRateLimitReset(header.Get("x-rate-limit-reset")))
	}

	for _, e := range bodyErrors(body) {
		switch e.Code {
		case codeRateLimited:
			return errs.NewRateLimited(fmt.Sprintf("%s: %s", op, e.Message), parseRateLimitReset(header.Get("x-rate-limit-reset")))
		case codeAuthFailed, codeSuspended, codeAccountLocked:
			return errs.NewAuth(fmt.Sprintf("%s: code %d: %s", op, e.Code, e.Message), nil)
		case codeInternal:
			return errs.NewTransient(fmt.Sprintf("%s: code %d: %s", op, e.Code, e.Message), nil)
		}
	}

	if status != http.StatusOK {
		e := errs.FromStatusCode(status, fmt.Sprintf("%s: %s", op, truncate(body, 200)))
		if e.Type == errs.ErrorTypeUnknown {
			// other 4xx responses are not worth aborting a long run over
			e.Type = errs.ErrorTypeTransient
		}
		return e
	}
	return nil
}

// parseRateLimitReset reads the unix-seconds reset header. A missing or
// malformed header yields the zero time so the fixed schedule applies
func parseRateLimitReset(v string) time.Time {
	if ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0)
	}
	return time.Time{}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
