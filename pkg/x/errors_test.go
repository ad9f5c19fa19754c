package x

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"xscraper/pkg/backoff"
	errs "xscraper/pkg/errors"
)

func TestClassifyResponse(t *testing.T) {
	reset := http.Header{}
	reset.Set("x-rate-limit-reset", "1700000600")

	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   errs.ErrorType
	}{
		{"ok", 200, http.Header{}, `{"data":{}}`, ""},
		{"429", 429, reset, ``, errs.ErrorTypeRateLimit},
		{"code 88", 200, http.Header{}, `{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`, errs.ErrorTypeRateLimit},
		{"401", 401, http.Header{}, ``, errs.ErrorTypeAuth},
		{"403", 403, http.Header{}, ``, errs.ErrorTypeAuth},
		{"code 32", 200, http.Header{}, `{"errors":[{"code":32,"message":"Could not authenticate you"}]}`, errs.ErrorTypeAuth},
		{"code 326", 403, http.Header{}, `{"errors":[{"code":326,"message":"locked"}]}`, errs.ErrorTypeAuth},
		{"code 131", 200, http.Header{}, `{"errors":[{"code":131,"message":"Internal error"}]}`, errs.ErrorTypeTransient},
		{"503", 503, http.Header{}, `upstream`, errs.ErrorTypeTransient},
		{"404", 404, http.Header{}, ``, errs.ErrorTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyResponse("UserTweets", tt.status, tt.header, []byte(tt.body))
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, errs.TypeOf(err))
		})
	}
}

func TestRateLimitResetHint(t *testing.T) {
	h := http.Header{}
	h.Set("x-rate-limit-reset", "1700000600")

	err := classifyResponse("UserTweets", 429, h, nil)
	assert.True(t, errs.ResetHint(err).Equal(time.Unix(1_700_000_600, 0)))

	err = classifyResponse("UserTweets", 429, http.Header{}, nil)
	assert.True(t, errs.ResetHint(err).IsZero())

	bad := http.Header{}
	bad.Set("x-rate-limit-reset", "soon")
	err = classifyResponse("UserTweets", 200, bad, []byte(`{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`))
	assert.True(t, errs.Is(err, errs.ErrorTypeRateLimit))
	assert.True(t, errs.ResetHint(err).IsZero())
}

func TestRateLimitWithoutResetFollowsSchedule(t *testing.T) {
	err := classifyResponse("UserTweets", 429, http.Header{}, nil)
	ctrl := backoff.NewController(backoff.DefaultSchedule())

	var got []time.Duration
	for attempt := 0; attempt < 4; attempt++ {
		got = append(got, ctrl.NextDelay(backoff.KindRateLimit, attempt, errs.ResetHint(err)))
	}
	assert.Equal(t, []time.Duration{1020 * time.Second, 600 * time.Second, 300 * time.Second, 300 * time.Second}, got)
}
