package errors

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusUnauthorized, ErrorTypeAuth},
		{http.StatusForbidden, ErrorTypeAuth},
		{http.StatusInternalServerError, ErrorTypeTransient},
		{http.StatusBadGateway, ErrorTypeTransient},
		{http.StatusNotFound, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			err := FromStatusCode(tt.code, "boom")
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.code, err.Code)
		})
	}
}

func TestTypeOfWrapped(t *testing.T) {
	base := NewFileIO("write row", fmt.Errorf("disk full"))
	wrapped := fmt.Errorf("accept post 42: %w", base)

	assert.Equal(t, ErrorTypeFileIO, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeFileIO))
	assert.False(t, Is(nil, ErrorTypeFileIO))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain")))
	assert.Contains(t, wrapped.Error(), "disk full")
}

func TestResetHint(t *testing.T) {
	reset := time.Unix(1700000000, 0)
	err := fmt.Errorf("fetch: %w", NewRateLimited("429", reset))

	assert.True(t, ResetHint(err).Equal(reset))
	assert.True(t, ResetHint(fmt.Errorf("other")).IsZero())
	assert.False(t, NewRateLimited("429", time.Time{}).HasResetHint())
}

func TestRetryableAndFatal(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeTransient))
	assert.True(t, IsRetryable(ErrorTypeConnectivity))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeProjection))

	assert.True(t, IsFatal(ErrorTypeAuth))
	assert.True(t, IsFatal(ErrorTypeFileIO))
	assert.False(t, IsFatal(ErrorTypeRateLimit))
	assert.False(t, IsFatal(ErrorTypeProjection))
}
