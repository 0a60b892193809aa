package apperr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindsMatchErrorsIs(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"validation", Validation("bad input", cause), ErrValidation},
		{"not found", NotFound("missing row", cause), ErrNotFound},
		{"upstream unavailable", UpstreamUnavailable("timeout", cause, time.Second), ErrUpstreamUnavailable},
		{"upstream rejected", UpstreamRejected("malformed", cause), ErrUpstreamRejected},
		{"conflict", Conflict("race", cause), ErrConflict},
		{"cancelled", Cancelled("shutdown", cause), ErrCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
		})
	}

	assert.NotErrorIs(t, Validation("bad", cause), ErrNotFound)
}

func TestRetryAfter(t *testing.T) {
	err := UpstreamUnavailable("feed fetch failed", errors.New("dial tcp: timeout"), 5*time.Second)
	d, ok := RetryAfter(err)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)

	_, ok = RetryAfter(Validation("bad", nil))
	assert.False(t, ok)
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := NotFound("subscription 42", errors.New("record not found"))
	assert.Contains(t, err.Error(), "subscription 42")
	assert.Contains(t, err.Error(), "record not found")
}
