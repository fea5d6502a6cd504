package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	err := NotFound("course not found", errors.New("no rows"))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))

	wrapped := fmt.Errorf("loading course: %w", err)
	assert.True(t, Is(wrapped, KindNotFound))

	assert.False(t, Is(errors.New("plain"), KindNotFound))
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(Validation("bad path", nil)))
	assert.False(t, Retryable(Forbidden("nope", nil)))
	assert.False(t, Retryable(NotFound("gone", nil)))
	assert.False(t, Retryable(Conflict("version mismatch", nil)))
	assert.True(t, Retryable(Upstream("gitlab 503", nil)))
	assert.True(t, Retryable(Internal("bug", nil)))
	assert.True(t, Retryable(errors.New("unclassified")))
	assert.False(t, Retryable(nil))
}

func TestErrorMessage(t *testing.T) {
	err := Upstream("clone failed", errors.New("timeout"))
	assert.Contains(t, err.Error(), "upstream")
	assert.Contains(t, err.Error(), "clone failed")
	assert.Contains(t, err.Error(), "timeout")
}
