package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderError(t *testing.T) {
	err := &ProviderError{
		Provider:   "openai",
		StatusCode: http.StatusServiceUnavailable,
		Message:    "overloaded",
		Type:       ErrorTypeProvider,
		RetryAfter: 12,
	}
	assert.Equal(t, "openai error (status 503): overloaded", err.Error())
	assert.True(t, err.IsRetryable())
	assert.Equal(t, 12*time.Second, err.GetRetryAfter())

	tests := []struct {
		typ  ErrorType
		want bool
	}{
		{ErrorTypeTimeout, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeNetwork, true},
		{ErrorTypeProvider, true},
		{ErrorTypeAuth, false},
		{ErrorTypeValidation, false},
		{ErrorTypeQuota, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, (&ProviderError{Type: tt.typ}).IsRetryable())
		})
	}
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{Provider: "google", RetryAfter: 30, LocalLimit: true}
	assert.Equal(t, "rate limit exceeded for google, retry after 30 seconds", err.Error())
	assert.Equal(t, 30*time.Second, err.GetRetryAfter())

	noHint := &RateLimitError{Provider: "global"}
	assert.Equal(t, "rate limit exceeded for global", noHint.Error())
	assert.Zero(t, noHint.GetRetryAfter())
}

func TestValidationError(t *testing.T) {
	assert.Equal(t, "validation failed for field model: required",
		(&ValidationError{Field: "model", Message: "required"}).Error())
	assert.Equal(t, "validation failed: bad input", (&ValidationError{Message: "bad input"}).Error())
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &RateLimitError{Provider: "openai"}, true},
		{"wrapped rate limit", fmt.Errorf("assess: %w", &RateLimitError{Provider: "openai"}), true},
		{"retryable provider", &ProviderError{Type: ErrorTypeTimeout}, true},
		{"auth failure", &ProviderError{Type: ErrorTypeAuth}, false},
		{"workflow override", &WorkflowError{Type: ErrorTypeTimeout, Retryable: false}, false},
		{"sentinel", fmt.Errorf("call: %w", ErrProviderUnavailable), true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestIsRateLimitError(t *testing.T) {
	assert.False(t, IsRateLimitError(nil))
	assert.True(t, IsRateLimitError(&RateLimitError{}))
	assert.True(t, IsRateLimitError(&ProviderError{Type: ErrorTypeRateLimit}))
	assert.True(t, IsRateLimitError(&WorkflowError{Type: ErrorTypeRateLimit}))
	assert.True(t, IsRateLimitError(fmt.Errorf("x: %w", ErrRateLimitExceeded)))
	assert.False(t, IsRateLimitError(&ProviderError{Type: ErrorTypeAuth}))
	assert.False(t, IsRateLimitError(errors.New("other")))
}

func TestGetRetryAfter(t *testing.T) {
	assert.Equal(t, 0, GetRetryAfter(nil))
	assert.Equal(t, 5, GetRetryAfter(fmt.Errorf("w: %w", &RateLimitError{RetryAfter: 5})))
	assert.Equal(t, 9, GetRetryAfter(&ProviderError{RetryAfter: 9}))
	assert.Equal(t, 0, GetRetryAfter(errors.New("other")))
}

func TestWorkflowError(t *testing.T) {
	cause := errors.New("root")
	err := &WorkflowError{Type: ErrorTypeAuth, Code: "AUTH_FAILED", Message: "bad key", Cause: cause}
	assert.Equal(t, "[authentication:AUTH_FAILED] bad key", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.False(t, err.ShouldRetry())

	assert.Equal(t, "[unknown] odd", (&WorkflowError{Type: ErrorTypeUnknown, Message: "odd"}).Error())
}
