package errors

import (
	"errors"
	"net/http"
	"strings"
)

// ClassifyHTTPStatus maps a provider HTTP status and error code to an
// ErrorType. The provider code wins when it is specific.
func ClassifyHTTPStatus(statusCode int, errorCode string) ErrorType {
	lowerCode := strings.ToLower(errorCode)
	switch {
	case strings.Contains(lowerCode, "rate"), strings.Contains(lowerCode, "limit"):
		return ErrorTypeRateLimit
	case strings.Contains(lowerCode, "timeout"):
		return ErrorTypeTimeout
	case strings.Contains(lowerCode, "auth"), strings.Contains(lowerCode, "api_key"):
		return ErrorTypeAuth
	case strings.Contains(lowerCode, "permission"), strings.Contains(lowerCode, "forbidden"):
		return ErrorTypePermission
	case strings.Contains(lowerCode, "quota"):
		return ErrorTypeQuota
	case strings.Contains(lowerCode, "content_filter"), strings.Contains(lowerCode, "safety"):
		return ErrorTypeContent
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case http.StatusUnauthorized:
		return ErrorTypeAuth
	case http.StatusForbidden:
		return ErrorTypePermission
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorTypeValidation
	default:
		if statusCode >= http.StatusInternalServerError {
			return ErrorTypeProvider
		}
		return ErrorTypeUnknown
	}
}

// ClassifyLLMError turns any client error into a WorkflowError carrying a
// type and a retry recommendation. Typed errors are checked first, then
// sentinels, then message patterns.
func ClassifyLLMError(err error) *WorkflowError {
	if err == nil {
		return nil
	}
	if wfErr := classifyTypedErrors(err); wfErr != nil {
		return wfErr
	}
	if wfErr := classifySentinelErrors(err); wfErr != nil {
		return wfErr
	}
	return classifyStringPatternErrors(err)
}

func classifyTypedErrors(err error) *WorkflowError {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &WorkflowError{
			Type:      ErrorTypeRateLimit,
			Message:   rateLimitErr.Error(),
			Code:      "RATE_LIMIT",
			Retryable: true,
			Details: map[string]any{
				"provider":    rateLimitErr.Provider,
				"retry_after": rateLimitErr.RetryAfter,
				"local_limit": rateLimitErr.LocalLimit,
			},
			Cause: err,
		}
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return &WorkflowError{
			Type:      providerErr.Type,
			Message:   providerErr.Message,
			Code:      providerErr.Code,
			Retryable: providerErr.IsRetryable(),
			Details: map[string]any{
				"provider":    providerErr.Provider,
				"status_code": providerErr.StatusCode,
				"retry_after": providerErr.RetryAfter,
			},
			Cause: err,
		}
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return &WorkflowError{
			Type:      ErrorTypeValidation,
			Message:   valErr.Error(),
			Code:      "VALIDATION",
			Retryable: false,
			Details:   map[string]any{"field": valErr.Field, "value": valErr.Value},
			Cause:     err,
		}
	}

	return nil
}

func classifySentinelErrors(err error) *WorkflowError {
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return &WorkflowError{Type: ErrorTypeRateLimit, Message: err.Error(), Code: "RATE_LIMIT", Retryable: true, Cause: err}
	case errors.Is(err, ErrProviderUnavailable):
		return &WorkflowError{Type: ErrorTypeProvider, Message: err.Error(), Code: "PROVIDER_UNAVAILABLE", Retryable: true, Cause: err}
	case errors.Is(err, ErrMissingAPIKey):
		return &WorkflowError{Type: ErrorTypeAuth, Message: err.Error(), Code: "MISSING_API_KEY", Retryable: false, Cause: err}
	case errors.Is(err, ErrUnknownProvider):
		return &WorkflowError{Type: ErrorTypeValidation, Message: err.Error(), Code: "UNKNOWN_PROVIDER", Retryable: false, Cause: err}
	case errors.Is(err, ErrTruncatedCompletion):
		return &WorkflowError{Type: ErrorTypeValidation, Message: err.Error(), Code: "TRUNCATED_RESPONSE", Retryable: false, Cause: err}
	case errors.Is(err, ErrInvalidResponse), errors.Is(err, ErrEmptyCompletion), errors.Is(err, ErrJSONValidation):
		return &WorkflowError{Type: ErrorTypeValidation, Message: err.Error(), Code: "INVALID_RESPONSE", Retryable: false, Cause: err}
	}
	return nil
}

func classifyStringPatternErrors(err error) *WorkflowError {
	errMsg := strings.ToLower(err.Error())
	details := map[string]any{"original_error": err.Error()}

	switch {
	case strings.Contains(errMsg, "rate limit"):
		return &WorkflowError{Type: ErrorTypeRateLimit, Message: "Rate limit exceeded", Code: "RATE_LIMIT", Retryable: true, Details: details, Cause: err}
	case strings.Contains(errMsg, "timeout"), strings.Contains(errMsg, "deadline"):
		return &WorkflowError{Type: ErrorTypeTimeout, Message: "Request timeout", Code: "TIMEOUT", Retryable: true, Details: details, Cause: err}
	case strings.Contains(errMsg, "unauthorized"), strings.Contains(errMsg, "authentication"):
		return &WorkflowError{Type: ErrorTypeAuth, Message: "Authentication failed", Code: "AUTH_FAILED", Retryable: false, Details: details, Cause: err}
	case strings.Contains(errMsg, "forbidden"), strings.Contains(errMsg, "permission"):
		return &WorkflowError{Type: ErrorTypePermission, Message: "Permission denied", Code: "PERMISSION_DENIED", Retryable: false, Details: details, Cause: err}
	case strings.Contains(errMsg, "quota"):
		return &WorkflowError{Type: ErrorTypeQuota, Message: "Quota exceeded", Code: "QUOTA_EXCEEDED", Retryable: false, Details: details, Cause: err}
	case strings.Contains(errMsg, "not found"):
		return &WorkflowError{Type: ErrorTypeNotFound, Message: "Model not found", Code: "NOT_FOUND", Retryable: false, Details: details, Cause: err}
	case strings.Contains(errMsg, "network"), strings.Contains(errMsg, "connection"):
		return &WorkflowError{Type: ErrorTypeNetwork, Message: "Network error", Code: "NETWORK_ERROR", Retryable: true, Details: details, Cause: err}
	default:
		return &WorkflowError{Type: ErrorTypeUnknown, Message: "Unknown error", Code: "UNKNOWN", Retryable: false, Details: details, Cause: err}
	}
}
