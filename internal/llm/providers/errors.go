package providers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
)

// errorEnvelope matches both the OpenAI error body and the list form the
// Gemini compatibility layer sometimes returns.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
		Status  string `json:"status"`
	} `json:"error"`
}

// parseErrorResponse converts a non-200 reply into *ProviderError, or
// *RateLimitError for 429s that are not quota exhaustion.
func parseErrorResponse(provider string, httpResp *http.Response, body []byte) error {
	status := httpResp.StatusCode
	message := strings.TrimSpace(string(body))
	var code string

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		var list []errorEnvelope
		if json.Unmarshal(body, &list) == nil && len(list) > 0 {
			env = list[0]
		}
	}
	if env.Error.Message != "" {
		message = env.Error.Message
		code = errorCode(env)
	}

	retryAfter := parseRetryAfter(httpResp.Header.Get("Retry-After"))
	errType := llmerrors.ClassifyHTTPStatus(status, code)

	if errType == llmerrors.ErrorTypeRateLimit {
		return &llmerrors.RateLimitError{
			Provider:   provider,
			RetryAfter: retryAfter,
			Limit:      headerInt(httpResp.Header, "x-ratelimit-limit-requests"),
			Remaining:  headerInt(httpResp.Header, "x-ratelimit-remaining-requests"),
		}
	}

	return &llmerrors.ProviderError{
		Provider:   provider,
		StatusCode: status,
		Message:    message,
		Code:       code,
		Type:       errType,
		RetryAfter: retryAfter,
	}
}

func errorCode(env errorEnvelope) string {
	switch c := env.Error.Code.(type) {
	case string:
		if c != "" {
			return c
		}
	case float64:
		if env.Error.Status != "" {
			return env.Error.Status
		}
	}
	if env.Error.Type != "" {
		return env.Error.Type
	}
	return env.Error.Status
}

func parseRetryAfter(v string) int {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}

func headerInt(h http.Header, key string) int {
	n, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return 0
	}
	return n
}
