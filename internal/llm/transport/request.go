package transport

import (
	"encoding/json"
	"net/http"
	"time"
)

// OperationType differentiates calls for logging, caching, and timeouts.
type OperationType string

const (
	// OpAssessment scores a candidate response against the rubric.
	OpAssessment OperationType = "assessment"

	// OpPromptGeneration asks the model for a new task prompt.
	OpPromptGeneration OperationType = "prompt_generation"

	// OpConnectionTest is the minimal round trip used to check credentials.
	OpConnectionTest OperationType = "connection_test"
)

// Request is a provider-neutral chat completion request.
type Request struct {
	Operation OperationType `json:"operation"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`

	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt"`

	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`

	// ResponseSchema, when set, is sent as a strict json_schema response
	// format under SchemaName.
	ResponseSchema json.RawMessage `json:"response_schema,omitempty"`
	SchemaName     string          `json:"schema_name,omitempty"`

	Timeout        time.Duration `json:"timeout"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	TraceID        string        `json:"trace_id,omitempty"`
}

// Response is a provider-neutral chat completion result.
type Response struct {
	Content            string          `json:"content"`
	FinishReason       string          `json:"finish_reason"`
	Model              string          `json:"model"`
	ProviderRequestIDs []string        `json:"provider_request_ids"`
	Usage              NormalizedUsage `json:"usage"`
	Cached             bool            `json:"cached"`

	Headers http.Header `json:"-"`
	RawBody []byte      `json:"-"`
}

// NormalizedUsage is token and latency accounting across providers.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}
