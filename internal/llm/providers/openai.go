package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ahrav/go-ielts/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
	"github.com/ahrav/go-ielts/internal/llm/transport"
)

// maxResponseBytes bounds how much of a provider reply is read.
const maxResponseBytes = 4 << 20

// ChatCompletionsAdapter speaks the OpenAI chat completions protocol. Gemini
// (through its OpenAI-compatible endpoint) and Ollama use it unchanged, so
// one adapter serves every provider under a different name.
type ChatCompletionsAdapter struct {
	name   string
	config configuration.ProviderConfig
}

// NewChatCompletionsAdapter creates an adapter for the named provider.
func NewChatCompletionsAdapter(name string, cfg configuration.ProviderConfig) *ChatCompletionsAdapter {
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &ChatCompletionsAdapter{name: name, config: cfg}
}

// Name returns the provider name.
func (a *ChatCompletionsAdapter) Name() string {
	return a.name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// Build constructs the POST {endpoint}/chat/completions request.
func (a *ChatCompletionsAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	apiKey := a.config.ResolveAPIKey()
	if apiKey == "" && a.config.RequiresAPIKey {
		return nil, fmt.Errorf("%s: %w", a.name, llmerrors.ErrMissingAPIKey)
	}

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	body := chatRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if a.config.MaxTokensLimit > 0 && body.MaxTokens > a.config.MaxTokensLimit {
		body.MaxTokens = a.config.MaxTokensLimit
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.UserPrompt})

	if len(req.ResponseSchema) > 0 {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		body.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaFormat{Name: name, Strict: true, Schema: req.ResponseSchema},
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := a.config.Endpoint + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Parse extracts the first choice and usage from a completion response.
func (a *ChatCompletionsAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(a.name, httpResp, body)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", a.name, llmerrors.ErrInvalidResponse, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w: no choices", a.name, llmerrors.ErrInvalidResponse)
	}

	choice := resp.Choices[0]
	var content string
	if choice.Message.Content != nil {
		content = *choice.Message.Content
	}

	requestIDs := []string{}
	if reqID := httpResp.Header.Get("x-request-id"); reqID != "" {
		requestIDs = append(requestIDs, reqID)
	} else if resp.ID != "" {
		requestIDs = append(requestIDs, resp.ID)
	}

	return &transport.Response{
		Content:            content,
		FinishReason:       choice.FinishReason,
		Model:              resp.Model,
		ProviderRequestIDs: requestIDs,
		Usage: transport.NormalizedUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Headers: httpResp.Header,
		RawBody: body,
	}, nil
}
