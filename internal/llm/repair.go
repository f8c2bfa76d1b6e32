package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
	"github.com/ahrav/go-ielts/internal/llm/transport"
)

// replyMiddleware reduces assessment replies to a bare JSON object before
// they reach the cache. A reply that is not a complete object fails the
// request, so it is never cached.
func replyMiddleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		resp, err := next.Handle(ctx, req)
		if err != nil || req.Operation != transport.OpAssessment {
			return resp, err
		}
		obj, err := extractJSONObject(resp.Content)
		if err != nil {
			return nil, fmt.Errorf("%s reply: %w", req.Provider, err)
		}
		resp.Content = string(obj)
		return resp, nil
	})
}

// extractJSONObject returns the JSON object in content. Markdown fences
// and text around the object are dropped. The object must be complete:
// a reply whose strings, arrays, or objects never close is rejected
// rather than closed. A complete object that is still invalid, such as
// one with trailing commas, gets one repair pass.
func extractJSONObject(content string) (json.RawMessage, error) {
	text := stripCodeFence(strings.TrimSpace(content))
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, fmt.Errorf("%w: reply is not a JSON object", llmerrors.ErrJSONValidation)
	}
	text = text[start:]
	end, ok := objectEnd(text)
	if !ok {
		return nil, fmt.Errorf("%w: reply ends before the JSON object closes", llmerrors.ErrJSONValidation)
	}
	text = text[:end+1]

	if !json.Valid([]byte(text)) {
		repaired, err := jsonrepair.JSONRepair(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", llmerrors.ErrJSONValidation, err)
		}
		text = repaired
	}

	raw := bytes.TrimSpace([]byte(text))
	if len(raw) == 0 || raw[0] != '{' || !json.Valid(raw) {
		return nil, fmt.Errorf("%w: reply is not a JSON object", llmerrors.ErrJSONValidation)
	}
	return raw, nil
}

// objectEnd returns the index of the brace closing the object that text
// starts with. ok is false when text ends inside a string or with an
// array or object still open.
func objectEnd(text string) (end int, ok bool) {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, c == '}'
			}
		}
	}
	return 0, false
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// Drop the language tag line.
		text = text[nl+1:]
	}
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}

// mergeMetadata sets fields on the reply's metadata object, creating it
// when missing. Fields win over values the model supplied.
func mergeMetadata(reply json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(reply, &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", llmerrors.ErrJSONValidation, err)
	}

	meta := map[string]any{}
	if existing, ok := obj["metadata"]; ok {
		// A non-object metadata value is replaced.
		_ = json.Unmarshal(existing, &meta)
		if meta == nil {
			meta = map[string]any{}
		}
	}
	for k, v := range fields {
		meta[k] = v
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	obj["metadata"] = encoded
	return json.Marshal(obj)
}
