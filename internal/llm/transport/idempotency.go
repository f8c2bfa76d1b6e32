package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// CurrentCanonicalVersion is part of every key; bump it when
// canonicalization changes so stale cache entries stop matching.
const CurrentCanonicalVersion = "v1"

// CanonicalPayload is the normalized form of a request that feeds the
// idempotency key. Equivalent requests produce identical payloads.
type CanonicalPayload struct {
	Operation   OperationType `json:"operation"`
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	User        string        `json:"user"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	SchemaHash  string        `json:"schema_hash,omitempty"`
	Version     string        `json:"version"`
}

// IdemKey is the SHA-256 hex digest of a canonical payload.
type IdemKey string

// String returns the key text.
func (k IdemKey) String() string { return string(k) }

// BuildCanonicalPayload normalizes req: provider lower-cased, prompts
// trimmed with CRLF folded and runs of whitespace collapsed.
func BuildCanonicalPayload(req *Request) *CanonicalPayload {
	p := &CanonicalPayload{
		Operation:   req.Operation,
		Provider:    strings.ToLower(strings.TrimSpace(req.Provider)),
		Model:       strings.TrimSpace(req.Model),
		System:      normalizeText(req.SystemPrompt),
		User:        normalizeText(req.UserPrompt),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Version:     CurrentCanonicalVersion,
	}
	if len(req.ResponseSchema) > 0 {
		sum := sha256.Sum256(req.ResponseSchema)
		p.SchemaHash = hex.EncodeToString(sum[:8])
	}
	return p
}

// GenerateIdemKey canonicalizes req and hashes the result.
func GenerateIdemKey(req *Request) (IdemKey, error) {
	b, err := json.Marshal(BuildCanonicalPayload(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical payload: %w", err)
	}
	sum := sha256.Sum256(b)
	return IdemKey(hex.EncodeToString(sum[:])), nil
}

// CacheKey builds the cache key llm:{operation}:{idemkey}.
func CacheKey(operation OperationType, key IdemKey) string {
	return fmt.Sprintf("llm:%s:%s", operation, key)
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Join(strings.Fields(text), " ")
}
