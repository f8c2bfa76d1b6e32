package cache

import (
	"context"
	"time"

	"github.com/ahrav/go-ielts/internal/llm/transport"
)

// Entry is a cached reply. StoredAtMs lets readers reject entries older
// than the configured maximum age regardless of backend TTL support.
type Entry struct {
	Content            string                    `json:"content"`
	FinishReason       string                    `json:"finish_reason"`
	Model              string                    `json:"model"`
	ProviderRequestIDs []string                  `json:"provider_request_ids,omitempty"`
	Usage              transport.NormalizedUsage `json:"usage"`
	StoredAtMs         int64                     `json:"stored_at_ms"`
}

// Store persists entries by key. Get returns llmerrors.ErrCacheMiss when
// the key is absent or expired.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
}

func entryFromResponse(resp *transport.Response, now time.Time) *Entry {
	return &Entry{
		Content:            resp.Content,
		FinishReason:       resp.FinishReason,
		Model:              resp.Model,
		ProviderRequestIDs: resp.ProviderRequestIDs,
		Usage:              resp.Usage,
		StoredAtMs:         now.UnixMilli(),
	}
}

func (e *Entry) toResponse() *transport.Response {
	return &transport.Response{
		Content:            e.Content,
		FinishReason:       e.FinishReason,
		Model:              e.Model,
		ProviderRequestIDs: e.ProviderRequestIDs,
		Usage:              e.Usage,
		Cached:             true,
	}
}
