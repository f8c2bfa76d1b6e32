package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	llmerrors "github.com/ahrav/go-ielts/internal/llm/errors"
)

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is a bounded in-process Store. The least recently used entry
// is evicted once the size limit is reached.
type MemoryStore struct {
	items *lru.Cache[string, memoryItem]
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	items, err := lru.New[string, memoryItem](size)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryStore{items: items, now: time.Now}, nil
}

// Get returns a copy of the entry stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	item, ok := m.items.Get(key)
	if !ok {
		return nil, llmerrors.ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		m.items.Remove(key)
		return nil, llmerrors.ErrCacheMiss
	}
	entry := item.entry
	return &entry, nil
}

// Set stores a copy of entry. A zero ttl never expires.
func (m *MemoryStore) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	item := memoryItem{entry: *entry}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items.Add(key, item)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	return m.items.Len()
}
