package cache

import (
	"context"
	"sync"
)

// Backend is the string key/value store behind the cache, the same surface
// as browser session storage. GetItem reports ok=false for a missing key.
type Backend interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
}

// named backends label their metrics.
type named interface {
	Name() string
}

func backendName(b Backend) string {
	if n, ok := b.(named); ok {
		return n.Name()
	}
	return "custom"
}

// MemoryBackend keeps values in process memory for the lifetime of the
// process. Writes are serialized; the last SetItem for a key wins.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryBackend creates an empty memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]string)}
}

// GetItem returns the value stored under key.
func (m *MemoryBackend) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

// SetItem stores value under key, replacing any previous value.
func (m *MemoryBackend) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// Clear drops every value (session end).
func (m *MemoryBackend) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]string)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Name implements named.
func (m *MemoryBackend) Name() string { return "memory" }
