package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the list cache contract. Set always replaces the whole entry;
// concurrent Sets for a key are totally ordered and the last one wins.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Has(ctx context.Context, key string) (bool, error)
}

// Clearer is implemented by backends that can drop a whole session.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Manager implements Store on top of a string Backend with JSON values.
type Manager struct {
	backend Backend
	name    string
	logger  zerolog.Logger
}

// NewManager creates a new cache manager over backend.
func NewManager(backend Backend) *Manager {
	if backend == nil {
		panic("cache backend cannot be nil")
	}
	name := backendName(backend)
	return &Manager{
		backend: backend,
		name:    name,
		logger:  log.With().Str("component", "list-cache").Str("backend", name).Logger(),
	}
}

// Get retrieves the entry stored under key.
// Returns ErrCacheMiss if the key doesn't exist.
func (m *Manager) Get(ctx context.Context, key string) (*Entry, error) {
	raw, ok, err := m.backend.GetItem(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("backend get: %w", err)
	}
	if !ok {
		CacheMisses.WithLabelValues(m.name).Inc()
		m.logger.Debug().Str("key", key).Msg("Cache miss")
		return nil, ErrCacheMiss
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(m.name).Inc()
	m.logger.Debug().
		Str("key", key).
		Int("items", len(entry.Items)).
		Int("page", entry.Page).
		Msg("Cache hit")
	return &entry, nil
}

// Set replaces the entry stored under key.
func (m *Manager) Set(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.backend.SetItem(ctx, key, string(data)); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("backend set: %w", err)
	}

	CacheWrites.WithLabelValues(m.name).Inc()
	EntryBytes.WithLabelValues(m.name).Observe(float64(len(data)))
	m.logger.Debug().
		Str("key", key).
		Int("items", len(entry.Items)).
		Int("page", entry.Page).
		Bool("has_next", entry.HasNext).
		Msg("Cached list entry")
	return nil
}

// Has reports whether key holds an entry.
func (m *Manager) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.backend.GetItem(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return false, fmt.Errorf("backend get: %w", err)
	}
	return ok, nil
}

// Clear ends the session: every entry is dropped when the backend supports
// it, otherwise Clear is a no-op.
func (m *Manager) Clear(ctx context.Context) error {
	c, ok := m.backend.(Clearer)
	if !ok {
		return nil
	}
	if err := c.Clear(ctx); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("backend clear: %w", err)
	}
	m.logger.Debug().Msg("Session cache cleared")
	return nil
}
