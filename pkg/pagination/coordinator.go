package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-feed/pkg/cache"
	"github.com/Sternrassler/catalog-feed/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// ErrInFlight is returned when a fetch for the same key is already
	// outstanding. The call was dropped without a request.
	ErrInFlight = errors.New("fetch already in flight for key")

	// ErrExhausted is returned by an append when the cached entry has no
	// next page.
	ErrExhausted = errors.New("no next page")
)

// Prometheus metrics for fetch coordination.
var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_fetch_total",
		Help: "Total coordinated fetches by mode (reset, append) and outcome",
	}, []string{"mode", "outcome"})

	fetchDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_fetch_dropped_total",
		Help: "Fetches dropped because a fetch for the same key was in flight",
	})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_fetch_duration_seconds",
		Help:    "Coordinated fetch duration including the cache write",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"mode"})
)

// Options control a single fetch.
type Options struct {
	// Reset fetches page 1 and replaces the cached entry. Otherwise the
	// page after the cached one is fetched and appended.
	Reset bool
}

func (o Options) mode() string {
	if o.Reset {
		return "reset"
	}
	return "append"
}

// Result is the outcome of a successful fetch.
type Result struct {
	// Key is the cache key the fetch was issued for. Callers compare it to
	// their current key to discard stale responses.
	Key string

	// Query is the query as sent, with the page that was requested
	Query catalog.Query

	// Page is the server response
	Page *catalog.PageResult

	// Entry is the accumulated state written to the store
	Entry *cache.Entry

	// Added is the number of new items appended to the entry
	Added int
}

// Coordinator issues page fetches, merges them into cache entries and
// guards against concurrent fetches for one key.
type Coordinator struct {
	fetcher PageFetcher
	store   cache.Store
	keys    cache.KeyBuilder
	logger  zerolog.Logger

	mu sync.Mutex
	// inFlight maps a busy key to a channel closed when its fetch ends
	inFlight map[string]chan struct{}
}

// New creates a coordinator. It panics if fetcher or store is nil.
func New(fetcher PageFetcher, store cache.Store, keys cache.KeyBuilder, logger zerolog.Logger) *Coordinator {
	if fetcher == nil {
		panic("page fetcher cannot be nil")
	}
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Coordinator{
		fetcher:  fetcher,
		store:    store,
		keys:     keys,
		logger:   logger,
		inFlight: make(map[string]chan struct{}),
	}
}

// Keys returns the key builder the coordinator derives cache keys with.
func (c *Coordinator) Keys() cache.KeyBuilder {
	return c.keys
}

// Store returns the cache store fetches are written through to.
func (c *Coordinator) Store() cache.Store {
	return c.store
}

// InFlight reports whether a fetch for key is outstanding.
func (c *Coordinator) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.inFlight[key]
	return busy
}

func (c *Coordinator) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[key]; busy {
		return false
	}
	c.inFlight[key] = make(chan struct{})
	return true
}

func (c *Coordinator) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if done, ok := c.inFlight[key]; ok {
		close(done)
		delete(c.inFlight, key)
	}
}

// Wait blocks until no fetch for key is in flight or ctx is done. Callers
// that got ErrInFlight use it before reading the entry the outstanding
// fetch wrote.
func (c *Coordinator) Wait(ctx context.Context, key string) error {
	c.mu.Lock()
	done, busy := c.inFlight[key]
	c.mu.Unlock()
	if !busy {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch loads the next page for q's key (or page 1 with opts.Reset) and
// writes the merged entry to the store before returning. q.Page is ignored;
// the target page follows from the cached entry.
//
// Errors: ErrInFlight when the key is busy, ErrExhausted when there is no
// next page, otherwise the fetcher's or the store's error. On any error the
// cached entry is unchanged.
func (c *Coordinator) Fetch(ctx context.Context, q catalog.Query, opts Options) (*Result, error) {
	key := c.keys.ForQuery(q)
	mode := opts.mode()

	if !c.acquire(key) {
		fetchDroppedTotal.Inc()
		c.logger.Debug().Str("key", key).Str("mode", mode).Msg("Fetch dropped, key in flight")
		return nil, ErrInFlight
	}
	defer c.release(key)

	start := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	var base *cache.Entry
	target := 1
	if !opts.Reset {
		entry, err := c.store.Get(ctx, key)
		switch {
		case err == nil:
			if entry.Exhausted() {
				fetchTotal.WithLabelValues(mode, "exhausted").Inc()
				return nil, ErrExhausted
			}
			base = entry
			target = entry.Page + 1
		case errors.Is(err, cache.ErrCacheMiss):
			// Nothing accumulated yet, start at page 1.
		default:
			fetchTotal.WithLabelValues(mode, "error").Inc()
			return nil, fmt.Errorf("read cache entry: %w", err)
		}
	}

	query := q.WithPage(target)
	c.logger.Debug().
		Str("key", key).
		Str("mode", mode).
		Int("page", target).
		Msg("Fetching page")

	page, err := c.fetcher.FetchPage(ctx, query)
	if err != nil {
		fetchTotal.WithLabelValues(mode, "error").Inc()
		c.logger.Error().
			Err(err).
			Str("key", key).
			Int("page", target).
			Msg("Page fetch failed")
		return nil, err
	}

	if page.Page != target {
		c.logger.Warn().
			Str("key", key).
			Int("requested", target).
			Int("reported", page.Page).
			Msg("Server reported a different page number")
		page.Page = target
	}
	itemsSoFar := len(page.Items)
	if base != nil {
		itemsSoFar += len(base.Items)
	}
	page.Normalize(itemsSoFar)

	var entry *cache.Entry
	added := 0
	if base == nil {
		entry = cache.NewEntry(page)
		added = len(entry.Items)
	} else {
		entry = base.Clone()
		added = entry.Merge(page)
	}

	if err := c.store.Set(ctx, key, entry); err != nil {
		fetchTotal.WithLabelValues(mode, "error").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		return nil, fmt.Errorf("write cache entry: %w", err)
	}

	fetchTotal.WithLabelValues(mode, "success").Inc()
	c.logger.Debug().
		Str("key", key).
		Int("page", entry.Page).
		Int("items", len(entry.Items)).
		Int("added", added).
		Bool("has_next", entry.HasNext).
		Msg("Page merged")

	return &Result{
		Key:   key,
		Query: query,
		Page:  page,
		Entry: entry,
		Added: added,
	}, nil
}
