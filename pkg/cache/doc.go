// Package cache provides the session-scoped list cache used by every
// storefront listing view.
//
// A cache entry holds the cumulative result of all pages fetched so far for
// one filter combination (scope, search, sort). The page number is never part
// of the key: page N+1 extends the entry written for pages 1..N.
//
// The cache has no eviction policy. Entries live until the browsing session
// ends; with the Redis backend that is either an explicit Clear or the
// session TTL lapsing.
//
// # Basic Usage
//
//	// Memory backend (tests, single-process tools)
//	store := cache.NewManager(cache.NewMemoryBackend())
//
//	// Redis backend scoped to one browsing session
//	backend := cache.NewRedisBackend(redisClient, cache.NewSessionID(), 30*time.Minute)
//	store := cache.NewManager(backend)
//
//	keys := cache.KeyBuilder{Namespace: "categories"}
//	key := keys.Key("C1", "vitamin", catalog.SortPriceAsc)
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch page 1
//	}
//
// # Backends
//
// A Backend is the minimal string key/value interface (GetItem, SetItem) of
// browser session storage. Values are JSON-serialized entries. The Manager
// turns a Backend into a Store.
//
// # Metrics
//
// The manager exports Prometheus metrics:
//
//   - catalog_cache_hits_total{backend} - Cache hits
//   - catalog_cache_misses_total{backend} - Cache misses
//   - catalog_cache_writes_total{backend} - Entries written
//   - catalog_cache_entry_bytes{backend} - Size of written entries
//   - catalog_cache_errors_total{operation} - Cache operation errors
package cache
