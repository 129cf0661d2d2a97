// Package pagination coordinates incremental page fetches for listing
// sessions.
//
// A Coordinator owns one in-flight guard per cache key. At most one request
// per (scope, search, sort) triple is outstanding at any instant; a second
// call for a busy key is dropped with ErrInFlight rather than queued, so
// page N+1 can never be requested while page N is still loading.
//
// Example usage:
//
//	keys := cache.KeyBuilder{Namespace: "categories"}
//	coord := pagination.New(catalogClient.Lister("/categories/{scope}/products"), store, keys, logger)
//
//	// First page, replacing whatever was cached for the key
//	res, err := coord.Fetch(ctx, query, pagination.Options{Reset: true})
//
//	// Next page, appended to the cached entry
//	res, err = coord.Fetch(ctx, query, pagination.Options{})
//
// Every successful fetch is written through to the cache store before Fetch
// returns. A failed fetch leaves the cached entry untouched.
package pagination
