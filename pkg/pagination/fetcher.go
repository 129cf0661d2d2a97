package pagination

import (
	"context"

	"github.com/Sternrassler/catalog-feed/pkg/catalog"
)

// PageFetcher fetches a single page of a list. The catalog client's Lister
// implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, q catalog.Query) (*catalog.PageResult, error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc func(ctx context.Context, q catalog.Query) (*catalog.PageResult, error)

// FetchPage calls f.
func (f FetcherFunc) FetchPage(ctx context.Context, q catalog.Query) (*catalog.PageResult, error) {
	return f(ctx, q)
}
