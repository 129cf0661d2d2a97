package cache

import (
	"net/url"
	"strings"

	"github.com/Sternrassler/catalog-feed/pkg/catalog"
)

// KeyBuilder derives list cache keys. Namespace separates listing views
// that share scope ids (a category and a collection may both be "42").
type KeyBuilder struct {
	Namespace string
}

// Key generates a deterministic cache key for a filter combination.
// Format: list:namespace:scope=S:search=Q:sort=O
//
// Every component is query-escaped, so ':' and '=' never appear inside a
// field and distinct tuples never collide. The page is deliberately absent.
//
// Example:
//
//	list:categories:scope=C1:search=vitamin+c:sort=price_asc
func (b KeyBuilder) Key(scopeID, search string, sortBy catalog.SortBy) string {
	parts := []string{
		"list",
		url.QueryEscape(b.Namespace),
		"scope=" + url.QueryEscape(scopeID),
		"search=" + url.QueryEscape(search),
		"sort=" + url.QueryEscape(string(sortBy)),
	}
	return strings.Join(parts, ":")
}

// ForQuery is Key applied to the non-page fields of q.
func (b KeyBuilder) ForQuery(q catalog.Query) string {
	return b.Key(q.ScopeID, q.Search, q.SortBy)
}
