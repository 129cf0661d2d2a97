// Package catalog defines the data model shared by every storefront listing:
// the query that selects a list, the opaque items it yields and the shape of
// a single page returned by the catalog service.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuery is returned when a query cannot be sent to the catalog.
var ErrInvalidQuery = errors.New("invalid query")

// SortBy is the sort order understood by the catalog list endpoint.
type SortBy string

const (
	// SortDefault leaves the ordering to the server.
	SortDefault SortBy = ""

	// SortRelevance orders by search relevance.
	SortRelevance SortBy = "relevance"

	// SortNewest orders by creation date, newest first.
	SortNewest SortBy = "newest"

	// SortPriceAsc orders by price, cheapest first.
	SortPriceAsc SortBy = "price_asc"

	// SortPriceDesc orders by price, most expensive first.
	SortPriceDesc SortBy = "price_desc"

	// SortNameAsc orders alphabetically.
	SortNameAsc SortBy = "name_asc"

	// SortNameDesc orders reverse alphabetically.
	SortNameDesc SortBy = "name_desc"
)

var knownSorts = map[SortBy]struct{}{
	SortDefault:   {},
	SortRelevance: {},
	SortNewest:    {},
	SortPriceAsc:  {},
	SortPriceDesc: {},
	SortNameAsc:   {},
	SortNameDesc:  {},
}

// ParseSortBy validates a raw sort value.
func ParseSortBy(raw string) (SortBy, error) {
	s := SortBy(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown sort %q", ErrInvalidQuery, raw)
	}
	return s, nil
}

// Valid reports whether s is a sort order the catalog accepts.
func (s SortBy) Valid() bool {
	_, ok := knownSorts[s]
	return ok
}

// Query identifies what to fetch. Queries that differ only in Page belong
// to the same list session.
type Query struct {
	// ScopeID is the category, collection or feed id (empty for global search).
	ScopeID string `json:"scope_id"`

	// Search is the committed free-text search.
	Search string `json:"search"`

	// SortBy is the requested ordering.
	SortBy SortBy `json:"sort_by"`

	// Page is 1-based.
	Page int `json:"page"`
}

// Validate checks the query before it goes on the wire.
func (q Query) Validate() error {
	if q.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1 (got %d)", ErrInvalidQuery, q.Page)
	}
	if !q.SortBy.Valid() {
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidQuery, q.SortBy)
	}
	return nil
}

// SameSession reports whether q and other share scope, search and sort.
func (q Query) SameSession(other Query) bool {
	return q.ScopeID == other.ScopeID &&
		q.Search == other.Search &&
		q.SortBy == other.SortBy
}

// WithPage returns a copy of q targeting page.
func (q Query) WithPage(page int) Query {
	q.Page = page
	return q
}

// String renders the query for logs.
func (q Query) String() string {
	return fmt.Sprintf("scope=%q search=%q sort=%q page=%d", q.ScopeID, q.Search, q.SortBy, q.Page)
}
