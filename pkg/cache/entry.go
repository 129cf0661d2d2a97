package cache

import (
	"time"

	"github.com/Sternrassler/catalog-feed/pkg/catalog"
)

// Entry is the accumulated state for one cache key: the items of pages
// 1..Page in fetch order plus the pagination fields of the latest response.
type Entry struct {
	// Items are deduplicated, in insertion (fetch) order
	Items []catalog.Item `json:"items"`

	// Page is the last page merged into Items
	Page int `json:"page"`

	// Total is the server-reported item count across all pages
	Total int `json:"total"`

	// TotalPages is the server-reported page count
	TotalPages int `json:"total_pages"`

	// HasNext reports whether a page after Page exists
	HasNext bool `json:"has_next"`

	// UpdatedAt is when the entry was last written
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntry builds the entry for a freshly fetched first page.
func NewEntry(page *catalog.PageResult) *Entry {
	e := &Entry{}
	e.Merge(page)
	return e
}

// Merge appends a page to the entry and takes over its pagination fields.
// Items already present (by Item.Key) are skipped. A page at or below the
// current Page is a re-fetch and leaves the entry untouched. It returns the
// number of items appended.
func (e *Entry) Merge(page *catalog.PageResult) int {
	if page == nil || (e.Page > 0 && page.Page <= e.Page) {
		return 0
	}

	seen := make(map[string]struct{}, len(e.Items)+len(page.Items))
	for _, it := range e.Items {
		seen[it.Key()] = struct{}{}
	}
	added := 0
	for _, it := range page.Items {
		k := it.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		e.Items = append(e.Items, it)
		added++
	}

	e.Page = page.Page
	e.Total = page.Total
	e.TotalPages = page.TotalPages
	e.HasNext = page.HasNext
	if e.Total < len(e.Items) {
		e.Total = len(e.Items)
	}
	e.UpdatedAt = time.Now()
	return added
}

// Clone returns a copy whose item slice can be appended to independently.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Items = append([]catalog.Item(nil), e.Items...)
	return &c
}

// Exhausted reports whether every page has been fetched.
func (e *Entry) Exhausted() bool {
	return !e.HasNext
}
