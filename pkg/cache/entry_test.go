package cache

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/Sternrassler/catalog-feed/pkg/catalog"
)

func page(num, from, count, total, totalPages int) *catalog.PageResult {
	items := make([]catalog.Item, 0, count)
	for i := from; i < from+count; i++ {
		items = append(items, catalog.Item{
			ID:  fmt.Sprintf("p%d", i),
			Raw: json.RawMessage(fmt.Sprintf(`{"id":"p%d"}`, i)),
		})
	}
	return &catalog.PageResult{
		Items:      items,
		Page:       num,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    num < totalPages,
	}
}

func TestEntry_MergeSequentialPages(t *testing.T) {
	e := NewEntry(page(1, 0, 20, 45, 3))
	e.Merge(page(2, 20, 20, 45, 3))
	e.Merge(page(3, 40, 5, 45, 3))

	if len(e.Items) != 45 {
		t.Fatalf("len(Items) = %d, want 45", len(e.Items))
	}
	for i, it := range e.Items {
		if want := fmt.Sprintf("p%d", i); it.ID != want {
			t.Fatalf("Items[%d].ID = %s, want %s (page order broken)", i, it.ID, want)
		}
	}
	if e.Page != 3 || e.HasNext || !e.Exhausted() {
		t.Errorf("entry = page %d hasNext %v, want page 3 exhausted", e.Page, e.HasNext)
	}
}

func TestEntry_MergeRefetchIsNoop(t *testing.T) {
	e := NewEntry(page(1, 0, 20, 45, 3))
	e.Merge(page(2, 20, 20, 45, 3))

	if added := e.Merge(page(2, 20, 20, 45, 3)); added != 0 {
		t.Errorf("re-fetch of page 2 added %d items, want 0", added)
	}
	if added := e.Merge(page(1, 0, 20, 50, 3)); added != 0 {
		t.Errorf("re-fetch of page 1 added %d items, want 0", added)
	}
	if len(e.Items) != 40 || e.Page != 2 || e.Total != 45 {
		t.Errorf("entry changed by re-fetch: items=%d page=%d total=%d", len(e.Items), e.Page, e.Total)
	}
}

func TestEntry_MergeSkipsDuplicateItems(t *testing.T) {
	e := NewEntry(page(1, 0, 20, 40, 2))
	// Server shifted by one item between requests: p19 shows up again.
	if added := e.Merge(page(2, 19, 20, 40, 2)); added != 19 {
		t.Errorf("added = %d, want 19", added)
	}
	if len(e.Items) != 39 {
		t.Errorf("len(Items) = %d, want 39", len(e.Items))
	}
}

func TestEntry_TotalNeverBelowItems(t *testing.T) {
	e := NewEntry(page(1, 0, 10, 4, 1))
	if e.Total < len(e.Items) {
		t.Errorf("Total = %d < items %d", e.Total, len(e.Items))
	}
}

func TestEntry_Clone(t *testing.T) {
	e := NewEntry(page(1, 0, 2, 4, 2))
	c := e.Clone()
	c.Merge(page(2, 2, 2, 4, 2))

	if len(e.Items) != 2 {
		t.Errorf("original mutated by clone merge: %d items", len(e.Items))
	}
	if (*Entry)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
