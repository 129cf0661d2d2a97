package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-feed/pkg/catalog"
)

// FakeFetcher is an in-process page source for coordinator and session
// tests. Each scope id owns a dataset; search filters items whose raw JSON
// contains the search text.
type FakeFetcher struct {
	mu       sync.Mutex
	pageSize int
	data     map[string][]catalog.Item
	err      error
	gate     chan struct{}
	calls    []catalog.Query
}

// NewFakeFetcher creates a fake with the given page size.
func NewFakeFetcher(pageSize int) *FakeFetcher {
	return &FakeFetcher{
		pageSize: pageSize,
		data:     make(map[string][]catalog.Item),
	}
}

// SetItems sets the dataset for scopeID.
func (f *FakeFetcher) SetItems(scopeID string, items []catalog.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[scopeID] = items
}

// SetError makes every fetch fail with err until SetError(nil).
func (f *FakeFetcher) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Hold makes fetches block after they are recorded until Release.
func (f *FakeFetcher) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate == nil {
		f.gate = make(chan struct{})
	}
}

// Release unblocks held fetches.
func (f *FakeFetcher) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Calls returns the received queries in order.
func (f *FakeFetcher) Calls() []catalog.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]catalog.Query, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of fetches.
func (f *FakeFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// WaitForCalls blocks until at least n fetches started or timeout passes.
func (f *FakeFetcher) WaitForCalls(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if f.CallCount() >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return f.CallCount() >= n
}

// FetchPage implements pagination.PageFetcher.
func (f *FakeFetcher) FetchPage(ctx context.Context, q catalog.Query) (*catalog.PageResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	var items []catalog.Item
	for _, it := range f.data[q.ScopeID] {
		if q.Search == "" || strings.Contains(string(it.Raw), q.Search) {
			items = append(items, it)
		}
	}

	total := len(items)
	totalPages := (total + f.pageSize - 1) / f.pageSize
	start := min((q.Page-1)*f.pageSize, total)
	end := min(start+f.pageSize, total)

	return &catalog.PageResult{
		Items:      append([]catalog.Item{}, items[start:end]...),
		Page:       q.Page,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    q.Page < totalPages,
	}, nil
}

// Items builds n items with ids "<prefix>-<i>" and a name field.
func Items(prefix string, n int) []catalog.Item {
	out := make([]catalog.Item, n)
	for i := range out {
		id := fmt.Sprintf("%s-%d", prefix, i+1)
		raw, _ := json.Marshal(map[string]string{"id": id, "name": fmt.Sprintf("%s %d", prefix, i+1)})
		out[i] = catalog.Item{ID: id, Raw: raw}
	}
	return out
}
