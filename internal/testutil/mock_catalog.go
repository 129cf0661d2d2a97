// Package testutil provides testing utilities for the catalog feed.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultPageSize is the page size of a new mock catalog.
const DefaultPageSize = 20

// MockResponse defines a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Request records what the mock catalog received.
type Request struct {
	Path      string
	Page      int
	Search    string
	SortBy    string
	UserAgent string
}

// Product is one row of a mock dataset.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type dataset struct {
	products  []Product
	listField string
}

// MockCatalog is a configurable mock catalog list endpoint for testing.
// Paths with a dataset answer paginated, filtered and sorted; paths with a
// canned response answer that response; everything else is 404.
type MockCatalog struct {
	server *httptest.Server

	mu        sync.Mutex
	pageSize  int
	datasets  map[string]*dataset
	responses map[string]MockResponse
	failures  map[string]int
	gate      chan struct{}
	requests  []Request
}

// NewMockCatalog creates a new mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		pageSize:  DefaultPageSize,
		datasets:  make(map[string]*dataset),
		responses: make(map[string]MockResponse),
		failures:  make(map[string]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close releases held requests and shuts down the mock server.
func (m *MockCatalog) Close() {
	m.Release()
	m.server.Close()
}

// SetPageSize changes the page size for every dataset.
func (m *MockCatalog) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// SetProducts serves products at path under the "items" field.
func (m *MockCatalog) SetProducts(path string, products []Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[path] = &dataset{products: products, listField: "items"}
}

// SetListField switches the list field name of a dataset ("items" or
// "products").
func (m *MockCatalog) SetListField(path, field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ds, ok := m.datasets[path]; ok {
		ds.listField = field
	}
}

// SetResponse configures a canned response for a path. It takes precedence
// over a dataset.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = resp
}

// FailWith makes every request to path answer status until ClearFailure.
func (m *MockCatalog) FailWith(path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = status
}

// ClearFailure undoes FailWith.
func (m *MockCatalog) ClearFailure(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, path)
}

// Hold makes requests block after they are recorded until Release.
func (m *MockCatalog) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate == nil {
		m.gate = make(chan struct{})
	}
}

// Release unblocks held requests.
func (m *MockCatalog) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// RequestCount returns the number of requests received.
func (m *MockCatalog) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the received requests in arrival order.
func (m *MockCatalog) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request.
func (m *MockCatalog) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// Reset clears the request log.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// WaitForRequests blocks until at least n requests arrived or timeout
// passes.
func (m *MockCatalog) WaitForRequests(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.RequestCount() >= n {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return m.RequestCount() >= n
}

func (m *MockCatalog) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))

	m.mu.Lock()
	m.requests = append(m.requests, Request{
		Path:      r.URL.Path,
		Page:      page,
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		UserAgent: r.Header.Get("User-Agent"),
	})
	gate := m.gate
	status, failing := m.failures[r.URL.Path]
	resp, canned := m.responses[r.URL.Path]
	ds := m.datasets[r.URL.Path]
	pageSize := m.pageSize
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	switch {
	case failing:
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":%q}`, http.StatusText(status))
	case canned:
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	case ds != nil:
		if page < 1 {
			page = 1
		}
		body := renderPage(ds, page, pageSize, q.Get("search"), q.Get("sort_by"))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}
}

func renderPage(ds *dataset, page, pageSize int, search, sortBy string) []byte {
	products := make([]Product, 0, len(ds.products))
	needle := strings.ToLower(search)
	for _, p := range ds.products {
		if needle == "" || strings.Contains(strings.ToLower(p.Name), needle) {
			products = append(products, p)
		}
	}

	switch sortBy {
	case "name_asc":
		sort.SliceStable(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	case "name_desc":
		sort.SliceStable(products, func(i, j int) bool { return products[i].Name > products[j].Name })
	}

	total := len(products)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	body, _ := json.Marshal(map[string]any{
		ds.listField:  products[start:end],
		"page":        page,
		"total":       total,
		"total_pages": totalPages,
		"has_next":    page < totalPages,
	})
	return body
}

// Products builds n products with ids "<prefix>-<i>" and names "<name> <i>".
func Products(prefix, name string, n int) []Product {
	out := make([]Product, n)
	for i := range out {
		out[i] = Product{
			ID:   fmt.Sprintf("%s-%d", prefix, i+1),
			Name: fmt.Sprintf("%s %d", name, i+1),
		}
	}
	return out
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewListResponse creates a 200 response with a raw list body.
func NewListResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
