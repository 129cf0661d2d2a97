// Package client provides the catalog list endpoint client: one paginated
// GET per call, response decoding and the fetch error taxonomy.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-feed/pkg/breaker"
	"github.com/Sternrassler/catalog-feed/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ScopePlaceholder is replaced by the escaped scope id in resource templates.
const ScopePlaceholder = "{scope}"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 16 << 20

// Prometheus metrics for catalog client operations.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog list requests by resource and status",
	}, []string{"resource", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog list request duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"resource"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog errors by kind and class",
	}, []string{"kind", "class"})
)

// Client is the catalog list endpoint client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	gate       *breaker.Gate
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog service, e.g. "https://shop.example.com/api"
	BaseURL string

	// User-Agent header sent with every request
	UserAgent string

	// Timeout per request
	Timeout time.Duration

	// HTTPClient overrides the default client (tests, custom transports)
	HTTPClient *http.Client

	// Breaker gates requests when the catalog keeps failing
	Breaker breaker.Config
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   15 * time.Second,
		Breaker:   breaker.DefaultConfig(),
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		gate:       breaker.NewGate("catalog", cfg.Breaker, countsAsOutage, logger),
		config:     cfg,
		logger:     logger,
	}, nil
}

// listResponse is the wire shape of a list endpoint response. Some
// resources call the list "items", others "products".
type listResponse struct {
	Items      []catalog.Item `json:"items"`
	Products   []catalog.Item `json:"products"`
	Page       int            `json:"page"`
	HasNext    bool           `json:"has_next"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// FetchPage performs GET <resource>?page=&sort_by=&search= and decodes the
// page. resource may contain ScopePlaceholder.
func (c *Client) FetchPage(ctx context.Context, resource string, q catalog.Query) (*catalog.PageResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	reqURL := c.buildURL(resource, q)

	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
	}()

	var page *catalog.PageResult
	err := c.gate.Execute(func() error {
		var fetchErr error
		page, fetchErr = c.do(ctx, resource, reqURL, q)
		return fetchErr
	})
	if errors.Is(err, breaker.ErrOpen) {
		err = &Error{
			Kind:     KindNetwork,
			Class:    ErrorClassCircuitOpen,
			Resource: resource,
			Message:  "catalog temporarily unavailable",
			Err:      err,
		}
		catalogRequestsTotal.WithLabelValues(resource, "circuit_open").Inc()
	}
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			catalogErrorsTotal.WithLabelValues(string(ce.Kind), string(ce.Class)).Inc()
		}
		return nil, err
	}
	return page, nil
}

func (c *Client) do(ctx context.Context, resource, reqURL string, q catalog.Query) (*catalog.PageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("resource", resource).
		Str("url", reqURL).
		Int("page", q.Page).
		Msg("Fetching catalog page")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("resource", resource).Msg("HTTP request failed")
		catalogRequestsTotal.WithLabelValues(resource, "network_error").Inc()
		return nil, &Error{
			Kind:     KindNetwork,
			Class:    ErrorClassTransport,
			Resource: resource,
			Message:  "request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	catalogRequestsTotal.WithLabelValues(resource, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		c.logger.Warn().
			Str("resource", resource).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Catalog request error")
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &Error{
			Kind:       KindNetwork,
			Class:      class,
			StatusCode: resp.StatusCode,
			Resource:   resource,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{
			Kind:       KindNetwork,
			Class:      ErrorClassTransport,
			StatusCode: resp.StatusCode,
			Resource:   resource,
			Message:    "read response body",
			Err:        err,
		}
	}

	page, err := decodePage(body, q.Page)
	if err != nil {
		c.logger.Warn().Err(err).Str("resource", resource).Msg("Malformed catalog response")
		return nil, &Error{
			Kind:       KindParse,
			Class:      ErrorClassBody,
			StatusCode: resp.StatusCode,
			Resource:   resource,
			Message:    "malformed list response",
			Err:        err,
		}
	}

	c.logger.Debug().
		Str("resource", resource).
		Int("page", page.Page).
		Int("items", len(page.Items)).
		Bool("has_next", page.HasNext).
		Msg("Catalog page fetched")
	return page, nil
}

// decodePage turns a response body into a page. requestedPage fills in a
// page number the server left out.
func decodePage(body []byte, requestedPage int) (*catalog.PageResult, error) {
	var lr listResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, err
	}

	items := lr.Items
	if items == nil {
		items = lr.Products
	}
	if items == nil {
		return nil, errors.New(`response has neither "items" nor "products"`)
	}

	page := lr.Page
	if page == 0 {
		page = requestedPage
	}
	return &catalog.PageResult{
		Items:      items,
		Page:       page,
		Total:      lr.Total,
		TotalPages: lr.TotalPages,
		HasNext:    lr.HasNext,
	}, nil
}

// buildURL expands the resource template and appends the query string.
func (c *Client) buildURL(resource string, q catalog.Query) string {
	path := strings.ReplaceAll(resource, ScopePlaceholder, url.PathEscape(q.ScopeID))

	u := *c.baseURL
	u.RawPath = strings.TrimSuffix(c.baseURL.EscapedPath(), "/") + "/" + strings.TrimPrefix(path, "/")
	if unescaped, err := url.PathUnescape(u.RawPath); err == nil {
		u.Path = unescaped
	} else {
		u.Path = u.RawPath
		u.RawPath = ""
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	if q.SortBy != catalog.SortDefault {
		params.Set("sort_by", string(q.SortBy))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	u.RawQuery = params.Encode()
	return u.String()
}

// classifyStatus categorizes a non-2xx status.
func classifyStatus(status int) ErrorClass {
	if status >= 400 && status < 500 {
		return ErrorClassClient
	}
	return ErrorClassServer
}

// Lister binds the client to one resource template.
func (c *Client) Lister(resource string) *Lister {
	return &Lister{client: c, resource: resource}
}

// BreakerState returns the state of the request gate.
func (c *Client) BreakerState() breaker.State {
	return c.gate.State()
}

// Lister fetches pages of a single resource. It satisfies
// pagination.PageFetcher.
type Lister struct {
	client   *Client
	resource string
}

// FetchPage fetches one page of the bound resource.
func (l *Lister) FetchPage(ctx context.Context, q catalog.Query) (*catalog.PageResult, error) {
	return l.client.FetchPage(ctx, l.resource, q)
}

// Resource returns the bound resource template.
func (l *Lister) Resource() string {
	return l.resource
}
