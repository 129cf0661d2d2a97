// Package metrics exposes the Prometheus registry used by the catalog feed.
// All metrics are defined in their respective packages (client, breaker,
// cache, pagination, listing) and registered via promauto.
//
// This package serves them and documents what is available.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the catalog feed.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Path is where Serve exposes the metrics.
const Path = "/metrics"

// Handler returns the HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Serve exposes Handler on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln)
}

// ServeListener exposes Handler on ln until ctx is done.
func ServeListener(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := log.With().Str("component", "metrics").Logger()
	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{resource, status} (Counter): List requests by resource and HTTP status
//   - catalog_request_duration_seconds{resource} (Histogram): Request duration by resource
//   - catalog_errors_total{kind, class} (Counter): Errors by kind (network, parse) and class
//
// Circuit Breaker Metrics (pkg/breaker):
//   - catalog_breaker_state{name} (Gauge): 0=closed, 1=half_open, 2=open
//   - catalog_breaker_rejections_total{name} (Counter): Calls rejected while open
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{backend} (Counter): List cache hits
//   - catalog_cache_misses_total{backend} (Counter): List cache misses
//   - catalog_cache_writes_total{backend} (Counter): Entries written
//   - catalog_cache_entry_bytes{backend} (Histogram): Serialized entry size
//   - catalog_cache_errors_total{operation} (Counter): Cache operation errors
//
// Fetch Metrics (pkg/pagination):
//   - catalog_fetch_total{mode, outcome} (Counter): Page fetches by mode (reset, append)
//   - catalog_fetch_dropped_total (Counter): Fetches dropped because one was in flight
//   - catalog_fetch_duration_seconds{mode} (Histogram): Fetch duration including cache merge
//
// Session Metrics (pkg/listing):
//   - catalog_stale_responses_total (Counter): Responses discarded after a query change
//   - catalog_session_transitions_total{status} (Counter): Session status transitions
//   - catalog_session_cache_restores_total (Counter): Query changes served from cache
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Dropped scroll triggers
//   rate(catalog_fetch_dropped_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
//
//   # Breaker open
//   catalog_breaker_state == 2
