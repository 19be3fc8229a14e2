// Package metrics documents the Prometheus metrics of gqlfetch and serves
// them over HTTP. The metrics themselves are defined in their packages
// (pagination, gql, cache, ratelimit, schema, storage) with promauto.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the registry all gqlfetch metrics register with.
var Registry = prometheus.DefaultRegisterer

// Names lists every metric exported by gqlfetch.
var Names = []string{
	// pkg/pagination
	"gqlfetch_pages_fetched_total",
	"gqlfetch_items_fetched_total",
	"gqlfetch_throttle_wait_seconds",
	"gqlfetch_pagination_runs_total",
	// pkg/gql
	"gqlfetch_requests_total",
	"gqlfetch_request_duration_seconds",
	"gqlfetch_errors_total",
	"gqlfetch_retries_total",
	"gqlfetch_retry_backoff_seconds",
	"gqlfetch_retry_exhausted_total",
	// pkg/cache
	"gqlfetch_cache_hits_total",
	"gqlfetch_cache_misses_total",
	"gqlfetch_cache_stored_bytes_total",
	"gqlfetch_cache_errors_total",
	// pkg/ratelimit
	"gqlfetch_rate_limit_remaining",
	"gqlfetch_rate_limit_blocks_total",
	"gqlfetch_rate_limit_throttles_total",
	// pkg/schema
	"gqlfetch_schema_inference_duration_seconds",
	"gqlfetch_schema_inference_failures_total",
	// pkg/storage
	"gqlfetch_tables_built_total",
}

// Metrics Documentation
//
// Pagination (pkg/pagination):
//   - gqlfetch_pages_fetched_total (Counter)
//   - gqlfetch_items_fetched_total (Counter): items accumulated or delivered
//   - gqlfetch_throttle_wait_seconds (Histogram): adaptive wait between pages
//   - gqlfetch_pagination_runs_total{outcome} (Counter): complete, error, cancelled
//
// Transport (pkg/gql):
//   - gqlfetch_requests_total{host, status} (Counter)
//   - gqlfetch_request_duration_seconds{host} (Histogram)
//   - gqlfetch_errors_total{class} (Counter): client, server, rate_limit, network, query
//   - gqlfetch_retries_total{error_class} (Counter)
//   - gqlfetch_retry_backoff_seconds{error_class} (Histogram)
//   - gqlfetch_retry_exhausted_total{error_class} (Counter)
//
// Response cache (pkg/cache):
//   - gqlfetch_cache_hits_total{layer} (Counter): redis, memory
//   - gqlfetch_cache_misses_total{layer} (Counter)
//   - gqlfetch_cache_stored_bytes_total{layer} (Counter)
//   - gqlfetch_cache_errors_total{operation} (Counter): get, set, delete
//
// Rate limits (pkg/ratelimit):
//   - gqlfetch_rate_limit_remaining{host} (Gauge)
//   - gqlfetch_rate_limit_blocks_total{host} (Counter)
//   - gqlfetch_rate_limit_throttles_total{host} (Counter)
//
// Schema and storage (pkg/schema, pkg/storage):
//   - gqlfetch_schema_inference_duration_seconds (Histogram)
//   - gqlfetch_schema_inference_failures_total (Counter)
//   - gqlfetch_tables_built_total{outcome} (Counter)
//
// Example Prometheus Queries:
//
//   # Items per second
//   rate(gqlfetch_items_fetched_total[5m])
//
//   # Cache Hit Rate
//   sum(rate(gqlfetch_cache_hits_total[5m])) /
//   (sum(rate(gqlfetch_cache_hits_total[5m])) + sum(rate(gqlfetch_cache_misses_total[5m])))
//
//   # Rate limit headroom
//   gqlfetch_rate_limit_remaining < 100
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(gqlfetch_request_duration_seconds_bucket[5m]))

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
