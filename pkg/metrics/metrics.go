// Package metrics exposes the Prometheus metrics of the telq packages.
// Metrics are defined with promauto next to the code that records them
// (cache, telq) so packages stay independent of each other; this package
// only serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer the telq packages record into.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns an HTTP handler exposing every registered metric.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics
//
// Cache (pkg/cache):
//   - telq_cache_hits_total (Counter): GET lookups served from the registry
//   - telq_cache_misses_total (Counter): GET lookups without a live entry
//   - telq_cache_entries (Gauge): entries currently held
//   - telq_cache_evictions_total{reason} (Counter): removals by reason (expired, replaced, disposed)
//
// Operations (pkg/telq):
//   - telq_requests_total{operation, status} (Counter): calls by operation and outcome
//     (HTTP status code, cache_hit, network_error, ok, error)
//   - telq_request_duration_seconds{operation} (Histogram): call duration
//   - telq_errors_total{class} (Counter): rejected requests by class (client, server, network, status)
//
// Retry (pkg/telq, only when retries are enabled):
//   - telq_retries_total{error_class} (Counter)
//   - telq_retry_backoff_seconds{error_class} (Histogram)
//   - telq_retry_exhausted_total{error_class} (Counter)
//
// Example queries:
//
//   # Cache hit rate
//   sum(rate(telq_cache_hits_total[5m])) /
//   (sum(rate(telq_cache_hits_total[5m])) + sum(rate(telq_cache_misses_total[5m])))
//
//   # Upstream 5xx rate
//   rate(telq_errors_total{class="server"}[5m])
//
//   # P95 latency of the document store operation
//   histogram_quantile(0.95, rate(telq_request_duration_seconds_bucket{operation="dbMongoose"}[5m]))
