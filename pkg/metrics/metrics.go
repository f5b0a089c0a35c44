// Package metrics exposes the Prometheus registry used by the Etrieve
// client. Collectors are defined next to the code they measure (client,
// session, pagination, cache) and registered via promauto; this package
// serves them and documents the catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all package collectors use.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Session Metrics (pkg/session):
//   - etrieve_token_acquisitions_total{outcome} (Counter): Session acquisitions by
//     outcome (reused, success, rejected, transport_error, decode_error)
//   - etrieve_session_resets_total (Counter): Sessions discarded after failures or Reset
//
// Request Metrics (pkg/client):
//   - etrieve_requests_total{method, status} (Counter): API calls by method and
//     HTTP status, network_error when no response arrived
//   - etrieve_request_duration_seconds{method} (Histogram): API call duration
//   - etrieve_session_unavailable_total (Counter): Calls not sent for lack of a session
//
// Pagination Metrics (pkg/pagination):
//   - etrieve_pagination_fetches_total (Counter): Metadata pages fetched
//   - etrieve_pagination_truncations_total (Counter): Runs stopped at loop_max
//
// Cache Metrics (pkg/cache):
//   - etrieve_cache_hits_total (Counter): Content cache hits
//   - etrieve_cache_misses_total (Counter): Content cache misses
//   - etrieve_cache_stored_bytes_total (Counter): Bytes written to the cache
//   - etrieve_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Token exchange failure rate
//   sum(rate(etrieve_token_acquisitions_total{outcome!="success"}[5m]))
//
//   # Unauthorized API calls
//   rate(etrieve_requests_total{status="401"}[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(etrieve_request_duration_seconds_bucket[5m]))
//
//   # Cache hit rate
//   sum(rate(etrieve_cache_hits_total[5m])) /
//   (sum(rate(etrieve_cache_hits_total[5m])) + sum(rate(etrieve_cache_misses_total[5m])))
