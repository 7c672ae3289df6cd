// Package metrics holds the Prometheus collectors exported by rack.
// Business counters are updated from the packages that own the work.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rack_http_requests_total",
			Help: "Total HTTP requests served by rack",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var (
	// IngestionsTotal counts commissioning results by script and outcome
	// (stored, unknown_node, error).
	IngestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rack_ingestions_total",
			Help: "Commissioning results ingested, by script and outcome",
		},
		[]string{"script", "outcome"},
	)

	// OmshellCommandsTotal counts omshell invocations by verb and classified outcome.
	OmshellCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rack_omshell_commands_total",
			Help: "omshell commands issued, by verb and outcome",
		},
		[]string{"verb", "outcome"},
	)

	// KeygenAttemptsTotal counts dnssec-keygen runs, including rejected keys.
	KeygenAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rack_keygen_attempts_total",
			Help: "dnssec-keygen invocations",
		},
	)

	// KeygenRetriesTotal counts keys discarded because omshell cannot parse them.
	KeygenRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rack_keygen_retries_total",
			Help: "Generated OMAPI keys rejected and regenerated",
		},
	)
)

// Middleware records request counts and durations. Paths are labelled with the
// matched chi route pattern to keep label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
