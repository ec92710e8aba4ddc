package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	checkoutReconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_reconciliations_total",
			Help: "Checkout transitions by path (create, return, notify) and outcome.",
		},
		[]string{"path", "outcome"},
	)
)

// RecordReconciliation counts one checkout transition attempt.
func RecordReconciliation(path, outcome string) {
	checkoutReconciliations.WithLabelValues(path, outcome).Inc()
}

// NewMetricsMiddleware creates HTTP middleware for collecting Prometheus
// metrics. Paths are labelled by route pattern so order ids do not explode
// cardinality.
func NewMetricsMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				path := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						path = pattern
					}
				}

				httpRequestDuration.WithLabelValues(serviceName, r.Method, path).Observe(time.Since(start).Seconds())
				httpRequestsTotal.WithLabelValues(serviceName, r.Method, path, strconv.Itoa(ww.Status())).Inc()
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
