// Package metrics provides Prometheus instrumentation for the price engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EstimatesTotal counts price estimates served, partitioned by product.
	EstimatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openmandi_estimates_total",
		Help: "Total number of price estimates served",
	}, []string{"product"})

	// DegradedEstimatesTotal counts estimates served below the confidence
	// threshold.
	DegradedEstimatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openmandi_degraded_estimates_total",
		Help: "Price estimates served with degraded confidence",
	})

	// AssessmentsTotal counts fairness assessments by verdict.
	AssessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openmandi_assessments_total",
		Help: "Total number of offer assessments",
	}, []string{"verdict"})

	// EthicsFlagsTotal counts raised ethics flags by kind and severity.
	EthicsFlagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openmandi_ethics_flags_total",
		Help: "Ethics flags raised on assessments",
	}, []string{"kind", "severity"})

	// CacheRefreshesTotal counts snapshot cache refreshes by outcome.
	CacheRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openmandi_cache_refreshes_total",
		Help: "Snapshot cache refresh attempts",
	}, []string{"outcome"})

	// CachedSeries tracks how many (product, location) series the serving
	// cache generation holds.
	CachedSeries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openmandi_cached_series",
		Help: "Market series held by the snapshot cache",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openmandi_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// RateLimitedTotal counts requests rejected by the per-IP rate limiter.
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openmandi_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openmandi_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openmandi_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
