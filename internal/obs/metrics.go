package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Auth-core metrics.
var (
	authLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by actor kind and result.",
		},
		[]string{"kind", "result"},
	)

	authRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_rotations_total",
			Help: "Refresh token rotations by actor kind and result.",
		},
		[]string{"kind", "result"},
	)

	authReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_token_replays_total",
			Help: "Refresh tokens presented after consumption or revocation.",
		},
	)

	authDenialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_permission_denials_total",
			Help: "Administrator requests denied by the permission evaluator.",
		},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
		authLoginsTotal, authRotationsTotal, authReplaysTotal, authDenialsTotal)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin records one login attempt.
func ObserveLogin(kind, result string) {
	authLoginsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveRotation records one refresh rotation attempt.
func ObserveRotation(kind, result string) {
	authRotationsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveReplay records a detected refresh token replay.
func ObserveReplay() {
	authReplaysTotal.Inc()
}

// ObserveDenial records a permission denial.
func ObserveDenial() {
	authDenialsTotal.Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight accounting.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses per-resource path segments so metric label
// cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	// /v1/admins/{id}/grants[/{grantID}]
	if len(parts) >= 5 && parts[1] == "v1" && parts[2] == "admins" && parts[4] == "grants" {
		parts[3] = ":id"
		if len(parts) == 6 {
			parts[5] = ":grant_id"
		}
		if len(parts) <= 6 {
			return strings.Join(parts, "/")
		}
	}
	return path
}

// statusWriter captures the response code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
