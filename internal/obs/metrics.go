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

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service considers itself ready.",
	})
)

// Security-domain metrics. Incremented by the login handler, the lockout
// guard and the authorization gate.
var (
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by outcome (success, failure, locked).",
		},
		[]string{"outcome"},
	)

	LockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_lockouts_total",
		Help: "Lockouts triggered after repeated failed attempts.",
	})

	AuthzDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denials_total",
			Help: "Authorization denials by reason (token, status, role, permission).",
		},
		[]string{"reason"},
	)

	SessionExtensionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_extensions_total",
		Help: "Successful session extensions.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration, ready,
		LoginAttemptsTotal, LockoutsTotal, AuthzDenialsTotal, SessionExtensionsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
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

// CanonicalPath collapses per-entity path segments so metric cardinality
// stays bounded. Only account-scoped admin routes carry identifiers.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	// /api/admin/accounts/<id>[/<action>]
	if len(parts) >= 5 && parts[1] == "api" && parts[2] == "admin" && parts[3] == "accounts" && parts[4] != "" {
		parts[4] = ":id"
		return strings.Join(parts, "/")
	}
	return path
}

// statusWriter records the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
