// Package metrics provides Prometheus instrumentation for the settlement engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AgreementsCreated counts agreements opened, partitioned by book ticker.
	AgreementsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_agreements_created_total",
		Help: "Total number of agreements created",
	}, []string{"book"})

	// Transitions counts successful lifecycle transitions.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_transitions_total",
		Help: "Successful agreement transitions",
	}, []string{"book", "transition"})

	// TransitionFailures counts rejected transitions by error category.
	TransitionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_transition_failures_total",
		Help: "Rejected agreement transitions",
	}, []string{"book", "transition", "kind"})

	TransitionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settle_transition_latency_seconds",
		Help:    "Transition latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"transition"})

	// OpenAgreements tracks agreements that are neither exercised nor reclaimed.
	OpenAgreements = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "settle_open_agreements",
		Help: "Agreements not yet exercised or reclaimed",
	}, []string{"book"})

	// SettledVolume accumulates strike-asset units paid between parties.
	SettledVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_settled_volume_total",
		Help: "Cumulative settlement payouts in strike-asset units",
	}, []string{"book"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settle_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// StoreErrors counts failed mirror writes. The book keeps running.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_store_errors_total",
		Help: "Failed metadata or event writes to the store",
	}, []string{"op"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settle_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settle_http_request_duration_seconds",
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
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern, not the raw path, to keep agreement ids out of labels.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
