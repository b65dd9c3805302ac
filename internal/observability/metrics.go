// Package observability provides Prometheus metrics for the service.
//
// Metrics are exposed on /metrics. All operations are safe for concurrent use.
package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "taskboard"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeInternal = "error"
)

// Metrics holds the service's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// CommentOpsTotal counts comment operations.
	// Labels: op (list, add, update, delete, subscribe), outcome.
	CommentOpsTotal *prometheus.CounterVec

	// TreeSize observes how many comments a list returned, tree-wide.
	TreeSize prometheus.Histogram

	// HTTPRequestDuration measures handler latency.
	// Labels: route (chi pattern), method, status.
	HTTPRequestDuration *prometheus.HistogramVec

	// ActiveFeeds tracks open websocket feeds.
	ActiveFeeds prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry, so tests can build as
// many as they like.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CommentOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "comments",
			Name:      "operations_total",
			Help:      "Comment operations by type and outcome.",
		}, []string{"op", "outcome"}),
		TreeSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "comments",
			Name:      "tree_size",
			Help:      "Number of comments in a listed tree.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		ActiveFeeds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "comments",
			Name:      "active_feeds",
			Help:      "Open live comment feeds.",
		}),
	}
}

// Outcome maps an operation error onto an outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, domain.ErrNotFoundOrForbidden):
		return OutcomeNotFound
	}
	return OutcomeInternal
}

// ObserveOp counts one comment operation.
func (m *Metrics) ObserveOp(op string, err error) {
	if m == nil {
		return
	}
	m.CommentOpsTotal.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveTree records the size of a listed tree.
func (m *Metrics) ObserveTree(n int) {
	if m == nil {
		return
	}
	m.TreeSize.Observe(float64(n))
}

// FeedOpened and FeedClosed track live feeds.
func (m *Metrics) FeedOpened() {
	if m != nil {
		m.ActiveFeeds.Inc()
	}
}

func (m *Metrics) FeedClosed() {
	if m != nil {
		m.ActiveFeeds.Dec()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware times each request under its chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
