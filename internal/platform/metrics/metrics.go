// Package metrics holds the application level Prometheus collectors: HTTP
// traffic and claim lifecycle counters. The audit pipeline registers its own.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// records nothing.
type Metrics struct {
	RequestDuration  *prometheus.HistogramVec
	ClaimsCreated    prometheus.Counter
	Transitions      *prometheus.CounterVec
	PasswordFailures prometheus.Counter
	DeniedPatches    prometheus.Counter
}

// New creates and registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ezclaim_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ClaimsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "ezclaim_claims_created_total",
			Help: "Total number of claims created",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ezclaim_claim_transitions_total",
			Help: "Total number of applied claim status transitions",
		}, []string{"from", "to", "caller"}),
		PasswordFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ezclaim_claim_password_failures_total",
			Help: "Total number of wrong claim passwords supplied",
		}),
		DeniedPatches: f.NewCounter(prometheus.CounterOpts{
			Name: "ezclaim_claim_patches_denied_total",
			Help: "Total number of claim patches refused for authorization reasons",
		}),
	}
}

func (m *Metrics) IncClaimsCreated() {
	if m == nil {
		return
	}
	m.ClaimsCreated.Inc()
}

func (m *Metrics) IncTransition(from, to, caller string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to, caller).Inc()
}

func (m *Metrics) IncPasswordFailures() {
	if m == nil {
		return
	}
	m.PasswordFailures.Inc()
}

func (m *Metrics) IncDeniedPatches() {
	if m == nil {
		return
	}
	m.DeniedPatches.Inc()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware observes request duration labelled by the matched chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}
