package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Captured              *prometheus.CounterVec
	EnqueueFailures       prometheus.Counter
	Persisted             prometheus.Counter
	PersistFailures       prometheus.Counter
	CircuitBreakerDropped prometheus.Counter
	CircuitBreakerState   prometheus.Gauge
	MalformedRecords      prometheus.Counter
	PersistDuration       prometheus.Histogram
}

// NewMetrics registers the audit pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Captured: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ezclaim_audit_captured_total",
			Help: "Total number of entity mutations turned into audit events",
		}, []string{"action"}),
		EnqueueFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ezclaim_audit_enqueue_failures_total",
			Help: "Total number of audit events that could not be handed to the pipeline",
		}),
		Persisted: f.NewCounter(prometheus.CounterOpts{
			Name: "ezclaim_audit_persisted_total",
			Help: "Total number of audit events written to the audit store",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ezclaim_audit_persist_failures_total",
			Help: "Total number of audit events dropped after a store write failed",
		}),
		CircuitBreakerDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "ezclaim_audit_circuit_breaker_dropped_total",
			Help: "Total number of audit events dropped while the store circuit was open",
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "ezclaim_audit_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
		MalformedRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "ezclaim_audit_malformed_records_total",
			Help: "Total number of transport records skipped because they could not be decoded",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ezclaim_audit_persist_duration_seconds",
			Help:    "Duration of audit store writes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncCaptured counts an event built by the listener.
func (m *Metrics) IncCaptured(action Action) {
	if m == nil {
		return
	}
	m.Captured.WithLabelValues(string(action)).Inc()
}

// IncEnqueueFailures counts an event the pipeline refused.
func (m *Metrics) IncEnqueueFailures() {
	if m == nil {
		return
	}
	m.EnqueueFailures.Inc()
}

// ObservePersisted records a successful store write.
func (m *Metrics) ObservePersisted(seconds float64) {
	if m == nil {
		return
	}
	m.Persisted.Inc()
	m.PersistDuration.Observe(seconds)
}

// IncPersistFailures increments the persist failures counter.
func (m *Metrics) IncPersistFailures() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

// IncCircuitBreakerDropped increments the circuit breaker dropped counter.
func (m *Metrics) IncCircuitBreakerDropped() {
	if m == nil {
		return
	}
	m.CircuitBreakerDropped.Inc()
}

// IncMalformedRecords counts an undecodable transport record.
func (m *Metrics) IncMalformedRecords() {
	if m == nil {
		return
	}
	m.MalformedRecords.Inc()
}

// SetCircuitBreakerState sets the circuit breaker state gauge.
func (m *Metrics) SetCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
