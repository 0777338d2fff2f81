// Package worker is the audit sink: it drains the audit channel and persists
// each event. Persistence failures are logged and the event is dropped; the
// sink never retries and never reports back to the producer.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "ezclaim/pkg/platform/audit"
)

// DefaultPersistTimeout bounds a single store write.
const DefaultPersistTimeout = 5 * time.Second

// Worker consumes audit events from a channel and persists them.
type Worker struct {
	store   audit.Store
	inbox   <-chan audit.Event
	logger  *slog.Logger
	metrics *audit.Metrics
	breaker *CircuitBreaker
	timeout time.Duration
	newID   func() string
}

// Option configures the Worker.
type Option func(*Worker)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *audit.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(w *Worker) {
		w.breaker = cb
	}
}

// WithPersistTimeout bounds each store write.
func WithPersistTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// NewWorker builds a sink over store. inbox may be nil when events arrive
// through Persist only (the Kafka consumer path).
func NewWorker(store audit.Store, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{
		store:   store,
		inbox:   inbox,
		logger:  slog.Default(),
		breaker: NewCircuitBreaker(5, 30*time.Second),
		timeout: DefaultPersistTimeout,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the inbox until it is closed (returns nil) or ctx is cancelled
// (returns ctx.Err()).
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				w.logger.InfoContext(ctx, "audit channel closed, sink stopping")
				return nil
			}
			w.Persist(ctx, event)
		}
	}
}

// Persist writes one event, assigning an id when the transport did not.
// It reports whether the event was stored.
func (w *Worker) Persist(ctx context.Context, event audit.Event) bool {
	if event.ID == "" {
		event.ID = w.newID()
	}

	if !w.breaker.Allow() {
		w.metrics.IncCircuitBreakerDropped()
		w.logger.WarnContext(ctx, "audit store circuit open, event dropped",
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"action", event.Action,
		)
		return false
	}

	start := time.Now()
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	err := w.store.Append(pctx, event)
	cancel()

	if err != nil {
		w.metrics.IncPersistFailures()
		if w.breaker.RecordFailure() {
			w.metrics.SetCircuitBreakerState(true)
			w.logger.ErrorContext(ctx, "audit store circuit opened")
		}
		w.logger.ErrorContext(ctx, "audit event persistence failed",
			"event_id", event.ID,
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"action", event.Action,
			"error", err,
		)
		return false
	}

	w.breaker.RecordSuccess()
	w.metrics.SetCircuitBreakerState(false)
	w.metrics.ObservePersisted(time.Since(start).Seconds())
	return true
}
