// Package capture turns entity store mutations into audit events.
//
// The Listener is registered as the storage.Hook of every domain collection.
// It runs synchronously after a write has committed, builds an audit.Event and
// hands it to an audit.Publisher. Nothing it does can fail or slow the write:
// construction and hand-off errors are logged and counted, never returned.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"ezclaim/internal/storage"
	audit "ezclaim/pkg/platform/audit"
)

// Listener implements storage.Hook.
type Listener struct {
	publisher audit.Publisher
	logger    *slog.Logger
	metrics   *audit.Metrics
	now       func() time.Time
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the logger for dropped events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *audit.Metrics) Option {
	return func(l *Listener) {
		l.metrics = m
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) {
		l.now = now
	}
}

// NewListener creates a listener that publishes to p.
func NewListener(p audit.Publisher, opts ...Option) *Listener {
	l := &Listener{
		publisher: p,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ storage.Hook = (*Listener)(nil)

// AfterSave records a SAVE with the stored snapshot minus bookkeeping keys.
func (l *Listener) AfterSave(ctx context.Context, m storage.Mutation) {
	if m.Collection == audit.CollectionName {
		return
	}
	entityType := m.EntityType
	if entityType == "" {
		entityType = collectionType(m.Collection)
	}
	l.emit(ctx, audit.Event{
		EntityType: entityType,
		EntityID:   m.EntityID,
		Action:     audit.ActionSave,
		Data:       snapshot(m.Document),
	})
}

// AfterDelete records a DELETE. The entity type comes from the removed
// document when it carried one; the event has no data.
func (l *Listener) AfterDelete(ctx context.Context, m storage.Mutation) {
	if m.Collection == audit.CollectionName {
		return
	}
	entityType := m.EntityType
	if entityType == "" {
		entityType = collectionType(m.Collection)
	}
	l.emit(ctx, audit.Event{
		EntityType: entityType,
		EntityID:   m.EntityID,
		Action:     audit.ActionDelete,
	})
}

func (l *Listener) emit(ctx context.Context, event audit.Event) {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.IncEnqueueFailures()
			l.logger.ErrorContext(ctx, "audit capture panicked",
				"entity_type", event.EntityType,
				"entity_id", event.EntityID,
				"action", event.Action,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if event.EntityID == "" {
		l.metrics.IncEnqueueFailures()
		l.logger.WarnContext(ctx, "audit capture skipped mutation without id",
			"entity_type", event.EntityType,
			"action", event.Action,
		)
		return
	}
	event.OccurredAt = l.now().UTC()

	// The request may end before the sink runs.
	if err := l.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		l.metrics.IncEnqueueFailures()
		l.logger.ErrorContext(ctx, "failed to enqueue audit event",
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"action", event.Action,
			"error", err,
		)
		return
	}
	l.metrics.IncCaptured(event.Action)
}

func collectionType(name string) string {
	return "collection:" + name
}

// snapshot copies doc without keys that start with an underscore.
func snapshot(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	out := maps.Clone(doc)
	for k := range out {
		if strings.HasPrefix(k, "_") {
			delete(out, k)
		}
	}
	return out
}
