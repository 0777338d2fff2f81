package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	platformkafka "ezclaim/internal/platform/kafka"
	audit "ezclaim/pkg/platform/audit"
)

// Sink persists one decoded event.
type Sink interface {
	Persist(ctx context.Context, event audit.Event) bool
}

// Handler decodes audit records and hands them to the sink.
type Handler struct {
	sink    Sink
	logger  *slog.Logger
	metrics *audit.Metrics
}

// NewHandler creates a consumer handler. metrics may be nil.
func NewHandler(sink Sink, logger *slog.Logger, metrics *audit.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{sink: sink, logger: logger, metrics: metrics}
}

var _ platformkafka.Handler = (*Handler)(nil)

// Handle never returns an error: malformed records are logged and skipped,
// and persistence failures are already handled by the sink.
func (h *Handler) Handle(ctx context.Context, msg *platformkafka.Message) error {
	var event audit.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.metrics.IncMalformedRecords()
		h.logger.ErrorContext(ctx, "failed to unmarshal audit record",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}
	if event.EntityID == "" || event.Action == "" {
		h.metrics.IncMalformedRecords()
		h.logger.ErrorContext(ctx, "audit record missing entity id or action",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"event_id", event.ID,
		)
		return nil
	}
	if _, err := audit.ParseAction(string(event.Action)); err != nil {
		h.metrics.IncMalformedRecords()
		h.logger.ErrorContext(ctx, "audit record has unknown action",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"action", event.Action,
		)
		return nil
	}

	h.sink.Persist(ctx, event)
	return nil
}
