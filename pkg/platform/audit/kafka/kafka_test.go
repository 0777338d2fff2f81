package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformkafka "ezclaim/internal/platform/kafka"
	audit "ezclaim/pkg/platform/audit"
	"ezclaim/pkg/platform/audit/store/memory"
	"ezclaim/pkg/platform/audit/worker"
)

type record struct {
	topic string
	key   []byte
	value []byte
}

type fakeProducer struct {
	records []record
	err     error
}

func (p *fakeProducer) Produce(_ context.Context, topic string, key, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, record{topic: topic, key: key, value: value})
	return nil
}

type recordingSink struct {
	events []audit.Event
}

func (s *recordingSink) Persist(_ context.Context, e audit.Event) bool {
	s.events = append(s.events, e)
	return true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_KeysByEntityAndAssignsID(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewPublisher(producer, "audit")

	occurred := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	err := pub.Publish(context.Background(), audit.Event{
		EntityType: "Claim",
		EntityID:   "c-42",
		Action:     audit.ActionSave,
		OccurredAt: occurred,
		Data:       map[string]any{"title": "Hotel"},
	})
	require.NoError(t, err)
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "audit", rec.topic)
	assert.Equal(t, "c-42", string(rec.key))

	var wire map[string]any
	require.NoError(t, json.Unmarshal(rec.value, &wire))
	assert.NotEmpty(t, wire["id"])
	assert.Equal(t, "Claim", wire["entityType"])
	assert.Equal(t, "c-42", wire["entityId"])
	assert.Equal(t, "SAVE", wire["action"])
	assert.Equal(t, "2024-05-01T08:30:00Z", wire["occurredAt"])
	assert.Equal(t, map[string]any{"title": "Hotel"}, wire["data"])
}

func TestPublisher_ProducerRefusal(t *testing.T) {
	producer := &fakeProducer{err: platformkafka.ErrBufferFull}
	pub := NewPublisher(producer, "audit")

	err := pub.Publish(context.Background(), audit.Event{EntityID: "c1", Action: audit.ActionDelete})
	assert.ErrorIs(t, err, platformkafka.ErrBufferFull)
}

func TestHandler_SkipsMalformedRecords(t *testing.T) {
	metrics := audit.NewMetrics(prometheus.NewRegistry())
	sink := &recordingSink{}
	h := NewHandler(sink, discardLogger(), metrics)

	tests := []struct {
		name  string
		value string
	}{
		{"not json", `{"entityId":`},
		{"missing entity id", `{"id":"e1","action":"SAVE"}`},
		{"unknown action", `{"id":"e1","entityId":"c1","action":"UPSERT"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Handle(context.Background(), &platformkafka.Message{Topic: "audit", Value: []byte(tt.value)})
			assert.NoError(t, err)
		})
	}
	assert.Empty(t, sink.events)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.MalformedRecords))
}

func TestHandler_DeliversToSink(t *testing.T) {
	sink := &recordingSink{}
	h := NewHandler(sink, discardLogger(), nil)

	value := `{"id":"e1","entityType":"Tag","entityId":"t1","action":"DELETE","occurredAt":"2024-05-01T08:30:00Z","data":null}`
	require.NoError(t, h.Handle(context.Background(), &platformkafka.Message{Value: []byte(value)}))

	require.Len(t, sink.events, 1)
	assert.Equal(t, "e1", sink.events[0].ID)
	assert.Equal(t, audit.ActionDelete, sink.events[0].Action)
	assert.Nil(t, sink.events[0].Data)
}

// A redelivered record keeps its publish-time id and is stored once.
func TestRoundTrip_RedeliveryIsIdempotent(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewPublisher(producer, "audit")
	require.NoError(t, pub.Publish(context.Background(), audit.Event{
		EntityType: "Claim", EntityID: "c1", Action: audit.ActionSave, OccurredAt: time.Now().UTC(),
	}))

	store := memory.NewInMemoryStore()
	sink := worker.NewWorker(store, nil, worker.WithLogger(discardLogger()))
	h := NewHandler(sink, discardLogger(), nil)

	msg := &platformkafka.Message{Key: producer.records[0].key, Value: producer.records[0].value}
	require.NoError(t, h.Handle(context.Background(), msg))
	require.NoError(t, h.Handle(context.Background(), msg))

	q := audit.Query{}
	require.NoError(t, q.Normalize())
	page, err := store.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestPublisher_MarshalFailure(t *testing.T) {
	pub := NewPublisher(&fakeProducer{}, "audit")
	err := pub.Publish(context.Background(), audit.Event{
		EntityID: "c1",
		Action:   audit.ActionSave,
		Data:     map[string]any{"bad": func() {}},
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, platformkafka.ErrBufferFull))
}
