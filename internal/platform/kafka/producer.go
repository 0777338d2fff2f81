package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrBufferFull is returned when the producer already holds its maximum
// number of unacknowledged records.
var ErrBufferFull = errors.New("kafka producer buffer full")

// Producer sends records without waiting for broker acknowledgement.
// Delivery failures surface in the log, not to the caller.
type Producer struct {
	client      *kgo.Client
	maxBuffered int64
	logger      *slog.Logger
}

// ProducerOpts bounds the client buffer so Produce never blocks.
func ProducerOpts(maxBuffered int) []kgo.Opt {
	return []kgo.Opt{
		kgo.MaxBufferedRecords(maxBuffered),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
}

// NewProducer wraps a client built with ProducerOpts(maxBuffered).
func NewProducer(client *kgo.Client, maxBuffered int, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{client: client, maxBuffered: int64(maxBuffered), logger: logger}
}

// Produce queues one record. It fails fast with ErrBufferFull when the
// client buffer is exhausted.
func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte) error {
	if p.maxBuffered > 0 && p.client.BufferedProduceRecords() >= p.maxBuffered {
		return ErrBufferFull
	}
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	p.client.TryProduce(ctx, rec, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		p.logger.ErrorContext(ctx, "kafka delivery failed",
			"topic", r.Topic,
			"key", string(r.Key),
			"error", err,
		)
	})
	return nil
}

// Flush waits for buffered records to be acknowledged.
func (p *Producer) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}
