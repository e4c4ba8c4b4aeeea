package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// DeadLetterWriter publishes synchronously: Publish returns only once the
// brokers acknowledged the copy, so the consumer commits the original after
// the dead-letter record is durable.
type DeadLetterWriter struct {
	w messageWriter
}

func NewDeadLetterWriter(brokers []string) *DeadLetterWriter {
	return newDeadLetterWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		MaxAttempts:            5,
		WriteTimeout:           10 * time.Second,
	})
}

func newDeadLetterWriter(w messageWriter) *DeadLetterWriter {
	return &DeadLetterWriter{w: w}
}

func (d *DeadLetterWriter) Publish(ctx context.Context, msgs ...kafka.Message) error {
	for i := range msgs {
		if msgs[i].Time.IsZero() {
			msgs[i].Time = time.Now()
		}
	}
	return errors.Wrap(d.w.WriteMessages(ctx, msgs...), "write dead letter")
}

func (d *DeadLetterWriter) Close() error { return d.w.Close() }
