package events

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-market-saga/internal/kafka"
)

// Publisher wraps payloads in an Envelope and hands one message per topic
// to the producer. It does not wait for broker acknowledgement.
type Publisher struct {
	sink     kafkax.Publisher
	producer string
}

func NewPublisher(sink kafkax.Publisher, producer string) *Publisher {
	return &Publisher{sink: sink, producer: producer}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, key []byte, payload any, topics ...string) error {
	if len(topics) == 0 {
		return errors.Errorf("%s: no topics", eventType)
	}
	env, err := NewEnvelope(eventType, p.producer, string(key), payload)
	if err != nil {
		return err
	}
	env.TraceID = TraceFrom(ctx)
	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	headers := []kafka.Header{
		{Key: "x-event-type", Value: []byte(eventType)},
		{Key: "x-event-version", Value: []byte(strconv.Itoa(Version))},
	}
	if env.TraceID != "" {
		headers = append(headers, kafka.Header{Key: "x-trace-id", Value: []byte(env.TraceID)})
	}
	msgs := make([]kafka.Message, 0, len(topics))
	for _, topic := range topics {
		msgs = append(msgs, kafka.Message{Topic: topic, Key: key, Value: value, Headers: headers})
	}
	return errors.Wrapf(p.sink.Publish(ctx, msgs...), "publish %s", eventType)
}

// Emitter is what state machines need to announce a transition.
type Emitter interface {
	Publish(ctx context.Context, eventType string, key []byte, payload any, topics ...string) error
}
