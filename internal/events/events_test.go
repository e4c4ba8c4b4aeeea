package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/ariefcatur/go-market-saga/internal/kafka"
	"github.com/ariefcatur/go-market-saga/internal/logx"
)

type captureSink struct{ msgs []kafka.Message }

func (s *captureSink) Publish(_ context.Context, msgs ...kafka.Message) error {
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func TestPublisherFansOutToTopics(t *testing.T) {
	sink := &captureSink{}
	p := NewPublisher(sink, "order")

	err := p.Publish(context.Background(), ReserveProduct, ProductKey(42), ProductRef{IDProduct: 42}, TopicProduct, TopicSearch)
	require.NoError(t, err)

	require.Len(t, sink.msgs, 2)
	assert.Equal(t, TopicProduct, sink.msgs[0].Topic)
	assert.Equal(t, TopicSearch, sink.msgs[1].Topic)
	assert.Equal(t, []byte("42"), sink.msgs[0].Key)

	var env Envelope
	require.NoError(t, json.Unmarshal(sink.msgs[0].Value, &env))
	assert.Equal(t, ReserveProduct, env.EventType)
	assert.Equal(t, "order", env.Producer)
	assert.NotEmpty(t, env.EventID)
	assert.JSONEq(t, `{"idproduct":42}`, string(env.Payload))
}

func TestPublisherNeedsTopic(t *testing.T) {
	p := NewPublisher(&captureSink{}, "order")
	assert.Error(t, p.Publish(context.Background(), SellProduct, nil, ProductRef{IDProduct: 1}))
}

func message(t *testing.T, eventType string, payload any) kafka.Message {
	env, err := NewEnvelope(eventType, "test", "", payload)
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Topic: TopicSearch, Value: b}
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter(logx.Discard())
	var got NewProductPayload
	r.Handle(NewProduct, func(_ context.Context, env Envelope) error {
		var err error
		got, err = Decode[NewProductPayload](env)
		return err
	})

	err := r.Dispatch(context.Background(), message(t, NewProduct, NewProductPayload{ID: 1, Name: "Lamp", Price: 100}))

	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Lamp", got.Name)
	assert.Equal(t, []string{NewProduct}, r.Types())
}

func TestRouterSkipsUnknownTypes(t *testing.T) {
	r := NewRouter(logx.Discard())
	assert.NoError(t, r.Dispatch(context.Background(), message(t, SellProduct, ProductRef{IDProduct: 1})))
}

func TestRouterPermanentFailures(t *testing.T) {
	r := NewRouter(logx.Discard())
	r.Handle(ReserveProduct, func(_ context.Context, env Envelope) error {
		_, err := Decode[ProductRef](env)
		return err
	})

	err := r.Dispatch(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.True(t, kafkax.IsPermanent(err))

	err = r.Dispatch(context.Background(), message(t, ReserveProduct, map[string]string{"idproduct": "x"}))
	assert.True(t, kafkax.IsPermanent(err))
}

func TestRouterPassesTransientErrors(t *testing.T) {
	r := NewRouter(logx.Discard())
	r.Handle(ReleaseProduct, func(context.Context, Envelope) error { return errors.New("db down") })

	err := r.Dispatch(context.Background(), message(t, ReleaseProduct, ProductRef{IDProduct: 3}))
	require.Error(t, err)
	assert.False(t, kafkax.IsPermanent(err))
}

func TestRouterMiddlewareOrder(t *testing.T) {
	r := NewRouter(logx.Discard())
	var trail []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, env Envelope) error {
				trail = append(trail, name)
				return next(ctx, env)
			}
		}
	}
	r.Use(mw("outer"), mw("inner"))
	r.Handle(SellProduct, func(context.Context, Envelope) error {
		trail = append(trail, "handler")
		return nil
	})

	require.NoError(t, r.Dispatch(context.Background(), message(t, SellProduct, ProductRef{IDProduct: 1})))
	assert.Equal(t, []string{"outer", "inner", "handler"}, trail)
}

func TestTraceFollowsEventAcrossServices(t *testing.T) {
	sink := &captureSink{}
	order := NewPublisher(sink, "order")
	ctx := WithTrace(context.Background(), "req-81")

	require.NoError(t, order.Publish(ctx, ReserveProduct, ProductKey(5), ProductRef{IDProduct: 5}, TopicProduct))
	require.Len(t, sink.msgs, 1)
	var env Envelope
	require.NoError(t, json.Unmarshal(sink.msgs[0].Value, &env))
	assert.Equal(t, "req-81", env.TraceID)
	assert.Contains(t, sink.msgs[0].Headers, kafka.Header{Key: "x-trace-id", Value: []byte("req-81")})

	downstream := &captureSink{}
	product := NewPublisher(downstream, "product")
	r := NewRouter(logx.Discard())
	r.Handle(ReserveProduct, func(ctx context.Context, env Envelope) error {
		return product.Publish(ctx, ReleaseProduct, ProductKey(5), ProductRef{IDProduct: 5}, TopicSearch)
	})
	require.NoError(t, r.Dispatch(context.Background(), sink.msgs[0]))

	require.Len(t, downstream.msgs, 1)
	var next Envelope
	require.NoError(t, json.Unmarshal(downstream.msgs[0].Value, &next))
	assert.Equal(t, "req-81", next.TraceID)
	assert.NotEqual(t, env.EventID, next.EventID)
}

func TestUntracedPublishOmitsTrace(t *testing.T) {
	sink := &captureSink{}
	require.NoError(t, NewPublisher(sink, "order").Publish(context.Background(), SellProduct, ProductKey(1), ProductRef{IDProduct: 1}, TopicProduct))

	assert.NotContains(t, string(sink.msgs[0].Value), "trace_id")
	assert.Empty(t, TraceFrom(context.Background()))
}
