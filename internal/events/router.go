package events

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	kafkax "github.com/ariefcatur/go-market-saga/internal/kafka"
)

// Handler applies one event. Returning nil acknowledges the message.
type Handler func(ctx context.Context, env Envelope) error

type Middleware func(Handler) Handler

// Router dispatches consumed messages to the handler of their event type.
type Router struct {
	handlers map[string]Handler
	mw       []Middleware
	log      *logrus.Entry
}

func NewRouter(log *logrus.Entry) *Router {
	return &Router{handlers: make(map[string]Handler), log: log}
}

func (r *Router) Use(mw ...Middleware) { r.mw = append(r.mw, mw...) }

func (r *Router) Handle(eventType string, h Handler) { r.handlers[eventType] = h }

func (r *Router) Types() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Dispatch is a kafka.Handler. Undecodable messages are permanent failures;
// event types nobody registered are acknowledged and skipped. The handler
// runs under the event's trace id, so anything it publishes keeps it.
func (r *Router) Dispatch(ctx context.Context, m kafka.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return kafkax.Permanent(errors.Wrap(err, "decode envelope"))
	}
	entry := r.log.WithFields(logrus.Fields{
		"topic":      m.Topic,
		"event_type": env.EventType,
		"event_id":   env.EventID,
		"trace_id":   env.TraceID,
	})
	h, ok := r.handlers[env.EventType]
	if !ok {
		entry.Debug("no handler, skipping")
		return nil
	}
	for i := len(r.mw) - 1; i >= 0; i-- {
		h = r.mw[i](h)
	}
	if err := h(WithTrace(ctx, env.TraceID), env); err != nil {
		var perm *json.UnmarshalTypeError
		var syn *json.SyntaxError
		if errors.As(err, &perm) || errors.As(err, &syn) {
			return kafkax.Permanent(err)
		}
		return err
	}
	entry.Debug("event applied")
	return nil
}
