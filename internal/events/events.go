package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Event types, shared by every service.
const (
	NewProduct     = "new_product"
	ReserveProduct = "reserve_product"
	SellProduct    = "sell_product"
	ReleaseProduct = "release_product"
)

// One topic per logical service; a service consumes only its own.
const (
	TopicOrder   = "order"
	TopicProduct = "product"
	TopicSearch  = "search"
	TopicUser    = "user"
)

const Version = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewProductPayload is the full product projection replicas store.
type NewProductPayload struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

// ProductRef is the payload of reserve_product, sell_product and
// release_product.
type ProductRef struct {
	IDProduct int64 `json:"idproduct"`
}

func NewEnvelope(eventType, producer, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "encode %s payload", eventType)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  Version,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// Decode unwraps the payload of env into T.
func Decode[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, errors.Wrapf(err, "decode %s payload", env.EventType)
	}
	return t, nil
}

// ProductKey is the partition key, so all events of one product keep their order.
func ProductKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }

type traceKey struct{}

// WithTrace tags ctx so that events published under it carry id as their
// trace_id.
func WithTrace(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
