package product

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/events"
)

// Consumer applies the order service's reserve/sell/release events to the
// Authority. Conflicts are logged and acknowledged; store failures are
// returned so the broker redelivers.
type Consumer struct {
	svc *Service
	log *logrus.Entry
}

func NewConsumer(svc *Service, log *logrus.Entry) *Consumer {
	return &Consumer{svc: svc, log: log}
}

func (c *Consumer) Register(r *events.Router) {
	r.Handle(events.ReserveProduct, c.onReserve)
	r.Handle(events.SellProduct, c.onSell)
	r.Handle(events.ReleaseProduct, c.onRelease)
}

func (c *Consumer) onReserve(ctx context.Context, env events.Envelope) error {
	ref, err := events.Decode[events.ProductRef](env)
	if err != nil {
		return err
	}
	err = c.svc.Reserve(ctx, ref.IDProduct)
	if !errors.Is(err, ErrNotAvailable) {
		return err
	}
	// Already reserved means this is a redelivery.
	cur, getErr := c.svc.Get(ctx, ref.IDProduct)
	if getErr == nil && cur.Status == StatusReserved {
		return nil
	}
	if getErr != nil && !errors.Is(getErr, ErrNotFound) {
		return getErr
	}
	c.conflict(env, ref.IDProduct, err)
	return nil
}

func (c *Consumer) onSell(ctx context.Context, env events.Envelope) error {
	ref, err := events.Decode[events.ProductRef](env)
	if err != nil {
		return err
	}
	return c.settle(env, ref.IDProduct, c.svc.Sell(ctx, ref.IDProduct))
}

func (c *Consumer) onRelease(ctx context.Context, env events.Envelope) error {
	ref, err := events.Decode[events.ProductRef](env)
	if err != nil {
		return err
	}
	return c.settle(env, ref.IDProduct, c.svc.Release(ctx, ref.IDProduct))
}

func (c *Consumer) settle(env events.Envelope, id int64, err error) error {
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		c.conflict(env, id, err)
		return nil
	}
	return err
}

func (c *Consumer) conflict(env events.Envelope, id int64, err error) {
	c.log.WithError(err).WithFields(logrus.Fields{
		"event_type": env.EventType,
		"event_id":   env.EventID,
		"product_id": id,
	}).Warn("event conflicts with product state, acknowledged")
}
