package replica

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/events"
	"github.com/ariefcatur/go-market-saga/internal/product"
)

// Invalidator is told after every replica write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Consumer applies product events to a replica. Every handler is
// idempotent: new_product never overwrites, status events overwrite with
// the same value on redelivery.
type Consumer struct {
	store Store
	inv   Invalidator
	log   *logrus.Entry
}

// NewConsumer builds a replica consumer; inv may be nil.
func NewConsumer(store Store, inv Invalidator, log *logrus.Entry) *Consumer {
	return &Consumer{store: store, inv: inv, log: log}
}

// RegisterNewProduct is all the order service needs: it changes product
// status locally when it places, pays and cancels.
func (c *Consumer) RegisterNewProduct(r *events.Router) {
	r.Handle(events.NewProduct, c.onNewProduct)
}

// RegisterAll follows the full lifecycle, as the search service does.
func (c *Consumer) RegisterAll(r *events.Router) {
	c.RegisterNewProduct(r)
	r.Handle(events.ReserveProduct, c.setStatus(product.StatusReserved))
	r.Handle(events.SellProduct, c.setStatus(product.StatusSold))
	r.Handle(events.ReleaseProduct, c.setStatus(product.StatusActive))
}

func (c *Consumer) onNewProduct(ctx context.Context, env events.Envelope) error {
	in, err := events.Decode[events.NewProductPayload](env)
	if err != nil {
		return err
	}
	created, err := c.store.Insert(ctx, Product{
		ID:          in.ID,
		Name:        in.Name,
		Price:       in.Price,
		Description: in.Description,
		Status:      product.StatusActive,
	})
	if err != nil {
		return err
	}
	if !created {
		c.log.WithFields(logrus.Fields{"event_id": env.EventID, "product_id": in.ID}).
			Debug("replica already has product")
		return nil
	}
	c.invalidate(ctx)
	return nil
}

func (c *Consumer) setStatus(status product.Status) events.Handler {
	return func(ctx context.Context, env events.Envelope) error {
		ref, err := events.Decode[events.ProductRef](env)
		if err != nil {
			return err
		}
		err = c.store.SetStatus(ctx, ref.IDProduct, status)
		if errors.Is(err, ErrNotFound) {
			c.log.WithFields(logrus.Fields{
				"event_type": env.EventType,
				"event_id":   env.EventID,
				"product_id": ref.IDProduct,
			}).Warn("status event for unknown product, acknowledged")
			return nil
		}
		if err != nil {
			return err
		}
		c.invalidate(ctx)
		return nil
	}
}

func (c *Consumer) invalidate(ctx context.Context) {
	if c.inv == nil {
		return
	}
	if err := c.inv.Invalidate(ctx); err != nil {
		c.log.WithError(err).Warn("search cache not invalidated")
	}
}
