package orders

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/events"
)

type Service struct {
	repo      Repository
	inventory Inventory
	scope     Scope
	events    events.Emitter
	log       *logrus.Entry
	now       func() time.Time
}

func NewService(repo Repository, inv Inventory, scope Scope, emitter events.Emitter, log *logrus.Entry) *Service {
	return &Service{repo: repo, inventory: inv, scope: scope, events: emitter, log: log, now: time.Now}
}

// Place reserves the product and records a PENDING order in one
// transaction, then announces the reservation.
func (s *Service) Place(ctx context.Context, userID, productID int64) (Order, error) {
	if productID <= 0 {
		return Order{}, ErrProductNotAvailable
	}
	price, err := s.inventory.Price(ctx, productID)
	if err != nil {
		return Order{}, err
	}

	o := Order{
		UserID:    userID,
		ProductID: productID,
		Total:     price,
		Status:    StatusPending,
		PlacedAt:  s.now().UTC(),
	}
	err = s.scope.Execute(ctx, func(ctx context.Context) error {
		if err := s.inventory.Reserve(ctx, productID); err != nil {
			return err
		}
		return errors.Wrap(s.repo.Create(ctx, &o), "create order")
	})
	if err != nil {
		return Order{}, err
	}

	s.publish(ctx, events.ReserveProduct, o)
	return o, nil
}

// Pay adds amount to a PENDING order. Reaching the total makes it PAID and
// sells the product; partial payments publish nothing.
func (s *Service) Pay(ctx context.Context, orderID, userID, amount int64) (Order, error) {
	if amount <= 0 {
		return Order{}, ErrInvalidAmount
	}
	var o Order
	err := s.scope.Execute(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.repo.FindPending(ctx, orderID, userID); err != nil {
			return err
		}
		if amount > math.MaxInt64-o.TotalPaid {
			return ErrInvalidAmount
		}
		o.TotalPaid += amount
		if o.TotalPaid >= o.Total {
			paidAt := s.now().UTC()
			o.Status = StatusPaid
			o.PaidAt = &paidAt
		}
		if err := s.save(ctx, o); err != nil {
			return err
		}
		if o.Status == StatusPaid {
			return errors.Wrap(s.inventory.Sell(ctx, o.ProductID), "sell product")
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if o.Status == StatusPaid {
		s.publish(ctx, events.SellProduct, o)
	}
	return o, nil
}

// Cancel moves a PENDING order to CANCELLED and releases its product.
func (s *Service) Cancel(ctx context.Context, orderID, userID int64) (Order, error) {
	var o Order
	err := s.scope.Execute(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.repo.FindPending(ctx, orderID, userID); err != nil {
			return err
		}
		o.Status = StatusCancelled
		if err := s.save(ctx, o); err != nil {
			return err
		}
		return errors.Wrap(s.inventory.Release(ctx, o.ProductID), "release product")
	})
	if err != nil {
		return Order{}, err
	}

	s.publish(ctx, events.ReleaseProduct, o)
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID, userID int64) (Order, error) {
	return s.repo.Get(ctx, orderID, userID)
}

// ExpireStale cancels orders left PENDING since before now-olderThan, so
// abandoned orders stop holding their product. It returns how many it
// cancelled; an order paid or cancelled meanwhile is skipped.
func (s *Service) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	const batch = 100
	stale, err := s.repo.ListPendingBefore(ctx, s.now().Add(-olderThan), batch)
	if err != nil {
		return 0, errors.Wrap(err, "list stale orders")
	}
	n := 0
	for _, o := range stale {
		_, err := s.Cancel(ctx, o.ID, o.UserID)
		if errors.Is(err, ErrOrderNotFound) {
			continue
		}
		if err != nil {
			return n, errors.Wrapf(err, "expire order %d", o.ID)
		}
		s.log.WithFields(logrus.Fields{"order_id": o.ID, "product_id": o.ProductID}).Info("stale order cancelled")
		n++
	}
	return n, nil
}

func (s *Service) save(ctx context.Context, o Order) error {
	ok, err := s.repo.Save(ctx, o, StatusPending)
	if err != nil {
		return errors.Wrap(err, "save order")
	}
	if !ok {
		return ErrOrderNotFound
	}
	return nil
}

// publish runs after commit. A failure is logged and leaves the local
// transition in place.
func (s *Service) publish(ctx context.Context, eventType string, o Order) {
	ref := events.ProductRef{IDProduct: o.ProductID}
	if err := s.events.Publish(ctx, eventType, events.ProductKey(o.ProductID), ref, events.TopicProduct, events.TopicSearch); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"order_id":   o.ID,
			"product_id": o.ProductID,
		}).Error("order event not published")
	}
}
