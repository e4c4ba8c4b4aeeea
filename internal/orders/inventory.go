package orders

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ariefcatur/go-market-saga/internal/product"
	"github.com/ariefcatur/go-market-saga/internal/replica"
)

// ReplicaInventory backs the split deployment: prices and reservations
// come from the order service's own replica, and the Authority learns of
// them through events.
type ReplicaInventory struct{ Store replica.Store }

func (r ReplicaInventory) Price(ctx context.Context, id int64) (int64, error) {
	p, err := r.Store.Get(ctx, id)
	if errors.Is(err, replica.ErrNotFound) {
		return 0, ErrProductNotAvailable
	}
	if err != nil {
		return 0, errors.Wrap(err, "lookup product")
	}
	if p.Status != product.StatusActive {
		return 0, ErrProductNotAvailable
	}
	return p.Price, nil
}

func (r ReplicaInventory) Reserve(ctx context.Context, id int64) error {
	ok, err := r.Store.ReserveIfActive(ctx, id)
	if err != nil {
		return errors.Wrap(err, "reserve product")
	}
	if !ok {
		return ErrProductNotAvailable
	}
	return nil
}

func (r ReplicaInventory) Sell(ctx context.Context, id int64) error {
	return r.Store.SetStatus(ctx, id, product.StatusSold)
}

func (r ReplicaInventory) Release(ctx context.Context, id int64) error {
	return r.Store.SetStatus(ctx, id, product.StatusActive)
}

// AuthorityInventory calls a Product Authority living in the same process.
type AuthorityInventory struct{ Products *product.Service }

func (a AuthorityInventory) Price(ctx context.Context, id int64) (int64, error) {
	p, err := a.Products.Get(ctx, id)
	if errors.Is(err, product.ErrNotFound) {
		return 0, ErrProductNotAvailable
	}
	if err != nil {
		return 0, err
	}
	if p.Status != product.StatusActive {
		return 0, ErrProductNotAvailable
	}
	return p.Price, nil
}

func (a AuthorityInventory) Reserve(ctx context.Context, id int64) error {
	err := a.Products.Reserve(ctx, id)
	if errors.Is(err, product.ErrNotAvailable) {
		return ErrProductNotAvailable
	}
	return err
}

func (a AuthorityInventory) Sell(ctx context.Context, id int64) error {
	return a.Products.Sell(ctx, id)
}

func (a AuthorityInventory) Release(ctx context.Context, id int64) error {
	return a.Products.Release(ctx, id)
}
