// Package orders is the Order Authority. An order leaves PENDING exactly
// once, to PAID or CANCELLED, and its total_paid never decreases.
package orders

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

type Order struct {
	ID        int64      `json:"id"`
	ProductID int64      `json:"idproduct"`
	UserID    int64      `json:"iduser"`
	Total     int64      `json:"total"`
	TotalPaid int64      `json:"total_paid"`
	Status    Status     `json:"status"`
	PlacedAt  time.Time  `json:"place_at"`
	PaidAt    *time.Time `json:"paid_at"`
}

var (
	ErrProductNotAvailable = errors.New("product not available")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// Repository persists orders. FindPending must hold the row against
// concurrent writers until the surrounding transaction ends; Save writes
// only if the stored status is still expected.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id, userID int64) (Order, error)
	FindPending(ctx context.Context, id, userID int64) (Order, error)
	Save(ctx context.Context, o Order, expected Status) (bool, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error)
}

// Inventory is the order service's view of product availability: its
// local replica when split, the Product Authority itself when co-located.
type Inventory interface {
	// Price returns the price of an ACTIVE product, or ErrProductNotAvailable.
	Price(ctx context.Context, productID int64) (int64, error)
	Reserve(ctx context.Context, productID int64) error
	Sell(ctx context.Context, productID int64) error
	Release(ctx context.Context, productID int64) error
}

// Scope runs fn in one transaction; postgres.Scope implements it.
type Scope interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoopScope runs fn directly, for stores without transactions.
type NoopScope struct{}

func (NoopScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
