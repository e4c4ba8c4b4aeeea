// Package product is the Product Authority: the only writer of a product's
// lifecycle ACTIVE -> RESERVED -> SOLD and RESERVED -> ACTIVE.
package product

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ariefcatur/go-market-saga/internal/listing"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusReserved Status = "RESERVED"
	StatusSold     Status = "SOLD"
)

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	OwnerID     int64     `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrNotFound     = errors.New("product not found")
	ErrNotAvailable = errors.New("product not available")
	ErrConflict     = errors.New("product status conflict")
	ErrInvalidInput = errors.New("name, price and description are required")
)

// Store persists products. Transition must be a single conditional write:
// it changes the status only if it currently equals from.
type Store interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id int64) (Product, error)
	ListActive(ctx context.Context, q listing.Query) ([]Product, int, error)
	Transition(ctx context.Context, id int64, from, to Status) (bool, error)
}
