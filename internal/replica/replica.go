// Package replica keeps a non-authoritative copy of products, fed by the
// Authority's events. The order service uses it to price and reserve
// locally; the search service answers queries from it.
package replica

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ariefcatur/go-market-saga/internal/listing"
	"github.com/ariefcatur/go-market-saga/internal/product"
)

type Product struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Price       int64          `json:"price"`
	Description string         `json:"description"`
	Status      product.Status `json:"status"`
	UpdatedAt   time.Time      `json:"-"`
}

var ErrNotFound = errors.New("product not found in replica")

// Store is the replica's persistence. Insert never overwrites an existing
// row; SetStatus overwrites blindly; ReserveIfActive is a single
// conditional write.
type Store interface {
	Insert(ctx context.Context, p Product) (bool, error)
	Get(ctx context.Context, id int64) (Product, error)
	SetStatus(ctx context.Context, id int64, status product.Status) error
	ReserveIfActive(ctx context.Context, id int64) (bool, error)
	Search(ctx context.Context, q listing.Query) ([]Product, int, error)
}
