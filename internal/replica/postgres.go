package replica

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ariefcatur/go-market-saga/internal/listing"
	"github.com/ariefcatur/go-market-saga/internal/postgres"
	"github.com/ariefcatur/go-market-saga/internal/product"
)

// PGStore keeps the replica in the product_replica table of the owning
// service's database.
type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) Insert(ctx context.Context, p Product) (bool, error) {
	if p.Status == "" {
		p.Status = product.StatusActive
	}
	ct, err := postgres.Conn(ctx, s.DB).Exec(ctx, `
		INSERT INTO product_replica(id, name, description, price_cents, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Description, p.Price, string(p.Status))
	if err != nil {
		return false, errors.Wrap(err, "insert replica product")
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PGStore) Get(ctx context.Context, id int64) (Product, error) {
	var (
		p      Product
		status string
	)
	err := postgres.Conn(ctx, s.DB).QueryRow(ctx, `
		SELECT id, name, description, price_cents, status, updated_at
		FROM product_replica WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &status, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, errors.Wrap(err, "select replica product")
	}
	p.Status = product.Status(status)
	return p, nil
}

func (s *PGStore) SetStatus(ctx context.Context, id int64, status product.Status) error {
	ct, err := postgres.Conn(ctx, s.DB).Exec(ctx, `
		UPDATE product_replica SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return errors.Wrap(err, "update replica status")
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ReserveIfActive(ctx context.Context, id int64) (bool, error) {
	ct, err := postgres.Conn(ctx, s.DB).Exec(ctx, `
		UPDATE product_replica SET status = 'RESERVED', updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'`, id)
	if err != nil {
		return false, errors.Wrap(err, "reserve replica product")
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PGStore) Search(ctx context.Context, q listing.Query) ([]Product, int, error) {
	db := postgres.Conn(ctx, s.DB)
	pattern := listing.LikePattern(q.Q)

	var total int
	if err := db.QueryRow(ctx, `
		SELECT count(*) FROM product_replica
		WHERE status = 'ACTIVE' AND (name ILIKE $1 OR description ILIKE $1)`, pattern,
	).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count replica products")
	}

	rows, err := db.Query(ctx, `
		SELECT id, name, description, price_cents, status, updated_at
		FROM product_replica
		WHERE status = 'ACTIVE' AND (name ILIKE $1 OR description ILIKE $1)
		ORDER BY id LIMIT $2 OFFSET $3`, pattern, q.OnPage, q.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "search replica products")
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var (
			p      Product
			status string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &status, &p.UpdatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "scan replica product")
		}
		p.Status = product.Status(status)
		out = append(out, p)
	}
	return out, total, errors.Wrap(rows.Err(), "search replica products")
}
