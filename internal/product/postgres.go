package product

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ariefcatur/go-market-saga/internal/listing"
	"github.com/ariefcatur/go-market-saga/internal/postgres"
)

type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) Create(ctx context.Context, p *Product) error {
	err := postgres.Conn(ctx, s.DB).QueryRow(ctx, `
		INSERT INTO products(name, description, price_cents, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id`,
		p.Name, p.Description, p.Price, string(p.Status), p.OwnerID, p.CreatedAt,
	).Scan(&p.ID)
	return errors.Wrap(err, "insert product")
}

func (s *PGStore) Get(ctx context.Context, id int64) (Product, error) {
	var (
		p      Product
		status string
	)
	err := postgres.Conn(ctx, s.DB).QueryRow(ctx, `
		SELECT id, name, description, price_cents, status, owner_id, created_at
		FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &status, &p.OwnerID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, errors.Wrap(err, "select product")
	}
	p.Status = Status(status)
	return p, nil
}

func (s *PGStore) ListActive(ctx context.Context, q listing.Query) ([]Product, int, error) {
	db := postgres.Conn(ctx, s.DB)
	pattern := listing.LikePattern(q.Q)

	var total int
	if err := db.QueryRow(ctx, `
		SELECT count(*) FROM products
		WHERE status = 'ACTIVE' AND (name ILIKE $1 OR description ILIKE $1)`, pattern,
	).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count products")
	}

	rows, err := db.Query(ctx, `
		SELECT id, name, description, price_cents, status, owner_id, created_at
		FROM products
		WHERE status = 'ACTIVE' AND (name ILIKE $1 OR description ILIKE $1)
		ORDER BY id LIMIT $2 OFFSET $3`, pattern, q.OnPage, q.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var (
			p      Product
			status string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &status, &p.OwnerID, &p.CreatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "scan product")
		}
		p.Status = Status(status)
		out = append(out, p)
	}
	return out, total, errors.Wrap(rows.Err(), "list products")
}

func (s *PGStore) Transition(ctx context.Context, id int64, from, to Status) (bool, error) {
	ct, err := postgres.Conn(ctx, s.DB).Exec(ctx, `
		UPDATE products SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return false, errors.Wrap(err, "update product status")
	}
	return ct.RowsAffected() == 1, nil
}
