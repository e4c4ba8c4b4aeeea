package orders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ariefcatur/go-market-saga/internal/postgres"
)

type PGRepository struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, product_id, total, total_paid, status, placed_at, paid_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.Total, &o.TotalPaid, &status, &o.PlacedAt, &o.PaidAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func (r *PGRepository) Create(ctx context.Context, o *Order) error {
	err := postgres.Conn(ctx, r.DB).QueryRow(ctx, `
		INSERT INTO orders(user_id, product_id, total, total_paid, status, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		o.UserID, o.ProductID, o.Total, o.TotalPaid, string(o.Status), o.PlacedAt,
	).Scan(&o.ID)
	return errors.Wrap(err, "insert order")
}

func (r *PGRepository) Get(ctx context.Context, id, userID int64) (Order, error) {
	o, err := scanOrder(postgres.Conn(ctx, r.DB).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, errors.Wrap(err, "select order")
}

// FindPending locks the row until the surrounding transaction ends.
func (r *PGRepository) FindPending(ctx context.Context, id, userID int64) (Order, error) {
	o, err := scanOrder(postgres.Conn(ctx, r.DB).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE id = $1 AND user_id = $2 AND status = 'PENDING'
		FOR UPDATE`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, errors.Wrap(err, "select pending order")
}

func (r *PGRepository) Save(ctx context.Context, o Order, expected Status) (bool, error) {
	ct, err := postgres.Conn(ctx, r.DB).Exec(ctx, `
		UPDATE orders SET total_paid = $2, status = $3, paid_at = $4
		WHERE id = $1 AND status = $5 AND total_paid <= $2`,
		o.ID, o.TotalPaid, string(o.Status), o.PaidAt, string(expected))
	if err != nil {
		return false, errors.Wrap(err, "update order")
	}
	return ct.RowsAffected() == 1, nil
}

func (r *PGRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error) {
	rows, err := postgres.Conn(ctx, r.DB).Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE status = 'PENDING' AND placed_at < $1
		ORDER BY placed_at LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list pending orders")
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "list pending orders")
}
