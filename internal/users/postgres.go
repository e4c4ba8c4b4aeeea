package users

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ariefcatur/go-market-saga/internal/listing"
	"github.com/ariefcatur/go-market-saga/internal/postgres"
)

const uniqueViolation = "23505"

type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) Create(ctx context.Context, u *User) error {
	err := postgres.Conn(ctx, s.DB).QueryRow(ctx, `
		INSERT INTO users(email, password_hash, created_at) VALUES ($1, $2, $3)
		RETURNING id`, u.Email, u.PasswordHash, u.CreatedAt,
	).Scan(&u.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailInUse
	}
	return errors.Wrap(err, "insert user")
}

func (s *PGStore) ByEmail(ctx context.Context, email string) (User, error) {
	return s.one(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email)
}

func (s *PGStore) ByID(ctx context.Context, id int64) (User, error) {
	return s.one(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (s *PGStore) one(ctx context.Context, sql string, arg any) (User, error) {
	var u User
	err := postgres.Conn(ctx, s.DB).QueryRow(ctx, sql, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, errors.Wrap(err, "select user")
	}
	return u, nil
}

func (s *PGStore) List(ctx context.Context, q listing.Query) ([]User, int, error) {
	db := postgres.Conn(ctx, s.DB)
	var total int
	if err := db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count users")
	}
	rows, err := db.Query(ctx, `
		SELECT id, email, password_hash, created_at FROM users
		ORDER BY id LIMIT $1 OFFSET $2`, q.OnPage, q.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list users")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
		return u, err
	})
	return out, total, errors.Wrap(err, "list users")
}
