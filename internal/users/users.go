// Package users owns accounts and signs the tokens every other service
// asks it to validate.
package users

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ariefcatur/go-market-saga/internal/auth"
	"github.com/ariefcatur/go-market-saga/internal/listing"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) Identity() auth.Identity { return auth.Identity{ID: u.ID, Email: u.Email} }

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrEmailInUse         = errors.New("email already in use")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("user not found")
)

// Store persists users. Create returns ErrEmailInUse when the email is
// taken; lookups return ErrNotFound.
type Store interface {
	Create(ctx context.Context, u *User) error
	ByEmail(ctx context.Context, email string) (User, error)
	ByID(ctx context.Context, id int64) (User, error)
	List(ctx context.Context, q listing.Query) ([]User, int, error)
}
