package users

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-market-saga/internal/auth"
	"github.com/ariefcatur/go-market-saga/internal/listing"
)

// Session is what sign-up and sign-in return.
type Session struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Option func(*Service)

// WithCost sets the bcrypt cost of new password hashes.
func WithCost(cost int) Option { return func(s *Service) { s.cost = cost } }

type Service struct {
	store  Store
	issuer *auth.Issuer
	cost   int
	now    func() time.Time
}

func NewService(store Store, issuer *auth.Issuer, opts ...Option) *Service {
	s := &Service{store: store, issuer: issuer, cost: bcrypt.DefaultCost, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) SignUp(ctx context.Context, in Credentials) (Session, error) {
	in, err := normalize(in)
	if err != nil {
		return Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return Session{}, ErrPasswordTooLong
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "hash password")
	}
	u := User{Email: in.Email, PasswordHash: string(hash), CreatedAt: s.now().UTC()}
	if err := s.store.Create(ctx, &u); err != nil {
		return Session{}, err
	}
	return s.session(u)
}

func (s *Service) SignIn(ctx context.Context, in Credentials) (Session, error) {
	in, err := normalize(in)
	if err != nil {
		return Session{}, err
	}
	u, err := s.store.ByEmail(ctx, in.Email)
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *Service) List(ctx context.Context, q listing.Query) (listing.Page[User], error) {
	q = q.Normalize()
	items, total, err := s.store.List(ctx, q)
	if err != nil {
		return listing.Page[User]{}, errors.Wrap(err, "list users")
	}
	return listing.NewPage(items, total, q.OnPage), nil
}

// IdentityByID resolves token subjects for auth.Validator.
func (s *Service) IdentityByID(ctx context.Context, id int64) (auth.Identity, error) {
	u, err := s.store.ByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return auth.Identity{}, auth.ErrUnknownUser
	}
	if err != nil {
		return auth.Identity{}, err
	}
	return u.Identity(), nil
}

func (s *Service) session(u User) (Session, error) {
	token, err := s.issuer.Issue(u.Identity())
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: token, User: u}, nil
}

func normalize(in Credentials) (Credentials, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		return in, ErrMissingCredentials
	}
	return in, nil
}
