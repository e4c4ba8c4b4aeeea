package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var ErrUnknownUser = errors.New("user not found")

// InvalidTokenError is a decided negative validation outcome.
type InvalidTokenError struct{ Reason string }

func (e *InvalidTokenError) Error() string { return "invalid token: " + e.Reason }

// Users resolves a token subject. Implementations return ErrUnknownUser
// when the id no longer exists.
type Users interface {
	IdentityByID(ctx context.Context, id int64) (Identity, error)
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

func (i *Issuer) Issue(id Identity) (string, error) {
	now := i.now()
	claims := &Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	return s, errors.Wrap(err, "sign token")
}

type Validator struct {
	secret []byte
	users  Users
}

func NewValidator(secret []byte, users Users) *Validator {
	return &Validator{secret: secret, users: users}
}

// Validate decides a token. Every outcome the caller can act on is a
// Result; the error is reserved for failing to reach the user store.
func (v *Validator) Validate(ctx context.Context, token string) (Result, error) {
	if token == "" {
		return Result{Error: ReasonMissingToken}, nil
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Result{Error: ReasonInvalidToken}, nil
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Result{Error: ReasonInvalidToken}, nil
	}

	user, err := v.users.IdentityByID(ctx, id)
	if errors.Is(err, ErrUnknownUser) {
		return Result{Error: ReasonUserNotFound}, nil
	}
	if err != nil {
		return Result{}, errors.Wrap(err, "resolve token subject")
	}
	return Result{IsValid: true, User: &user}, nil
}

// Identify is Validate for in-process callers: negative outcomes become an
// *InvalidTokenError.
func (v *Validator) Identify(ctx context.Context, token string) (Identity, error) {
	res, err := v.Validate(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	if !res.IsValid {
		return Identity{}, &InvalidTokenError{Reason: res.Error}
	}
	return *res.User, nil
}
