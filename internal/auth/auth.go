// Package auth issues and verifies bearer tokens. It is the identity-owning
// side of validate_token; other services reach it through authclient.
package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the minimal user projection a valid token resolves to.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Result is the validate_token response.
type Result struct {
	IsValid bool      `json:"isValid"`
	User    *Identity `json:"user,omitempty"`
	Error   string    `json:"error,omitempty"`
}

const (
	ReasonMissingToken = "missing_token"
	ReasonInvalidToken = "invalid_token"
	ReasonUserNotFound = "user_not_found"
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
