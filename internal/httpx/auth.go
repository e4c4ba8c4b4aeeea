package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-market-saga/internal/auth"
)

// Identifier resolves a bearer token: authclient.Cached in the services
// that ask the user service, auth.Validator inside the user service.
type Identifier interface {
	Identify(ctx context.Context, token string) (auth.Identity, error)
}

type identityKey struct{}

// RequireAuth rejects requests without a valid bearer token. Any failure
// to validate, including the user service being unreachable, is a 401.
func RequireAuth(id Identifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Missing Bearer token"})
				return
			}
			user, err := id.Identify(r.Context(), token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, user)))
		})
	}
}

// CurrentUser is the identity RequireAuth stored on the request.
func CurrentUser(ctx context.Context) (auth.Identity, bool) {
	u, ok := ctx.Value(identityKey{}).(auth.Identity)
	return u, ok
}
