// Package authclient calls the user service's validate_token endpoint and
// memoizes successful validations per process.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/auth"
	"github.com/ariefcatur/go-market-saga/internal/ttlcache"
)

const ValidatePath = "/internal/validate-token"

// Client is the uncached remote call. Every failure, including a timeout,
// is an error; it never reports a token valid it could not check.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
}

func (c *Client) Validate(ctx context.Context, token string) (auth.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return auth.Result{}, errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ValidatePath, bytes.NewReader(body))
	if err != nil {
		return auth.Result{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return auth.Result{}, errors.Wrap(err, "validate_token call")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return auth.Result{}, errors.Errorf("validate_token: unexpected status %d", resp.StatusCode)
	}
	var res auth.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return auth.Result{}, errors.Wrap(err, "decode validate_token response")
	}
	if res.IsValid && res.User == nil {
		return auth.Result{}, errors.New("validate_token: valid result without user")
	}
	return res, nil
}

type remote interface {
	Validate(ctx context.Context, token string) (auth.Result, error)
}

// Cached puts a TTL cache keyed by the raw token in front of the remote
// call. Negative answers are not cached so they are re-checked promptly.
type Cached struct {
	cache *ttlcache.Cache[string, auth.Identity]
}

func NewCached(r remote, ttl time.Duration, size int, log *logrus.Entry, opts ...ttlcache.Option[string, auth.Identity]) *Cached {
	fetch := func(ctx context.Context, token string) (auth.Identity, error) {
		res, err := r.Validate(ctx, token)
		if err != nil {
			log.WithError(err).Warn("token validation unavailable")
			return auth.Identity{}, err
		}
		if !res.IsValid {
			return auth.Identity{}, &auth.InvalidTokenError{Reason: res.Error}
		}
		return *res.User, nil
	}
	return &Cached{cache: ttlcache.New[string, auth.Identity](ttl, size, func(s string) string { return s }, fetch, opts...)}
}

func (c *Cached) Identify(ctx context.Context, token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, &auth.InvalidTokenError{Reason: auth.ReasonMissingToken}
	}
	return c.cache.Get(ctx, token)
}
