package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// SearchCache keeps encoded search results for a short time. Entries are
// keyed by a version which Invalidate bumps.
type SearchCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewSearchCache(rdb redis.Cmdable, ttl time.Duration) *SearchCache {
	return &SearchCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached value and the version it was looked up under;
// pass that version to Set so a result computed before a write is never
// stored under the newer version.
func (c *SearchCache) Get(ctx context.Context, query string) ([]byte, int64, bool, error) {
	v, err := c.version(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeySearch, v, query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, v, false, nil
	}
	if err != nil {
		return nil, v, false, errors.Wrap(err, "search cache get")
	}
	return b, v, true, nil
}

func (c *SearchCache) Set(ctx context.Context, version int64, query string, b []byte) error {
	return errors.Wrap(c.rdb.Set(ctx, fmt.Sprintf(KeySearch, version, query), b, c.ttl).Err(), "search cache set")
}

func (c *SearchCache) Invalidate(ctx context.Context) error {
	return errors.Wrap(c.rdb.Incr(ctx, KeySearchVersion).Err(), "search cache invalidate")
}

func (c *SearchCache) version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, KeySearchVersion).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, errors.Wrap(err, "search cache version")
}
