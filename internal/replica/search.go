package replica

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/listing"
)

// ResultCache is implemented by redisx.SearchCache.
type ResultCache interface {
	Get(ctx context.Context, query string) ([]byte, int64, bool, error)
	Set(ctx context.Context, version int64, query string, b []byte) error
}

type Searcher struct {
	store Store
	cache ResultCache
	log   *logrus.Entry
}

// NewSearcher answers searches from store; cache may be nil.
func NewSearcher(store Store, cache ResultCache, log *logrus.Entry) *Searcher {
	return &Searcher{store: store, cache: cache, log: log}
}

// Search lists ACTIVE replica products matching q. A cache that is down
// only costs a store query.
func (s *Searcher) Search(ctx context.Context, q listing.Query) (listing.Page[Product], error) {
	q = q.Normalize()
	key := cacheKey(q)

	var version int64
	if s.cache != nil {
		b, v, hit, err := s.cache.Get(ctx, key)
		version = v
		switch {
		case err != nil:
			s.log.WithError(err).Warn("search cache read failed")
		case hit:
			var page listing.Page[Product]
			if err := json.Unmarshal(b, &page); err == nil {
				return page, nil
			}
			s.log.WithField("key", key).Warn("search cache entry undecodable")
		}
	}

	items, total, err := s.store.Search(ctx, q)
	if err != nil {
		return listing.Page[Product]{}, errors.Wrap(err, "search products")
	}
	page := listing.NewPage(items, total, q.OnPage)

	if s.cache != nil {
		if b, err := json.Marshal(page); err == nil {
			if err := s.cache.Set(ctx, version, key, b); err != nil {
				s.log.WithError(err).Warn("search cache write failed")
			}
		}
	}
	return page, nil
}

func cacheKey(q listing.Query) string {
	return fmt.Sprintf("%d:%d:%s", q.Page, q.OnPage, q.Q)
}
