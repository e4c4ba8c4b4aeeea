package replica_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-market-saga/internal/events"
	"github.com/ariefcatur/go-market-saga/internal/listing"
	"github.com/ariefcatur/go-market-saga/internal/logx"
	"github.com/ariefcatur/go-market-saga/internal/product"
	"github.com/ariefcatur/go-market-saga/internal/replica"
)

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.n++
	return nil
}

func deliver(t *testing.T, r *events.Router, eventType string, payload any) {
	t.Helper()
	env, err := events.NewEnvelope(eventType, "test", "", payload)
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, r.Dispatch(context.Background(), kafka.Message{Value: b}))
}

func searchRouter(store replica.Store, inv replica.Invalidator) *events.Router {
	r := events.NewRouter(logx.Discard())
	replica.NewConsumer(store, inv, logx.Discard()).RegisterAll(r)
	return r
}

func TestNewProductIsInsertIfAbsent(t *testing.T) {
	store := replica.NewMemoryStore()
	inv := &countingInvalidator{}
	r := searchRouter(store, inv)

	deliver(t, r, events.NewProduct, events.NewProductPayload{ID: 1, Name: "Lamp", Price: 100, Description: "desk lamp"})
	deliver(t, r, events.ReserveProduct, events.ProductRef{IDProduct: 1})
	deliver(t, r, events.NewProduct, events.NewProductPayload{ID: 1, Name: "Other", Price: 5, Description: "changed"})

	p, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", p.Name)
	assert.Equal(t, int64(100), p.Price)
	assert.Equal(t, product.StatusReserved, p.Status)
	assert.Equal(t, 2, inv.n)
}

func TestStatusEventsFollowLifecycle(t *testing.T) {
	store := replica.NewMemoryStore()
	r := searchRouter(store, nil)
	ctx := context.Background()
	deliver(t, r, events.NewProduct, events.NewProductPayload{ID: 3, Name: "Chair", Price: 50, Description: "oak"})

	steps := []struct {
		eventType string
		want      product.Status
	}{
		{events.ReserveProduct, product.StatusReserved},
		{events.ReserveProduct, product.StatusReserved},
		{events.ReleaseProduct, product.StatusActive},
		{events.ReserveProduct, product.StatusReserved},
		{events.SellProduct, product.StatusSold},
		{events.SellProduct, product.StatusSold},
	}
	for _, s := range steps {
		deliver(t, r, s.eventType, events.ProductRef{IDProduct: 3})
		p, err := store.Get(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, s.want, p.Status, s.eventType)
	}
}

func TestStatusEventForUnknownProductIsAcknowledged(t *testing.T) {
	store := replica.NewMemoryStore()
	deliver(t, searchRouter(store, nil), events.SellProduct, events.ProductRef{IDProduct: 99})

	_, err := store.Get(context.Background(), 99)
	assert.ErrorIs(t, err, replica.ErrNotFound)
}

func TestOrderSideRegistersOnlyNewProduct(t *testing.T) {
	r := events.NewRouter(logx.Discard())
	replica.NewConsumer(replica.NewMemoryStore(), nil, logx.Discard()).RegisterNewProduct(r)
	assert.Equal(t, []string{events.NewProduct}, r.Types())
}

func TestReserveIfActive(t *testing.T) {
	store := replica.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Insert(ctx, replica.Product{ID: 1, Name: "Lamp", Price: 100})
	require.NoError(t, err)

	ok, err := store.ReserveIfActive(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ReserveIfActive(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.ReserveIfActive(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

type memCache struct {
	version int64
	data    map[string][]byte
	gets    int
	err     error
}

func (m *memCache) Get(_ context.Context, query string) ([]byte, int64, bool, error) {
	m.gets++
	if m.err != nil {
		return nil, 0, false, m.err
	}
	b, ok := m.data[query]
	return b, m.version, ok, nil
}

func (m *memCache) Set(_ context.Context, version int64, query string, b []byte) error {
	if version != m.version {
		return nil
	}
	m.data[query] = b
	return nil
}

func (m *memCache) Invalidate(context.Context) error {
	m.version++
	m.data = map[string][]byte{}
	return nil
}

func TestSearcherServesFromCacheUntilInvalidated(t *testing.T) {
	store := replica.NewMemoryStore()
	cache := &memCache{data: map[string][]byte{}}
	r := searchRouter(store, cache)
	s := replica.NewSearcher(store, cache, logx.Discard())
	ctx := context.Background()

	deliver(t, r, events.NewProduct, events.NewProductPayload{ID: 1, Name: "Desk lamp", Price: 100, Description: "brass"})
	deliver(t, r, events.NewProduct, events.NewProductPayload{ID: 2, Name: "Chair", Price: 50, Description: "oak"})

	page, err := s.Search(ctx, listing.Query{Q: "lamp"})
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, int64(1), page.Objects[0].ID)
	assert.Len(t, cache.data, 1)

	deliver(t, r, events.ReserveProduct, events.ProductRef{IDProduct: 1})
	assert.Empty(t, cache.data)

	page, err = s.Search(ctx, listing.Query{Q: "lamp"})
	require.NoError(t, err)
	assert.Empty(t, page.Objects)
	assert.Equal(t, 0, page.TotalPages)
}

func TestSearcherFallsBackWhenCacheIsDown(t *testing.T) {
	store := replica.NewMemoryStore()
	_, err := store.Insert(context.Background(), replica.Product{ID: 1, Name: "Lamp", Price: 100})
	require.NoError(t, err)
	cache := &memCache{data: map[string][]byte{}, err: errors.New("redis down")}

	page, err := replica.NewSearcher(store, cache, logx.Discard()).Search(context.Background(), listing.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, cache.gets)
}
