package orders_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-market-saga/internal/auth"
	"github.com/ariefcatur/go-market-saga/internal/events"
	"github.com/ariefcatur/go-market-saga/internal/logx"
	"github.com/ariefcatur/go-market-saga/internal/orders"
	"github.com/ariefcatur/go-market-saga/internal/product"
	"github.com/ariefcatur/go-market-saga/internal/replica"
)

type published struct {
	eventType string
	ref       events.ProductRef
	topics    []string
}

type mockEmitter struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (m *mockEmitter) Publish(_ context.Context, eventType string, _ []byte, payload any, topics ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	ref, _ := payload.(events.ProductRef)
	m.events = append(m.events, published{eventType: eventType, ref: ref, topics: topics})
	return nil
}

func (m *mockEmitter) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.eventType)
	}
	return out
}

const user = int64(7)

type fixture struct {
	svc     *orders.Service
	repo    *orders.MemoryRepository
	replica *replica.MemoryStore
	emitter *mockEmitter
}

func setup(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		repo:    orders.NewMemoryRepository(),
		replica: replica.NewMemoryStore(),
		emitter: &mockEmitter{},
	}
	_, err := f.replica.Insert(context.Background(), replica.Product{ID: 1, Name: "Lamp", Price: 100, Description: "desk lamp"})
	require.NoError(t, err)
	f.svc = orders.NewService(f.repo, orders.ReplicaInventory{Store: f.replica}, f.repo.Scope(), f.emitter, logx.Discard())
	return f
}

func (f fixture) productStatus(t *testing.T, id int64) product.Status {
	t.Helper()
	p, err := f.replica.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Status
}

func TestPlacePayLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	o, err := f.svc.Place(ctx, user, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), o.Total)
	assert.Equal(t, int64(0), o.TotalPaid)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Nil(t, o.PaidAt)
	assert.Equal(t, product.StatusReserved, f.productStatus(t, 1))

	o, err = f.svc.Pay(ctx, o.ID, user, 60)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, int64(60), o.TotalPaid)
	assert.Equal(t, []string{events.ReserveProduct}, f.emitter.types())

	o, err = f.svc.Pay(ctx, o.ID, user, 40)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, o.Status)
	assert.Equal(t, int64(100), o.TotalPaid)
	require.NotNil(t, o.PaidAt)
	assert.Equal(t, product.StatusSold, f.productStatus(t, 1))

	assert.Equal(t, []string{events.ReserveProduct, events.SellProduct}, f.emitter.types())
	for _, e := range f.emitter.events {
		assert.Equal(t, int64(1), e.ref.IDProduct)
		assert.Equal(t, []string{events.TopicProduct, events.TopicSearch}, e.topics)
	}

	_, err = f.svc.Pay(ctx, o.ID, user, 10)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	_, err = f.svc.Cancel(ctx, o.ID, user)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestOverpaymentCompletesOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	o, err := f.svc.Place(ctx, user, 1)
	require.NoError(t, err)

	o, err = f.svc.Pay(ctx, o.ID, user, 150)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, o.Status)
	assert.Equal(t, int64(150), o.TotalPaid)
}

func TestCancelReleasesProduct(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	o, err := f.svc.Place(ctx, user, 1)
	require.NoError(t, err)
	_, err = f.svc.Pay(ctx, o.ID, user, 30)
	require.NoError(t, err)

	o, err = f.svc.Cancel(ctx, o.ID, user)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, o.Status)
	assert.Equal(t, int64(30), o.TotalPaid)
	assert.Equal(t, product.StatusActive, f.productStatus(t, 1))
	assert.Equal(t, []string{events.ReserveProduct, events.ReleaseProduct}, f.emitter.types())

	_, err = f.svc.Pay(ctx, o.ID, user, 70)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	_, err = f.svc.Cancel(ctx, o.ID, user)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	// released product can be ordered again
	_, err = f.svc.Place(ctx, user, 1)
	assert.NoError(t, err)
}

func TestPlaceUnavailableProduct(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Place(ctx, user, 1)
	require.NoError(t, err)

	t.Run("Reserved", func(t *testing.T) {
		_, err := f.svc.Place(ctx, 8, 1)
		assert.ErrorIs(t, err, orders.ErrProductNotAvailable)
	})
	t.Run("Unknown", func(t *testing.T) {
		_, err := f.svc.Place(ctx, user, 42)
		assert.ErrorIs(t, err, orders.ErrProductNotAvailable)
	})
	t.Run("Invalid id", func(t *testing.T) {
		_, err := f.svc.Place(ctx, user, 0)
		assert.ErrorIs(t, err, orders.ErrProductNotAvailable)
	})

	stale, err := f.repo.ListPendingBefore(ctx, time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
	assert.Len(t, f.emitter.types(), 1)
}

func TestConcurrentPlaceHasOneWinner(t *testing.T) {
	f := setup(t)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			if _, err := f.svc.Place(context.Background(), u, 1); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(int64(i + 1))
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestOrderBelongsToItsUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	o, err := f.svc.Place(ctx, user, 1)
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, o.ID, 8, 100)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	_, err = f.svc.Cancel(ctx, o.ID, 8)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	_, err = f.svc.Get(ctx, o.ID, 8)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	got, err := f.svc.Get(ctx, o.ID, user)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
}

func TestPayRejectsNonPositiveAmount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	o, err := f.svc.Place(ctx, user, 1)
	require.NoError(t, err)

	for _, amount := range []int64{0, -5} {
		_, err := f.svc.Pay(ctx, o.ID, user, amount)
		assert.ErrorIs(t, err, orders.ErrInvalidAmount)
	}
	got, err := f.svc.Get(ctx, o.ID, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.TotalPaid)
}

func TestPayRejectsOverflowingAmount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	o, err := f.svc.Place(ctx, user, 1)
	require.NoError(t, err)
	_, err = f.svc.Pay(ctx, o.ID, user, 60)
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, o.ID, user, math.MaxInt64)
	assert.ErrorIs(t, err, orders.ErrInvalidAmount)

	got, err := f.svc.Get(ctx, o.ID, user)
	require.NoError(t, err)
	assert.Equal(t, int64(60), got.TotalPaid)
	assert.Equal(t, orders.StatusPending, got.Status)
}

func TestMemorySaveNeverLowersTotalPaid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	o, err := f.svc.Place(ctx, user, 1)
	require.NoError(t, err)
	paid, err := f.svc.Pay(ctx, o.ID, user, 60)
	require.NoError(t, err)

	paid.TotalPaid = 10
	ok, err := f.repo.Save(ctx, paid, orders.StatusPending)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentPaymentsAreAllCounted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	o, err := f.svc.Place(ctx, user, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Pay(ctx, o.ID, user, 10)
		}()
	}
	wg.Wait()

	got, err := f.svc.Get(ctx, o.ID, user)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.TotalPaid)
	assert.Equal(t, orders.StatusPaid, got.Status)

	sells := 0
	for _, e := range f.emitter.types() {
		if e == events.SellProduct {
			sells++
		}
	}
	assert.Equal(t, 1, sells)
}

func TestPublishFailureKeepsTransition(t *testing.T) {
	f := setup(t)
	f.emitter.err = errors.New("broker unreachable")

	o, err := f.svc.Place(context.Background(), user, 1)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, product.StatusReserved, f.productStatus(t, 1))
}

func TestExpireStale(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.replica.Insert(ctx, replica.Product{ID: 2, Name: "Chair", Price: 50})
	require.NoError(t, err)

	old, err := f.svc.Place(ctx, user, 1)
	require.NoError(t, err)
	fresh, err := f.svc.Place(ctx, user, 2)
	require.NoError(t, err)

	// age the first order
	old.PlacedAt = old.PlacedAt.Add(-2 * time.Hour)
	ok, err := f.repo.Save(ctx, old, orders.StatusPending)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := f.svc.ExpireStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, old.ID, user)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, product.StatusActive, f.productStatus(t, 1))

	got, err = f.svc.Get(ctx, fresh.ID, user)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
}

func TestColocatedAuthority(t *testing.T) {
	ctx := context.Background()
	products := product.NewService(product.NewMemoryStore(), &mockEmitter{}, logx.Discard())
	p, err := products.Add(ctx, auth.Identity{ID: 1}, product.AddInput{Name: "Lamp", Price: 100, Description: "desk lamp"})
	require.NoError(t, err)

	repo := orders.NewMemoryRepository()
	svc := orders.NewService(repo, orders.AuthorityInventory{Products: products}, repo.Scope(), &mockEmitter{}, logx.Discard())

	o, err := svc.Place(ctx, user, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Price, o.Total)

	_, err = svc.Place(ctx, 8, p.ID)
	assert.ErrorIs(t, err, orders.ErrProductNotAvailable)

	_, err = svc.Pay(ctx, o.ID, user, 100)
	require.NoError(t, err)
	got, err := products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, product.StatusSold, got.Status)
}
