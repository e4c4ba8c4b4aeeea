package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps orders in process. Use it with the Scope it
// returns: that scope serializes whole operations the way FindPending's
// row lock does in Postgres.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]Order

	tx sync.Mutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[int64]Order)}
}

func (m *MemoryRepository) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	m.items[o.ID] = *o
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id, userID int64) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.items[id]
	if !ok || o.UserID != userID {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *MemoryRepository) FindPending(ctx context.Context, id, userID int64) (Order, error) {
	o, err := m.Get(ctx, id, userID)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusPending {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *MemoryRepository) Save(_ context.Context, o Order, expected Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[o.ID]
	if !ok || cur.Status != expected || o.TotalPaid < cur.TotalPaid {
		return false, nil
	}
	m.items[o.ID] = o
	return true, nil
}

func (m *MemoryRepository) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]Order, error) {
	m.mu.RLock()
	var out []Order
	for _, o := range m.items {
		if o.Status == StatusPending && o.PlacedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) Scope() Scope { return memoryScope{m} }

type memoryScopeKey struct{}

type memoryScope struct{ m *MemoryRepository }

func (s memoryScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryScopeKey{}) != nil {
		return fn(ctx)
	}
	s.m.tx.Lock()
	defer s.m.tx.Unlock()
	return fn(context.WithValue(ctx, memoryScopeKey{}, true))
}
