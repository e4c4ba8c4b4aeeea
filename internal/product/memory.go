package product

import (
	"context"
	"sort"
	"sync"

	"github.com/ariefcatur/go-market-saga/internal/listing"
)

// MemoryStore keeps products in process. Transition holds the lock across
// its check and write, like the conditional UPDATE of the Postgres store.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[int64]Product)}
}

func (m *MemoryStore) Create(_ context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.items[p.ID] = *p
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.items[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) ListActive(_ context.Context, q listing.Query) ([]Product, int, error) {
	m.mu.RLock()
	var all []Product
	for _, p := range m.items {
		if p.Status == StatusActive && listing.Matches(q.Q, p.Name, p.Description) {
			all = append(all, p)
		}
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	page := listing.Slice(all, q)
	return page.Objects, page.Total, nil
}

func (m *MemoryStore) Transition(_ context.Context, id int64, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	m.items[id] = p
	return true, nil
}
