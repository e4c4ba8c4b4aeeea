package replica

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-market-saga/internal/listing"
	"github.com/ariefcatur/go-market-saga/internal/product"
)

type MemoryStore struct {
	mu    sync.RWMutex
	items map[int64]Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[int64]Product)}
}

func (m *MemoryStore) Insert(_ context.Context, p Product) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[p.ID]; ok {
		return false, nil
	}
	if p.Status == "" {
		p.Status = product.StatusActive
	}
	p.UpdatedAt = time.Now().UTC()
	m.items[p.ID] = p
	return true, nil
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

func (m *MemoryStore) SetStatus(_ context.Context, id int64, status product.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	m.items[id] = p
	return nil
}

func (m *MemoryStore) ReserveIfActive(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.Status != product.StatusActive {
		return false, nil
	}
	p.Status = product.StatusReserved
	p.UpdatedAt = time.Now().UTC()
	m.items[id] = p
	return true, nil
}

func (m *MemoryStore) Search(_ context.Context, q listing.Query) ([]Product, int, error) {
	m.mu.RLock()
	var all []Product
	for _, p := range m.items {
		if p.Status == product.StatusActive && listing.Matches(q.Q, p.Name, p.Description) {
			all = append(all, p)
		}
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	page := listing.Slice(all, q)
	return page.Objects, page.Total, nil
}
