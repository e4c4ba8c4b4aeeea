package users

import (
	"context"
	"sort"
	"sync"

	"github.com/ariefcatur/go-market-saga/internal/listing"
)

type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]User
	byEmail map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]User), byEmail: make(map[string]int64)}
}

func (m *MemoryStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrEmailInUse
	}
	m.nextID++
	u.ID = m.nextID
	m.byID[u.ID] = *u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) ByEmail(ctx context.Context, email string) (User, error) {
	m.mu.RLock()
	id, ok := m.byEmail[email]
	m.mu.RUnlock()
	if !ok {
		return User{}, ErrNotFound
	}
	return m.ByID(ctx, id)
}

func (m *MemoryStore) ByID(_ context.Context, id int64) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) List(_ context.Context, q listing.Query) ([]User, int, error) {
	m.mu.RLock()
	all := make([]User, 0, len(m.byID))
	for _, u := range m.byID {
		all = append(all, u)
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	page := listing.Slice(all, q)
	return page.Objects, page.Total, nil
}
