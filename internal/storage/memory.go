package storage

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests. It honors the same
// contracts as the Postgres store, including the pending-only payment
// transition guard.
type MemStore struct {
	mu       sync.Mutex
	users    map[int64]*User
	links    map[int64]int64
	payments map[int64]*Payment
	clones   map[int64]*Clone
	catalog  string
	nextPay  int64
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[int64]*User),
		links:    make(map[int64]int64),
		payments: make(map[int64]*Payment),
		clones:   make(map[int64]*Clone),
		nextPay:  1,
	}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) GetUser(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemStore) UpsertUser(_ context.Context, id int64, username, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		u = &User{ID: id, CreatedAt: time.Now()}
		m.users[id] = u
	}
	u.Username = sql.NullString{String: username, Valid: strings.TrimSpace(username) != ""}
	u.DisplayName = displayName
	return nil
}

func (m *MemStore) SetBanned(_ context.Context, id int64, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		u = &User{ID: id, CreatedAt: time.Now()}
		m.users[id] = u
	}
	u.Banned = banned
	return nil
}

func (m *MemStore) ListUsers(_ context.Context) ([]User, error) {
	return m.listWhere(func(u *User) bool { return !u.Banned }), nil
}

func (m *MemStore) ListBanned(_ context.Context) ([]User, error) {
	return m.listWhere(func(u *User) bool { return u.Banned }), nil
}

func (m *MemStore) listWhere(keep func(*User) bool) []User {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if keep(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) MapMessage(_ context.Context, userID, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[messageID]; !ok {
		m.links[messageID] = userID
	}
	return nil
}

func (m *MemStore) ResolveMessage(_ context.Context, messageID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.links[messageID]
	if !ok {
		return 0, ErrNotFound
	}
	return userID, nil
}

func (m *MemStore) CreatePayment(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextPay
	m.nextPay++
	p.Status = StatusPending
	p.CreatedAt = time.Now()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MemStore) GetPayment(_ context.Context, id int64) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) ListPayments(_ context.Context, limit int) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.payments {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) SetPaymentStatus(_ context.Context, id int64, status PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != StatusPending {
		return false, nil
	}
	p.Status = status
	return true, nil
}

func (m *MemStore) UpsertClone(_ context.Context, userID int64, credential string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clones[userID]
	if !ok {
		c = &Clone{UserID: userID, CreatedAt: time.Now()}
		m.clones[userID] = c
	}
	c.Credential = credential
	c.Expiry = expiry
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MemStore) GetClone(_ context.Context, userID int64) (*Clone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clones[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemStore) CatalogText(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog, nil
}

func (m *MemStore) SetCatalogText(_ context.Context, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = body
	return nil
}

func (m *MemStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &Stats{}
	for _, u := range m.users {
		if u.Banned {
			st.Banned++
		} else {
			st.Users++
		}
	}
	for _, p := range m.payments {
		switch p.Status {
		case StatusPending:
			st.PendingPayments++
		case StatusApproved:
			st.ApprovedPayments++
		}
	}
	now := time.Now()
	for _, c := range m.clones {
		if c.Expiry.After(now) {
			st.ActiveClones++
		}
	}
	return st, nil
}
