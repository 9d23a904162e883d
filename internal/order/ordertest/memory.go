// Package ordertest provides an in-memory order repository for tests.
package ordertest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/kec-gateway/internal/order"
)

// Memory is a goroutine-safe in-memory order.Repository.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*order.Order
	Now    func() time.Time
	Saves  int
}

// NewMemory returns an empty repository.
func NewMemory() *Memory {
	return &Memory{orders: map[int64]*order.Order{}, Now: time.Now}
}

func clone(o *order.Order) *order.Order {
	data, _ := json.Marshal(o)
	var out order.Order
	_ = json.Unmarshal(data, &out)
	if out.Meta == nil {
		out.Meta = map[string]string{}
	}
	return &out
}

// Put stores an order as-is, keeping its timestamps.
func (m *Memory) Put(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		m.nextID++
		o.ID = m.nextID
	} else if o.ID > m.nextID {
		m.nextID = o.ID
	}
	m.orders[o.ID] = clone(o)
}

func (m *Memory) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	o.CreatedAt = m.Now()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = clone(o)
	return nil
}

func (m *Memory) Get(_ context.Context, id int64) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return clone(o), nil
}

func (m *Memory) Save(ctx context.Context, o *order.Order) error {
	if o.ID == 0 {
		return m.Create(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return order.ErrNotFound
	}
	o.UpdatedAt = m.Now()
	m.orders[o.ID] = clone(o)
	m.Saves++
	return nil
}

func (m *Memory) FindByMeta(_ context.Context, key, value, createdVia string, since time.Time) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *order.Order
	for _, o := range m.orders {
		if o.GetMeta(key) != value || o.CreatedVia != createdVia || !o.CreatedAt.After(since) {
			continue
		}
		if found == nil || o.CreatedAt.After(found.CreatedAt) {
			found = o
		}
	}
	if found == nil {
		return nil, order.ErrNotFound
	}
	return clone(found), nil
}

func (m *Memory) ListStale(_ context.Context, createdVia string, status order.Status, cutoff time.Time, limit int) ([]*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*order.Order
	for _, o := range m.orders {
		if o.CreatedVia == createdVia && o.Status == status && o.UpdatedAt.Before(cutoff) {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Transition(_ context.Context, id int64, from, to order.Status, cutoff time.Time, note order.Note) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from || !o.UpdatedAt.Before(cutoff) {
		return false, nil
	}
	o.Status = to
	o.Notes = append(o.Notes, note)
	o.UpdatedAt = m.Now()
	m.Saves++
	return true, nil
}

// Len returns the number of stored orders.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}
