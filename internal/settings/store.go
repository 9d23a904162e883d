package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgOptions struct {
	pool *pgxpool.Pool
}

// NewPGOptionStore stores options as JSON documents in the options table.
func NewPGOptionStore(pool *pgxpool.Pool) OptionStore {
	return &pgOptions{pool: pool}
}

func (s *pgOptions) Get(ctx context.Context, name string, dst any) (bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM options WHERE name = $1`, name).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode option %s: %w", name, err)
	}
	return true, nil
}

func (s *pgOptions) Set(ctx context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode option %s: %w", name, err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO options (name, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, name, raw)
	return err
}

func (s *pgOptions) Delete(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM options WHERE name = $1`, name)
	return err
}

// MemoryOptions is an in-process OptionStore for tests and local runs.
type MemoryOptions struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryOptions returns an empty in-memory option store.
func NewMemoryOptions() *MemoryOptions {
	return &MemoryOptions{data: map[string][]byte{}}
}

func (m *MemoryOptions) Get(_ context.Context, name string, dst any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.data[name]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *MemoryOptions) Set(_ context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[name] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryOptions) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.data, name)
	m.mu.Unlock()
	return nil
}

// Has reports whether an option is stored.
func (m *MemoryOptions) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[name]
	return ok
}
