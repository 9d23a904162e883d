package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store reads products from persistent storage.
type Store interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed product store.
func NewPGStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const selectProduct = `
SELECT id, COALESCE(parent_id, 0), name, sku, type, status, price::text,
       COALESCE(image_url, ''), COALESCE(global_unique_id, ''), purchasable
FROM products WHERE id = $1`

func (s *pgStore) GetProduct(ctx context.Context, id int64) (Product, error) {
	var (
		p     Product
		price string
	)
	err := s.pool.QueryRow(ctx, selectProduct, id).Scan(
		&p.ID, &p.ParentID, &p.Name, &p.SKU, &p.Type, &p.Status, &price,
		&p.ImageURL, &p.GlobalUniqueID, &p.Purchasable,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("select product %d: %w", id, err)
	}
	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %d price: %w", id, err)
	}
	return p, nil
}
