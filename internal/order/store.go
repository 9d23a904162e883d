package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a Postgres-backed order repository.
func NewPGRepository(pool *pgxpool.Pool) Repository {
	return &pgStore{pool: pool}
}

const orderColumns = `o.id, o.order_key, o.status, o.created_via, o.customer_id, o.currency, o.prices_include_tax,
	o.billing, o.shipping, o.customer_ip, o.user_agent, o.payment_method, o.items, o.notes,
	o.shipping_total::text, o.shipping_tax::text, o.cart_tax::text, o.total::text, o.created_at, o.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o                                Order
		status                           string
		billing, shipping, items, notes  []byte
		shipTotal, shipTax, cartTax, tot string
	)
	if err := row.Scan(&o.ID, &o.Key, &status, &o.CreatedVia, &o.CustomerID, &o.Currency, &o.PricesIncludeTax,
		&billing, &shipping, &o.CustomerIP, &o.UserAgent, &o.PaymentMethod, &items, &notes,
		&shipTotal, &shipTax, &cartTax, &tot, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	for _, field := range []struct {
		raw []byte
		dst any
	}{{billing, &o.Billing}, {shipping, &o.Shipping}, {items, &o.Items}, {notes, &o.Notes}} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return nil, fmt.Errorf("decode order %d: %w", o.ID, err)
		}
	}
	var err error
	for _, field := range []struct {
		raw string
		dst *decimal.Decimal
	}{{shipTotal, &o.ShippingTotal}, {shipTax, &o.ShippingTax}, {cartTax, &o.CartTax}, {tot, &o.Total}} {
		if *field.dst, err = decimal.NewFromString(field.raw); err != nil {
			return nil, fmt.Errorf("decode order %d totals: %w", o.ID, err)
		}
	}
	o.Meta = map[string]string{}
	return &o, nil
}

func (s *pgStore) loadMeta(ctx context.Context, q pgx.Tx, o *Order) error {
	rows, err := q.Query(ctx, `SELECT meta_key, meta_value FROM order_meta WHERE order_id = $1`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		o.Meta[k] = v
	}
	return rows.Err()
}

func (s *pgStore) Create(ctx context.Context, o *Order) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		args, err := orderArgs(o)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
INSERT INTO orders (order_key, status, created_via, customer_id, currency, prices_include_tax,
	billing, shipping, customer_ip, user_agent, payment_method, items, notes,
	shipping_total, shipping_tax, cart_tax, total, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14::numeric,$15::numeric,$16::numeric,$17::numeric, now(), now())
RETURNING id, created_at, updated_at`, args...).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return replaceMeta(ctx, tx, o)
	})
}

func (s *pgStore) Get(ctx context.Context, id int64) (*Order, error) {
	var out *Order
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("select order %d: %w", id, err)
		}
		if err := s.loadMeta(ctx, tx, o); err != nil {
			return fmt.Errorf("select order %d meta: %w", id, err)
		}
		out = o
		return nil
	})
	return out, err
}

func (s *pgStore) Save(ctx context.Context, o *Order) error {
	if o.ID == 0 {
		return s.Create(ctx, o)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		args, err := orderArgs(o)
		if err != nil {
			return err
		}
		args = append(args, o.ID)
		err = tx.QueryRow(ctx, `
UPDATE orders SET order_key=$1, status=$2, created_via=$3, customer_id=$4, currency=$5, prices_include_tax=$6,
	billing=$7, shipping=$8, customer_ip=$9, user_agent=$10, payment_method=$11, items=$12, notes=$13,
	shipping_total=$14::numeric, shipping_tax=$15::numeric, cart_tax=$16::numeric, total=$17::numeric, updated_at=now()
WHERE id=$18
RETURNING updated_at`, args...).Scan(&o.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("update order %d: %w", o.ID, err)
		}
		return replaceMeta(ctx, tx, o)
	})
}

func (s *pgStore) FindByMeta(ctx context.Context, key, value, createdVia string, since time.Time) (*Order, error) {
	var out *Order
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, `
SELECT `+orderColumns+`
FROM orders o
JOIN order_meta m ON m.order_id = o.id
WHERE m.meta_key = $1 AND m.meta_value = $2 AND o.created_via = $3 AND o.created_at > $4
ORDER BY o.created_at DESC
LIMIT 1`, key, value, createdVia, since))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("find order by %s: %w", key, err)
		}
		if err := s.loadMeta(ctx, tx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func (s *pgStore) ListStale(ctx context.Context, createdVia string, status Status, cutoff time.Time, limit int) ([]*Order, error) {
	var out []*Order
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
SELECT `+orderColumns+`
FROM orders o
WHERE o.created_via = $1 AND o.status = $2 AND o.updated_at < $3
ORDER BY o.updated_at
LIMIT $4`, createdVia, string(status), cutoff, limit)
		if err != nil {
			return err
		}
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				rows.Close()
				return err
			}
			out = append(out, o)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, o := range out {
			if err := s.loadMeta(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *pgStore) Transition(ctx context.Context, id int64, from, to Status, cutoff time.Time, note Note) (bool, error) {
	appended, err := json.Marshal([]Note{note})
	if err != nil {
		return false, fmt.Errorf("encode order note: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE orders SET status = $3, notes = notes || $4::jsonb, updated_at = now()
WHERE id = $1 AND status = $2 AND updated_at < $5`, id, string(from), string(to), appended, cutoff)
	if err != nil {
		return false, fmt.Errorf("transition order %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func orderArgs(o *Order) ([]any, error) {
	encoded := make([][]byte, 0, 4)
	for _, v := range []any{o.Billing, o.Shipping, nonNilItems(o.Items), nonNilNotes(o.Notes)} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode order: %w", err)
		}
		encoded = append(encoded, b)
	}
	return []any{
		o.Key, string(o.Status), o.CreatedVia, o.CustomerID, o.Currency, o.PricesIncludeTax,
		encoded[0], encoded[1], o.CustomerIP, o.UserAgent, o.PaymentMethod, encoded[2], encoded[3],
		o.ShippingTotal.String(), o.ShippingTax.String(), o.CartTax.String(), o.Total.String(),
	}, nil
}

func nonNilItems(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}

func nonNilNotes(notes []Note) []Note {
	if notes == nil {
		return []Note{}
	}
	return notes
}

func replaceMeta(ctx context.Context, tx pgx.Tx, o *Order) error {
	if _, err := tx.Exec(ctx, `DELETE FROM order_meta WHERE order_id = $1`, o.ID); err != nil {
		return fmt.Errorf("clear order meta: %w", err)
	}
	if len(o.Meta) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for k, v := range o.Meta {
		batch.Queue(`INSERT INTO order_meta (order_id, meta_key, meta_value) VALUES ($1, $2, $3)`, o.ID, k, v)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write order meta: %w", err)
	}
	return nil
}
