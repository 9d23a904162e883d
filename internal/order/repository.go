package order

import (
	"context"
	"time"
)

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	Save(ctx context.Context, o *Order) error
	// FindByMeta returns the newest order created via createdVia after since whose meta key equals value.
	FindByMeta(ctx context.Context, key, value, createdVia string, since time.Time) (*Order, error)
	// ListStale returns orders in status created via createdVia that were last modified before cutoff.
	ListStale(ctx context.Context, createdVia string, status Status, cutoff time.Time, limit int) ([]*Order, error)
	// Transition moves order id from status from to status to and appends note, but only while the
	// order is still in from and was last modified before cutoff. Other columns and meta are left
	// untouched. It reports whether the order changed.
	Transition(ctx context.Context, id int64, from, to Status, cutoff time.Time, note Note) (bool, error)
}
