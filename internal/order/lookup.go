package order

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCorrelationMismatch is returned when a looked-up order does not carry the id it was found by.
var ErrCorrelationMismatch = errors.New("order correlation id mismatch")

// FindByCorrelation returns the express checkout order whose meta key equals value, created after
// since. The stored meta is compared again after the lookup.
func FindByCorrelation(ctx context.Context, repo Repository, key, value string, since time.Time) (*Order, error) {
	if value == "" {
		return nil, ErrNotFound
	}
	o, err := repo.FindByMeta(ctx, key, value, CreatedViaKEC, since)
	if err != nil {
		return nil, err
	}
	if o.GetMeta(key) != value {
		return o, fmt.Errorf("%w: order %d", ErrCorrelationMismatch, o.ID)
	}
	return o, nil
}
