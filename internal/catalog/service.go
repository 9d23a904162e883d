package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Service resolves products through the Redis cache before hitting storage.
type Service struct {
	store Store
	cache *Cache
}

// NewService constructs a catalog service.
func NewService(store Store, cache *Cache) *Service {
	return &Service{store: store, cache: cache}
}

// Product returns the product with the given id.
func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrProductNotFound
	}
	logger := zerolog.Ctx(ctx)
	p, found, err := s.cache.Get(ctx, id)
	switch {
	case found:
		return p, err
	case err != nil:
		logger.Warn().Err(err).Int64("product_id", id).Msg("catalog cache read failed")
	}

	p, err = s.store.GetProduct(ctx, id)
	if errors.Is(err, ErrProductNotFound) {
		if cerr := s.cache.PutMissing(ctx, id); cerr != nil {
			logger.Warn().Err(cerr).Int64("product_id", id).Msg("catalog cache write failed")
		}
		return Product{}, err
	}
	if err != nil {
		return Product{}, err
	}
	if err := s.cache.Put(ctx, p); err != nil {
		logger.Warn().Err(err).Int64("product_id", id).Msg("catalog cache write failed")
	}
	return p, nil
}

// Invalidate drops a cached product, and its parent when it is a variation.
func (s *Service) Invalidate(ctx context.Context, id int64) error {
	ids := []int64{id}
	if p, found, err := s.cache.Get(ctx, id); err == nil && found && p.ParentID > 0 {
		ids = append(ids, p.ParentID)
	}
	return s.cache.Evict(ctx, ids...)
}
