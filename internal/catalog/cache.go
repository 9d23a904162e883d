package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix = "kec:catalog:product:"
	// missingMarker is cached for ids the store does not know, so repeated
	// initiate calls with a stale product id do not reach Postgres.
	missingMarker = "-"
)

// Cache keeps products in Redis as JSON. A nil client disables it.
type Cache struct {
	client     *redis.Client
	ttl        time.Duration
	missingTTL time.Duration
}

// NewCache builds a product cache. Unknown ids are remembered for a tenth of ttl.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, missingTTL: ttl / 10}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil && c.ttl > 0 }

func productKey(id int64) string { return cachePrefix + strconv.FormatInt(id, 10) }

// Get returns the cached product. found is false on a miss. A cached unknown id
// yields ErrProductNotFound.
func (c *Cache) Get(ctx context.Context, id int64) (p Product, found bool, err error) {
	if !c.enabled() {
		return Product{}, false, nil
	}
	raw, err := c.client.Get(ctx, productKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return Product{}, false, nil
	case err != nil:
		return Product{}, false, err
	case string(raw) == missingMarker:
		return Product{}, true, ErrProductNotFound
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

// Put stores p.
func (c *Cache) Put(ctx context.Context, p Product) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productKey(p.ID), raw, c.ttl).Err()
}

// PutMissing remembers that id does not exist.
func (c *Cache) PutMissing(ctx context.Context, id int64) error {
	if !c.enabled() || c.missingTTL <= 0 {
		return nil
	}
	return c.client.Set(ctx, productKey(id), missingMarker, c.missingTTL).Err()
}

// Evict drops ids from the cache.
func (c *Cache) Evict(ctx context.Context, ids ...int64) error {
	if !c.enabled() || len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}
