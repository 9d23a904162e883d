package notification

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/kec-gateway/internal/common"
)

// ReplayGuard marks deliveries as seen. Klarna redelivers until it gets a
// 2xx, so a claim is dropped again when processing fails.
type ReplayGuard interface {
	Claim(ctx context.Context, id string) (fresh bool, err error)
	Forget(ctx context.Context, id string) error
}

// RedisReplayGuard stores claims under Prefix with a TTL.
type RedisReplayGuard struct {
	Client redis.UniversalClient
	Prefix string
	TTL    time.Duration
	Now    func() time.Time
}

func (g RedisReplayGuard) key(id string) string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = "kec:notification:"
	}
	return prefix + id
}

// Claim records id and reports whether it was unseen. The claim time is kept
// as the value for debugging.
func (g RedisReplayGuard) Claim(ctx context.Context, id string) (bool, error) {
	if g.Client == nil || g.TTL <= 0 {
		return true, nil
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	err := g.Client.SetArgs(ctx, g.key(id), now().UTC().Format(time.RFC3339), redis.SetArgs{Mode: "NX", TTL: g.TTL}).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Forget drops the claim on id.
func (g RedisReplayGuard) Forget(ctx context.Context, id string) error {
	if g.Client == nil || g.TTL <= 0 {
		return nil
	}
	return g.Client.Del(ctx, g.key(id)).Err()
}

// deliveryID identifies a delivery by its event id, or by the body digest
// when Klarna sent none.
func deliveryID(ev Event, body []byte) string {
	if ev.EventID != "" {
		return "evt:" + common.Digest(ev.EventID)
	}
	return "body:" + common.Digest(string(body))
}
