package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kec-gateway/internal/lock"
	"github.com/noah-isme/kec-gateway/internal/order"
	"github.com/noah-isme/kec-gateway/internal/order/ordertest"
)

func TestSweeperCancelsAbandonedDrafts(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := ordertest.NewMemory()

	stale := order.New(order.CreatedViaKEC, 0)
	stale.UpdatedAt = testNow.Add(-72 * time.Hour)
	repo.Put(stale)
	fresh := order.New(order.CreatedViaKEC, 0)
	fresh.UpdatedAt = testNow.Add(-time.Hour)
	repo.Put(fresh)
	other := order.New("checkout", 0)
	other.UpdatedAt = testNow.Add(-72 * time.Hour)
	repo.Put(other)

	repo.Now = func() time.Time { return testNow }
	s := &Sweeper{
		Orders:       repo,
		Locker:       lock.Locker{R: client, Prefix: "kec:lock:"},
		LockTTL:      time.Second,
		AbandonAfter: 48 * time.Hour,
		Now:          func() time.Time { return testNow },
	}
	n, err := s.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusCancelled, got.Status)
	require.Equal(t, NoteAbandoned, got.Notes[len(got.Notes)-1].Content)

	got, err = repo.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, got.Status)

	n, err = s.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSweeperSkipsWhenLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, mr.Set("kec:lock:"+sweepLockKey, "other"))

	s := &Sweeper{Orders: ordertest.NewMemory(), Locker: lock.Locker{R: client, Prefix: "kec:lock:"}, LockTTL: time.Second, AbandonAfter: time.Hour}
	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

// settlingRepo completes every listed draft right after listing it, the way a
// completion notification racing the sweeper would.
type settlingRepo struct {
	*ordertest.Memory
}

func (r settlingRepo) ListStale(ctx context.Context, createdVia string, status order.Status, cutoff time.Time, limit int) ([]*order.Order, error) {
	stale, err := r.Memory.ListStale(ctx, createdVia, status, cutoff, limit)
	for _, o := range stale {
		paid, _ := r.Memory.Get(ctx, o.ID)
		paid.Status = order.StatusProcessing
		paid.SetMeta(order.MetaRedirectURL, "https://shop.example/thanks")
		_ = r.Memory.Save(ctx, paid)
	}
	return stale, err
}

func TestSweeperLeavesDraftsSettledMidSweep(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := ordertest.NewMemory()

	draft := order.New(order.CreatedViaKEC, 0)
	draft.UpdatedAt = testNow.Add(-72 * time.Hour)
	repo.Put(draft)
	repo.Now = func() time.Time { return testNow }

	s := &Sweeper{
		Orders:       settlingRepo{repo},
		Locker:       lock.Locker{R: client, Prefix: "kec:lock:"},
		LockTTL:      time.Second,
		AbandonAfter: 48 * time.Hour,
		Now:          func() time.Time { return testNow },
	}
	n, err := s.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	got, err := repo.Get(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusProcessing, got.Status)
	require.Equal(t, "https://shop.example/thanks", got.GetMeta(order.MetaRedirectURL))
	require.Empty(t, got.Notes)
}
