package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/lock"
	"github.com/noah-isme/kec-gateway/internal/obs"
	"github.com/noah-isme/kec-gateway/internal/order"
)

const sweepLockKey = "sweeper:drafts"

// NoteAbandoned is recorded on draft orders cancelled by the sweeper.
const NoteAbandoned = "Order cancelled: express checkout was abandoned."

// Locker runs fn while holding a named lock, failing fast when it is taken.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Sweeper cancels two-step draft orders that never received a completion notification.
type Sweeper struct {
	Orders       order.Repository
	Locker       Locker
	LockTTL      time.Duration
	AbandonAfter time.Duration
	Batch        int
	Now          func() time.Time
	Logger       *zerolog.Logger
}

// RunOnce cancels one batch of abandoned drafts and reports how many were cancelled.
// Another instance holding the lock is not an error.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	logger := zerolog.Nop()
	if s.Logger != nil {
		logger = *s.Logger
	}
	batch := s.Batch
	if batch <= 0 {
		batch = 100
	}

	cancelled := 0
	err := s.Locker.TryWithLock(ctx, sweepLockKey, s.LockTTL, func(ctx context.Context) error {
		cutoff := now().Add(-s.AbandonAfter)
		stale, err := s.Orders.ListStale(ctx, order.CreatedViaKEC, order.StatusPending, cutoff, batch)
		if err != nil {
			return fmt.Errorf("list stale drafts: %w", err)
		}
		for _, o := range stale {
			// A notification may have settled the draft since it was listed.
			changed, err := s.Orders.Transition(ctx, o.ID, order.StatusPending, order.StatusCancelled, cutoff,
				order.Note{Content: NoteAbandoned, CreatedAt: now()})
			if err != nil {
				logger.Error().Err(err).Int64("order_id", o.ID).Msg("cancel abandoned draft")
				continue
			}
			if !changed {
				logger.Debug().Int64("order_id", o.ID).Msg("draft changed before cancel")
				continue
			}
			cancelled++
			obs.IncDraftSweep()
		}
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		logger.Debug().Msg("sweeper lock held elsewhere")
		return 0, nil
	}
	if cancelled > 0 {
		logger.Info().Int("cancelled", cancelled).Msg("abandoned drafts cancelled")
	}
	return cancelled, err
}
