package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExhausted is returned by Poll when the wait budget runs out before the condition holds.
var ErrBudgetExhausted = errors.New("resilience: wait budget exhausted")

// PollConfig bounds a polling wait.
type PollConfig struct {
	// Budget is the total time Poll may spend waiting.
	Budget time.Duration
	// Interval is the delay before the second check.
	Interval time.Duration
	// Multiplier grows the delay between checks. Values <= 1 keep a fixed interval.
	Multiplier float64
	// MaxInterval caps the grown delay.
	MaxInterval time.Duration
}

// Poll calls check until it reports done, returns an error, the budget is spent or ctx is cancelled.
// check always runs at least once.
func Poll(ctx context.Context, cfg PollConfig, check func(context.Context) (bool, error)) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	waitCtx := ctx
	if cfg.Budget > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.Budget)
		defer cancel()
	}

	for {
		done, err := check(waitCtx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := Sleep(waitCtx, interval); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrBudgetExhausted
		}
		if cfg.Multiplier > 1 {
			interval = time.Duration(float64(interval) * cfg.Multiplier)
			if cfg.MaxInterval > 0 && interval > cfg.MaxInterval {
				interval = cfg.MaxInterval
			}
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
