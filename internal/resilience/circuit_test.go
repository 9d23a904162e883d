package resilience_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kec-gateway/internal/resilience"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := resilience.NewBreaker(resilience.BreakerConfig{Target: "ratio", MinRequests: 4, FailureRatio: 0.5, OpenFor: time.Minute, Now: clock.Now})
	ctx := context.Background()

	b.Report(ctx, true)
	b.Report(ctx, false)
	b.Report(ctx, true)
	require.Equal(t, resilience.Closed, b.State(), "below MinRequests")

	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow(ctx))
}

func TestBreakerSlidingWindowForgetsOldFailures(t *testing.T) {
	b := resilience.NewBreaker(resilience.BreakerConfig{Target: "window", Window: 4, MinRequests: 4, FailureRatio: 0.75})
	ctx := context.Background()

	b.Report(ctx, false)
	b.Report(ctx, false)
	for i := 0; i < 4; i++ {
		b.Report(ctx, true)
	}
	b.Report(ctx, false)
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerSingleHalfOpenProbe(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := resilience.NewBreaker(resilience.BreakerConfig{Target: "probe", MinRequests: 1, OpenFor: 30 * time.Second, Now: clock.Now})
	ctx := context.Background()

	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())

	clock.Advance(31 * time.Second)
	require.True(t, b.Allow(ctx))
	require.Equal(t, resilience.HalfOpen, b.State())
	require.False(t, b.Allow(ctx), "only one probe while half-open")

	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())

	clock.Advance(31 * time.Second)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	require.Equal(t, resilience.Closed, b.State())
	require.True(t, b.Allow(ctx))
}

func TestBreakerMetrics(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := resilience.NewBreaker(resilience.BreakerConfig{Target: "klarna-metrics", MinRequests: 1, OpenFor: time.Second, Now: clock.Now})
	ctx := context.Background()
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("klarna-metrics")))

	b.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("klarna-metrics")))

	clock.Advance(2 * time.Second)
	require.True(t, b.Allow(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("klarna-metrics")))

	b.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("klarna-metrics")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("klarna-metrics", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("klarna-metrics", "half_open", "closed")))
}
