package resilience_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kec-gateway/internal/resilience"
)

func TestHTTPClientSendsOnceAndReturnsErrorResponses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, `{"a":1}`, string(body))
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(resilience.BreakerConfig{Target: "wrap-once", MinRequests: 1})
	cl := resilience.HTTPClient{Client: srv.Client(), Breaker: breaker, Timeout: time.Second}
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"a":1}`))
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "upstream down", string(body))
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, resilience.Open, breaker.State(), "5xx counts as a failure")
}

func TestHTTPClientClientErrorsKeepBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(resilience.BreakerConfig{Target: "wrap-4xx", MinRequests: 1})
	cl := resilience.HTTPClient{Client: srv.Client(), Breaker: breaker}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestHTTPClientOpenBreaker(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Target: "wrap-open", MinRequests: 1, OpenFor: time.Minute})
	breaker.Report(context.Background(), false)

	cl := resilience.HTTPClient{Client: http.DefaultClient, Breaker: breaker}
	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1", nil)
	require.NoError(t, err)
	_, err = cl.Do(context.Background(), req)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
}

func TestPollStopsWhenReady(t *testing.T) {
	attempts := 0
	err := resilience.Poll(context.Background(), resilience.PollConfig{Budget: time.Second, Interval: time.Millisecond}, func(context.Context) (bool, error) {
		attempts++
		return attempts == 3, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestPollBudgetExhausted(t *testing.T) {
	start := time.Now()
	err := resilience.Poll(context.Background(), resilience.PollConfig{Budget: 30 * time.Millisecond, Interval: 5 * time.Millisecond, Multiplier: 2}, func(context.Context) (bool, error) {
		return false, nil
	})
	require.ErrorIs(t, err, resilience.ErrBudgetExhausted)
	require.Less(t, time.Since(start), time.Second)
}

func TestPollHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := resilience.Poll(ctx, resilience.PollConfig{Budget: time.Second, Interval: 10 * time.Millisecond}, func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestPollPropagatesCheckError(t *testing.T) {
	boom := errors.New("boom")
	err := resilience.Poll(context.Background(), resilience.PollConfig{}, func(context.Context) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, boom)
}
