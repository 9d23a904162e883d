package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kec-gateway/internal/health"
	"github.com/noah-isme/kec-gateway/internal/resilience"
)

func probe(name string, critical bool, err error) health.Probe {
	return health.Probe{Name: name, Critical: critical, Check: func(context.Context) error { return err }}
}

func ready(t *testing.T, h health.Handler) (int, health.Report) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var rep health.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	return rr.Code, rep
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyAllHealthy(t *testing.T) {
	code, rep := ready(t, health.Handler{Probes: []health.Probe{probe("postgres", true, nil), probe("redis", true, nil)}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, health.Report{Status: "ok", Checks: map[string]string{"postgres": "ok", "redis": "ok"}}, rep)
}

func TestReadyCriticalFailure(t *testing.T) {
	code, rep := ready(t, health.Handler{Probes: []health.Probe{probe("postgres", true, nil), probe("redis", true, errors.New("redis down"))}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "unavailable", rep.Status)
	require.Equal(t, "redis down", rep.Checks["redis"])
}

func TestReadyDegradedWhenKlarnaBreakerOpen(t *testing.T) {
	b := resilience.NewBreaker(resilience.BreakerConfig{Target: "health-klarna", MinRequests: 1, OpenFor: time.Minute})
	b.Report(context.Background(), false)

	code, rep := ready(t, health.Handler{Probes: []health.Probe{probe("postgres", true, nil), health.Breaker("klarna", b)}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "degraded", rep.Status)
	require.Equal(t, health.ErrBreakerOpen.Error(), rep.Checks["klarna"])
}

func TestReadyProbeTimeout(t *testing.T) {
	slow := health.Probe{Name: "postgres", Critical: true, Timeout: 10 * time.Millisecond, Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	code, rep := ready(t, health.Handler{Probes: []health.Probe{slow}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, context.DeadlineExceeded.Error(), rep.Checks["postgres"])
}

func TestReadinessAfterShutdown(t *testing.T) {
	h := health.Handler{Probes: []health.Probe{probe("postgres", true, nil)}}
	health.SetReady(false)
	t.Cleanup(func() { health.SetReady(true) })

	code, rep := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "shutting_down", rep.Status)
}
