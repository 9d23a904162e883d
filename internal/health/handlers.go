// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/resilience"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips readiness. It is set to false as soon as shutdown starts.
func SetReady(v bool) { ready.Store(v) }

// Probe is one dependency check. A failing non-critical probe degrades the report
// without taking the instance out of rotation.
type Probe struct {
	Name     string
	Timeout  time.Duration
	Critical bool
	Check    func(ctx context.Context) error
}

// Postgres pings the pool.
func Postgres(pool *pgxpool.Pool, timeout time.Duration) Probe {
	return Probe{Name: "postgres", Timeout: timeout, Critical: true, Check: pool.Ping}
}

// Redis pings the client. Sessions, nonces and replay protection all live there.
func Redis(client *redis.Client, timeout time.Duration) Probe {
	return Probe{Name: "redis", Timeout: timeout, Critical: true, Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// ErrBreakerOpen reports an open breaker in the readiness output.
var ErrBreakerOpen = errors.New("circuit open")

// Breaker reports an outbound dependency as degraded while its breaker is open.
// Storefront checkout keeps working without the Klarna management API.
func Breaker(name string, b *resilience.Breaker) Probe {
	return Probe{Name: name, Check: func(context.Context) error {
		if b != nil && b.State() == resilience.Open {
			return ErrBreakerOpen
		}
		return nil
	}}
}

// Handler serves /health/live and /health/ready.
type Handler struct {
	Probes []Probe
}

// Report is the readiness body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live answers as long as the process serves HTTP.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently. Any critical failure answers 503.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "shutting_down"})
		return
	}

	results := make([]error, len(h.Probes))
	var wg sync.WaitGroup
	for i, p := range h.Probes {
		wg.Add(1)
		go func(i int, p Probe) {
			defer wg.Done()
			results[i] = run(r.Context(), p)
		}(i, p)
	}
	wg.Wait()

	rep := Report{Status: "ok", Checks: make(map[string]string, len(h.Probes))}
	code := http.StatusOK
	for i, p := range h.Probes {
		if results[i] == nil {
			rep.Checks[p.Name] = "ok"
			continue
		}
		rep.Checks[p.Name] = results[i].Error()
		if p.Critical {
			rep.Status, code = "unavailable", http.StatusServiceUnavailable
		} else if code == http.StatusOK {
			rep.Status = "degraded"
		}
	}
	common.JSON(w, code, rep)
}

func run(ctx context.Context, p Probe) error {
	if p.Check == nil {
		return nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}
