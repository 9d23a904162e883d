package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/obs"
)

// Config names the bucket a request falls in and its budget.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler rejects requests over budget with 429. Limiter failures let the request through.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// ByClientIP buckets on the caller address.
func ByClientIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		return scope + ":ip:" + common.ClientIP(r)
	}
}

// BySessionOrIP buckets storefront calls on the checkout session, or the caller address
// before a session exists.
func BySessionOrIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		if sid := obs.SessionIDFromContext(r.Context()); sid != "" {
			return scope + ":sid:" + sid
		}
		return ByClientIP(scope)(r)
	}
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := h.Config.Key(r)
		d, err := h.Limiter.Allow(r.Context(), key, h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		hdr := w.Header()
		hdr.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		hdr.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		hdr.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		wait := d.RetryAfter(time.Now())
		hdr.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		zerolog.Ctx(r.Context()).Warn().Str("bucket", key).Dur("retry_after", wait).Msg("rate limited")
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
	})
}
