package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/obs"
)

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "kec:ratelimit:"},
		Config: Config{
			Key:    BySessionOrIP("ajax"),
			Window: time.Second,
			Max:    1,
		},
	}

	counted := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/kec/ajax/kec_set_cart", nil)
	req = req.WithContext(obs.WithSessionID(req.Context(), "sess-1"))

	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))

	require.NotEmpty(t, rr2.Header().Get("Retry-After"))

	var env common.Envelope
	require.NoError(t, json.NewDecoder(rr2.Body).Decode(&env))
	require.False(t, env.Success)
	require.Equal(t, "RATE_LIMITED", env.Error.Code)

	other := httptest.NewRequest(http.MethodPost, "/api/v1/kec/ajax/kec_set_cart", nil)
	other = other.WithContext(obs.WithSessionID(other.Context(), "sess-2"))
	rr3 := httptest.NewRecorder()
	counted.ServeHTTP(rr3, other)
	require.Equal(t, http.StatusOK, rr3.Code)
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "kec:ratelimit:"},
		Config: Config{
			Key:    ByClientIP("notifications"),
			Window: time.Second,
			Max:    1,
		},
	}

	called := false
	handler.OnError = func(error) { called = true }

	counted := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusOK, rr.Code, "limiter failures must not block requests")
	require.True(t, called)
}

func TestKeyFuncs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "ajax:ip:10.0.0.1", BySessionOrIP("ajax")(req))
	require.Equal(t, "admin:ip:10.0.0.1", ByClientIP("admin")(req))
}
