package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testNonces(now time.Time) Nonces {
	return Nonces{Secret: []byte("nonce-secret"), TTL: time.Hour, Now: func() time.Time { return now }}
}

func TestNonceRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := testNonces(now)

	token, err := n.Issue("kec_set_cart", "sess-1")
	require.NoError(t, err)
	require.NoError(t, n.Verify(token, "kec_set_cart", "sess-1"))

	require.ErrorIs(t, n.Verify(token, "kec_get_payload", "sess-1"), ErrInvalidNonce)
	require.ErrorIs(t, n.Verify(token, "kec_set_cart", "sess-2"), ErrInvalidNonce)
	require.ErrorIs(t, n.Verify("", "kec_set_cart", "sess-1"), ErrInvalidNonce)

	later := testNonces(now.Add(2 * time.Hour))
	require.ErrorIs(t, later.Verify(token, "kec_set_cart", "sess-1"), ErrInvalidNonce)

	other := Nonces{Secret: []byte("other"), Now: n.Now}
	require.ErrorIs(t, other.Verify(token, "kec_set_cart", "sess-1"), ErrInvalidNonce)
}

func TestNonceGuardMiddleware(t *testing.T) {
	n := testNonces(time.Now())
	guard := NonceGuard{
		Nonces:  n,
		Action:  func(*http.Request) string { return "kec_set_cart" },
		Subject: func(*http.Request) string { return "sess-1" },
	}
	called := false
	handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ajax", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.False(t, called)

	token, err := n.Issue("kec_set_cart", "sess-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/ajax", nil)
	req.Header.Set(NonceHeader, token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)

	called = false
	req = httptest.NewRequest(http.MethodPost, "/ajax?nonce="+token, nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}
