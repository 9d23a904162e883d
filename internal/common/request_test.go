package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.9:5123"
	require.Equal(t, "10.0.0.9", ClientIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.4")
	require.Equal(t, "192.0.2.4", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "garbage, 198.51.100.7, 10.0.0.1")
	require.Equal(t, "198.51.100.7", ClientIP(r))
}

func TestDigestSeparatesParts(t *testing.T) {
	require.Len(t, Digest("x"), 64)
	require.NotEqual(t, Digest("a", "bc"), Digest("ab", "c"))
	require.Equal(t, Digest("a", "b"), Digest("a", "b"))
}

func TestParsePage(t *testing.T) {
	p := ParsePage(httptest.NewRequest(http.MethodGet, "/?page=3&limit=20", nil), 50, 200)
	require.Equal(t, Page{Page: 3, PerPage: 20}, p)
	require.Equal(t, 40, p.Offset())

	p = ParsePage(httptest.NewRequest(http.MethodGet, "/?page=0&limit=500", nil), 50, 200)
	require.Equal(t, Page{Page: 1, PerPage: 50}, p)
}
