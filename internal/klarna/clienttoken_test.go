package klarna

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims map[string]any, exp time.Time) string {
	t.Helper()
	b := jwt.NewBuilder().Expiration(exp)
	for k, v := range claims {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	raw, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("klarna-side-key")))
	require.NoError(t, err)
	return string(raw)
}

func TestClientTokenParse(t *testing.T) {
	raw := signedToken(t, map[string]any{
		"session_id":       "0b1d9815-165e-42e2-8867-35bc03789e00",
		"purchase_country": "SE",
		"environment":      "playground",
	}, time.Now().Add(time.Hour))

	ct, err := ClientTokenParser{}.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "0b1d9815-165e-42e2-8867-35bc03789e00", ct.SessionID)
	require.Equal(t, "SE", ct.PurchaseCountry)
	require.Equal(t, raw, ct.Raw)
}

func TestClientTokenRejects(t *testing.T) {
	_, err := ClientTokenParser{}.Parse("")
	require.ErrorIs(t, err, ErrInvalidClientToken)

	_, err = ClientTokenParser{}.Parse("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidClientToken)

	expired := signedToken(t, map[string]any{"session_id": "s"}, time.Now().Add(-time.Hour))
	_, err = ClientTokenParser{}.Parse(expired)
	require.ErrorIs(t, err, ErrInvalidClientToken)

	noSession := signedToken(t, map[string]any{"purchase_country": "SE"}, time.Now().Add(time.Hour))
	_, err = ClientTokenParser{}.Parse(noSession)
	require.ErrorIs(t, err, ErrInvalidClientToken)
}
