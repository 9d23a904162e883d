package klarna

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event_type":"payment.request.state-change.completed"}`)
	sig := Sign("signing-key", body)

	require.NoError(t, VerifySignature("signing-key", body, sig))
	require.NoError(t, VerifySignature("signing-key", body, "sha256="+sig))
	require.ErrorIs(t, VerifySignature("other-key", body, sig), ErrBadSignature)
	require.ErrorIs(t, VerifySignature("signing-key", []byte(`{}`), sig), ErrBadSignature)
	require.ErrorIs(t, VerifySignature("signing-key", body, ""), ErrBadSignature)
}
