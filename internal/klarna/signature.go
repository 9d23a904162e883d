package klarna

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the HMAC of a notification body.
const SignatureHeader = "Klarna-Signature"

// ErrBadSignature is returned when a notification signature does not match.
var ErrBadSignature = errors.New("klarna: notification signature mismatch")

// Sign returns the hex HMAC-SHA256 of body under key.
func Sign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the body. An optional "sha256=" prefix is accepted.
func VerifySignature(key string, body []byte, header string) error {
	provided := strings.TrimSpace(header)
	provided = strings.TrimPrefix(provided, "sha256=")
	if key == "" || provided == "" {
		return ErrBadSignature
	}
	expected := Sign(key, body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(provided))) {
		return ErrBadSignature
	}
	return nil
}
