package klarna

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidClientToken is returned when the token from the button callback cannot be used.
var ErrInvalidClientToken = errors.New("invalid client token")

// ClientToken is the decoded session token handed to the browser by Klarna.
type ClientToken struct {
	SessionID       string
	PurchaseCountry string
	Environment     string
	BaseURL         string
	Raw             string
}

// ClientTokenParser decodes Klarna client tokens. The signature belongs to Klarna and is
// not verified here; only structure, expiry and the session claim are checked.
type ClientTokenParser struct{}

// Parse decodes token.
func (ClientTokenParser) Parse(token string) (ClientToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ClientToken{}, fmt.Errorf("%w: empty", ErrInvalidClientToken)
	}
	parsed, err := jwt.ParseString(token, jwt.WithVerify(false), jwt.WithValidate(true))
	if err != nil {
		return ClientToken{}, fmt.Errorf("%w: %v", ErrInvalidClientToken, err)
	}
	ct := ClientToken{
		SessionID:       stringClaim(parsed, "session_id"),
		PurchaseCountry: stringClaim(parsed, "purchase_country"),
		Environment:     stringClaim(parsed, "environment"),
		BaseURL:         stringClaim(parsed, "base_url"),
		Raw:             token,
	}
	if ct.SessionID == "" {
		return ClientToken{}, fmt.Errorf("%w: missing session_id", ErrInvalidClientToken)
	}
	return ct, nil
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
