package security

import (
	"crypto/subtle"
	"net/http"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/common"
)

// AdminAuth protects admin routes with HTTP basic auth checked against an argon2id hash.
type AdminAuth struct {
	User         string
	PasswordHash string
	Realm        string
}

// Middleware rejects requests without valid admin credentials. An empty hash
// disables the admin surface entirely.
func (a AdminAuth) Middleware(next http.Handler) http.Handler {
	realm := a.Realm
	if realm == "" {
		realm = "kec-admin"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || a.PasswordHash == "" || subtle.ConstantTimeCompare([]byte(user), []byte(a.User)) != 1 {
			a.deny(w, realm)
			return
		}
		match, err := argon2id.ComparePasswordAndHash(pass, a.PasswordHash)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("admin password hash invalid")
		}
		if !match {
			a.deny(w, realm)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a AdminAuth) deny(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "admin credentials required", nil)
}
