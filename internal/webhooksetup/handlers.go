package webhooksetup

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/security"
)

// NonceAction is the nonce action guarding an admin webhook action.
func NonceAction(action string) string {
	return "kec_" + action
}

// Handler exposes the webhook admin actions.
type Handler struct {
	Svc    *Service
	Nonces security.Nonces
	// Subject binds admin nonces, usually the admin user name.
	Subject string
}

// Run handles POST /admin/kec/webhook/{action}.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Run(r.Context(), chi.URLParam(r, "action"))
	if errors.Is(err, ErrUnknownAction) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "unknown webhook action", nil)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// NonceGuard returns the middleware checking the action nonce.
func (h *Handler) NonceGuard() security.NonceGuard {
	return security.NonceGuard{
		Nonces:  h.Nonces,
		Action:  func(r *http.Request) string { return NonceAction(chi.URLParam(r, "action")) },
		Subject: func(*http.Request) string { return h.Subject },
	}
}

// IssueNonces handles GET /admin/kec/webhook/nonces and returns one nonce per action.
func (h *Handler) IssueNonces(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string, len(Actions()))
	for _, action := range Actions() {
		token, err := h.Nonces.Issue(NonceAction(action), h.Subject)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("issue admin nonce")
			common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "could not issue nonces", nil)
			return
		}
		out[action] = token
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}
