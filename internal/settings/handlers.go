package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/common"
)

// Handler exposes the settings record to store administrators.
type Handler struct {
	Svc *Service
}

// Get returns the current settings and the admin form description.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.Svc.Load(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("load kec settings")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "failed to load settings", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st, "fields": Fields()})
}

// Put replaces the settings.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var req Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	st, err := h.Svc.Update(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalid) {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("save kec settings")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "failed to save settings", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st})
}
