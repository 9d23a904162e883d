package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/kec-gateway/internal/common"
)

// AdminHandler exposes express checkout orders to store staff.
type AdminHandler struct {
	Repo Repository
	Now  func() time.Time
}

type patchStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// Get returns a single order including its meta.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid order id", nil)
		return
	}
	o, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// PatchStatus moves a non-terminal order to a new status.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid order id", nil)
		return
	}
	var req patchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	target := Status(req.Status)
	if !target.Valid() {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "unsupported status", nil)
		return
	}
	o, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if o.Status.Terminal() || o.Status == target {
		common.JSONError(w, http.StatusConflict, common.CodeConflict, "state transition not allowed", nil)
		return
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	o.Status = target
	if req.Note != "" {
		o.AddNote(req.Note, now())
	}
	if err := h.Repo.Save(r.Context(), o); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "order not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "failed to load order", nil)
}
