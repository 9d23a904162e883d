package audit

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/common"
)

// Handler exposes HTTP endpoints for working with audit logs.
type Handler struct {
	Store Store
}

// List returns a page of audit logs for administrators.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "audit store not configured", nil)
		return
	}
	page := common.ParsePage(r, 50, 200)
	rows, err := h.Store.List(r.Context(), page.PerPage, page.Offset())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list audit logs")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "unable to fetch audit logs", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"pagination": common.Page{Page: page.Page, PerPage: page.PerPage, Count: len(rows)},
	})
}
