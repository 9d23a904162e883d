package assets

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/catalog"
	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/session"
)

// SessionLoader returns the current session.
type SessionLoader interface {
	Load(ctx context.Context) (string, *session.State, error)
}

// Handler serves the asset bundle for a storefront page.
type Handler struct {
	Svc      *Service
	Sessions SessionLoader
}

// Get handles GET /api/v1/kec/assets?page=cart|product&product_id=N.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := Request{Page: q.Get("page"), Blocks: q.Get("blocks") == "1" || q.Get("blocks") == "true"}
	if req.Page == PageProduct {
		id, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
		if err != nil || id <= 0 {
			h.writeError(w, r, common.Validation("invalid product_id", err))
			return
		}
		req.ProductID = id
	}

	id, st, err := h.Sessions.Load(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req.SessionID, req.State = id, st

	bundle, err := h.Svc.Enqueue(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": bundle})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnknownPage):
		err = common.Validation("page must be cart or product", err)
	case errors.Is(err, catalog.ErrProductNotFound):
		err = common.NotFound("product not found", err)
	case errors.Is(err, session.ErrNoSession):
		err = common.Validation("session required", err)
	}
	appErr := common.AsAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("assets request failed")
	}
	common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
}
