package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/kec-gateway/internal/catalog"
	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/pricing"
	"github.com/noah-isme/kec-gateway/internal/session"
)

// Handler exposes the session cart over HTTP.
type Handler struct {
	Svc      *Service
	Sessions *session.Manager
	Validate *validator.Validate
}

type addItemRequest struct {
	ProductID   int64 `json:"product_id" validate:"required,gt=0"`
	VariationID int64 `json:"variation_id" validate:"gte=0"`
	Quantity    int   `json:"quantity" validate:"omitempty,gt=0"`
}

type lineResponse struct {
	Key       string        `json:"key"`
	ProductID int64         `json:"product_id"`
	Name      string        `json:"name"`
	SKU       string        `json:"sku"`
	Quantity  int           `json:"quantity"`
	Total     pricing.Money `json:"total"`
	Tax       pricing.Money `json:"tax"`
}

type cartResponse struct {
	Items     []lineResponse `json:"items"`
	Subtotal  pricing.Money  `json:"subtotal"`
	Tax       pricing.Money  `json:"tax"`
	Shipping  pricing.Money  `json:"shipping"`
	Total     pricing.Money  `json:"total"`
	Currency  string         `json:"currency"`
	ItemCount int            `json:"item_count"`
}

// Get returns the priced cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	_, st, err := h.Sessions.Load(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	totals, err := h.Svc.Calculate(r.Context(), st)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(totals)})
}

// AddItem adds a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, common.Validation("invalid JSON body", err))
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		h.writeError(w, common.Validation("invalid cart item", err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	err := h.Sessions.Update(r.Context(), func(st *session.State) error {
		return h.Svc.Add(r.Context(), st, req.ProductID, req.VariationID, req.Quantity)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	err := h.Sessions.Update(r.Context(), func(st *session.State) error {
		h.Svc.Empty(st)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toResponse(t Totals) cartResponse {
	resp := cartResponse{
		Items:     make([]lineResponse, 0, len(t.Lines)),
		Subtotal:  pricing.ToMinor(t.ContentsTotal),
		Tax:       pricing.ToMinor(t.ContentsTax.Add(t.ShippingTax)),
		Shipping:  pricing.ToMinor(t.ShippingTotal),
		Total:     pricing.ToMinor(t.Total()),
		Currency:  t.Currency,
		ItemCount: t.ItemCount(),
	}
	for _, l := range t.Lines {
		resp.Items = append(resp.Items, lineResponse{
			Key:       l.Key,
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			SKU:       l.Product.SKU,
			Quantity:  l.Quantity,
			Total:     pricing.ToMinor(l.LineTotal),
			Tax:       pricing.ToMinor(l.LineTax),
		})
	}
	return resp
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		err = common.NotFound("product not found", err)
	case errors.Is(err, ErrVariationRequired), errors.Is(err, ErrNotPurchasable), errors.Is(err, ErrInvalidQuantity):
		err = common.Business(err.Error(), err)
	case errors.Is(err, session.ErrNoSession):
		err = common.Validation("session required", err)
	}
	appErr := common.AsAppError(err)
	common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
}
