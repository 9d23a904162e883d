package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/cart"
	"github.com/noah-isme/kec-gateway/internal/catalog"
	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/customer"
	"github.com/noah-isme/kec-gateway/internal/klarna"
	"github.com/noah-isme/kec-gateway/internal/obs"
	"github.com/noah-isme/kec-gateway/internal/session"
)

// SessionStore loads and saves the request's session state.
type SessionStore interface {
	Load(ctx context.Context) (string, *session.State, error)
	Save(ctx context.Context, id string, st *session.State) error
}

// SessionLocker serialises work on one session.
type SessionLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// CartEditor changes the session cart.
type CartEditor interface {
	Empty(st *session.State)
	Add(ctx context.Context, st *session.State, productID, variationID int64, quantity int) error
}

// TokenParser decodes the client token posted by the authorization callback.
type TokenParser interface {
	Parse(token string) (klarna.ClientToken, error)
}

// Handler serves the storefront actions of the express checkout button.
type Handler struct {
	Sessions    SessionStore
	Cart        CartEditor
	Products    cart.ProductSource
	OneStep     Flow
	TwoStep     Flow
	Tokens      TokenParser
	Payload     PayloadBuilder
	Finalizer   Finalizer
	Locker      SessionLocker
	LockTTL     time.Duration
	CheckoutURL string
	Validate    *validator.Validate
}

// Dispatch routes POST /kec/ajax/{action} to the action handler.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	var fn http.HandlerFunc
	switch action {
	case ActionGetPayload:
		fn = h.GetPayload
	case ActionSetCart:
		fn = h.SetCart
	case ActionAuthCallback:
		fn = h.AuthCallback
	case ActionFinalizeCallback:
		fn = h.FinalizeCallback
	case ActionOneStepInitiate:
		fn = h.initiate(h.OneStep)
	case ActionOneStepAddressChange:
		fn = h.addressChange(h.OneStep)
	case ActionOneStepOptionChange:
		fn = h.optionChange(h.OneStep)
	case ActionTwoStepInitiate:
		fn = h.initiate(h.TwoStep)
	case ActionTwoStepAddressChange:
		fn = h.addressChange(h.TwoStep)
	case ActionTwoStepOptionChange:
		fn = h.optionChange(h.TwoStep)
	default:
		common.Failure(w, common.NotFound("unknown action", nil))
		return
	}
	fn(w, r)
}

// withSession runs fn on the request's session and saves the state when fn succeeds.
// With a locker configured, concurrent calls for one session run one at a time.
func (h *Handler) withSession(ctx context.Context, fn func(*session.State) error) error {
	run := func(ctx context.Context) error {
		id, st, err := h.Sessions.Load(ctx)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		return h.Sessions.Save(ctx, id, st)
	}
	id, ok := session.IDFromContext(ctx)
	if h.Locker == nil || !ok {
		return run(ctx)
	}
	return h.Locker.WithLock(ctx, "session:"+id, h.LockTTL, run)
}

func (h *Handler) quoteContext(r *http.Request, st *session.State) *Context {
	return &Context{Session: st, ClientIP: common.ClientIP(r), UserAgent: r.UserAgent()}
}

func decode(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.Validation("invalid JSON body", err)
	}
	return nil
}

// GetPayload returns the payment session payload for the cart.
func (h *Handler) GetPayload(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	err := h.withSession(r.Context(), func(st *session.State) error {
		if h.Payload == nil {
			return nil
		}
		var err error
		payload, err = h.Payload.Payload(r.Context(), st)
		return err
	})
	if err == nil && payload == nil {
		err = common.Business("Could not get a Payload for the cart", nil)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Success(w, payload)
}

type setCartRequest struct {
	ProductID   int64 `json:"product_id" validate:"required,gt=0"`
	VariationID int64 `json:"variation_id" validate:"gte=0"`
}

// SetCart replaces the cart with one unit of the posted product.
func (h *Handler) SetCart(w http.ResponseWriter, r *http.Request) {
	var req setCartRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		h.writeError(w, r, common.Validation("No product ID was posted", err))
		return
	}
	err := h.withSession(r.Context(), func(st *session.State) error {
		h.Cart.Empty(st)
		if err := h.Cart.Add(r.Context(), st, req.ProductID, req.VariationID, 1); err != nil {
			return common.Business("Could not add the product to the cart", err)
		}
		return nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Success(w, nil)
}

type authResult struct {
	Approved                 bool                       `json:"approved"`
	ClientToken              string                     `json:"client_token"`
	CollectedShippingAddress *customer.CollectedAddress `json:"collected_shipping_address"`
}

type authRequest struct {
	Result *authResult `json:"result"`
}

// AuthCallback stores the authorized customer and address in the session and answers with the
// checkout URL.
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Result == nil {
		h.writeError(w, r, common.Validation("No result was posted", nil))
		return
	}
	token, err := h.Tokens.Parse(req.Result.ClientToken)
	if err != nil {
		h.writeError(w, r, common.Validation(err.Error(), err))
		return
	}
	if !req.Result.Approved {
		h.writeError(w, r, common.Business("The payment was not approved by Klarna", ErrNotApproved))
		return
	}
	err = h.withSession(r.Context(), func(st *session.State) error {
		if collected := req.Result.CollectedShippingAddress; collected != nil {
			addr := collected.Address()
			st.Customer.Billing = addr
			shippingAddr := addr
			shippingAddr.Email = ""
			st.Customer.Shipping = shippingAddr
			st.KlarnaAddress = collected
		}
		st.ClientToken = token.Raw
		return nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Success(w, h.CheckoutURL)
}

type finalizeResult struct {
	Approved           bool   `json:"approved"`
	AuthorizationToken string `json:"authorization_token"`
}

type finalizeRequest struct {
	Result   *finalizeResult `json:"result"`
	OrderID  int64           `json:"order_id"`
	OrderKey string          `json:"order_key"`
}

// FinalizeCallback hands an approved authorization to the configured finalizer.
func (h *Handler) FinalizeCallback(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Result == nil {
		h.writeError(w, r, common.Validation("No result was posted", nil))
		return
	}
	if !req.Result.Approved {
		h.writeError(w, r, common.Business("The payment was not approved by Klarna", ErrNotApproved))
		return
	}
	var out map[string]any
	if h.Finalizer != nil {
		var err error
		out, err = h.Finalizer.Finalize(r.Context(), FinalizeRequest{
			Approved:           req.Result.Approved,
			AuthorizationToken: req.Result.AuthorizationToken,
			OrderID:            req.OrderID,
			OrderKey:           req.OrderKey,
		})
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Int64("order_id", req.OrderID).Msg("finalize order")
			out = nil
		}
	}
	if out == nil {
		h.writeError(w, r, common.Business("Could not finalize the order", nil))
		return
	}
	common.Success(w, out)
}

type initiateRequest struct {
	Source string `json:"source"`
}

func (h *Handler) initiate(flow Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req initiateRequest
		if err := decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		source := strings.TrimSpace(req.Source)
		if source == "" || source == "unknown" {
			h.writeError(w, r, common.Validation(fmt.Sprintf("Missing or invalid source: %s", source), nil))
			return
		}
		var body InitiateBody
		err := h.withSession(r.Context(), func(st *session.State) error {
			if source != "cart" {
				if err := h.replaceCart(r.Context(), st, source); err != nil {
					return err
				}
			}
			var err error
			body, err = flow.Initiate(r.Context(), h.quoteContext(r, st))
			return err
		})
		h.respondQuote(w, r, flow.Name(), "initiate", body, err)
	}
}

func (h *Handler) replaceCart(ctx context.Context, st *session.State, source string) error {
	id, err := strconv.ParseInt(source, 10, 64)
	if err != nil || id <= 0 {
		return common.Validation("Invalid product ID", err)
	}
	p, err := h.Products.Product(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return common.Validation("Invalid product ID", err)
		}
		return err
	}
	if !p.Exists() {
		return common.Validation("Invalid product ID", nil)
	}
	h.Cart.Empty(st)
	if err := h.Cart.Add(ctx, st, p.ID, 0, 1); err != nil {
		return common.Business("Could not add the product to the cart", err)
	}
	return nil
}

type addressChangeRequest struct {
	ShippingAddress  *customer.Partial `json:"shippingAddress"`
	PaymentRequestID string            `json:"paymentRequestId"`
	PaymentToken     string            `json:"paymentToken"`
}

func (h *Handler) addressChange(flow Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addressChangeRequest
		if err := decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		if req.ShippingAddress == nil {
			h.writeError(w, r, common.Validation("No shipping address was posted", nil))
			return
		}
		var quote ShippingQuote
		err := h.withSession(r.Context(), func(st *session.State) error {
			var err error
			quote, err = flow.ShippingAddressChange(r.Context(), h.quoteContext(r, st), AddressChange{
				Address:          *req.ShippingAddress,
				PaymentRequestID: req.PaymentRequestID,
				PaymentToken:     req.PaymentToken,
			})
			return err
		})
		h.respondQuote(w, r, flow.Name(), "address_change", quote, err)
	}
}

type optionChangeRequest struct {
	SelectedOption string `json:"selectedOption"`
}

func (h *Handler) optionChange(flow Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req optionChangeRequest
		if err := decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		if strings.TrimSpace(req.SelectedOption) == "" {
			h.writeError(w, r, common.Validation("No shipping option was selected", nil))
			return
		}
		var quote OptionQuote
		err := h.withSession(r.Context(), func(st *session.State) error {
			var err error
			quote, err = flow.ShippingOptionChange(r.Context(), h.quoteContext(r, st), req.SelectedOption)
			return err
		})
		h.respondQuote(w, r, flow.Name(), "option_change", quote, err)
	}
}

func (h *Handler) respondQuote(w http.ResponseWriter, r *http.Request, flow, event string, data any, err error) {
	if err != nil {
		obs.IncQuote(flow, event, "error")
		h.writeError(w, r, err)
		return
	}
	obs.IncQuote(flow, event, "ok")
	common.Success(w, data)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case common.IsAppError(err):
	case errors.Is(err, session.ErrNoSession):
		err = common.Validation("session required", err)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("express checkout action failed")
	}
	common.Failure(w, err)
}
