package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/customer"
	"github.com/noah-isme/kec-gateway/internal/klarna"
	"github.com/noah-isme/kec-gateway/internal/order"
)

// Payment request states reported by Klarna.
const (
	StateCompleted = "COMPLETED"
	StateExpired   = "EXPIRED"
)

// DefaultLookupWindow bounds how old a draft order may be to match a notification.
const DefaultLookupWindow = 48 * time.Hour

type person struct {
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

type address struct {
	StreetAddress  string `json:"street_address"`
	StreetAddress2 string `json:"street_address2"`
	PostalCode     string `json:"postal_code"`
	City           string `json:"city"`
	Region         string `json:"region"`
	Country        string `json:"country"`
}

type statePayload struct {
	PaymentRequestID      string `json:"payment_request_id"`
	State                 string `json:"state"`
	InteroperabilityToken string `json:"interoperability_token"`
	KlarnaCustomer        struct {
		CustomerProfile struct {
			person
			Address address `json:"address"`
		} `json:"customer_profile"`
	} `json:"klarna_customer"`
	Shipping struct {
		Recipient person  `json:"recipient"`
		Address   address `json:"address"`
	} `json:"shipping"`
}

func decodeState(payload json.RawMessage) (statePayload, error) {
	var p statePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, common.Validation("invalid notification payload", err)
	}
	return p, nil
}

func (p statePayload) requireCorrelation() error {
	if p.PaymentRequestID == "" || p.InteroperabilityToken == "" {
		return common.Validation("Missing required fields in the payload.", nil)
	}
	return nil
}

// stateHandler holds what the payment state handlers share.
type stateHandler struct {
	Orders order.Repository
	Window time.Duration
	Now    func() time.Time
}

func (h stateHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// findOrder returns the express checkout order stamped with the payment request id.
func (h stateHandler) findOrder(ctx context.Context, paymentRequestID string) (*order.Order, error) {
	window := h.Window
	if window <= 0 {
		window = DefaultLookupWindow
	}
	o, err := order.FindByCorrelation(ctx, h.Orders, order.MetaPaymentRequestID, paymentRequestID, h.now().Add(-window))
	switch {
	case errors.Is(err, order.ErrNotFound):
		return nil, common.NotFound(fmt.Sprintf("No draft order found for payment request ID: %s", paymentRequestID), err)
	case errors.Is(err, order.ErrCorrelationMismatch):
		return nil, common.Conflict(fmt.Sprintf("Mismatch in payment request ID for order ID: %d", o.ID), err)
	case err != nil:
		return nil, fmt.Errorf("find order: %w", err)
	}
	return o, nil
}

// applyAddresses copies the non-empty customer fields of the payload onto the order. Shipping
// email has no order field and is kept as meta.
func applyAddresses(o *order.Order, p statePayload) {
	profile := p.KlarnaCustomer.CustomerProfile
	o.Billing.Merge(toAddress(profile.person, profile.Address))

	recipient := p.Shipping.Recipient
	shippingEmail := recipient.Email
	recipient.Email = ""
	o.Shipping.Merge(toAddress(recipient, p.Shipping.Address))
	if shippingEmail != "" {
		o.SetMeta("shipping_email", shippingEmail)
	}
}

func toAddress(who person, where address) customer.Address {
	return customer.Address{
		FirstName: who.GivenName,
		LastName:  who.FamilyName,
		Email:     who.Email,
		Phone:     who.Phone,
		Address1:  where.StreetAddress,
		Address2:  where.StreetAddress2,
		Postcode:  where.PostalCode,
		City:      where.City,
		State:     where.Region,
		Country:   where.Country,
	}
}

// Completed finalizes the order of a completed payment request.
type Completed struct {
	stateHandler
	Partners      *PartnerRegistry
	Processor     OrderProcessor
	PublicBaseURL string
}

// NewCompleted builds the completed-payment handler.
func NewCompleted(orders order.Repository, window time.Duration, partners *PartnerRegistry, processor OrderProcessor, publicBaseURL string) *Completed {
	return &Completed{
		stateHandler:  stateHandler{Orders: orders, Window: window},
		Partners:      partners,
		Processor:     processor,
		PublicBaseURL: publicBaseURL,
	}
}

func (*Completed) EventType() string    { return klarna.EventPaymentCompleted }
func (*Completed) EventVersion() string { return klarna.EventVersion }

// Handle stores the customer on the order, lets the acquiring partner or order processor
// settle it and records where the shopper should be redirected.
func (h *Completed) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := decodeState(payload)
	if err != nil {
		return err
	}
	if p.State != StateCompleted {
		return ErrIgnored
	}
	if err := p.requireCorrelation(); err != nil {
		return err
	}
	o, err := h.findOrder(ctx, p.PaymentRequestID)
	if err != nil {
		return err
	}
	applyAddresses(o, p)

	redirect := o.ReceivedURL(h.PublicBaseURL)
	partner, err := h.Partners.Active(ctx)
	if err != nil {
		return err
	}
	switch {
	case partner != nil:
		url, err := partner.ProcessOrderState(ctx, o, p.InteroperabilityToken, map[string]any{}, p.State, payload)
		if err != nil {
			return common.External("acquiring partner could not process the order", err)
		}
		if url != "" {
			redirect = url
		}
	case h.Processor != nil:
		if err := h.Processor.ProcessOrder(ctx, o, p.InteroperabilityToken, p.State, payload); err != nil {
			return fmt.Errorf("process order %d: %w", o.ID, err)
		}
	}

	o.SetMeta(order.MetaRedirectURL, redirect)
	if err := h.Orders.Save(ctx, o); err != nil {
		return fmt.Errorf("save order %d: %w", o.ID, err)
	}
	return nil
}

// NoteExpired is recorded on orders cancelled by an expired payment request.
const NoteExpired = "Order cancelled due to expired payment request."

// Expired cancels the order of an expired payment request.
type Expired struct {
	stateHandler
	Canceller OrderCanceller
}

// NewExpired builds the expired-payment handler.
func NewExpired(orders order.Repository, window time.Duration, canceller OrderCanceller) *Expired {
	return &Expired{stateHandler: stateHandler{Orders: orders, Window: window}, Canceller: canceller}
}

func (*Expired) EventType() string    { return klarna.EventPaymentExpired }
func (*Expired) EventVersion() string { return klarna.EventVersion }

// Handle cancels the order and notifies the canceller hook.
func (h *Expired) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := decodeState(payload)
	if err != nil {
		return err
	}
	if err := p.requireCorrelation(); err != nil {
		return err
	}
	o, err := h.findOrder(ctx, p.PaymentRequestID)
	if err != nil {
		return err
	}
	if o.Status != order.StatusCancelled {
		o.Status = order.StatusCancelled
		o.AddNote(NoteExpired, h.now())
		if err := h.Orders.Save(ctx, o); err != nil {
			return fmt.Errorf("save order %d: %w", o.ID, err)
		}
	}
	if h.Canceller != nil {
		if err := h.Canceller.CancelOrder(ctx, o, p.InteroperabilityToken, p.State, payload); err != nil {
			return fmt.Errorf("cancel hook for order %d: %w", o.ID, err)
		}
	}
	return nil
}
