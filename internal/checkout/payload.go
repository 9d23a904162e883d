package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/kec-gateway/internal/order"
	"github.com/noah-isme/kec-gateway/internal/pricing"
	"github.com/noah-isme/kec-gateway/internal/session"
)

var (
	// ErrNotApproved is returned when the widget reports an unapproved payment.
	ErrNotApproved = errors.New("payment not approved")
	// ErrOrderKeyMismatch is returned when the posted order key does not match the order.
	ErrOrderKeyMismatch = errors.New("order key mismatch")
)

// PaymentMethodKlarna is recorded on orders finalized through the button.
const PaymentMethodKlarna = "klarna_payments"

// PayloadBuilder produces the payment session payload for the button.
type PayloadBuilder interface {
	Payload(ctx context.Context, st *session.State) (map[string]any, error)
}

// FinalizeRequest is the finalize callback posted by the button.
type FinalizeRequest struct {
	Approved           bool
	AuthorizationToken string
	OrderID            int64
	OrderKey           string
}

// Finalizer completes an order once Klarna authorized the payment.
type Finalizer interface {
	Finalize(ctx context.Context, req FinalizeRequest) (map[string]any, error)
}

// CartPayload builds a payment session payload from the priced cart.
type CartPayload struct {
	Cart           CartCalculator
	DefaultCountry string
	Locale         string
}

// Payload implements PayloadBuilder.
func (p CartPayload) Payload(ctx context.Context, st *session.State) (map[string]any, error) {
	totals, err := p.Cart.Calculate(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("calculate cart: %w", err)
	}
	lines := make([]map[string]any, 0, len(totals.Lines)+1)
	for _, l := range totals.Lines {
		lines = append(lines, map[string]any{
			"type":             "physical",
			"reference":        l.Product.SKU,
			"name":             l.Product.Name,
			"quantity":         l.Quantity,
			"total_amount":     pricing.ToMinor(l.LineTotal.Add(l.LineTax)),
			"total_tax_amount": pricing.ToMinor(l.LineTax),
		})
	}
	if rate := totals.ShippingRate; rate != nil {
		lines = append(lines, map[string]any{
			"type":             "shipping_fee",
			"reference":        rate.ID(),
			"name":             rate.Label,
			"quantity":         1,
			"total_amount":     pricing.ToMinor(rate.Cost.Add(totals.ShippingTax)),
			"total_tax_amount": pricing.ToMinor(totals.ShippingTax),
		})
	}
	country := st.Customer.Billing.Country
	if country == "" {
		country = p.DefaultCountry
	}
	return map[string]any{
		"purchase_country":  country,
		"purchase_currency": totals.Currency,
		"locale":            p.Locale,
		"order_amount":      pricing.ToMinor(totals.Total()),
		"order_tax_amount":  pricing.ToMinor(totals.ContentsTax.Add(totals.ShippingTax)),
		"order_lines":       lines,
	}, nil
}

// OrderFinalizer records the authorization on the order and sends the shopper to its
// order-received page.
type OrderFinalizer struct {
	Orders        order.Repository
	PublicBaseURL string
	Now           func() time.Time
}

// Finalize implements Finalizer.
func (f OrderFinalizer) Finalize(ctx context.Context, req FinalizeRequest) (map[string]any, error) {
	if !req.Approved || req.AuthorizationToken == "" {
		return nil, ErrNotApproved
	}
	o, err := f.Orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Key != req.OrderKey {
		return nil, ErrOrderKeyMismatch
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	o.PaymentMethod = PaymentMethodKlarna
	o.SetMeta(order.MetaAuthorization, req.AuthorizationToken)
	o.AddNote("Payment authorized by Klarna.", now())
	if err := f.Orders.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	return map[string]any{"redirect": o.ReceivedURL(f.PublicBaseURL)}, nil
}
