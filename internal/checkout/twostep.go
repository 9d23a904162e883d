package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReturnQueryParam carries the correlation id on the two-step return URL.
const ReturnQueryParam = "kec-two-step"

// TwoStep hands the shopper back to the store after the widget, keeping a provisional order
// that the completion notification finalizes.
type TwoStep struct {
	Cart          CartCalculator
	Drafts        *Drafts
	PublicBaseURL string
	// NewUniqueID overrides correlation id generation in tests.
	NewUniqueID func() string
}

// Name implements Flow.
func (TwoStep) Name() string { return FlowTwoStep }

func (f TwoStep) uniqueID() string {
	if f.NewUniqueID != nil {
		return f.NewUniqueID()
	}
	return "kec_two_step_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
}

// ReturnURL is where the widget sends the shopper after approval.
func (f TwoStep) ReturnURL(id string) string {
	q := url.Values{}
	q.Set(ReturnQueryParam, id)
	return strings.TrimRight(f.PublicBaseURL, "/") + "/?" + q.Encode()
}

// Initiate starts a new correlated attempt and builds the payment request body.
func (f TwoStep) Initiate(ctx context.Context, qc *Context) (InitiateBody, error) {
	totals, err := f.Cart.Calculate(ctx, qc.Session)
	if err != nil {
		return InitiateBody{}, fmt.Errorf("calculate cart: %w", err)
	}
	id := f.uniqueID()
	qc.Session.TwoStepUniqueID = id
	body := initiateBody(totals)
	body.PaymentRequestReference = id
	body.CustomerInteractionConfig = &InteractionConfig{ReturnURL: f.ReturnURL(id)}
	zerolog.Ctx(ctx).Debug().Str("unique_id", id).Msg("two-step payment request initiated")
	return body, nil
}

// ShippingAddressChange requotes the cart and mirrors it onto the provisional order.
func (f TwoStep) ShippingAddressChange(ctx context.Context, qc *Context, change AddressChange) (ShippingQuote, error) {
	quote, totals, err := quoteAddress(ctx, f.Cart, qc, change)
	if err != nil {
		return ShippingQuote{}, err
	}
	if _, err := f.Drafts.Upsert(ctx, qc, totals, change.PaymentRequestID); err != nil {
		return ShippingQuote{}, err
	}
	return quote, nil
}

// ShippingOptionChange requotes the cart and replaces the provisional order's shipping.
func (f TwoStep) ShippingOptionChange(ctx context.Context, qc *Context, reference string) (OptionQuote, error) {
	quote, totals, err := quoteOption(ctx, f.Cart, qc, reference)
	if err != nil {
		return OptionQuote{}, err
	}
	if totals.ShippingRate != nil {
		if _, err := f.Drafts.ReplaceShipping(ctx, qc, totals); err != nil {
			return OptionQuote{}, err
		}
	}
	return quote, nil
}
