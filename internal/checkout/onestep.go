package checkout

import (
	"context"
	"fmt"
)

// OneStep completes the purchase inside the payment widget without a provisional order.
type OneStep struct {
	Cart CartCalculator
}

// Name implements Flow.
func (OneStep) Name() string { return FlowOneStep }

// Initiate builds the payment request body for the current cart.
func (f OneStep) Initiate(ctx context.Context, qc *Context) (InitiateBody, error) {
	totals, err := f.Cart.Calculate(ctx, qc.Session)
	if err != nil {
		return InitiateBody{}, fmt.Errorf("calculate cart: %w", err)
	}
	return initiateBody(totals), nil
}

// ShippingAddressChange requotes the cart for the new address.
func (f OneStep) ShippingAddressChange(ctx context.Context, qc *Context, change AddressChange) (ShippingQuote, error) {
	quote, _, err := quoteAddress(ctx, f.Cart, qc, change)
	return quote, err
}

// ShippingOptionChange requotes the cart for the selected shipping option.
func (f OneStep) ShippingOptionChange(ctx context.Context, qc *Context, reference string) (OptionQuote, error) {
	quote, _, err := quoteOption(ctx, f.Cart, qc, reference)
	return quote, err
}
