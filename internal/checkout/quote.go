package checkout

import (
	"context"
	"fmt"

	"github.com/noah-isme/kec-gateway/internal/cart"
	"github.com/noah-isme/kec-gateway/internal/pricing"
	"github.com/noah-isme/kec-gateway/internal/shipping"
)

// lineItems maps priced cart lines to Klarna line items.
func lineItems(totals cart.Totals) []LineItem {
	items := make([]LineItem, 0, len(totals.Lines)+1)
	for _, l := range totals.Lines {
		items = append(items, LineItem{
			Name:              l.Product.Name,
			LineItemReference: l.Product.SKU,
			Quantity:          l.Quantity,
			TotalAmount:       pricing.ToMinor(l.LineTotal.Add(l.LineTax)),
			TotalTaxAmount:    pricing.ToMinor(l.LineTax),
			ImageURL:          l.Product.ImageURL,
			ProductIdentifier: l.Product.GlobalUniqueID,
		})
	}
	return items
}

func contentsAmount(totals cart.Totals) pricing.Money {
	return pricing.ToMinor(totals.ContentsTotal.Add(totals.ContentsTax))
}

// shippingOptions flattens the rates of every package.
func shippingOptions(packages []shipping.Package) []ShippingOption {
	options := []ShippingOption{}
	for _, pkg := range packages {
		for _, rate := range pkg.Rates {
			options = append(options, ShippingOption{
				ShippingOptionReference: rate.ID(),
				Amount:                  pricing.ToMinor(rate.Total()),
				DisplayName:             rate.Label,
			})
		}
	}
	return options
}

// shippingLine is the line item for the chosen rate. The tax is the cart's shipping tax.
func shippingLine(rate shipping.Rate, totals cart.Totals) LineItem {
	return LineItem{
		Name:              rate.Label,
		ShippingReference: rate.ID(),
		Quantity:          1,
		TotalAmount:       pricing.ToMinor(rate.Total()),
		TotalTaxAmount:    pricing.ToMinor(totals.ShippingTax),
	}
}

func initiateBody(totals cart.Totals) InitiateBody {
	return InitiateBody{
		CollectCustomerProfile: append([]string(nil), CustomerProfileScopes...),
		ShippingConfig:         ShippingConfig{Mode: "EDITABLE"},
		Amount:                 contentsAmount(totals),
		Currency:               totals.Currency,
		SupplementaryPurchaseData: PurchaseData{
			LineItems: lineItems(totals),
		},
	}
}

// quoteAddress applies the partial address to the session customer, recalculates the cart and
// builds the address change answer. The selected option is the one the cart charges.
func quoteAddress(ctx context.Context, calc CartCalculator, qc *Context, change AddressChange) (ShippingQuote, cart.Totals, error) {
	qc.Session.Customer.Shipping.ApplyPartial(change.Address)
	totals, err := calc.Calculate(ctx, qc.Session)
	if err != nil {
		return ShippingQuote{}, cart.Totals{}, fmt.Errorf("calculate cart: %w", err)
	}
	quote := ShippingQuote{
		Amount:          contentsAmount(totals),
		Currency:        totals.Currency,
		LineItems:       lineItems(totals),
		ShippingOptions: shippingOptions(totals.Packages),
	}
	if totals.ShippingRate != nil {
		line := shippingLine(*totals.ShippingRate, totals)
		quote.LineItems = append(quote.LineItems, line)
		quote.Amount += line.TotalAmount
		quote.SelectedShippingOptionReference = line.ShippingReference
	}
	return quote, totals, nil
}

// quoteOption remembers the chosen option, recalculates the cart and builds the option change answer.
func quoteOption(ctx context.Context, calc CartCalculator, qc *Context, reference string) (OptionQuote, cart.Totals, error) {
	qc.Session.ChosenShippingMethods = []string{reference}
	totals, err := calc.Calculate(ctx, qc.Session)
	if err != nil {
		return OptionQuote{}, cart.Totals{}, fmt.Errorf("calculate cart: %w", err)
	}
	quote := OptionQuote{
		Amount:    contentsAmount(totals),
		LineItems: lineItems(totals),
	}
	if totals.ShippingRate != nil {
		line := shippingLine(*totals.ShippingRate, totals)
		quote.LineItems = append(quote.LineItems, line)
		quote.Amount += line.TotalAmount
	}
	return quote, totals, nil
}
