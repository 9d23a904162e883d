package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/kec-gateway/internal/catalog"
	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/pricing"
	"github.com/noah-isme/kec-gateway/internal/session"
	"github.com/noah-isme/kec-gateway/internal/shipping"
)

var (
	// ErrVariationRequired is returned when a variable product is added without a variation.
	ErrVariationRequired = errors.New("a variation must be selected")
	// ErrNotPurchasable is returned for products that cannot be bought.
	ErrNotPurchasable = errors.New("product cannot be purchased")
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// ProductSource resolves catalog products.
type ProductSource interface {
	Product(ctx context.Context, id int64) (catalog.Product, error)
}

// Service implements cart operations on session state.
type Service struct {
	Products         ProductSource
	Shipping         shipping.Calculator
	TaxRate          pricing.Rate
	PricesIncludeTax bool
	Currency         string
}

// Empty removes every item from the cart.
func (s *Service) Empty(st *session.State) {
	st.Cart = nil
}

// Add puts quantity units of the product (or variation) into the cart.
func (s *Service) Add(ctx context.Context, st *session.State, productID, variationID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p, err := s.Products.Product(ctx, productID)
	if err != nil {
		return err
	}
	if p.HasVariations() && variationID == 0 {
		return ErrVariationRequired
	}
	if variationID != 0 {
		v, err := s.Products.Product(ctx, variationID)
		if err != nil {
			return err
		}
		if v.ParentID != p.ID {
			return fmt.Errorf("variation %d does not belong to product %d: %w", variationID, productID, catalog.ErrProductNotFound)
		}
		p = v
	}
	if !p.Exists() || !p.Purchasable {
		return ErrNotPurchasable
	}

	key := itemKey(productID, variationID)
	for i := range st.Cart {
		if st.Cart[i].Key == key {
			st.Cart[i].Quantity += quantity
			return nil
		}
	}
	st.Cart = append(st.Cart, session.CartItem{
		Key:         key,
		ProductID:   productID,
		VariationID: variationID,
		Quantity:    quantity,
	})
	return nil
}

func itemKey(productID, variationID int64) string {
	return common.Digest(strconv.FormatInt(productID, 10), strconv.FormatInt(variationID, 10))[:32]
}

// Line is a priced cart item. Amounts are in major units, as the store keeps them.
type Line struct {
	Key          string
	Product      catalog.Product
	Quantity     int
	LineSubtotal decimal.Decimal
	LineTotal    decimal.Decimal
	LineTax      decimal.Decimal
}

// Totals is the result of recalculating the cart for the session's shipping address.
type Totals struct {
	Lines         []Line
	ContentsTotal decimal.Decimal
	ContentsTax   decimal.Decimal
	Currency      string
	Packages      []shipping.Package
	ShippingRate  *shipping.Rate
	ShippingTotal decimal.Decimal
	ShippingTax   decimal.Decimal
}

// ItemCount sums the quantities of all lines.
func (t Totals) ItemCount() int {
	n := 0
	for _, l := range t.Lines {
		n += l.Quantity
	}
	return n
}

// Total is contents, contents tax and the chosen shipping including tax.
func (t Totals) Total() decimal.Decimal {
	return t.ContentsTotal.Add(t.ContentsTax).Add(t.ShippingTotal).Add(t.ShippingTax)
}

// Calculate prices the cart, computes shipping packages for the customer's shipping address
// and resolves the chosen shipping rate from the session.
func (s *Service) Calculate(ctx context.Context, st *session.State) (Totals, error) {
	totals := Totals{Currency: s.Currency}
	for _, item := range st.Cart {
		id := item.ProductID
		if item.VariationID != 0 {
			id = item.VariationID
		}
		p, err := s.Products.Product(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				continue
			}
			return Totals{}, err
		}
		if !p.Exists() || p.Type == catalog.TypeLineItem {
			continue
		}
		line := s.priceLine(item, p)
		totals.Lines = append(totals.Lines, line)
		totals.ContentsTotal = totals.ContentsTotal.Add(line.LineTotal)
		totals.ContentsTax = totals.ContentsTax.Add(line.LineTax)
	}

	if len(totals.Lines) == 0 || s.Shipping == nil {
		return totals, nil
	}
	packages, err := s.Shipping.Calculate(ctx, shipping.Request{
		Destination: st.Customer.Shipping,
		Contents:    totals.ContentsTotal,
		ItemCount:   totals.ItemCount(),
	})
	if err != nil {
		return Totals{}, fmt.Errorf("calculate shipping: %w", err)
	}
	totals.Packages = packages
	if rate, ok := shipping.Chosen(packages, st.ChosenShippingMethods); ok {
		totals.ShippingRate = &rate
		totals.ShippingTotal = rate.Cost
		totals.ShippingTax = rate.Tax
	}
	return totals, nil
}

func (s *Service) priceLine(item session.CartItem, p catalog.Product) Line {
	gross := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
	line := Line{Key: item.Key, Product: p, Quantity: item.Quantity}
	if s.PricesIncludeTax {
		line.LineTotal, line.LineTax = s.TaxRate.Split(gross)
	} else {
		line.LineTotal = gross
		line.LineTax = s.TaxRate.TaxOn(gross)
	}
	line.LineSubtotal = line.LineTotal
	return line
}
