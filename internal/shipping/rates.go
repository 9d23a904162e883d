package shipping

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/kec-gateway/internal/customer"
)

// Rate is one shipping method offered for a package, with amounts in major units.
type Rate struct {
	MethodID   string          `json:"method_id"`
	InstanceID int             `json:"instance_id"`
	Label      string          `json:"label"`
	Cost       decimal.Decimal `json:"cost"`
	Tax        decimal.Decimal `json:"tax"`
}

// ID is the reference shared with the payment widget, e.g. "flat_rate:3".
func (r Rate) ID() string {
	return fmt.Sprintf("%s:%d", r.MethodID, r.InstanceID)
}

// Total is the rate cost including tax.
func (r Rate) Total() decimal.Decimal {
	return r.Cost.Add(r.Tax)
}

// Package groups the rates available for one shipment of the cart.
type Package struct {
	Destination customer.Address `json:"destination"`
	Contents    decimal.Decimal  `json:"contents_cost"`
	Rates       []Rate           `json:"rates"`
}

// Request is what a calculator needs to price shipping for a cart.
type Request struct {
	Destination customer.Address
	Contents    decimal.Decimal
	ItemCount   int
}

// Calculator computes the shipping packages for a destination.
type Calculator interface {
	Calculate(ctx context.Context, req Request) ([]Package, error)
}

// Chosen resolves the rate the cart will charge: the remembered method when it is still
// offered, otherwise the first rate of the first package that has any.
func Chosen(packages []Package, chosen []string) (Rate, bool) {
	var (
		first    Rate
		hasFirst bool
	)
	want := ""
	if len(chosen) > 0 {
		want = chosen[0]
	}
	for _, pkg := range packages {
		for _, rate := range pkg.Rates {
			if want != "" && rate.ID() == want {
				return rate, true
			}
			if !hasFirst {
				first, hasFirst = rate, true
			}
		}
	}
	return first, hasFirst
}

// StaticCalculator returns the same rates for every destination. Used for local runs and tests.
type StaticCalculator struct {
	Rates []Rate
}

// Calculate returns a single package carrying the configured rates.
func (s StaticCalculator) Calculate(_ context.Context, req Request) ([]Package, error) {
	if req.ItemCount == 0 {
		return nil, nil
	}
	rates := make([]Rate, len(s.Rates))
	copy(rates, s.Rates)
	return []Package{{Destination: req.Destination, Contents: req.Contents, Rates: rates}}, nil
}
