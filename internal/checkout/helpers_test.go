package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/kec-gateway/internal/cart"
	"github.com/noah-isme/kec-gateway/internal/catalog"
	"github.com/noah-isme/kec-gateway/internal/customer"
	"github.com/noah-isme/kec-gateway/internal/order/ordertest"
	"github.com/noah-isme/kec-gateway/internal/pricing"
	"github.com/noah-isme/kec-gateway/internal/session"
	"github.com/noah-isme/kec-gateway/internal/shipping"
)

type productMap map[int64]catalog.Product

func (m productMap) Product(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := m[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func testProducts() productMap {
	return productMap{
		10: {ID: 10, Name: "Mug", SKU: "MUG-1", Type: catalog.TypeSimple, Price: dec("100"), Purchasable: true, ImageURL: "https://cdn.example/mug.png", GlobalUniqueID: "7350000000001"},
		11: {ID: 11, Name: "Poster", SKU: "POS-1", Type: catalog.TypeSimple, Price: dec("12.5"), Purchasable: true},
		20: {ID: 20, Name: "Gift wrap", SKU: "WRAP", Type: catalog.TypeLineItem, Price: dec("3"), Purchasable: true},
	}
}

func testRates() []shipping.Rate {
	return []shipping.Rate{
		{MethodID: "flat_rate", InstanceID: 1, Label: "Standard", Cost: dec("5"), Tax: dec("0.5")},
		{MethodID: "flat_rate", InstanceID: 2, Label: "Express", Cost: dec("15"), Tax: dec("1.5")},
	}
}

func testCart(rates []shipping.Rate) *cart.Service {
	return &cart.Service{
		Products: testProducts(),
		Shipping: shipping.StaticCalculator{Rates: rates},
		TaxRate:  pricing.MustRate("10"),
		Currency: "SEK",
	}
}

func stateWith(t *testing.T, svc *cart.Service, items ...int64) *session.State {
	t.Helper()
	st := &session.State{}
	for _, id := range items {
		if err := svc.Add(context.Background(), st, id, 0, 1); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}
	return st
}

func testTwoStep(svc *cart.Service) (TwoStep, *ordertest.Memory) {
	repo := ordertest.NewMemory()
	repo.Now = func() time.Time { return testNow }
	return TwoStep{
		Cart:          svc,
		Drafts:        &Drafts{Orders: repo, Now: func() time.Time { return testNow }},
		PublicBaseURL: "https://shop.example",
		NewUniqueID:   func() string { return "kec_two_step_abc123" },
	}, repo
}

var stockholm = customer.Partial{Country: "se", Region: "AB", PostalCode: "11122", City: "Stockholm"}
