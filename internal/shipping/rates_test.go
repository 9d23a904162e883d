package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kec-gateway/internal/customer"
	"github.com/noah-isme/kec-gateway/internal/pricing"
)

type staticRules struct {
	rules []Rule
	err   error
}

func (s staticRules) ListRules(context.Context) ([]Rule, error) { return s.rules, s.err }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestTableCalculatorMatchesDestination(t *testing.T) {
	calc := TableCalculator{
		TaxRate: pricing.MustRate("10"),
		Rules: staticRules{rules: []Rule{
			{MethodID: "flat_rate", InstanceID: 2, Label: "Express", Cost: dec("15"), Country: "SE", Taxable: true, SortOrder: 2},
			{MethodID: "flat_rate", InstanceID: 1, Label: "Standard", Cost: dec("5"), Country: "SE", Taxable: true, SortOrder: 1},
			{MethodID: "local_pickup", InstanceID: 3, Label: "Pickup", Cost: dec("0"), Country: "SE", PostcodePrefix: "111"},
			{MethodID: "flat_rate", InstanceID: 9, Label: "Norway", Cost: dec("9"), Country: "NO"},
			{MethodID: "free_shipping", InstanceID: 4, Label: "Free", Cost: dec("3"), FreeOver: dec("50")},
		}},
	}

	pkgs, err := calc.Calculate(context.Background(), Request{
		Destination: customer.Address{Country: "SE", Postcode: "222 33"},
		Contents:    dec("100"),
		ItemCount:   2,
	})
	require.NoError(t, err)
	require.Len(t, pkgs, 1)

	rates := pkgs[0].Rates
	require.Len(t, rates, 3)
	require.Equal(t, "flat_rate:1", rates[0].ID())
	require.True(t, rates[0].Tax.Equal(dec("0.5")))
	require.True(t, rates[0].Total().Equal(dec("5.5")))
	require.Equal(t, "flat_rate:2", rates[1].ID())
	require.Equal(t, "free_shipping:4", rates[2].ID())
	require.True(t, rates[2].Cost.IsZero())
}

func TestTableCalculatorEmptyCart(t *testing.T) {
	calc := TableCalculator{Rules: staticRules{err: errors.New("must not be called")}}
	pkgs, err := calc.Calculate(context.Background(), Request{})
	require.NoError(t, err)
	require.Empty(t, pkgs)
}

func TestChosenFallsBackToFirst(t *testing.T) {
	pkgs := []Package{
		{},
		{Rates: []Rate{{MethodID: "flat_rate", InstanceID: 1}, {MethodID: "flat_rate", InstanceID: 2}}},
	}
	rate, ok := Chosen(pkgs, []string{"flat_rate:2"})
	require.True(t, ok)
	require.Equal(t, "flat_rate:2", rate.ID())

	rate, ok = Chosen(pkgs, []string{"gone:7"})
	require.True(t, ok)
	require.Equal(t, "flat_rate:1", rate.ID())

	_, ok = Chosen(nil, []string{"flat_rate:1"})
	require.False(t, ok)
}

func TestRuleMatchesPostcodePrefix(t *testing.T) {
	r := Rule{Country: "GB", PostcodePrefix: "sw1"}
	require.True(t, r.Matches("gb", "", "SW1A 1AA"))
	require.False(t, r.Matches("GB", "", "N1 9GU"))
	require.False(t, r.Matches("SE", "", "SW1A 1AA"))
}
