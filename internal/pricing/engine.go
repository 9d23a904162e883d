package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

var hundred = decimal.NewFromInt(100)

// ToMinor converts a major-unit amount to minor units, rounding half away from zero.
func ToMinor(amount decimal.Decimal) Money {
	return amount.Mul(hundred).Round(0).IntPart()
}

// ParseMajor parses a major-unit amount such as "19.99".
func ParseMajor(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return d, nil
}

// Rate is a percentage tax rate such as 25 for 25%.
type Rate struct {
	percent decimal.Decimal
}

// NewRate parses a percentage string.
func NewRate(percent string) (Rate, error) {
	d, err := ParseMajor(percent)
	if err != nil {
		return Rate{}, err
	}
	if d.IsNegative() {
		return Rate{}, fmt.Errorf("tax rate %s is negative", percent)
	}
	return Rate{percent: d}, nil
}

// MustRate is NewRate for constants.
func MustRate(percent string) Rate {
	r, err := NewRate(percent)
	if err != nil {
		panic(err)
	}
	return r
}

// IsZero reports whether the rate charges no tax.
func (r Rate) IsZero() bool { return r.percent.IsZero() }

// TaxOn returns the tax on a tax-exclusive amount, rounded to two decimals.
func (r Rate) TaxOn(exclusive decimal.Decimal) decimal.Decimal {
	return exclusive.Mul(r.percent).Div(hundred).Round(2)
}

// Split separates a tax-inclusive amount into its exclusive part and tax.
func (r Rate) Split(inclusive decimal.Decimal) (exclusive, tax decimal.Decimal) {
	if r.IsZero() {
		return inclusive, decimal.Zero
	}
	divisor := hundred.Add(r.percent).Div(hundred)
	exclusive = inclusive.Div(divisor).Round(2)
	return exclusive, inclusive.Sub(exclusive)
}

// String renders the rate as a percentage.
func (r Rate) String() string { return r.percent.String() + "%" }
