package shipping

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/kec-gateway/internal/pricing"
)

// Rule is one row of the shipping rate table.
type Rule struct {
	MethodID       string
	InstanceID     int
	Label          string
	Cost           decimal.Decimal
	Country        string
	Region         string
	PostcodePrefix string
	Taxable        bool
	FreeOver       decimal.Decimal
	SortOrder      int
}

// Matches reports whether the rule applies to the destination. Empty rule fields match anything.
func (r Rule) Matches(country, region, postcode string) bool {
	if r.Country != "" && !strings.EqualFold(r.Country, country) {
		return false
	}
	if r.Region != "" && !strings.EqualFold(r.Region, region) {
		return false
	}
	if r.PostcodePrefix != "" {
		norm := strings.ToUpper(strings.ReplaceAll(postcode, " ", ""))
		if !strings.HasPrefix(norm, strings.ToUpper(r.PostcodePrefix)) {
			return false
		}
	}
	return true
}

// RuleStore lists the configured shipping rules.
type RuleStore interface {
	ListRules(ctx context.Context) ([]Rule, error)
}

// TableCalculator prices shipping from rate table rules.
type TableCalculator struct {
	Rules   RuleStore
	TaxRate pricing.Rate
}

// Calculate builds a single package holding every rule that matches the destination.
func (c TableCalculator) Calculate(ctx context.Context, req Request) ([]Package, error) {
	if req.ItemCount == 0 {
		return nil, nil
	}
	rules, err := c.Rules.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shipping rules: %w", err)
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].SortOrder < rules[j].SortOrder })

	dest := req.Destination
	pkg := Package{Destination: dest, Contents: req.Contents}
	for _, rule := range rules {
		if !rule.Matches(dest.Country, dest.State, dest.Postcode) {
			continue
		}
		cost := rule.Cost
		if rule.FreeOver.IsPositive() && req.Contents.GreaterThanOrEqual(rule.FreeOver) {
			cost = decimal.Zero
		}
		tax := decimal.Zero
		if rule.Taxable {
			tax = c.TaxRate.TaxOn(cost)
		}
		pkg.Rates = append(pkg.Rates, Rate{
			MethodID:   rule.MethodID,
			InstanceID: rule.InstanceID,
			Label:      rule.Label,
			Cost:       cost,
			Tax:        tax,
		})
	}
	return []Package{pkg}, nil
}
