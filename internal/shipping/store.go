package shipping

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type pgRuleStore struct {
	pool *pgxpool.Pool
}

// NewPGRuleStore creates a Postgres-backed shipping rule store.
func NewPGRuleStore(pool *pgxpool.Pool) RuleStore {
	return &pgRuleStore{pool: pool}
}

const listRules = `
SELECT method_id, instance_id, label, cost::text, COALESCE(country, ''), COALESCE(region, ''),
       COALESCE(postcode_prefix, ''), taxable, COALESCE(free_over, 0)::text, sort_order
FROM shipping_rates
WHERE enabled
ORDER BY sort_order, id`

func (s *pgRuleStore) ListRules(ctx context.Context) ([]Rule, error) {
	rows, err := s.pool.Query(ctx, listRules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var (
			r              Rule
			cost, freeOver string
		)
		if err := rows.Scan(&r.MethodID, &r.InstanceID, &r.Label, &cost, &r.Country, &r.Region,
			&r.PostcodePrefix, &r.Taxable, &freeOver, &r.SortOrder); err != nil {
			return nil, err
		}
		if r.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("rate %s:%d cost: %w", r.MethodID, r.InstanceID, err)
		}
		if r.FreeOver, err = decimal.NewFromString(freeOver); err != nil {
			return nil, fmt.Errorf("rate %s:%d free_over: %w", r.MethodID, r.InstanceID, err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
