package ledger

import (
	"fmt"
	"slices"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// PlanCatalog is an immutable table of subscription tiers.
type PlanCatalog struct {
	plans map[domain.Tier]domain.Plan
	order []domain.Tier
}

// DefaultPlans returns the built-in subscription tiers.
func DefaultPlans() []domain.Plan {
	return []domain.Plan{
		{
			Tier:         domain.TierBasic,
			Name:         "Basic",
			MonthlyPrice: decimal.RequireFromString("19.00"),
			MaxAccess:    decimal.NewFromInt(1500),
			Features: []string{
				"Pay rent and utilities",
				"Automatic settlement",
				"Referral rewards",
			},
		},
		{
			Tier:         domain.TierPlus,
			Name:         "Plus",
			MonthlyPrice: decimal.RequireFromString("39.00"),
			MaxAccess:    decimal.NewFromInt(3000),
			Features: []string{
				"All bill categories",
				"Automatic settlement",
				"Referral rewards",
				"Priority support",
			},
		},
		{
			Tier:         domain.TierAutoPlus,
			Name:         "Auto Plus",
			MonthlyPrice: decimal.RequireFromString("59.00"),
			MaxAccess:    decimal.NewFromInt(5000),
			Features: []string{
				"Everything in Plus",
				"Auto loan and auto insurance bills",
				"Higher limit after vehicle verification",
			},
			RequiresVehicleVerification: true,
		},
	}
}

// NewPlanCatalog validates plans and builds a catalog. Plans are copied, so
// later changes to the input do not leak into the catalog.
func NewPlanCatalog(plans []domain.Plan) (*PlanCatalog, error) {
	if len(plans) == 0 {
		return nil, &domain.ErrConfiguration{Field: "plans", Message: "catalog is empty"}
	}

	c := &PlanCatalog{plans: make(map[domain.Tier]domain.Plan, len(plans))}
	for _, p := range plans {
		if err := validatePlan(p); err != nil {
			return nil, err
		}
		if _, dup := c.plans[p.Tier]; dup {
			return nil, &domain.ErrConfiguration{Field: "tier", Message: fmt.Sprintf("duplicate tier %q", p.Tier)}
		}
		c.plans[p.Tier] = clonePlan(p)
		c.order = append(c.order, p.Tier)
	}

	slices.SortStableFunc(c.order, func(a, b domain.Tier) int {
		return c.plans[a].MonthlyPrice.Cmp(c.plans[b].MonthlyPrice)
	})
	return c, nil
}

// Lookup returns the plan for tier.
func (c *PlanCatalog) Lookup(tier domain.Tier) (domain.Plan, error) {
	p, ok := c.plans[tier]
	if !ok {
		return domain.Plan{}, &domain.ErrNotFound{Resource: "plan", ID: string(tier)}
	}
	return clonePlan(p), nil
}

// Plans returns all plans ordered by monthly price, cheapest first.
func (c *PlanCatalog) Plans() []domain.Plan {
	out := make([]domain.Plan, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, clonePlan(c.plans[t]))
	}
	return out
}

func validatePlan(p domain.Plan) error {
	if !p.Tier.Valid() {
		return &domain.ErrConfiguration{Field: "tier", Message: fmt.Sprintf("unknown tier %q", p.Tier)}
	}
	if !p.MaxAccess.IsPositive() {
		return &domain.ErrConfiguration{Field: "maxAccess", Message: fmt.Sprintf("plan %s: access limit must be positive, got %s", p.Tier, p.MaxAccess)}
	}
	if !p.MonthlyPrice.IsPositive() {
		return &domain.ErrConfiguration{Field: "monthlyPrice", Message: fmt.Sprintf("plan %s: price must be positive, got %s", p.Tier, p.MonthlyPrice)}
	}
	return nil
}

func clonePlan(p domain.Plan) domain.Plan {
	p.Features = slices.Clone(p.Features)
	return p
}
