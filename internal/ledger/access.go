package ledger

import (
	"fmt"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// UsedAmount sums the bills that consume access: paid and scheduled ones.
func UsedAmount(bills []domain.Bill) decimal.Decimal {
	return lo.Reduce(bills, func(acc decimal.Decimal, b domain.Bill, _ int) decimal.Decimal {
		if !consumesAccess(b.Status) {
			return acc
		}
		return acc.Add(b.Amount)
	}, decimal.Zero)
}

// UsageSummary derives used, remaining and percent-used for an account.
// Remaining never goes below zero, while percent-used is left unclamped so
// an over-limit account reads above 100.
func UsageSummary(account domain.AccessAccount) (domain.Usage, error) {
	limit := account.Plan.MaxAccess
	if !limit.IsPositive() {
		return domain.Usage{}, &domain.ErrConfiguration{
			Field:   "maxAccess",
			Message: fmt.Sprintf("plan %q has non-positive access limit %s", account.Plan.Tier, limit),
		}
	}
	for _, b := range account.BillsInCycle {
		if !b.Amount.IsPositive() {
			return domain.Usage{}, &domain.ErrInvalidInput{Field: "amount", Message: fmt.Sprintf("bill %s: amount must be positive", b.ID)}
		}
	}

	used := UsedAmount(account.BillsInCycle)
	remaining := decimal.Max(decimal.Zero, limit.Sub(used))
	percent := used.Mul(hundred).Div(limit)

	return domain.Usage{
		Used:        used.Round(moneyPlaces),
		Limit:       limit.Round(moneyPlaces),
		Remaining:   remaining.Round(moneyPlaces),
		PercentUsed: percent.Round(2),
	}, nil
}

func consumesAccess(s domain.BillStatus) bool {
	return s == domain.BillStatusPaid || s == domain.BillStatusScheduled
}
