package ledger

import (
	"fmt"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// FirstPayment computes what a new subscriber pays today: one full month
// plus a half-month installment. Values are rounded half-up to cents once,
// on output.
func FirstPayment(plan domain.Plan) (domain.FirstPayment, error) {
	price := plan.MonthlyPrice
	if !price.IsPositive() {
		return domain.FirstPayment{}, &domain.ErrConfiguration{
			Field:   "monthlyPrice",
			Message: fmt.Sprintf("plan %q has non-positive price %s", plan.Tier, price),
		}
	}

	installment := price.Div(two)
	total := price.Add(installment)

	return domain.FirstPayment{
		Tier:             plan.Tier,
		MonthlyPrice:     price.Round(moneyPlaces),
		FirstInstallment: installment.Round(moneyPlaces),
		TotalDueToday:    total.Round(moneyPlaces),
	}, nil
}
