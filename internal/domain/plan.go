package domain

import "github.com/shopspring/decimal"

// ============================================================
// Subscription tiers
// ============================================================

// Tier identifies a subscription plan.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierPlus     Tier = "plus"
	TierAutoPlus Tier = "auto_plus"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierBasic, TierPlus, TierAutoPlus:
		return true
	}
	return false
}

// Plan is a subscription tier with its price and monthly access limit.
type Plan struct {
	Tier                        Tier            `json:"tier"`
	Name                        string          `json:"name"`
	MonthlyPrice                decimal.Decimal `json:"monthlyPrice"`
	MaxAccess                   decimal.Decimal `json:"maxAccess"`
	Features                    []string        `json:"features"`
	RequiresVehicleVerification bool            `json:"requiresVehicleVerification"`
}

// FirstPayment is the amount collected at signup for a plan.
type FirstPayment struct {
	Tier             Tier            `json:"tier"`
	MonthlyPrice     decimal.Decimal `json:"monthlyPrice"`
	FirstInstallment decimal.Decimal `json:"firstInstallment"`
	TotalDueToday    decimal.Decimal `json:"totalDueToday"`
}
