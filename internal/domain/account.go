package domain

import "github.com/shopspring/decimal"

// ============================================================
// Access accounts
// ============================================================

// AccountRecord is the account row as stored by the external data source.
type AccountRecord struct {
	ID                   string `json:"id"`
	OwnerID              string `json:"ownerId"`
	Tier                 Tier   `json:"tier"`
	CycleStartDate       Date   `json:"cycleStartDate"`
	SettlementDayOfMonth int    `json:"settlementDayOfMonth"`
}

// AccessAccount is a snapshot of an account with its plan and the bills of
// the current cycle. Usage figures are always derived from it, never stored.
type AccessAccount struct {
	ID                   string `json:"id"`
	OwnerID              string `json:"ownerId"`
	Plan                 Plan   `json:"plan"`
	CycleStartDate       Date   `json:"cycleStartDate"`
	SettlementDayOfMonth int    `json:"settlementDayOfMonth"`
	BillsInCycle         []Bill `json:"billsInCycle"`
}

// Usage is the derived access usage of an account.
type Usage struct {
	Used        decimal.Decimal `json:"used"`
	Limit       decimal.Decimal `json:"limit"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percentUsed"`
}

// OverLimit reports whether usage exceeds the limit. This is a display
// warning state; used is never clamped.
func (u Usage) OverLimit() bool {
	return u.Used.GreaterThan(u.Limit)
}
