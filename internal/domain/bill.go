package domain

import "github.com/shopspring/decimal"

// ============================================================
// Bills
// ============================================================

// BillCategory is one of the approved bill categories.
type BillCategory string

const (
	CategoryRent      BillCategory = "rent"
	CategoryUtilities BillCategory = "utilities"
	CategoryPhone     BillCategory = "phone"
	CategoryInsurance BillCategory = "insurance"
	CategoryInternet  BillCategory = "internet"
	CategoryChildcare BillCategory = "childcare"
	CategoryAuto      BillCategory = "auto"
	CategoryOther     BillCategory = "other"
)

func (c BillCategory) Valid() bool {
	switch c {
	case CategoryRent, CategoryUtilities, CategoryPhone, CategoryInsurance,
		CategoryInternet, CategoryChildcare, CategoryAuto, CategoryOther:
		return true
	}
	return false
}

// BillStatus is the stored status of a bill. It is only changed by the
// external data source (payment confirmation).
type BillStatus string

const (
	BillStatusPending   BillStatus = "pending"
	BillStatusScheduled BillStatus = "scheduled"
	BillStatusPaid      BillStatus = "paid"
)

func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusPending, BillStatusScheduled, BillStatusPaid:
		return true
	}
	return false
}

// DisplayStatus is the status shown to the user. It adds overdue on top of
// the stored status and is never persisted.
type DisplayStatus string

const (
	DisplayPending   DisplayStatus = "pending"
	DisplayScheduled DisplayStatus = "scheduled"
	DisplayPaid      DisplayStatus = "paid"
	DisplayOverdue   DisplayStatus = "overdue"
)

// Bill is a bill paid against the access allowance.
type Bill struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category BillCategory    `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	DueDate  Date            `json:"dueDate"`
	Status   BillStatus      `json:"status"`
}
