package domain

import "github.com/shopspring/decimal"

// ============================================================
// View data returned to the presentation layer
// ============================================================

// AccessOverview backs the access card: plan, usage and settlement timing.
// Usage is nil and Degraded is true when the plan data is invalid.
type AccessOverview struct {
	AccountID           string `json:"accountId"`
	Plan                Plan   `json:"plan"`
	Usage               *Usage `json:"usage"`
	OverLimit           bool   `json:"overLimit"`
	CycleStartDate      Date   `json:"cycleStartDate"`
	CycleEndDate        Date   `json:"cycleEndDate"`
	NextSettlementDate  Date   `json:"nextSettlementDate"`
	DaysUntilSettlement int    `json:"daysUntilSettlement"`
	Degraded            bool   `json:"degraded"`
}

// NextPayment backs the next payment card.
type NextPayment struct {
	AccountID           string          `json:"accountId"`
	Amount              decimal.Decimal `json:"amount"`
	SettlementDate      Date            `json:"settlementDate"`
	DaysUntilSettlement int             `json:"daysUntilSettlement"`
	ScheduledBills      int             `json:"scheduledBills"`
	PaidBills           int             `json:"paidBills"`
}

// BillView is a bill decorated with its display status and due-date proximity.
type BillView struct {
	Bill
	DisplayStatus DisplayStatus `json:"displayStatus"`
	DaysUntilDue  int           `json:"daysUntilDue"`
}

// ReferralSummary backs the referral actions panel.
type ReferralSummary struct {
	OwnerID       string          `json:"ownerId"`
	Code          string          `json:"code"`
	CodeKind      CodeKind        `json:"codeKind"`
	ReferralCount int             `json:"referralCount"`
	TotalEarnings decimal.Decimal `json:"totalEarnings"`
}

// ReferralCompletion is the result of applying a referral completion event.
// Duplicate is true when the event had already been credited; the records
// are then returned unchanged.
type ReferralCompletion struct {
	EventID   string         `json:"eventId"`
	Duplicate bool           `json:"duplicate"`
	Referrer  ReferralRecord `json:"referrer"`
	Referee   ReferralRecord `json:"referee"`
}
