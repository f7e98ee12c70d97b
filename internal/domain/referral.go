package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Referrals
// ============================================================

// CodeKind tells issued referral codes apart from derived fallback codes.
type CodeKind string

const (
	CodeIssued   CodeKind = "issued"
	CodeFallback CodeKind = "fallback"
)

// ReferralRecord holds a user's referral code and accrued rewards.
// Code is empty when no code was issued externally.
type ReferralRecord struct {
	Code          string          `json:"code,omitempty"`
	OwnerID       string          `json:"ownerId"`
	ReferralCount int             `json:"referralCount"`
	TotalEarnings decimal.Decimal `json:"totalEarnings"`
}

// ReferralEvent is emitted by the onboarding flow when a referred user
// completes signup.
type ReferralEvent struct {
	EventID        string    `json:"eventId"`
	ReferrerID     string    `json:"referrerId"`
	ReferredUserID string    `json:"referredUserId"`
	CompletedAt    time.Time `json:"completedAt"`
}
