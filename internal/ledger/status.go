package ledger

import (
	"fmt"
	"slices"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"

	"github.com/samber/lo"
)

// upcomingGraceDays keeps bills that fell due yesterday in the upcoming list.
// The overdue badge deliberately has no grace period.
const upcomingGraceDays = 1

// DisplayStatus derives the status shown for a bill. Paid is terminal and
// wins over any due date; unpaid bills past their due date are overdue.
func DisplayStatus(bill domain.Bill, today domain.Date) domain.DisplayStatus {
	if bill.Status == domain.BillStatusPaid {
		return domain.DisplayPaid
	}
	if IsOverdue(bill.DueDate, today, bill.Status) {
		return domain.DisplayOverdue
	}
	return domain.DisplayStatus(bill.Status)
}

// Upcoming returns the unpaid bills due on or after yesterday, ordered by due
// date ascending and truncated to limit. Bills sharing a due date keep their
// input order. The input slice is not modified.
func Upcoming(bills []domain.Bill, today domain.Date, limit int) ([]domain.Bill, error) {
	if limit <= 0 {
		return nil, &domain.ErrInvalidInput{Field: "limit", Message: fmt.Sprintf("must be positive, got %d", limit)}
	}

	cutoff := today.AddDays(-upcomingGraceDays)
	out := lo.Filter(bills, func(b domain.Bill, _ int) bool {
		return b.Status != domain.BillStatusPaid && !b.DueDate.Before(cutoff)
	})
	slices.SortStableFunc(out, func(a, b domain.Bill) int {
		return a.DueDate.Compare(b.DueDate)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DaysUntilDue returns the days from today to the bill's due date; negative
// once the date has passed.
func DaysUntilDue(bill domain.Bill, today domain.Date) int {
	return today.DaysUntil(bill.DueDate)
}

// ValidateBill checks the invariants the data source must uphold.
func ValidateBill(bill domain.Bill) error {
	switch {
	case !bill.Amount.IsPositive():
		return &domain.ErrInvalidInput{Field: "amount", Message: fmt.Sprintf("bill %s: amount must be positive, got %s", bill.ID, bill.Amount)}
	case !bill.Category.Valid():
		return &domain.ErrInvalidInput{Field: "category", Message: fmt.Sprintf("bill %s: unknown category %q", bill.ID, bill.Category)}
	case !bill.Status.Valid():
		return &domain.ErrInvalidInput{Field: "status", Message: fmt.Sprintf("bill %s: unknown status %q", bill.ID, bill.Status)}
	case bill.DueDate.IsZero():
		return &domain.ErrInvalidInput{Field: "dueDate", Message: fmt.Sprintf("bill %s: due date is required", bill.ID)}
	}
	return nil
}
