package ledger

import (
	"fmt"
	"time"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
)

const (
	minSettlementDay = 1
	maxSettlementDay = 31
)

// NextSettlementDate returns the next occurrence of settlementDay on or after
// today. When the month is shorter than settlementDay the date is clamped to
// the month's last day, so day 31 settles on Feb 28 (or 29).
func NextSettlementDate(today domain.Date, settlementDay int) (domain.Date, error) {
	if err := validateSettlementDay(settlementDay); err != nil {
		return domain.Date{}, err
	}

	candidate := clampedDate(today.Year(), today.Month(), settlementDay)
	if candidate.Before(today) {
		candidate = clampedDate(today.Year(), today.Month()+1, settlementDay)
	}
	return candidate, nil
}

// DaysUntilSettlement counts calendar days from today to the next settlement.
// It is 0 when today is the settlement day.
func DaysUntilSettlement(today domain.Date, settlementDay int) (int, error) {
	next, err := NextSettlementDate(today, settlementDay)
	if err != nil {
		return 0, err
	}
	return today.DaysUntil(next), nil
}

// IsOverdue reports whether an unpaid bill's due date has passed. The
// comparison is strict and date-only: a bill due today is not overdue.
func IsOverdue(dueDate, today domain.Date, status domain.BillStatus) bool {
	return status != domain.BillStatusPaid && dueDate.Before(today)
}

// CycleEnd returns the last day of the cycle that starts on cycleStart: the
// day before the same day-of-month one month later, month-end clamped.
func CycleEnd(cycleStart domain.Date) domain.Date {
	next := clampedDate(cycleStart.Year(), cycleStart.Month()+1, cycleStart.Day())
	return next.AddDays(-1)
}

func validateSettlementDay(day int) error {
	if day < minSettlementDay || day > maxSettlementDay {
		return &domain.ErrInvalidInput{
			Field:   "settlementDayOfMonth",
			Message: fmt.Sprintf("must be between %d and %d, got %d", minSettlementDay, maxSettlementDay, day),
		}
	}
	return nil
}

// clampedDate builds year/month/day, pulling day back to the month's last
// day when it overflows. month may be 13 (next January).
func clampedDate(year int, month time.Month, day int) domain.Date {
	first := domain.NewDate(year, month, 1)
	if last := lastDayOfMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return domain.NewDate(first.Year(), first.Month(), day)
}

// lastDayOfMonth uses day 0 of the following month.
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
