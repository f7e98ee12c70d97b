package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Cycle bills (read via PostgREST)
// ============================================================

// billRow maps the cycle_bills view, which only exposes bills of the
// account's current cycle.
type billRow struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	DueDate  domain.Date     `json:"due_date"`
	Status   string          `json:"status"`
}

// ListCycleBills returns the bills of the account's current cycle in
// insertion order.
func (c *Client) ListCycleBills(ctx context.Context, accountID string) ([]domain.Bill, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCycleBills")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	const service = "supabase/bills"
	path := fmt.Sprintf("cycle_bills?account_id=eq.%s&order=created_at.asc", url.QueryEscape(accountID))
	body, err := c.fetch(ctx, service, path)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []domain.Bill{}, nil
	}

	var rows []billRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: service, Err: fmt.Errorf("decode bills: %w", err)}
	}

	bills := make([]domain.Bill, 0, len(rows))
	for _, r := range rows {
		bills = append(bills, domain.Bill{
			ID:       r.ID,
			Name:     r.Name,
			Category: domain.BillCategory(r.Category),
			Amount:   r.Amount,
			DueDate:  r.DueDate,
			Status:   domain.BillStatus(r.Status),
		})
	}
	span.SetAttributes(attribute.Int("bills.count", len(bills)))
	return bills, nil
}
