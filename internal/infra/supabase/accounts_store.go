package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Access accounts (read via PostgREST)
// ============================================================

// accountRow maps the access_accounts table columns.
type accountRow struct {
	ID                   string      `json:"id"`
	OwnerID              string      `json:"owner_id"`
	Tier                 string      `json:"tier"`
	CycleStartDate       domain.Date `json:"cycle_start_date"`
	SettlementDayOfMonth int         `json:"settlement_day_of_month"`
}

// GetAccount fetches one access account row.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.AccountRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	const service = "supabase/accounts"
	path := fmt.Sprintf("access_accounts?id=eq.%s&limit=1", url.QueryEscape(accountID))
	body, err := c.fetch(ctx, service, path)
	if err != nil {
		return nil, err
	}

	var rows []accountRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, &domain.ErrExternalService{Service: service, Err: fmt.Errorf("decode account: %w", err)}
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}

	r := rows[0]
	return &domain.AccountRecord{
		ID:                   r.ID,
		OwnerID:              r.OwnerID,
		Tier:                 domain.Tier(r.Tier),
		CycleStartDate:       r.CycleStartDate,
		SettlementDayOfMonth: r.SettlementDayOfMonth,
	}, nil
}
