// Package service provides the business logic layer (use cases).
// It loads account snapshots from the data source, injects the current
// date and shapes ledger results into view data.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/access-ledger-bfa-go/internal/ledger"
	"github.com/boddenberg/access-ledger-bfa-go/internal/port"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/access")

// Clock returns the current instant. Tests inject a fixed one.
type Clock func() time.Time

// AccessService serves the access card, next payment and bill lists.
type AccessService struct {
	source        port.LedgerSource
	catalog       *ledger.PlanCatalog
	cache         port.Cache[*domain.AccessAccount]
	now           Clock
	location      *time.Location
	upcomingLimit int
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewAccessService creates the access service with all dependencies injected.
// "Today" is the calendar date of now() in location.
func NewAccessService(
	source port.LedgerSource,
	catalog *ledger.PlanCatalog,
	cache port.Cache[*domain.AccessAccount],
	now Clock,
	location *time.Location,
	upcomingLimit int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AccessService {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &AccessService{
		source:        source,
		catalog:       catalog,
		cache:         cache,
		now:           now,
		location:      location,
		upcomingLimit: upcomingLimit,
		metrics:       metrics,
		logger:        logger,
	}
}

// UpcomingLimit is the list size used when the caller gives none.
func (s *AccessService) UpcomingLimit() int {
	return s.upcomingLimit
}

func (s *AccessService) today() domain.Date {
	return domain.DateOf(s.now().In(s.location))
}

// GetAccessOverview returns plan, usage and settlement timing for an account.
// Invalid plan data degrades the view instead of failing it.
func (s *AccessService) GetAccessOverview(ctx context.Context, accountID string) (*domain.AccessOverview, error) {
	ctx, span := tracer.Start(ctx, "AccessService.GetAccessOverview")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("access_overview", time.Since(start))
	}()

	acc, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	next, err := ledger.NextSettlementDate(today, acc.SettlementDayOfMonth)
	if err != nil {
		return nil, err
	}

	overview := &domain.AccessOverview{
		AccountID:           acc.ID,
		Plan:                acc.Plan,
		CycleStartDate:      acc.CycleStartDate,
		CycleEndDate:        ledger.CycleEnd(acc.CycleStartDate),
		NextSettlementDate:  next,
		DaysUntilSettlement: today.DaysUntil(next),
	}

	usage, err := ledger.UsageSummary(*acc)
	var cfgErr *domain.ErrConfiguration
	switch {
	case errors.As(err, &cfgErr):
		s.logger.Warn("access usage unavailable, serving degraded view",
			zap.String("account_id", accountID),
			zap.String("tier", string(acc.Plan.Tier)),
			zap.Error(err),
		)
		s.metrics.IncrDegradedView("access")
		overview.Degraded = true
		return overview, nil
	case err != nil:
		return nil, err
	}

	overview.Usage = &usage
	overview.OverLimit = usage.OverLimit()
	if overview.OverLimit {
		s.metrics.IncrOverLimit()
		s.logger.Info("account over access limit",
			zap.String("account_id", accountID),
			zap.String("used", usage.Used.StringFixed(2)),
			zap.String("limit", usage.Limit.StringFixed(2)),
		)
	}
	return overview, nil
}

// GetNextPayment returns the balance that settles on the next settlement date.
func (s *AccessService) GetNextPayment(ctx context.Context, accountID string) (*domain.NextPayment, error) {
	ctx, span := tracer.Start(ctx, "AccessService.GetNextPayment")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	acc, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	next, err := ledger.NextSettlementDate(today, acc.SettlementDayOfMonth)
	if err != nil {
		return nil, err
	}

	counts := lo.CountValuesBy(acc.BillsInCycle, func(b domain.Bill) domain.BillStatus { return b.Status })
	return &domain.NextPayment{
		AccountID:           acc.ID,
		Amount:              ledger.UsedAmount(acc.BillsInCycle).Round(2),
		SettlementDate:      next,
		DaysUntilSettlement: today.DaysUntil(next),
		ScheduledBills:      counts[domain.BillStatusScheduled],
		PaidBills:           counts[domain.BillStatusPaid],
	}, nil
}

// ListBills returns every bill of the current cycle ordered by due date.
func (s *AccessService) ListBills(ctx context.Context, accountID string) ([]domain.BillView, error) {
	ctx, span := tracer.Start(ctx, "AccessService.ListBills")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	acc, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	bills := slices.Clone(acc.BillsInCycle)
	slices.SortStableFunc(bills, func(a, b domain.Bill) int {
		return a.DueDate.Compare(b.DueDate)
	})
	return s.views(bills), nil
}

// UpcomingBills returns at most limit unpaid bills due from yesterday on.
func (s *AccessService) UpcomingBills(ctx context.Context, accountID string, limit int) ([]domain.BillView, error) {
	ctx, span := tracer.Start(ctx, "AccessService.UpcomingBills")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.Int("limit", limit),
	)

	acc, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	upcoming, err := ledger.Upcoming(acc.BillsInCycle, s.today(), limit)
	if err != nil {
		return nil, err
	}
	return s.views(upcoming), nil
}

// InvalidateAccount drops the cached snapshot so the next read refetches.
func (s *AccessService) InvalidateAccount(accountID string) {
	s.cache.Delete(accountCacheKey(accountID))
	s.logger.Debug("account snapshot invalidated", zap.String("account_id", accountID))
}

func (s *AccessService) views(bills []domain.Bill) []domain.BillView {
	today := s.today()
	return lo.Map(bills, func(b domain.Bill, _ int) domain.BillView {
		b.Amount = b.Amount.Round(2)
		return domain.BillView{
			Bill:          b,
			DisplayStatus: ledger.DisplayStatus(b, today),
			DaysUntilDue:  ledger.DaysUntilDue(b, today),
		}
	})
}

func accountCacheKey(accountID string) string {
	return fmt.Sprintf("account:%s", accountID)
}

// loadAccount returns the account snapshot, fetching the account row and its
// bills concurrently on a cache miss.
func (s *AccessService) loadAccount(ctx context.Context, accountID string) (*domain.AccessAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cacheKey := accountCacheKey(accountID)
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("account")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("account")

	var (
		record *domain.AccountRecord
		bills  []domain.Bill
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := s.source.GetAccount(gCtx, accountID)
		if err != nil {
			s.fetchFailed("account", accountID, err)
			return fmt.Errorf("account fetch: %w", err)
		}
		record = r
		return nil
	})

	g.Go(func() error {
		b, err := s.source.ListCycleBills(gCtx, accountID)
		if err != nil {
			s.fetchFailed("bills", accountID, err)
			return fmt.Errorf("bills fetch: %w", err)
		}
		bills = b
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	acc, err := s.buildAccount(record, bills)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey, acc)
	return acc, nil
}

func (s *AccessService) fetchFailed(what, accountID string, err error) {
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return
	}
	s.logger.Error("failed to fetch "+what,
		zap.String("account_id", accountID),
		zap.Error(err),
	)
	s.metrics.IncrExternalError(what)
}

func (s *AccessService) buildAccount(record *domain.AccountRecord, bills []domain.Bill) (*domain.AccessAccount, error) {
	if record.SettlementDayOfMonth < 1 || record.SettlementDayOfMonth > 31 {
		return nil, &domain.ErrExternalService{
			Service: "supabase/accounts",
			Err:     fmt.Errorf("account %s has settlement day %d", record.ID, record.SettlementDayOfMonth),
		}
	}

	plan, err := s.catalog.Lookup(record.Tier)
	if err != nil {
		return nil, &domain.ErrConfiguration{
			Field:   "tier",
			Message: fmt.Sprintf("account %s references unknown tier %q", record.ID, record.Tier),
		}
	}

	valid := make([]domain.Bill, 0, len(bills))
	for _, b := range bills {
		if err := ledger.ValidateBill(b); err != nil {
			field := "bill"
			var inv *domain.ErrInvalidInput
			if errors.As(err, &inv) {
				field = inv.Field
			}
			s.logger.Warn("skipping invalid bill",
				zap.String("account_id", record.ID),
				zap.String("bill_id", b.ID),
				zap.Error(err),
			)
			s.metrics.IncrInvalidBill(field)
			continue
		}
		valid = append(valid, b)
	}

	return &domain.AccessAccount{
		ID:                   record.ID,
		OwnerID:              record.OwnerID,
		Plan:                 plan,
		CycleStartDate:       record.CycleStartDate,
		SettlementDayOfMonth: record.SettlementDayOfMonth,
		BillsInCycle:         valid,
	}, nil
}
