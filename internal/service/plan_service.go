package service

import (
	"context"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/ledger"

	"go.opentelemetry.io/otel/attribute"
)

// PlanService exposes the plan catalog and signup pricing.
type PlanService struct {
	catalog *ledger.PlanCatalog
}

// NewPlanService creates a plan service over a validated catalog.
func NewPlanService(catalog *ledger.PlanCatalog) *PlanService {
	return &PlanService{catalog: catalog}
}

// ListPlans returns every plan ordered by price.
func (s *PlanService) ListPlans(ctx context.Context) []domain.Plan {
	_, span := tracer.Start(ctx, "PlanService.ListPlans")
	defer span.End()

	return s.catalog.Plans()
}

func (s *PlanService) GetPlan(ctx context.Context, tier domain.Tier) (*domain.Plan, error) {
	_, span := tracer.Start(ctx, "PlanService.GetPlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.tier", string(tier)))

	plan, err := s.catalog.Lookup(tier)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetFirstPayment returns what a new subscriber pays today for tier.
func (s *PlanService) GetFirstPayment(ctx context.Context, tier domain.Tier) (*domain.FirstPayment, error) {
	_, span := tracer.Start(ctx, "PlanService.GetFirstPayment")
	defer span.End()
	span.SetAttributes(attribute.String("plan.tier", string(tier)))

	plan, err := s.catalog.Lookup(tier)
	if err != nil {
		return nil, err
	}
	fp, err := ledger.FirstPayment(plan)
	if err != nil {
		return nil, err
	}
	return &fp, nil
}
