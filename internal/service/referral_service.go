package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/access-ledger-bfa-go/internal/ledger"
	"github.com/boddenberg/access-ledger-bfa-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// referralNamespace derives stable event ids for completions sent without one.
var referralNamespace = uuid.MustParse("6f1c2d8e-4b7a-4e0f-9a51-3d2c7b8e9f10")

// ReferralService resolves referral codes and credits completed referrals.
type ReferralService struct {
	store   port.ReferralStore
	reward  decimal.Decimal
	now     Clock
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewReferralService creates the referral service. reward is paid to both
// referrer and referee on each completion.
func NewReferralService(store port.ReferralStore, reward decimal.Decimal, now Clock, metrics *observability.Metrics, logger *zap.Logger) *ReferralService {
	if now == nil {
		now = time.Now
	}
	return &ReferralService{store: store, reward: reward, now: now, metrics: metrics, logger: logger}
}

// GetReferral returns the user's shareable code and accrued rewards. Users
// without a valid issued code get the derived fallback code.
func (s *ReferralService) GetReferral(ctx context.Context, ownerID string) (*domain.ReferralSummary, error) {
	ctx, span := tracer.Start(ctx, "ReferralService.GetReferral")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	rec, err := s.store.GetReferral(ctx, ownerID)
	if err != nil {
		s.metrics.IncrExternalError("redis")
		return nil, err
	}

	issued := rec.Code
	if issued != "" {
		if err := ledger.ValidateIssuedCode(issued); err != nil {
			s.logger.Warn("ignoring invalid issued referral code",
				zap.String("owner_id", ownerID),
				zap.Error(err),
			)
			issued = ""
		}
	}

	code, err := ledger.ResolveCode(issued, ownerID)
	if err != nil {
		return nil, err
	}
	kind, err := ledger.ClassifyCode(code)
	if err != nil {
		return nil, err
	}

	return &domain.ReferralSummary{
		OwnerID:       ownerID,
		Code:          code,
		CodeKind:      kind,
		ReferralCount: rec.ReferralCount,
		TotalEarnings: rec.TotalEarnings.Round(2),
	}, nil
}

// CompleteReferral credits referrer and referee for a completed signup.
// Replays of an already credited referred user succeed with Duplicate set
// and leave both records unchanged.
func (s *ReferralService) CompleteReferral(ctx context.Context, event domain.ReferralEvent) (*domain.ReferralCompletion, error) {
	ctx, span := tracer.Start(ctx, "ReferralService.CompleteReferral")
	defer span.End()

	if err := ledger.ValidateEvent(event); err != nil {
		return nil, err
	}
	if event.EventID == "" {
		event.EventID = uuid.NewSHA1(referralNamespace, []byte(event.ReferrerID+":"+event.ReferredUserID)).String()
	}
	if event.CompletedAt.IsZero() {
		event.CompletedAt = s.now().UTC()
	}
	span.SetAttributes(
		attribute.String("referral.event_id", event.EventID),
		attribute.String("referral.referrer_id", event.ReferrerID),
	)

	mutate := func(referrer, referee domain.ReferralRecord, alreadyCredited bool) (domain.ReferralRecord, domain.ReferralRecord, error) {
		credited := ledger.NewCreditedSet()
		if alreadyCredited {
			credited = credited.With(event.ReferredUserID)
		}
		nextReferrer, err := ledger.AccrueReferral(referrer, event, credited, s.reward)
		if err != nil {
			return referrer, referee, err
		}
		nextReferee, err := ledger.RewardReferee(referee, event, credited, s.reward)
		if err != nil {
			return referrer, referee, err
		}
		return nextReferrer, nextReferee, nil
	}

	referrer, referee, err := s.store.ApplyReferral(ctx, event, mutate)
	var dup *domain.ErrDuplicateReferral
	switch {
	case errors.As(err, &dup):
		s.metrics.IncrReferral("duplicate")
		s.logger.Info("referral already credited",
			zap.String("event_id", event.EventID),
			zap.String("referred_user_id", event.ReferredUserID),
		)
		return completion(event.EventID, true, referrer, referee), nil
	case err != nil:
		var ext *domain.ErrExternalService
		if errors.As(err, &ext) {
			s.metrics.IncrExternalError("redis")
		}
		s.logger.Error("referral completion failed",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrReferral("credited")
	s.logger.Info("referral credited",
		zap.String("event_id", event.EventID),
		zap.String("referrer_id", event.ReferrerID),
		zap.String("referred_user_id", event.ReferredUserID),
		zap.Int("referral_count", referrer.ReferralCount),
	)
	return completion(event.EventID, false, referrer, referee), nil
}

func completion(eventID string, duplicate bool, referrer, referee domain.ReferralRecord) *domain.ReferralCompletion {
	referrer.TotalEarnings = referrer.TotalEarnings.Round(2)
	referee.TotalEarnings = referee.TotalEarnings.Round(2)
	return &domain.ReferralCompletion{
		EventID:   eventID,
		Duplicate: duplicate,
		Referrer:  referrer,
		Referee:   referee,
	}
}
