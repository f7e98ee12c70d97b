// Package redisstore keeps referral records in Redis. Each owner has a hash
// with the issued code, the referral count and the total earnings; a set
// holds every referred user that has already been credited.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/access-ledger-bfa-go/internal/port"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("redisstore")

const (
	fieldCode     = "code"
	fieldCount    = "count"
	fieldEarnings = "earnings"

	// maxTxAttempts bounds optimistic-lock retries when concurrent
	// completions touch the same records.
	maxTxAttempts = 5
)

// ReferralStore implements port.ReferralStore on top of Redis.
type ReferralStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewReferralStore creates a store using keys under prefix.
func NewReferralStore(client *redis.Client, prefix string, logger *zap.Logger) *ReferralStore {
	if prefix == "" {
		prefix = "referrals"
	}
	return &ReferralStore{client: client, prefix: prefix, logger: logger}
}

func (s *ReferralStore) recordKey(ownerID string) string {
	return fmt.Sprintf("%s:record:%s", s.prefix, ownerID)
}

func (s *ReferralStore) creditedKey() string {
	return s.prefix + ":credited"
}

// GetReferral returns the owner's record, or a zero record with no code.
func (s *ReferralStore) GetReferral(ctx context.Context, ownerID string) (*domain.ReferralRecord, error) {
	ctx, span := tracer.Start(ctx, "ReferralStore.GetReferral")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	fields, err := s.client.HGetAll(ctx, s.recordKey(ownerID)).Result()
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "redis", Err: err}
	}
	rec, err := decodeRecord(ownerID, fields)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return &rec, nil
}

// ApplyReferral runs mutate under WATCH on both records and the credited
// set, then writes counts, earnings and the credited mark in one MULTI.
func (s *ReferralStore) ApplyReferral(ctx context.Context, event domain.ReferralEvent, mutate port.ReferralMutation) (domain.ReferralRecord, domain.ReferralRecord, error) {
	ctx, span := tracer.Start(ctx, "ReferralStore.ApplyReferral")
	defer span.End()
	span.SetAttributes(
		attribute.String("referral.event_id", event.EventID),
		attribute.String("referral.referred_user_id", event.ReferredUserID),
	)

	referrerKey := s.recordKey(event.ReferrerID)
	refereeKey := s.recordKey(event.ReferredUserID)
	creditedKey := s.creditedKey()

	var (
		referrer, referee domain.ReferralRecord
		mutateErr         error
	)

	txf := func(tx *redis.Tx) error {
		mutateErr = nil

		referrerFields, err := tx.HGetAll(ctx, referrerKey).Result()
		if err != nil {
			return err
		}
		refereeFields, err := tx.HGetAll(ctx, refereeKey).Result()
		if err != nil {
			return err
		}
		credited, err := tx.SIsMember(ctx, creditedKey, event.ReferredUserID).Result()
		if err != nil {
			return err
		}

		currentReferrer, err := decodeRecord(event.ReferrerID, referrerFields)
		if err != nil {
			return err
		}
		currentReferee, err := decodeRecord(event.ReferredUserID, refereeFields)
		if err != nil {
			return err
		}

		referrer, referee, mutateErr = mutate(currentReferrer, currentReferee, credited)
		if mutateErr != nil {
			return mutateErr
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, referrerKey, encodeCounters(referrer))
			pipe.HSet(ctx, refereeKey, encodeCounters(referee))
			pipe.SAdd(ctx, creditedKey, event.ReferredUserID)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, referrerKey, refereeKey, creditedKey)
		switch {
		case err == nil:
			return referrer, referee, nil
		case mutateErr != nil:
			return referrer, referee, mutateErr
		case errors.Is(err, redis.TxFailedErr):
			s.logger.Debug("redisstore: referral transaction conflict, retrying",
				zap.String("event_id", event.EventID),
				zap.Int("attempt", attempt),
			)
			continue
		default:
			return domain.ReferralRecord{}, domain.ReferralRecord{}, &domain.ErrExternalService{Service: "redis", Err: err}
		}
	}

	return domain.ReferralRecord{}, domain.ReferralRecord{}, &domain.ErrExternalService{
		Service: "redis",
		Err:     fmt.Errorf("referral transaction aborted after %d attempts", maxTxAttempts),
	}
}

// Ping checks Redis connectivity.
func (s *ReferralStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SetIssuedCode stores a code issued by the external code service.
func (s *ReferralStore) SetIssuedCode(ctx context.Context, ownerID, code string) error {
	return s.client.HSet(ctx, s.recordKey(ownerID), fieldCode, code).Err()
}

func decodeRecord(ownerID string, fields map[string]string) (domain.ReferralRecord, error) {
	rec := domain.ReferralRecord{
		Code:          fields[fieldCode],
		OwnerID:       ownerID,
		TotalEarnings: decimal.Zero,
	}
	if v, ok := fields[fieldCount]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return rec, fmt.Errorf("corrupt referral count for %s: %w", ownerID, err)
		}
		rec.ReferralCount = n
	}
	if v, ok := fields[fieldEarnings]; ok && v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return rec, fmt.Errorf("corrupt referral earnings for %s: %w", ownerID, err)
		}
		rec.TotalEarnings = d
	}
	return rec, nil
}

// encodeCounters never includes the code; codes are only written by
// SetIssuedCode.
func encodeCounters(rec domain.ReferralRecord) map[string]interface{} {
	return map[string]interface{}{
		fieldCount:    rec.ReferralCount,
		fieldEarnings: rec.TotalEarnings.String(),
	}
}
