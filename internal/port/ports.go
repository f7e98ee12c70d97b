// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the data source, the referral store and the cache.
package port

import (
	"context"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"
)

// LedgerSource reads account snapshots from the external data store.
type LedgerSource interface {
	GetAccount(ctx context.Context, accountID string) (*domain.AccountRecord, error)
	ListCycleBills(ctx context.Context, accountID string) ([]domain.Bill, error)
}

// ReferralMutation computes the next referrer and referee records from the
// stored ones. alreadyCredited reports whether the referred user was
// rewarded before. Returning an error aborts the write.
type ReferralMutation func(referrer, referee domain.ReferralRecord, alreadyCredited bool) (domain.ReferralRecord, domain.ReferralRecord, error)

// ReferralStore keeps referral records and the set of credited users.
type ReferralStore interface {
	// GetReferral returns the owner's record; a user with no history gets a
	// zero record rather than an error.
	GetReferral(ctx context.Context, ownerID string) (*domain.ReferralRecord, error)

	// ApplyReferral reads both records and the credited flag, runs mutate,
	// and atomically persists the result together with the credited mark.
	// When mutate fails, nothing is written and its records and error are
	// returned as-is.
	ApplyReferral(ctx context.Context, event domain.ReferralEvent, mutate ReferralMutation) (referrer, referee domain.ReferralRecord, err error)

	Ping(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
