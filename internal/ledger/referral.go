package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// fallbackPrefix is reserved for codes derived from the owner id. Issued
// codes may never start with it, which keeps the two code spaces apart.
const (
	fallbackPrefix   = "REF-"
	fallbackIDLength = 8
)

var issuedCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{3,31}$`)

// ResolveCode returns issuedCode when present, otherwise the fallback code
// derived from ownerID. The fallback is recomputed on every call and never
// written back as an issued code.
func ResolveCode(issuedCode, ownerID string) (string, error) {
	if strings.TrimSpace(issuedCode) != "" {
		return issuedCode, nil
	}
	return FallbackCode(ownerID)
}

// FallbackCode derives "REF-" plus the upper-cased first eight characters of
// ownerID.
func FallbackCode(ownerID string) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", &domain.ErrInvalidInput{Field: "ownerId", Message: "required to derive a referral code"}
	}
	r := []rune(ownerID)
	if len(r) > fallbackIDLength {
		r = r[:fallbackIDLength]
	}
	return fallbackPrefix + strings.ToUpper(string(r)), nil
}

// ClassifyCode tells which code space a presented code belongs to.
func ClassifyCode(code string) (domain.CodeKind, error) {
	if rest, ok := strings.CutPrefix(code, fallbackPrefix); ok {
		if n := utf8.RuneCountInString(rest); n == 0 || n > fallbackIDLength {
			return "", &domain.ErrInvalidInput{Field: "code", Message: fmt.Sprintf("malformed fallback code %q", code)}
		}
		return domain.CodeFallback, nil
	}
	if err := ValidateIssuedCode(code); err != nil {
		return "", err
	}
	return domain.CodeIssued, nil
}

// ValidateIssuedCode checks a code handed out by the external issuing service.
func ValidateIssuedCode(code string) error {
	if strings.HasPrefix(strings.ToUpper(code), fallbackPrefix) {
		return &domain.ErrInvalidInput{Field: "code", Message: fmt.Sprintf("prefix %q is reserved for derived codes", fallbackPrefix)}
	}
	if !issuedCodePattern.MatchString(code) {
		return &domain.ErrInvalidInput{Field: "code", Message: fmt.Sprintf("malformed issued code %q", code)}
	}
	return nil
}

// CreditedSet holds the ids of referred users that already produced a reward.
type CreditedSet map[string]struct{}

// NewCreditedSet builds a set from ids.
func NewCreditedSet(ids ...string) CreditedSet {
	s := make(CreditedSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s CreditedSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// With returns a copy of s that also contains id.
func (s CreditedSet) With(id string) CreditedSet {
	out := make(CreditedSet, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}

// ValidateEvent checks a referral completion event.
func ValidateEvent(event domain.ReferralEvent) error {
	switch {
	case strings.TrimSpace(event.ReferrerID) == "":
		return &domain.ErrInvalidInput{Field: "referrerId", Message: "required"}
	case strings.TrimSpace(event.ReferredUserID) == "":
		return &domain.ErrInvalidInput{Field: "referredUserId", Message: "required"}
	case event.ReferrerID == event.ReferredUserID:
		return &domain.ErrInvalidInput{Field: "referredUserId", Message: "a user cannot refer themselves"}
	}
	return nil
}

// AccrueReferral credits the referrer for a completed referral: one more
// referral and reward added to earnings. When the referred user is already
// in credited, the record is returned unchanged with ErrDuplicateReferral.
func AccrueReferral(record domain.ReferralRecord, event domain.ReferralEvent, credited CreditedSet, reward decimal.Decimal) (domain.ReferralRecord, error) {
	if err := checkAccrual(record, event.ReferrerID, event, reward); err != nil {
		return record, err
	}
	if credited.Contains(event.ReferredUserID) {
		return record, &domain.ErrDuplicateReferral{ReferredUserID: event.ReferredUserID}
	}

	out := record
	out.OwnerID = event.ReferrerID
	out.ReferralCount++
	out.TotalEarnings = record.TotalEarnings.Add(reward)
	return out, nil
}

// RewardReferee gives the referred user the same reward. Their own referral
// count is left alone since they did not refer anyone.
func RewardReferee(record domain.ReferralRecord, event domain.ReferralEvent, credited CreditedSet, reward decimal.Decimal) (domain.ReferralRecord, error) {
	if err := checkAccrual(record, event.ReferredUserID, event, reward); err != nil {
		return record, err
	}
	if credited.Contains(event.ReferredUserID) {
		return record, &domain.ErrDuplicateReferral{ReferredUserID: event.ReferredUserID}
	}

	out := record
	out.OwnerID = event.ReferredUserID
	out.TotalEarnings = record.TotalEarnings.Add(reward)
	return out, nil
}

func checkAccrual(record domain.ReferralRecord, ownerID string, event domain.ReferralEvent, reward decimal.Decimal) error {
	if err := ValidateEvent(event); err != nil {
		return err
	}
	if !reward.IsPositive() {
		return &domain.ErrConfiguration{Field: "reward", Message: fmt.Sprintf("referral reward must be positive, got %s", reward)}
	}
	if record.OwnerID != "" && record.OwnerID != ownerID {
		return &domain.ErrInvalidInput{Field: "ownerId", Message: fmt.Sprintf("record belongs to %s, event targets %s", record.OwnerID, ownerID)}
	}
	if record.ReferralCount < 0 || record.TotalEarnings.IsNegative() {
		return &domain.ErrInvalidInput{Field: "record", Message: "referral count and earnings must not be negative"}
	}
	return nil
}
