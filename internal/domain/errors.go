package domain

import "fmt"

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrConfiguration indicates invalid plan or catalog data, e.g. a zero
// access limit or a non-positive price.
type ErrConfiguration struct {
	Field   string
	Message string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration error on '%s': %s", e.Field, e.Message)
}

// ErrInvalidInput indicates malformed input such as a bad date or a
// non-positive amount.
type ErrInvalidInput struct {
	Field   string
	Message string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid input on '%s': %s", e.Field, e.Message)
}

// ErrDuplicateReferral is returned when a referral completion is replayed
// for a referred user that was already credited. Callers treat it as a
// successful no-op.
type ErrDuplicateReferral struct {
	ReferredUserID string
}

func (e *ErrDuplicateReferral) Error() string {
	return fmt.Sprintf("referral already credited for user: %s", e.ReferredUserID)
}

// ErrUnauthorized indicates a missing or invalid webhook token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
