package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	// Inventory errors
	ErrFlightNotFound = errors.New("flight not found")
	ErrFlightFull     = errors.New("not enough seats available")
	ErrOverCapacity   = errors.New("release would exceed cabin capacity")
	ErrInvalidAmount  = errors.New("invalid amount")

	// Money errors
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// Booking errors
	ErrBookingNotFound     = errors.New("booking not found")
	ErrInvalidBookingState = errors.New("invalid booking state for requested transition")
	ErrPnrExhausted        = errors.New("unable to allocate a unique pnr code")
	ErrInvalidPnrCode      = errors.New("invalid pnr code")
	ErrTicketAlreadyIssued = errors.New("ticket already issued for booking")
	ErrInvalidCarrierCode  = errors.New("invalid carrier code")
	ErrInvalidPassenger    = errors.New("invalid passenger")
	ErrInvalidSegment      = errors.New("invalid segment")
)

// Concurrency errors
var (
	ErrOptimisticLockConflict = errors.New("optimistic lock conflict")
)

// Persistence errors
var (
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrPersistenceTimeout = errors.New("persistence timeout")
	ErrDuplicateEntity    = errors.New("duplicate entity")
	ErrReferenceNotFound  = errors.New("referenced entity not found")
	ErrDataIntegrity      = errors.New("data integrity violation")
)

// External service errors
var (
	ErrPaymentUnavailable      = errors.New("payment provider unavailable")
	ErrPaymentDeclined         = errors.New("payment declined")
	ErrPaymentFailed           = errors.New("payment failed")
	ErrCheckoutNotFound        = errors.New("checkout session not found")
	ErrCheckoutExpired         = errors.New("checkout session expired")
	ErrUnsupportedCurrency     = errors.New("unsupported currency")
	ErrNotificationUnavailable = errors.New("notification provider unavailable")
	ErrNotificationAuth        = errors.New("notification provider rejected credentials")
	ErrInvalidRecipient        = errors.New("invalid notification recipient")
	ErrNotificationRateLimit   = errors.New("notification provider rate limit")
	ErrExternalTimeout         = errors.New("external service timeout")
	ErrExternalClient          = errors.New("external service rejected request")
	ErrExternalServer          = errors.New("external service internal error")
	ErrUnexpectedStatus        = errors.New("external service returned unexpected status")
)

// Manage-booking token errors
var (
	ErrInvalidManageToken  = errors.New("invalid manage-booking token")
	ErrManageTokenMismatch = errors.New("manage-booking token does not match booking")
)

// OptimisticLockError reports a version mismatch on an aggregate save.
// It matches ErrOptimisticLockConflict under errors.Is.
type OptimisticLockError struct {
	AggregateID     string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("optimistic lock conflict on %s: expected version %d, found %d",
		e.AggregateID, e.ExpectedVersion, e.ActualVersion)
}

// Is matches the generic optimistic lock sentinel.
func (e *OptimisticLockError) Is(target error) bool {
	return target == ErrOptimisticLockConflict
}

// PersistenceError wraps a storage failure with a classified kind
// (ErrDuplicateEntity, ErrReferenceNotFound, ErrDataIntegrity or nil for
// unclassified). It matches both ErrPersistenceFailure and its kind under
// errors.Is, and never carries connection strings or credentials.
type PersistenceError struct {
	Op   string
	Kind error
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is matches the generic persistence sentinel and the classified kind.
func (e *PersistenceError) Is(target error) bool {
	if target == ErrPersistenceFailure {
		return true
	}
	return e.Kind != nil && target == e.Kind
}

// Unwrap exposes the underlying driver error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RateLimitError reports a provider rate limit with the advertised backoff.
// It matches ErrNotificationRateLimit under errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Is matches the rate limit sentinel.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrNotificationRateLimit
}

// UnexpectedStatusError reports an HTTP status outside the mapped set.
// It matches ErrUnexpectedStatus under errors.Is.
type UnexpectedStatusError struct {
	Service    string
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s returned unexpected status %d", e.Service, e.StatusCode)
}

// Is matches the unexpected status sentinel.
func (e *UnexpectedStatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}
