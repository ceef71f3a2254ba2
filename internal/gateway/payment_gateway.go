package gateway

import (
	"context"
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
)

// PaymentGateway defines the interface for checkout processing
type PaymentGateway interface {
	// CreateCheckout opens a checkout session for a booking. Implementations
	// must be idempotent on params.BookingReference: repeating the call for
	// the same reference returns the already-created session.
	CreateCheckout(ctx context.Context, params *CreateCheckoutParams) (*CheckoutSession, error)

	// GetCheckoutStatus retrieves the current state of a checkout session
	GetCheckoutStatus(ctx context.Context, checkoutID string) (*CheckoutStatus, error)

	// Name returns the gateway name
	Name() string
}

// CheckoutState enumerates the observable states of a checkout session.
type CheckoutState string

const (
	CheckoutStatePending   CheckoutState = "pending"
	CheckoutStateCompleted CheckoutState = "completed"
	CheckoutStateExpired   CheckoutState = "expired"
	CheckoutStateFailed    CheckoutState = "failed"
	CheckoutStateDeclined  CheckoutState = "declined"
)

// Terminal reports whether the state can no longer change.
func (s CheckoutState) Terminal() bool {
	switch s {
	case CheckoutStateCompleted, CheckoutStateExpired, CheckoutStateFailed, CheckoutStateDeclined:
		return true
	default:
		return false
	}
}

// CreateCheckoutParams carries everything needed to open a checkout session
type CreateCheckoutParams struct {
	Amount        domain.Money
	CustomerEmail string
	// CustomerID is an optional external customer reference
	CustomerID string
	// BookingReference is the booking PNR and the idempotency anchor
	BookingReference string
	BookingID        string
	SuccessURL       string
	// CancelURL is optional
	CancelURL   string
	Description string
	// ExpiresAt bounds how long the session stays payable; zero lets the
	// provider pick its default
	ExpiresAt time.Time
}

// CheckoutSession is a freshly created checkout
type CheckoutSession struct {
	ID          string
	CheckoutURL string
	ExpiresAt   time.Time
}

// PaymentConfirmation carries the proof of a completed checkout
type PaymentConfirmation struct {
	CheckoutID    string
	TransactionID string
	PaidAt        time.Time
	Amount        domain.Money
}

// CheckoutStatus is the polled state of a checkout session
type CheckoutStatus struct {
	ID    string
	State CheckoutState
	// Confirmation is set when State is CheckoutStateCompleted
	Confirmation *PaymentConfirmation
	// FailureReason is set when State is CheckoutStateFailed or
	// CheckoutStateDeclined
	FailureReason string
}
