package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bakate/aeroreserve/internal/domain"
)

// MockPaymentGateway implements PaymentGateway for development and tests.
// Checkouts report pending for a configurable number of polls, then settle
// on the configured outcome.
type MockPaymentGateway struct {
	config *MockPaymentGatewayConfig

	mu       sync.Mutex
	sessions map[string]*mockCheckout
	byRef    map[string]string
}

// MockPaymentGatewayConfig holds configuration for the mock gateway
type MockPaymentGatewayConfig struct {
	// Outcome is the terminal state every checkout settles on
	Outcome CheckoutState
	// PendingPolls is how many status calls report pending before the outcome
	PendingPolls int
	// FailureReason accompanies a failed or declined outcome
	FailureReason string
	// CheckoutBaseURL prefixes generated checkout URLs
	CheckoutBaseURL string
	// SessionTTL is how long a session stays payable
	SessionTTL time.Duration
}

// DefaultMockPaymentGatewayConfig returns default configuration
func DefaultMockPaymentGatewayConfig() *MockPaymentGatewayConfig {
	return &MockPaymentGatewayConfig{
		Outcome:         CheckoutStateCompleted,
		PendingPolls:    0,
		CheckoutBaseURL: "https://pay.example.test/checkout",
		SessionTTL:      30 * time.Minute,
	}
}

type mockCheckout struct {
	session *CheckoutSession
	params  CreateCheckoutParams
	polls   int
}

// NewMockPaymentGateway creates a new mock gateway
func NewMockPaymentGateway(config *MockPaymentGatewayConfig) *MockPaymentGateway {
	if config == nil {
		config = DefaultMockPaymentGatewayConfig()
	}
	if config.Outcome == "" {
		config.Outcome = CheckoutStateCompleted
	}
	if config.CheckoutBaseURL == "" {
		config.CheckoutBaseURL = "https://pay.example.test/checkout"
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 30 * time.Minute
	}

	return &MockPaymentGateway{
		config:   config,
		sessions: make(map[string]*mockCheckout),
		byRef:    make(map[string]string),
	}
}

// CreateCheckout opens a mock checkout session. Calls repeating a booking
// reference return the session created the first time.
func (g *MockPaymentGateway) CreateCheckout(_ context.Context, p *CreateCheckoutParams) (*CheckoutSession, error) {
	if p == nil {
		return nil, fmt.Errorf("checkout params are required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.byRef[p.BookingReference]; ok {
		return g.sessions[id].session, nil
	}

	id := fmt.Sprintf("mock_cs_%s", uuid.New().String()[:8])
	expiresAt := p.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(g.config.SessionTTL)
	}

	checkout := &mockCheckout{
		session: &CheckoutSession{
			ID:          id,
			CheckoutURL: fmt.Sprintf("%s/%s", g.config.CheckoutBaseURL, id),
			ExpiresAt:   expiresAt,
		},
		params: *p,
	}
	g.sessions[id] = checkout
	g.byRef[p.BookingReference] = id

	return checkout.session, nil
}

// GetCheckoutStatus reports pending for the configured number of polls,
// then the configured outcome.
func (g *MockPaymentGateway) GetCheckoutStatus(_ context.Context, checkoutID string) (*CheckoutStatus, error) {
	if checkoutID == "" {
		return nil, fmt.Errorf("checkout ID is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	checkout, ok := g.sessions[checkoutID]
	if !ok {
		return nil, fmt.Errorf("checkout %s: %w", checkoutID, domain.ErrCheckoutNotFound)
	}

	checkout.polls++
	if checkout.polls <= g.config.PendingPolls {
		return &CheckoutStatus{ID: checkoutID, State: CheckoutStatePending}, nil
	}

	status := &CheckoutStatus{ID: checkoutID, State: g.config.Outcome}
	switch g.config.Outcome {
	case CheckoutStateCompleted:
		status.Confirmation = &PaymentConfirmation{
			CheckoutID:    checkoutID,
			TransactionID: fmt.Sprintf("mock_txn_%s", checkoutID),
			PaidAt:        time.Now(),
			Amount:        checkout.params.Amount,
		}
	case CheckoutStateFailed, CheckoutStateDeclined:
		status.FailureReason = g.config.FailureReason
		if status.FailureReason == "" {
			status.FailureReason = "payment_failed"
		}
	}

	return status, nil
}

// Name returns the gateway name
func (g *MockPaymentGateway) Name() string {
	return "mock"
}

// SetOutcome changes the terminal state future polls settle on.
func (g *MockPaymentGateway) SetOutcome(outcome CheckoutState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.config.Outcome = outcome
}

// SessionCount returns how many distinct checkouts were created.
func (g *MockPaymentGateway) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

var _ PaymentGateway = (*MockPaymentGateway)(nil)
