package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bakate/aeroreserve/internal/domain"
)

// MockNotificationGateway implements NotificationGateway for development
// and tests. Sends are recorded in memory and deduplicated by ticket
// number, mirroring the idempotency of the REST gateway.
type MockNotificationGateway struct {
	mu       sync.Mutex
	sent     map[string]*SendReceipt
	failWith error
}

// NewMockNotificationGateway creates a new mock notification gateway
func NewMockNotificationGateway() *MockNotificationGateway {
	return &MockNotificationGateway{
		sent: make(map[string]*SendReceipt),
	}
}

// SendTicket records the send and returns a stable receipt per ticket
func (g *MockNotificationGateway) SendTicket(_ context.Context, ticket *domain.Ticket, recipient *Recipient) (*SendReceipt, error) {
	if ticket == nil {
		return nil, fmt.Errorf("ticket is required")
	}
	if recipient == nil || recipient.Email == "" {
		return nil, fmt.Errorf("recipient email is required: %w", domain.ErrInvalidRecipient)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failWith != nil {
		return nil, g.failWith
	}

	if receipt, ok := g.sent[ticket.TicketNumber]; ok {
		return receipt, nil
	}

	receipt := &SendReceipt{MessageID: fmt.Sprintf("mock_msg_%s", uuid.New().String()[:8])}
	g.sent[ticket.TicketNumber] = receipt
	return receipt, nil
}

// Name returns the gateway name
func (g *MockNotificationGateway) Name() string {
	return "mock"
}

// FailWith makes subsequent sends return err; nil restores normal sends.
func (g *MockNotificationGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWith = err
}

// SentCount returns how many distinct tickets were delivered.
func (g *MockNotificationGateway) SentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

var _ NotificationGateway = (*MockNotificationGateway)(nil)
