package gateway

import (
	"context"

	"github.com/bakate/aeroreserve/internal/domain"
)

// NotificationGateway defines the interface for passenger-facing messages
type NotificationGateway interface {
	// SendTicket delivers an issued ticket to the passenger
	SendTicket(ctx context.Context, ticket *domain.Ticket, recipient *Recipient) (*SendReceipt, error)

	// Name returns the gateway name
	Name() string
}

// Recipient identifies where a message goes
type Recipient struct {
	Email string
	// Name is optional
	Name string
}

// SendReceipt is the provider's acknowledgement of an accepted message
type SendReceipt struct {
	MessageID string
}
