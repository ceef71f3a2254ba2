package repository

import (
	"context"

	"github.com/bakate/aeroreserve/internal/domain"
)

// TicketRepository provides access to issued tickets and their flight
// coupons.
type TicketRepository interface {
	// Save inserts the ticket together with its coupons and stages the
	// ticket's pending events in the outbox, all inside one transaction.
	// Tickets are immutable once issued, so Save never updates. Inserting
	// a second ticket for the same booking fails with a PersistenceError
	// wrapping ErrDuplicateEntity.
	Save(ctx context.Context, ticket *domain.Ticket) error

	// FindByBookingID returns the ticket issued for the given booking, or
	// (nil, nil) when no ticket has been issued yet.
	FindByBookingID(ctx context.Context, bookingID string) (*domain.Ticket, error)

	// FindByTicketNumber returns the ticket with the given document
	// number, or (nil, nil) when it does not exist.
	FindByTicketNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error)
}
