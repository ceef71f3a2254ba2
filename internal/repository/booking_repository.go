package repository

import (
	"context"
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
)

// BookingRepository defines the interface for booking data access
type BookingRepository interface {
	// Save persists the aggregate under its version guard: version zero
	// inserts, any other version compare-and-swaps. Passenger and segment
	// rows are replaced wholesale and staged events go to the outbox in
	// the same transaction. On success the aggregate version is
	// incremented and staged events are cleared.
	Save(ctx context.Context, booking *domain.Booking) error

	// FindByID retrieves a booking with its passengers and segments,
	// (nil, nil) on miss
	FindByID(ctx context.Context, id string) (*domain.Booking, error)

	// FindByPnr retrieves the booking currently holding the record
	// locator, (nil, nil) when no non-terminal booking uses it
	FindByPnr(ctx context.Context, pnr domain.PnrCode) (*domain.Booking, error)

	// FindExpired pages held bookings whose hold lapsed before the cutoff
	FindExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Booking, error)

	// FindByPassengerID lists bookings naming the passenger, newest first
	FindByPassengerID(ctx context.Context, passengerID string) ([]*domain.Booking, error)
}
