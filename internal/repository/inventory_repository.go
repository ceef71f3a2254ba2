package repository

import (
	"context"

	"github.com/bakate/aeroreserve/internal/domain"
)

// InventoryRepository defines the interface for flight inventory data access
type InventoryRepository interface {
	// Create inserts a new flight inventory aggregate
	Create(ctx context.Context, inventory *domain.FlightInventory) error

	// FindByFlightID retrieves an inventory by flight ID, (nil, nil) on miss
	FindByFlightID(ctx context.Context, flightID string) (*domain.FlightInventory, error)

	// Save persists the aggregate under its version guard, appending staged
	// events to the outbox in the same transaction. On success the aggregate
	// version is incremented and staged events are cleared.
	Save(ctx context.Context, inventory *domain.FlightInventory) error

	// FindAvailable lists flights with at least minSeats open in the cabin
	FindAvailable(ctx context.Context, cabin domain.CabinClass, minSeats int) ([]*domain.FlightInventory, error)
}
