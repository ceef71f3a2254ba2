package repository

import (
	"context"

	"github.com/bakate/aeroreserve/internal/domain"
)

// AvailabilityCache keeps a fast-read copy of per-flight seat
// availability. The inventory engine writes through on every persisted
// snapshot, so reads can serve availability queries without touching
// PostgreSQL. The cache is advisory: callers fall back to the
// repository on a miss or error.
type AvailabilityCache interface {
	// Get returns the cached availability for a flight, or (nil, nil)
	// on a cache miss.
	Get(ctx context.Context, flightID string) (map[domain.CabinClass]*domain.SeatBucket, error)

	// Set stores the availability snapshot for a flight.
	Set(ctx context.Context, flightID string, availability map[domain.CabinClass]*domain.SeatBucket) error

	// Invalidate removes the cached snapshot for a flight.
	Invalidate(ctx context.Context, flightID string) error
}
