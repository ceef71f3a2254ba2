package domain

import (
	"fmt"
	"strings"
	"time"
)

// CabinClass identifies a bookable cabin on a flight.
type CabinClass string

const (
	CabinEconomy  CabinClass = "ECONOMY"
	CabinBusiness CabinClass = "BUSINESS"
	CabinFirst    CabinClass = "FIRST"
)

// IsValid checks if the cabin is a known CabinClass
func (c CabinClass) IsValid() bool {
	switch c {
	case CabinEconomy, CabinBusiness, CabinFirst:
		return true
	}
	return false
}

// String returns the string representation of CabinClass
func (c CabinClass) String() string {
	return string(c)
}

// ParseCabinClass normalizes and validates a cabin name.
func ParseCabinClass(raw string) (CabinClass, error) {
	cabin := CabinClass(strings.ToUpper(strings.TrimSpace(raw)))
	if !cabin.IsValid() {
		return "", fmt.Errorf("cabin %q: %w", raw, ErrInvalidSegment)
	}
	return cabin, nil
}

// SeatBucket tracks one cabin of one flight: how many seats exist, how
// many remain, and the current unit price.
type SeatBucket struct {
	Capacity  int   `json:"capacity"`
	Available int   `json:"available"`
	Price     Money `json:"price"`
}

// NewSeatBucket builds a fully available bucket of the given capacity.
func NewSeatBucket(capacity int, price Money) (SeatBucket, error) {
	if capacity < 0 {
		return SeatBucket{}, fmt.Errorf("capacity %d: %w", capacity, ErrInvalidAmount)
	}
	return SeatBucket{Capacity: capacity, Available: capacity, Price: price}, nil
}

// FlightInventory is the consistency boundary for seat availability on a
// single flight. All holds and releases go through its methods, which keep
// 0 <= available <= capacity per cabin and stage one event per mutation.
type FlightInventory struct {
	FlightID     string                     `json:"flight_id"`
	Availability map[CabinClass]*SeatBucket `json:"availability"`
	Version      int64                      `json:"version"`
	LastUpdated  time.Time                  `json:"last_updated"`

	pendingEvents []DomainEvent
}

// NewFlightInventory builds an unsaved aggregate (version zero) with the
// given cabin buckets.
func NewFlightInventory(flightID string, buckets map[CabinClass]SeatBucket) (*FlightInventory, error) {
	if strings.TrimSpace(flightID) == "" {
		return nil, fmt.Errorf("empty flight id: %w", ErrFlightNotFound)
	}
	if len(buckets) == 0 {
		return nil, fmt.Errorf("flight %s has no cabins: %w", flightID, ErrInvalidAmount)
	}

	availability := make(map[CabinClass]*SeatBucket, len(buckets))
	for cabin, bucket := range buckets {
		if !cabin.IsValid() {
			return nil, fmt.Errorf("cabin %q: %w", cabin, ErrInvalidSegment)
		}
		if bucket.Available < 0 || bucket.Available > bucket.Capacity {
			return nil, fmt.Errorf("cabin %s available %d of %d: %w",
				cabin, bucket.Available, bucket.Capacity, ErrInvalidAmount)
		}
		b := bucket
		availability[cabin] = &b
	}

	return &FlightInventory{
		FlightID:     flightID,
		Availability: availability,
		Version:      0,
		LastUpdated:  time.Now(),
	}, nil
}

// Bucket returns a copy of the cabin bucket.
func (f *FlightInventory) Bucket(cabin CabinClass) (SeatBucket, error) {
	b, ok := f.Availability[cabin]
	if !ok {
		return SeatBucket{}, fmt.Errorf("flight %s has no %s cabin: %w", f.FlightID, cabin, ErrFlightNotFound)
	}
	return *b, nil
}

// AvailableSeats returns the remaining seats in a cabin.
func (f *FlightInventory) AvailableSeats(cabin CabinClass) (int, error) {
	b, err := f.Bucket(cabin)
	if err != nil {
		return 0, err
	}
	return b.Available, nil
}

// Hold takes seats from a cabin. It fails without mutating when the count
// is invalid, the cabin is unknown, or the cabin cannot cover the count.
func (f *FlightInventory) Hold(cabin CabinClass, seats int) error {
	if seats < 1 {
		return fmt.Errorf("seat count %d: %w", seats, ErrInvalidAmount)
	}
	b, ok := f.Availability[cabin]
	if !ok {
		return fmt.Errorf("flight %s has no %s cabin: %w", f.FlightID, cabin, ErrFlightNotFound)
	}
	if b.Available < seats {
		return fmt.Errorf("flight %s %s has %d of %d requested seats: %w",
			f.FlightID, cabin, b.Available, seats, ErrFlightFull)
	}

	now := time.Now()
	b.Available -= seats
	f.LastUpdated = now
	f.pendingEvents = append(f.pendingEvents, SeatsHeldEvent{
		FlightID:  f.FlightID,
		Cabin:     cabin,
		Seats:     seats,
		Available: b.Available,
		HeldAt:    now,
	})
	return nil
}

// Release returns seats to a cabin. It fails without mutating when the
// count is invalid, the cabin is unknown, or the release would push
// availability past capacity.
func (f *FlightInventory) Release(cabin CabinClass, seats int) error {
	if seats < 1 {
		return fmt.Errorf("seat count %d: %w", seats, ErrInvalidAmount)
	}
	b, ok := f.Availability[cabin]
	if !ok {
		return fmt.Errorf("flight %s has no %s cabin: %w", f.FlightID, cabin, ErrFlightNotFound)
	}
	if b.Available+seats > b.Capacity {
		return fmt.Errorf("flight %s %s release of %d would exceed capacity %d: %w",
			f.FlightID, cabin, seats, b.Capacity, ErrOverCapacity)
	}

	now := time.Now()
	b.Available += seats
	f.LastUpdated = now
	f.pendingEvents = append(f.pendingEvents, SeatsReleasedEvent{
		FlightID:   f.FlightID,
		Cabin:      cabin,
		Seats:      seats,
		Available:  b.Available,
		ReleasedAt: now,
	})
	return nil
}

// Snapshot returns a deep copy of the availability state without staged
// events, safe to hand to callers while the original keeps mutating.
func (f *FlightInventory) Snapshot() *FlightInventory {
	availability := make(map[CabinClass]*SeatBucket, len(f.Availability))
	for cabin, bucket := range f.Availability {
		b := *bucket
		availability[cabin] = &b
	}
	return &FlightInventory{
		FlightID:     f.FlightID,
		Availability: availability,
		Version:      f.Version,
		LastUpdated:  f.LastUpdated,
	}
}

// PendingEvents returns the events staged since the last save.
func (f *FlightInventory) PendingEvents() []DomainEvent {
	return f.pendingEvents
}

// ClearPendingEvents drops staged events once they are written to the outbox.
func (f *FlightInventory) ClearPendingEvents() {
	f.pendingEvents = nil
}
