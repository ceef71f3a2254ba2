package dto

import (
	"strings"

	"github.com/bakate/aeroreserve/internal/domain"
)

// CreateFlightRequest seeds a flight's sellable inventory
type CreateFlightRequest struct {
	FlightID string             `json:"flight_id" binding:"required"`
	Cabins   []CabinSeedRequest `json:"cabins" binding:"required,min=1,dive"`
}

// CabinSeedRequest is one cabin's capacity and fare
type CabinSeedRequest struct {
	Cabin    string `json:"cabin" binding:"required"`
	Capacity int    `json:"capacity" binding:"required,min=1"`
	Price    int64  `json:"price" binding:"min=0"` // minor units
	Currency string `json:"currency" binding:"required"`
}

// ToDomain converts the request to a FlightInventory aggregate
func (r CreateFlightRequest) ToDomain() (*domain.FlightInventory, error) {
	buckets := make(map[domain.CabinClass]domain.SeatBucket, len(r.Cabins))
	for _, seed := range r.Cabins {
		cabin, err := domain.ParseCabinClass(seed.Cabin)
		if err != nil {
			return nil, err
		}
		price, err := domain.NewMoney(seed.Price, domain.Currency(strings.ToUpper(strings.TrimSpace(seed.Currency))))
		if err != nil {
			return nil, err
		}
		bucket, err := domain.NewSeatBucket(seed.Capacity, price)
		if err != nil {
			return nil, err
		}
		buckets[cabin] = bucket
	}

	return domain.NewFlightInventory(r.FlightID, buckets)
}

// AvailabilityResponse is a flight's per-cabin seat availability
type AvailabilityResponse struct {
	FlightID string                               `json:"flight_id"`
	Cabins   map[string]CabinAvailabilityResponse `json:"cabins"`
}

// CabinAvailabilityResponse is one cabin's open seats and fare
type CabinAvailabilityResponse struct {
	Capacity  int          `json:"capacity"`
	Available int          `json:"available"`
	Price     domain.Money `json:"price"`
}

// FromAvailability converts a per-cabin bucket map to a response
func FromAvailability(flightID string, buckets map[domain.CabinClass]*domain.SeatBucket) *AvailabilityResponse {
	cabins := make(map[string]CabinAvailabilityResponse, len(buckets))
	for cabin, bucket := range buckets {
		cabins[string(cabin)] = CabinAvailabilityResponse{
			Capacity:  bucket.Capacity,
			Available: bucket.Available,
			Price:     bucket.Price,
		}
	}

	return &AvailabilityResponse{
		FlightID: flightID,
		Cabins:   cabins,
	}
}

// FromInventory converts a FlightInventory aggregate to a response
func FromInventory(inventory *domain.FlightInventory) *AvailabilityResponse {
	return FromAvailability(inventory.FlightID, inventory.Availability)
}
