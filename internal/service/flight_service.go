package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/dto"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/pkg/telemetry"
)

// AvailabilityReader serves cabin availability reads. Satisfied by
// inventory.Engine, which answers from its cache when it can.
type AvailabilityReader interface {
	GetAvailability(ctx context.Context, flightID string) (map[domain.CabinClass]*domain.SeatBucket, error)
}

// FlightService defines the interface for flight inventory operations
type FlightService interface {
	// CreateFlight seeds a new flight's sellable inventory
	CreateFlight(ctx context.Context, req *dto.CreateFlightRequest) (*dto.AvailabilityResponse, error)

	// GetAvailability returns per-cabin seat counts for one flight
	GetAvailability(ctx context.Context, flightID string) (*dto.AvailabilityResponse, error)

	// FindAvailableFlights lists flights with open seats in a cabin
	FindAvailableFlights(ctx context.Context, cabin string, minSeats int) ([]*dto.AvailabilityResponse, error)
}

// flightService implements FlightService
type flightService struct {
	inventories repository.InventoryRepository
	reader      AvailabilityReader
}

// NewFlightService creates a new flight service
func NewFlightService(inventories repository.InventoryRepository, reader AvailabilityReader) FlightService {
	return &flightService{
		inventories: inventories,
		reader:      reader,
	}
}

// CreateFlight seeds a new flight's sellable inventory
func (s *flightService) CreateFlight(ctx context.Context, req *dto.CreateFlightRequest) (*dto.AvailabilityResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.flight.create")
	defer span.End()

	if req == nil {
		span.SetStatus(codes.Error, "missing request")
		return nil, fmt.Errorf("request body is required: %w", domain.ErrInvalidSegment)
	}

	span.SetAttributes(attribute.String("flight_id", req.FlightID))

	inventory, err := req.ToDomain()
	if err != nil {
		span.SetStatus(codes.Error, "invalid inventory")
		return nil, err
	}

	if err := s.inventories.Create(ctx, inventory); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, fmt.Errorf("create flight %s: %w", inventory.FlightID, err)
	}

	return dto.FromInventory(inventory), nil
}

// GetAvailability returns per-cabin seat counts for one flight
func (s *flightService) GetAvailability(ctx context.Context, flightID string) (*dto.AvailabilityResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.flight.availability")
	defer span.End()

	span.SetAttributes(attribute.String("flight_id", flightID))

	if flightID == "" {
		span.SetStatus(codes.Error, "missing flight id")
		return nil, fmt.Errorf("flight id is required: %w", domain.ErrInvalidSegment)
	}

	buckets, err := s.reader.GetAvailability(ctx, flightID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "availability lookup failed")
		return nil, err
	}

	return dto.FromAvailability(flightID, buckets), nil
}

// FindAvailableFlights lists flights with open seats in a cabin
func (s *flightService) FindAvailableFlights(ctx context.Context, cabin string, minSeats int) ([]*dto.AvailabilityResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.flight.find_available")
	defer span.End()

	cabinClass, err := domain.ParseCabinClass(cabin)
	if err != nil {
		span.SetStatus(codes.Error, "invalid cabin")
		return nil, err
	}
	if minSeats < 1 {
		minSeats = 1
	}

	span.SetAttributes(
		attribute.String("cabin", string(cabinClass)),
		attribute.Int("min_seats", minSeats),
	)

	inventories, err := s.inventories.FindAvailable(ctx, cabinClass, minSeats)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("find available flights: %w", err)
	}

	responses := make([]*dto.AvailabilityResponse, 0, len(inventories))
	for _, inventory := range inventories {
		responses = append(responses, dto.FromInventory(inventory))
	}
	return responses, nil
}
