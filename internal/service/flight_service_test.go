package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/dto"
)

// MockInventoryRepository is a mock implementation of repository.InventoryRepository
type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) Create(ctx context.Context, inventory *domain.FlightInventory) error {
	args := m.Called(ctx, inventory)
	return args.Error(0)
}

func (m *MockInventoryRepository) FindByFlightID(ctx context.Context, flightID string) (*domain.FlightInventory, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlightInventory), args.Error(1)
}

func (m *MockInventoryRepository) Save(ctx context.Context, inventory *domain.FlightInventory) error {
	args := m.Called(ctx, inventory)
	return args.Error(0)
}

func (m *MockInventoryRepository) FindAvailable(ctx context.Context, cabin domain.CabinClass, minSeats int) ([]*domain.FlightInventory, error) {
	args := m.Called(ctx, cabin, minSeats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FlightInventory), args.Error(1)
}

// MockAvailabilityReader is a mock implementation of AvailabilityReader
type MockAvailabilityReader struct {
	mock.Mock
}

func (m *MockAvailabilityReader) GetAvailability(ctx context.Context, flightID string) (map[domain.CabinClass]*domain.SeatBucket, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.CabinClass]*domain.SeatBucket), args.Error(1)
}

func testInventory(t *testing.T, flightID string) *domain.FlightInventory {
	t.Helper()
	price := servicePrice(t)
	economy, err := domain.NewSeatBucket(100, price)
	require.NoError(t, err)
	inventory, err := domain.NewFlightInventory(flightID, map[domain.CabinClass]domain.SeatBucket{
		domain.CabinEconomy: economy,
	})
	require.NoError(t, err)
	return inventory
}

func TestFlightService_CreateFlight(t *testing.T) {
	inventories := new(MockInventoryRepository)
	service := NewFlightService(inventories, new(MockAvailabilityReader))

	inventories.On("Create", mock.Anything, mock.MatchedBy(func(inv *domain.FlightInventory) bool {
		bucket, ok := inv.Availability[domain.CabinEconomy]
		return inv.FlightID == "FL-123" && ok && bucket.Capacity == 180 && bucket.Available == 180
	})).Return(nil)

	response, err := service.CreateFlight(context.Background(), &dto.CreateFlightRequest{
		FlightID: "FL-123",
		Cabins: []dto.CabinSeedRequest{
			{Cabin: "economy", Capacity: 180, Price: 12500, Currency: "eur"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "FL-123", response.FlightID)
	assert.Equal(t, 180, response.Cabins["ECONOMY"].Available)
	inventories.AssertExpectations(t)
}

func TestFlightService_CreateFlight_DuplicatePassesThrough(t *testing.T) {
	inventories := new(MockInventoryRepository)
	service := NewFlightService(inventories, new(MockAvailabilityReader))

	inventories.On("Create", mock.Anything, mock.Anything).Return(&domain.PersistenceError{
		Op:   "insert flight inventory",
		Kind: domain.ErrDuplicateEntity,
	})

	response, err := service.CreateFlight(context.Background(), &dto.CreateFlightRequest{
		FlightID: "FL-123",
		Cabins: []dto.CabinSeedRequest{
			{Cabin: "economy", Capacity: 180, Price: 12500, Currency: "EUR"},
		},
	})

	assert.ErrorIs(t, err, domain.ErrDuplicateEntity)
	assert.Nil(t, response)
}

func TestFlightService_CreateFlight_InvalidCabin(t *testing.T) {
	inventories := new(MockInventoryRepository)
	service := NewFlightService(inventories, new(MockAvailabilityReader))

	response, err := service.CreateFlight(context.Background(), &dto.CreateFlightRequest{
		FlightID: "FL-123",
		Cabins: []dto.CabinSeedRequest{
			{Cabin: "premium", Capacity: 20, Price: 45000, Currency: "EUR"},
		},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidSegment)
	assert.Nil(t, response)
	inventories.AssertNumberOfCalls(t, "Create", 0)
}

func TestFlightService_GetAvailability(t *testing.T) {
	reader := new(MockAvailabilityReader)
	service := NewFlightService(new(MockInventoryRepository), reader)

	price := servicePrice(t)
	reader.On("GetAvailability", mock.Anything, "FL-123").Return(map[domain.CabinClass]*domain.SeatBucket{
		domain.CabinEconomy: {Capacity: 180, Available: 42, Price: price},
	}, nil)

	response, err := service.GetAvailability(context.Background(), "FL-123")

	require.NoError(t, err)
	assert.Equal(t, "FL-123", response.FlightID)
	economy := response.Cabins["ECONOMY"]
	assert.Equal(t, 180, economy.Capacity)
	assert.Equal(t, 42, economy.Available)
}

func TestFlightService_GetAvailability_FlightNotFound(t *testing.T) {
	reader := new(MockAvailabilityReader)
	service := NewFlightService(new(MockInventoryRepository), reader)

	reader.On("GetAvailability", mock.Anything, "FL-404").Return(nil, domain.ErrFlightNotFound)

	response, err := service.GetAvailability(context.Background(), "FL-404")

	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
	assert.Nil(t, response)
}

func TestFlightService_GetAvailability_MissingFlightID(t *testing.T) {
	reader := new(MockAvailabilityReader)
	service := NewFlightService(new(MockInventoryRepository), reader)

	response, err := service.GetAvailability(context.Background(), "")

	assert.ErrorIs(t, err, domain.ErrInvalidSegment)
	assert.Nil(t, response)
	reader.AssertNumberOfCalls(t, "GetAvailability", 0)
}

func TestFlightService_FindAvailableFlights(t *testing.T) {
	inventories := new(MockInventoryRepository)
	service := NewFlightService(inventories, new(MockAvailabilityReader))

	inventories.On("FindAvailable", mock.Anything, domain.CabinEconomy, 2).Return([]*domain.FlightInventory{
		testInventory(t, "FL-123"),
		testInventory(t, "FL-456"),
	}, nil)

	responses, err := service.FindAvailableFlights(context.Background(), "economy", 2)

	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "FL-123", responses[0].FlightID)
	assert.Equal(t, "FL-456", responses[1].FlightID)
	inventories.AssertExpectations(t)
}

func TestFlightService_FindAvailableFlights_FloorsMinSeats(t *testing.T) {
	inventories := new(MockInventoryRepository)
	service := NewFlightService(inventories, new(MockAvailabilityReader))

	inventories.On("FindAvailable", mock.Anything, domain.CabinBusiness, 1).Return([]*domain.FlightInventory{}, nil)

	responses, err := service.FindAvailableFlights(context.Background(), "business", 0)

	require.NoError(t, err)
	assert.Empty(t, responses)
	inventories.AssertExpectations(t)
}

func TestFlightService_FindAvailableFlights_InvalidCabin(t *testing.T) {
	inventories := new(MockInventoryRepository)
	service := NewFlightService(inventories, new(MockAvailabilityReader))

	responses, err := service.FindAvailableFlights(context.Background(), "coach", 1)

	assert.ErrorIs(t, err, domain.ErrInvalidSegment)
	assert.Nil(t, responses)
	inventories.AssertNumberOfCalls(t, "FindAvailable", 0)
}
