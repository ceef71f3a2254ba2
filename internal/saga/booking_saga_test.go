package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/gateway"
	inv "github.com/bakate/aeroreserve/internal/inventory"
)

// MockSeatInventory is a mock implementation of SeatInventory
type MockSeatInventory struct {
	mock.Mock
}

func (m *MockSeatInventory) HoldSeats(ctx context.Context, flightID string, cabin domain.CabinClass, seats int) (*inv.HoldResult, error) {
	args := m.Called(ctx, flightID, cabin, seats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inv.HoldResult), args.Error(1)
}

func (m *MockSeatInventory) ReleaseSeats(ctx context.Context, flightID string, cabin domain.CabinClass, seats int) (*inv.ReleaseResult, error) {
	args := m.Called(ctx, flightID, cabin, seats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inv.ReleaseResult), args.Error(1)
}

// MockBookingRepository is a mock implementation of repository.BookingRepository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) FindByPnr(ctx context.Context, pnr domain.PnrCode) (*domain.Booking, error) {
	args := m.Called(ctx, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) FindExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Booking, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) FindByPassengerID(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	args := m.Called(ctx, passengerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Booking), args.Error(1)
}

// MockTicketRepository is a mock implementation of repository.TicketRepository
type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) Save(ctx context.Context, ticket *domain.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func (m *MockTicketRepository) FindByBookingID(ctx context.Context, bookingID string) (*domain.Ticket, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) FindByTicketNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

// stubTransactionManager runs the function directly, standing in for a
// real transaction scope.
type stubTransactionManager struct{}

func (stubTransactionManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// eventRecorder captures the events staged on a booking at save time and
// mimics the repository contract: events cleared, version bumped.
type eventRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *eventRecorder) observe(b *domain.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range b.PendingEvents() {
		r.types = append(r.types, event.EventType())
	}
	b.ClearPendingEvents()
	b.Version++
}

func (r *eventRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func testPrice(t *testing.T) domain.Money {
	t.Helper()
	price, err := domain.NewMoney(10000, domain.CurrencyEUR)
	if err != nil {
		t.Fatalf("Failed to create price: %v", err)
	}
	return price
}

func testAvailability(t *testing.T) map[domain.CabinClass]*domain.SeatBucket {
	t.Helper()
	bucket, err := domain.NewSeatBucket(100, testPrice(t))
	if err != nil {
		t.Fatalf("Failed to create bucket: %v", err)
	}
	bucket.Available = 5
	return map[domain.CabinClass]*domain.SeatBucket{domain.CabinEconomy: &bucket}
}

// testHoldResult is the outcome the engine hands back for a one-seat hold.
func testHoldResult(t *testing.T) *inv.HoldResult {
	t.Helper()
	price := testPrice(t)
	return &inv.HoldResult{
		Availability:  testAvailability(t),
		UnitPrice:     price,
		TotalPrice:    price,
		SeatsHeld:     1,
		HoldExpiresAt: time.Now().Add(30 * time.Minute),
	}
}

func testCommand() *BookFlightCommand {
	return &BookFlightCommand{
		FlightID: "FL-CONC-1",
		Cabin:    domain.CabinEconomy,
		Passenger: domain.Passenger{
			FirstName: "Jonas",
			LastName:  "Verne",
			Gender:    domain.GenderMale,
			Type:      domain.PassengerTypeAdult,
		},
		ContactEmail: "jonas@example.com",
		SeatNumber:   "12A",
		SuccessURL:   "https://aeroreserve.test/success",
	}
}

// heldTestBooking builds a held booking as it would come back from the
// repository: version persisted, no staged events.
func heldTestBooking(t *testing.T, id string) *domain.Booking {
	t.Helper()

	pnr, err := domain.GeneratePnrCode()
	if err != nil {
		t.Fatalf("Failed to generate PNR: %v", err)
	}
	booking, err := domain.NewBooking(
		id,
		pnr,
		"jonas@example.com",
		[]domain.Passenger{{
			ID:        uuid.New().String(),
			FirstName: "Jonas",
			LastName:  "Verne",
			Type:      domain.PassengerTypeAdult,
		}},
		[]domain.Segment{{
			ID:         uuid.New().String(),
			FlightID:   "FL-CONC-1",
			Cabin:      domain.CabinEconomy,
			Price:      testPrice(t),
			SeatNumber: "12A",
		}},
		30*time.Minute,
	)
	if err != nil {
		t.Fatalf("Failed to create booking: %v", err)
	}
	booking.ClearPendingEvents()
	booking.Version = 1
	return booking
}

func fastSagaConfig() *BookingSagaConfig {
	return &BookingSagaConfig{
		CarrierCode:        "731",
		PnrMaxAttempts:     100,
		ConfirmMaxRetries:  3,
		HoldDuration:       30 * time.Minute,
		PaymentTimeout:     2 * time.Second,
		PaymentMaxAttempts: 1,
		PollInterval:       time.Millisecond,
		PollTimeout:        2 * time.Second,
		NotifyTimeout:      time.Second,
		NotifyMaxAttempts:  1,
	}
}

func TestDefaultBookingSagaConfig(t *testing.T) {
	cfg := DefaultBookingSagaConfig()

	assert.Equal(t, "731", cfg.CarrierCode)
	assert.Equal(t, 100, cfg.PnrMaxAttempts)
	assert.Equal(t, 3, cfg.ConfirmMaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.HoldDuration)
	assert.Equal(t, 30*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, 3, cfg.PaymentMaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.PollTimeout)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)
}

func TestBookFlightCommand_Validate(t *testing.T) {
	valid := testCommand()
	assert.NoError(t, valid.Validate())

	missingFlight := testCommand()
	missingFlight.FlightID = " "
	assert.ErrorIs(t, missingFlight.Validate(), domain.ErrInvalidSegment)

	badCabin := testCommand()
	badCabin.Cabin = "PREMIUM"
	assert.ErrorIs(t, badCabin.Validate(), domain.ErrInvalidSegment)

	missingEmail := testCommand()
	missingEmail.ContactEmail = ""
	assert.ErrorIs(t, missingEmail.Validate(), domain.ErrInvalidPassenger)
}

func TestBookingSaga_BookFlight_PolledToConfirmation(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()
	recorder := &eventRecorder{}

	inventory.On("HoldSeats", mock.Anything, "FL-CONC-1", domain.CabinEconomy, 1).Return(testHoldResult(t), nil)
	bookings.On("FindByPnr", mock.Anything, mock.Anything).Return(nil, nil)
	bookings.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorder.observe(args.Get(1).(*domain.Booking))
	}).Return(nil)
	tickets.On("FindByBookingID", mock.Anything, mock.Anything).Return(nil, nil)
	tickets.On("Save", mock.Anything, mock.Anything).Return(nil)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	result, err := saga.BookFlight(context.Background(), testCommand())

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.True(t, result.Booking.IsConfirmed())
	assert.NotEmpty(t, result.CheckoutURL)
	assert.NotEmpty(t, result.Booking.PaymentTransactionID)
	assert.Len(t, string(result.Booking.PnrCode), 6)
	assert.Equal(t, []string{domain.EventTypeBookingCreated, domain.EventTypeBookingConfirmed}, recorder.recorded())
	assert.Equal(t, 1, notifier.SentCount())
	tickets.AssertNumberOfCalls(t, "Save", 1)
	inventory.AssertNumberOfCalls(t, "ReleaseSeats", 0)
}

func TestBookingSaga_BookFlight_WebhookMode(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()
	recorder := &eventRecorder{}

	inventory.On("HoldSeats", mock.Anything, "FL-CONC-1", domain.CabinEconomy, 1).Return(testHoldResult(t), nil)
	bookings.On("FindByPnr", mock.Anything, mock.Anything).Return(nil, nil)
	bookings.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorder.observe(args.Get(1).(*domain.Booking))
	}).Return(nil)

	cfg := fastSagaConfig()
	cfg.PollTimeout = 0
	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, cfg)

	result, err := saga.BookFlight(context.Background(), testCommand())

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.True(t, result.Booking.IsHeld())
	assert.NotEmpty(t, result.CheckoutURL)
	assert.NotNil(t, result.Booking.ExpiresAt)
	assert.Equal(t, 0, notifier.SentCount())
	tickets.AssertNumberOfCalls(t, "Save", 0)

	// The webhook later reports the checkout completed.
	bookings.On("FindByID", mock.Anything, result.Booking.ID).Return(result.Booking, nil)
	tickets.On("FindByBookingID", mock.Anything, result.Booking.ID).Return(nil, nil)
	tickets.On("Save", mock.Anything, mock.Anything).Return(nil)

	confirmation := &gateway.PaymentConfirmation{
		CheckoutID:    "cs_1",
		TransactionID: "pi_1",
		PaidAt:        time.Now(),
		Amount:        testPrice(t),
	}
	confirmed, err := saga.ConfirmBooking(context.Background(), result.Booking.ID, confirmation)

	assert.NoError(t, err)
	assert.True(t, confirmed.IsConfirmed())
	assert.Equal(t, "pi_1", confirmed.PaymentTransactionID)
	assert.Nil(t, confirmed.ExpiresAt)
	assert.Equal(t, []string{domain.EventTypeBookingCreated, domain.EventTypeBookingConfirmed}, recorder.recorded())
	assert.Equal(t, 1, notifier.SentCount())
	tickets.AssertNumberOfCalls(t, "Save", 1)
}

func TestBookingSaga_BookFlight_FlightFull(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	inventory.On("HoldSeats", mock.Anything, "FL-CONC-1", domain.CabinEconomy, 1).Return(nil, domain.ErrFlightFull)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	result, err := saga.BookFlight(context.Background(), testCommand())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrFlightFull)
	bookings.AssertNumberOfCalls(t, "Save", 0)
	assert.Equal(t, 0, payments.SessionCount())
}

func TestBookingSaga_BookFlight_DeclinedPaymentCompensates(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(&gateway.MockPaymentGatewayConfig{
		Outcome:       gateway.CheckoutStateDeclined,
		FailureReason: "insufficient_funds",
	})
	notifier := gateway.NewMockNotificationGateway()
	recorder := &eventRecorder{}

	inventory.On("HoldSeats", mock.Anything, "FL-CONC-1", domain.CabinEconomy, 1).Return(testHoldResult(t), nil)
	inventory.On("ReleaseSeats", mock.Anything, "FL-CONC-1", domain.CabinEconomy, 1).Return(&inv.ReleaseResult{SeatsReleased: 1}, nil)
	bookings.On("FindByPnr", mock.Anything, mock.Anything).Return(nil, nil)

	var persisted *domain.Booking
	bookings.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		b := args.Get(1).(*domain.Booking)
		if persisted == nil {
			persisted = b
		}
		recorder.observe(b)
	}).Return(nil)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	result, err := saga.BookFlight(context.Background(), testCommand())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrPaymentDeclined)
	assert.NotNil(t, persisted)
	assert.Equal(t, domain.BookingStatusCancelled, persisted.Status)
	assert.Equal(t, "payment_declined", persisted.CancelReason)
	assert.Equal(t, []string{domain.EventTypeBookingCreated, domain.EventTypeBookingCancelled}, recorder.recorded())
	inventory.AssertNumberOfCalls(t, "ReleaseSeats", 1)
	tickets.AssertNumberOfCalls(t, "Save", 0)
}

func TestBookingSaga_BookFlight_PnrCollisionRetries(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	inventory.On("HoldSeats", mock.Anything, "FL-CONC-1", domain.CabinEconomy, 1).Return(testHoldResult(t), nil)
	bookings.On("FindByPnr", mock.Anything, mock.Anything).Return(heldTestBooking(t, "other-booking"), nil).Once()
	bookings.On("FindByPnr", mock.Anything, mock.Anything).Return(nil, nil).Once()
	bookings.On("Save", mock.Anything, mock.Anything).Return(nil)

	cfg := fastSagaConfig()
	cfg.PollTimeout = 0
	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, cfg)

	result, err := saga.BookFlight(context.Background(), testCommand())

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.True(t, result.Booking.IsHeld())
	bookings.AssertNumberOfCalls(t, "FindByPnr", 2)
}

func TestBookingSaga_BookFlight_PnrExhausted(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	inventory.On("HoldSeats", mock.Anything, "FL-CONC-1", domain.CabinEconomy, 1).Return(testHoldResult(t), nil)
	inventory.On("ReleaseSeats", mock.Anything, "FL-CONC-1", domain.CabinEconomy, 1).Return(&inv.ReleaseResult{SeatsReleased: 1}, nil)
	bookings.On("FindByPnr", mock.Anything, mock.Anything).Return(heldTestBooking(t, "other-booking"), nil)

	cfg := fastSagaConfig()
	cfg.PnrMaxAttempts = 3
	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, cfg)

	result, err := saga.BookFlight(context.Background(), testCommand())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrPnrExhausted)
	bookings.AssertNumberOfCalls(t, "FindByPnr", 3)
	bookings.AssertNumberOfCalls(t, "Save", 0)
	// The seat released inline because no booking row exists for the
	// sweeper to reclaim.
	inventory.AssertNumberOfCalls(t, "ReleaseSeats", 1)
}

func TestBookingSaga_ConfirmBooking_AlreadyConfirmed(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	booking := heldTestBooking(t, "booking-confirmed")
	if err := booking.Confirm("pi_9", time.Now()); err != nil {
		t.Fatalf("Failed to confirm booking: %v", err)
	}
	booking.ClearPendingEvents()
	ticket, err := domain.IssueTicket(booking, "7310000000001")
	if err != nil {
		t.Fatalf("Failed to issue ticket: %v", err)
	}

	bookings.On("FindByID", mock.Anything, "booking-confirmed").Return(booking, nil)
	tickets.On("FindByBookingID", mock.Anything, "booking-confirmed").Return(ticket, nil)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	confirmed, err := saga.ConfirmBooking(context.Background(), "booking-confirmed", nil)

	assert.NoError(t, err)
	assert.True(t, confirmed.IsConfirmed())
	bookings.AssertNumberOfCalls(t, "Save", 0)
	tickets.AssertNumberOfCalls(t, "Save", 0)
	assert.Equal(t, 1, notifier.SentCount())
}

func TestBookingSaga_ConfirmBooking_TerminalState(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	booking := heldTestBooking(t, "booking-cancelled")
	if err := booking.Cancel("user_request"); err != nil {
		t.Fatalf("Failed to cancel booking: %v", err)
	}
	booking.ClearPendingEvents()

	bookings.On("FindByID", mock.Anything, "booking-cancelled").Return(booking, nil)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	confirmed, err := saga.ConfirmBooking(context.Background(), "booking-cancelled", nil)

	assert.Nil(t, confirmed)
	assert.ErrorIs(t, err, domain.ErrInvalidBookingState)
	bookings.AssertNumberOfCalls(t, "Save", 0)
}

func TestBookingSaga_ConfirmBooking_NotFound(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	bookings.On("FindByID", mock.Anything, "missing").Return(nil, nil)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	confirmed, err := saga.ConfirmBooking(context.Background(), "missing", nil)

	assert.Nil(t, confirmed)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestBookingSaga_ConfirmBooking_RetriesVersionConflict(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()
	recorder := &eventRecorder{}

	bookings.On("FindByID", mock.Anything, "booking-race").Return(heldTestBooking(t, "booking-race"), nil).Once()
	bookings.On("Save", mock.Anything, mock.Anything).Return(&domain.OptimisticLockError{
		AggregateID:     "booking-race",
		ExpectedVersion: 1,
		ActualVersion:   2,
	}).Once()
	bookings.On("FindByID", mock.Anything, "booking-race").Return(heldTestBooking(t, "booking-race"), nil).Once()
	bookings.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorder.observe(args.Get(1).(*domain.Booking))
	}).Return(nil).Once()
	tickets.On("FindByBookingID", mock.Anything, "booking-race").Return(nil, nil)
	tickets.On("Save", mock.Anything, mock.Anything).Return(nil)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	confirmation := &gateway.PaymentConfirmation{TransactionID: "pi_2", PaidAt: time.Now()}
	confirmed, err := saga.ConfirmBooking(context.Background(), "booking-race", confirmation)

	assert.NoError(t, err)
	assert.True(t, confirmed.IsConfirmed())
	assert.Equal(t, "pi_2", confirmed.PaymentTransactionID)
	bookings.AssertNumberOfCalls(t, "Save", 2)
	bookings.AssertNumberOfCalls(t, "FindByID", 2)
	assert.Equal(t, []string{domain.EventTypeBookingConfirmed}, recorder.recorded())
}

func TestBookingSaga_ConfirmBooking_ConflictRetriesExhausted(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	bookings.On("FindByID", mock.Anything, "booking-contended").Return(heldTestBooking(t, "booking-contended"), nil).Once()
	bookings.On("FindByID", mock.Anything, "booking-contended").Return(heldTestBooking(t, "booking-contended"), nil).Once()
	bookings.On("Save", mock.Anything, mock.Anything).Return(&domain.OptimisticLockError{
		AggregateID:     "booking-contended",
		ExpectedVersion: 1,
		ActualVersion:   2,
	})

	cfg := fastSagaConfig()
	cfg.ConfirmMaxRetries = 1
	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, cfg)

	confirmed, err := saga.ConfirmBooking(context.Background(), "booking-contended", &gateway.PaymentConfirmation{TransactionID: "pi_3", PaidAt: time.Now()})

	assert.Nil(t, confirmed)
	assert.ErrorIs(t, err, domain.ErrOptimisticLockConflict)
	bookings.AssertNumberOfCalls(t, "Save", 2)
	tickets.AssertNumberOfCalls(t, "Save", 0)
}

func TestBookingSaga_ConfirmBooking_SweeperWonTheRace(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	expired := heldTestBooking(t, "booking-expired")
	if err := expired.Expire(); err != nil {
		t.Fatalf("Failed to expire booking: %v", err)
	}
	expired.ClearPendingEvents()

	// The booking is held on the first read but expired by the time the
	// conflicted save re-reads it.
	bookings.On("FindByID", mock.Anything, "booking-expired").Return(heldTestBooking(t, "booking-expired"), nil).Once()
	bookings.On("Save", mock.Anything, mock.Anything).Return(&domain.OptimisticLockError{
		AggregateID:     "booking-expired",
		ExpectedVersion: 1,
		ActualVersion:   2,
	}).Once()
	bookings.On("FindByID", mock.Anything, "booking-expired").Return(expired, nil).Once()

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	confirmed, err := saga.ConfirmBooking(context.Background(), "booking-expired", &gateway.PaymentConfirmation{TransactionID: "pi_4", PaidAt: time.Now()})

	assert.Nil(t, confirmed)
	assert.ErrorIs(t, err, domain.ErrInvalidBookingState)
	bookings.AssertNumberOfCalls(t, "Save", 1)
}

func TestBookingSaga_IssueTicket_DuplicateFallsBackToWinner(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	booking := heldTestBooking(t, "booking-ticketed")
	if err := booking.Confirm("pi_5", time.Now()); err != nil {
		t.Fatalf("Failed to confirm booking: %v", err)
	}
	booking.ClearPendingEvents()
	winner, err := domain.IssueTicket(booking, "7319999999999")
	if err != nil {
		t.Fatalf("Failed to issue winner ticket: %v", err)
	}

	tickets.On("FindByBookingID", mock.Anything, "booking-ticketed").Return(nil, nil).Once()
	tickets.On("Save", mock.Anything, mock.Anything).Return(&domain.PersistenceError{
		Op:   "insert ticket",
		Kind: domain.ErrDuplicateEntity,
	})
	tickets.On("FindByBookingID", mock.Anything, "booking-ticketed").Return(winner, nil).Once()

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	got, err := saga.issueTicket(context.Background(), booking)

	assert.NoError(t, err)
	assert.Equal(t, winner.TicketNumber, got.TicketNumber)
}

func TestBookingSaga_CancelBooking_ReleasesAndCancels(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()
	recorder := &eventRecorder{}

	booking := heldTestBooking(t, "booking-unwanted")
	bookings.On("FindByID", mock.Anything, "booking-unwanted").Return(booking, nil)
	bookings.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorder.observe(args.Get(1).(*domain.Booking))
	}).Return(nil)
	inventory.On("ReleaseSeats", mock.Anything, "FL-CONC-1", domain.CabinEconomy, 1).Return(&inv.ReleaseResult{SeatsReleased: 1}, nil)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	cancelled, err := saga.CancelBooking(context.Background(), "booking-unwanted", "passenger_request")

	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, "passenger_request", cancelled.CancelReason)
	assert.Equal(t, []string{domain.EventTypeBookingCancelled}, recorder.recorded())
	inventory.AssertNumberOfCalls(t, "ReleaseSeats", 1)
}

func TestBookingSaga_CancelBooking_ConfirmedRejects(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	booking := heldTestBooking(t, "booking-paid")
	if err := booking.Confirm("pi_8", time.Now()); err != nil {
		t.Fatalf("Failed to confirm booking: %v", err)
	}
	booking.ClearPendingEvents()
	bookings.On("FindByID", mock.Anything, "booking-paid").Return(booking, nil)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	cancelled, err := saga.CancelBooking(context.Background(), "booking-paid", "passenger_request")

	assert.Nil(t, cancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidBookingState)
	bookings.AssertNumberOfCalls(t, "Save", 0)
	inventory.AssertNumberOfCalls(t, "ReleaseSeats", 0)
}

func TestBookingSaga_CancelBooking_AlreadyCancelledIsIdempotent(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	booking := heldTestBooking(t, "booking-gone")
	if err := booking.Cancel("payment_declined"); err != nil {
		t.Fatalf("Failed to cancel booking: %v", err)
	}
	booking.ClearPendingEvents()
	bookings.On("FindByID", mock.Anything, "booking-gone").Return(booking, nil)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	cancelled, err := saga.CancelBooking(context.Background(), "booking-gone", "passenger_request")

	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, "payment_declined", cancelled.CancelReason)
	bookings.AssertNumberOfCalls(t, "Save", 0)
	inventory.AssertNumberOfCalls(t, "ReleaseSeats", 0)
}

func TestBookingSaga_CancelBooking_LosesRaceToConfirmation(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()

	confirmed := heldTestBooking(t, "booking-racing")
	if err := confirmed.Confirm("pi_10", time.Now()); err != nil {
		t.Fatalf("Failed to confirm booking: %v", err)
	}
	confirmed.ClearPendingEvents()

	// Held on first read, confirmed by the webhook before our save lands.
	bookings.On("FindByID", mock.Anything, "booking-racing").Return(heldTestBooking(t, "booking-racing"), nil).Once()
	bookings.On("Save", mock.Anything, mock.Anything).Return(&domain.OptimisticLockError{
		AggregateID:     "booking-racing",
		ExpectedVersion: 1,
		ActualVersion:   2,
	}).Once()
	bookings.On("FindByID", mock.Anything, "booking-racing").Return(confirmed, nil).Once()

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	cancelled, err := saga.CancelBooking(context.Background(), "booking-racing", "passenger_request")

	assert.Nil(t, cancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidBookingState)
	// The confirmed booking keeps its seats.
	inventory.AssertNumberOfCalls(t, "ReleaseSeats", 0)
}

func TestBookingSaga_BookFlight_NotificationFailureIsNonFatal(t *testing.T) {
	inventory := new(MockSeatInventory)
	bookings := new(MockBookingRepository)
	tickets := new(MockTicketRepository)
	payments := gateway.NewMockPaymentGateway(nil)
	notifier := gateway.NewMockNotificationGateway()
	notifier.FailWith(domain.ErrNotificationUnavailable)

	inventory.On("HoldSeats", mock.Anything, "FL-CONC-1", domain.CabinEconomy, 1).Return(testHoldResult(t), nil)
	bookings.On("FindByPnr", mock.Anything, mock.Anything).Return(nil, nil)
	bookings.On("Save", mock.Anything, mock.Anything).Return(nil)
	tickets.On("FindByBookingID", mock.Anything, mock.Anything).Return(nil, nil)
	tickets.On("Save", mock.Anything, mock.Anything).Return(nil)

	saga := NewBookingSaga(inventory, bookings, tickets, stubTransactionManager{}, payments, notifier, fastSagaConfig())

	result, err := saga.BookFlight(context.Background(), testCommand())

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.True(t, result.Booking.IsConfirmed())
	assert.Equal(t, 0, notifier.SentCount())
	tickets.AssertNumberOfCalls(t, "Save", 1)
}
