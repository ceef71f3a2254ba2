package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/dto"
	"github.com/bakate/aeroreserve/internal/gateway"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/internal/saga"
	"github.com/bakate/aeroreserve/pkg/logger"
	"github.com/bakate/aeroreserve/pkg/telemetry"
)

// BookingOrchestrator drives the booking saga. Satisfied by
// saga.BookingSaga.
type BookingOrchestrator interface {
	BookFlight(ctx context.Context, cmd *saga.BookFlightCommand) (*saga.BookFlightResult, error)
	ConfirmBooking(ctx context.Context, bookingID string, confirmation *gateway.PaymentConfirmation) (*domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID, reason string) (*domain.Booking, error)
}

// BookingService defines the interface for booking business logic
type BookingService interface {
	// BookFlight runs the booking saga for one seat
	BookFlight(ctx context.Context, req *dto.BookFlightRequest) (*dto.BookFlightResponse, error)

	// ConfirmBooking completes a held booking out of band
	ConfirmBooking(ctx context.Context, bookingID string, req *dto.ConfirmBookingRequest) (*dto.BookingResponse, error)

	// CancelBooking cancels a held booking on the passenger's request
	CancelBooking(ctx context.Context, bookingID string, req *dto.CancelBookingRequest) (*dto.BookingResponse, error)

	// GetBooking retrieves a booking with its ticket when issued
	GetBooking(ctx context.Context, bookingID string) (*dto.BookingDetailResponse, error)

	// GetBookingsByPassenger lists bookings naming the passenger
	GetBookingsByPassenger(ctx context.Context, passengerID string) ([]*dto.BookingResponse, error)
}

// bookingService implements BookingService
type bookingService struct {
	orchestrator BookingOrchestrator
	bookings     repository.BookingRepository
	tickets      repository.TicketRepository
	tokens       ManageTokenService
	log          *logger.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	orchestrator BookingOrchestrator,
	bookings repository.BookingRepository,
	tickets repository.TicketRepository,
	tokens ManageTokenService,
) BookingService {
	return &bookingService{
		orchestrator: orchestrator,
		bookings:     bookings,
		tickets:      tickets,
		tokens:       tokens,
		log:          logger.Get(),
	}
}

// BookFlight runs the booking saga for one seat
func (s *bookingService) BookFlight(ctx context.Context, req *dto.BookFlightRequest) (*dto.BookFlightResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.book_flight")
	defer span.End()

	if req == nil {
		span.SetStatus(codes.Error, "missing request")
		return nil, fmt.Errorf("request body is required: %w", domain.ErrInvalidSegment)
	}

	cabin, err := domain.ParseCabinClass(req.Cabin)
	if err != nil {
		span.SetStatus(codes.Error, "invalid cabin")
		return nil, err
	}
	passenger, err := req.Passenger.ToDomain()
	if err != nil {
		span.SetStatus(codes.Error, "invalid passenger")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("flight_id", req.FlightID),
		attribute.String("cabin", string(cabin)),
	)

	result, err := s.orchestrator.BookFlight(ctx, &saga.BookFlightCommand{
		FlightID:     req.FlightID,
		Cabin:        cabin,
		Passenger:    passenger,
		ContactEmail: req.ContactEmail,
		SeatNumber:   req.SeatNumber,
		SuccessURL:   req.SuccessURL,
		CancelURL:    req.CancelURL,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking failed")
		return nil, err
	}

	response := &dto.BookFlightResponse{
		Booking:     dto.FromBooking(result.Booking),
		CheckoutURL: result.CheckoutURL,
	}

	// The booking is committed at this point; a token signing failure
	// costs the manage link, not the booking.
	token, expiresAt, err := s.tokens.Issue(result.Booking.ID, result.Booking.PnrCode)
	if err != nil {
		s.log.Warn(fmt.Sprintf("Failed to issue manage token for booking %s: %v", result.Booking.ID, err))
	} else {
		response.ManageToken = token
		response.ManageExpiresAt = expiresAt
	}

	return response, nil
}

// ConfirmBooking completes a held booking out of band
func (s *bookingService) ConfirmBooking(ctx context.Context, bookingID string, req *dto.ConfirmBookingRequest) (*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.confirm")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	var confirmation *gateway.PaymentConfirmation
	if req != nil && (req.TransactionID != "" || req.CheckoutID != "" || req.PaidAt != nil) {
		confirmation = &gateway.PaymentConfirmation{
			CheckoutID:    req.CheckoutID,
			TransactionID: req.TransactionID,
		}
		if req.PaidAt != nil {
			confirmation.PaidAt = *req.PaidAt
		}
	}

	booking, err := s.orchestrator.ConfirmBooking(ctx, bookingID, confirmation)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirmation failed")
		return nil, err
	}

	return dto.FromBooking(booking), nil
}

// CancelBooking cancels a held booking on the passenger's request
func (s *bookingService) CancelBooking(ctx context.Context, bookingID string, req *dto.CancelBookingRequest) (*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.cancel")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	reason := "passenger_request"
	if req != nil && req.Reason != "" {
		reason = req.Reason
	}

	booking, err := s.orchestrator.CancelBooking(ctx, bookingID, reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancellation failed")
		return nil, err
	}

	return dto.FromBooking(booking), nil
}

// GetBooking retrieves a booking with its ticket when issued
func (s *bookingService) GetBooking(ctx context.Context, bookingID string) (*dto.BookingDetailResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.get")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if booking == nil {
		span.SetStatus(codes.Error, "booking not found")
		return nil, fmt.Errorf("booking %s: %w", bookingID, domain.ErrBookingNotFound)
	}

	detail := &dto.BookingDetailResponse{Booking: dto.FromBooking(booking)}

	ticket, err := s.tickets.FindByBookingID(ctx, bookingID)
	if err != nil {
		// The booking view is still useful without the ticket.
		s.log.Warn(fmt.Sprintf("Failed to load ticket for booking %s: %v", bookingID, err))
	} else if ticket != nil {
		detail.Ticket = dto.FromTicket(ticket)
	}

	return detail, nil
}

// GetBookingsByPassenger lists bookings naming the passenger
func (s *bookingService) GetBookingsByPassenger(ctx context.Context, passengerID string) ([]*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.list_by_passenger")
	defer span.End()

	if passengerID == "" {
		span.SetStatus(codes.Error, "missing passenger id")
		return nil, fmt.Errorf("passenger id is required: %w", domain.ErrInvalidPassenger)
	}

	bookings, err := s.bookings.FindByPassengerID(ctx, passengerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	responses := make([]*dto.BookingResponse, 0, len(bookings))
	for _, booking := range bookings {
		responses = append(responses, dto.FromBooking(booking))
	}
	return responses, nil
}
