package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bakate/aeroreserve/internal/dto"
	"github.com/bakate/aeroreserve/internal/service"
	"github.com/bakate/aeroreserve/pkg/response"
	"github.com/bakate/aeroreserve/pkg/telemetry"
)

// BookingHandler handles booking HTTP requests. Passenger-facing reads
// and cancels are guarded by the manage token issued at booking time.
type BookingHandler struct {
	bookingService service.BookingService
	tokens         service.ManageTokenService
	requireToken   bool
}

// BookingHandlerConfig contains configuration for the booking handler
type BookingHandlerConfig struct {
	// DisableManageTokenCheck opens guarded endpoints, for load tests only
	DisableManageTokenCheck bool
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService service.BookingService, tokens service.ManageTokenService, cfg *BookingHandlerConfig) *BookingHandler {
	requireToken := true
	if cfg != nil && cfg.DisableManageTokenCheck {
		requireToken = false
	}
	return &BookingHandler{
		bookingService: bookingService,
		tokens:         tokens,
		requireToken:   requireToken,
	}
}

// CreateBooking handles POST /bookings
// Runs the full booking saga: seat hold, PNR allocation, checkout
// session. The response carries the manage token for later requests.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.BookFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("flight_id", req.FlightID),
		attribute.String("cabin", req.Cabin),
	)

	result, err := h.bookingService.BookFlight(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondDomainError(c, err)
		return
	}

	span.SetAttributes(attribute.String("booking_id", result.Booking.ID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// GetBooking handles GET /bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	if bookingID == "" {
		span.SetStatus(codes.Error, "booking id required")
		response.BadRequest(c, "booking id required")
		return
	}
	span.SetAttributes(attribute.String("booking_id", bookingID))

	if !h.authorizeManage(c, bookingID) {
		span.SetStatus(codes.Error, "manage token rejected")
		return
	}

	detail, err := h.bookingService.GetBooking(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondDomainError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, detail)
}

// ConfirmBooking handles POST /bookings/:id/confirm
// Callers with an out-of-band payment outcome send it in the body; an
// empty body makes the saga poll the payment provider itself.
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.confirm")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	if bookingID == "" {
		span.SetStatus(codes.Error, "booking id required")
		response.BadRequest(c, "booking id required")
		return
	}
	span.SetAttributes(attribute.String("booking_id", bookingID))

	var req *dto.ConfirmBookingRequest
	if c.Request.ContentLength > 0 {
		var body dto.ConfirmBookingRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid request")
			response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
			return
		}
		req = &body
	}

	booking, err := h.bookingService.ConfirmBooking(ctx, bookingID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondDomainError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, booking)
}

// CancelBooking handles POST /bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	if bookingID == "" {
		span.SetStatus(codes.Error, "booking id required")
		response.BadRequest(c, "booking id required")
		return
	}
	span.SetAttributes(attribute.String("booking_id", bookingID))

	if !h.authorizeManage(c, bookingID) {
		span.SetStatus(codes.Error, "manage token rejected")
		return
	}

	var req *dto.CancelBookingRequest
	if c.Request.ContentLength > 0 {
		var body dto.CancelBookingRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid request")
			response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
			return
		}
		req = &body
	}

	booking, err := h.bookingService.CancelBooking(ctx, bookingID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondDomainError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, booking)
}

// ListBookings handles GET /bookings?passenger_id=
func (h *BookingHandler) ListBookings(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.list")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	passengerID := c.Query("passenger_id")
	if passengerID == "" {
		span.SetStatus(codes.Error, "passenger_id required")
		response.BadRequest(c, "passenger_id query parameter is required")
		return
	}
	span.SetAttributes(attribute.String("passenger_id", passengerID))

	bookings, err := h.bookingService.GetBookingsByPassenger(ctx, passengerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondDomainError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, bookings)
}

// authorizeManage checks the manage token on a guarded endpoint and
// writes the rejection itself. Callers stop when it returns false.
func (h *BookingHandler) authorizeManage(c *gin.Context, bookingID string) bool {
	if !h.requireToken {
		return true
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		response.Error(c, http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header is required", "")
		return false
	}

	// Extract token from "Bearer <token>"
	const bearerPrefix = "Bearer "
	if len(authHeader) <= len(bearerPrefix) {
		response.Unauthorized(c, "invalid authorization header format")
		return false
	}
	token := authHeader[len(bearerPrefix):]

	if _, err := h.tokens.Validate(token, bookingID); err != nil {
		respondDomainError(c, err)
		return false
	}
	return true
}
