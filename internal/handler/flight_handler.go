package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bakate/aeroreserve/internal/dto"
	"github.com/bakate/aeroreserve/internal/service"
	"github.com/bakate/aeroreserve/pkg/response"
	"github.com/bakate/aeroreserve/pkg/telemetry"
)

// FlightHandler handles flight inventory HTTP requests
type FlightHandler struct {
	flightService service.FlightService
}

// NewFlightHandler creates a new flight handler
func NewFlightHandler(flightService service.FlightService) *FlightHandler {
	return &FlightHandler{flightService: flightService}
}

// CreateFlight handles POST /flights
// Ops endpoint seeding a flight's sellable inventory.
func (h *FlightHandler) CreateFlight(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.flight.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CreateFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
		return
	}

	span.SetAttributes(attribute.String("flight_id", req.FlightID))

	availability, err := h.flightService.CreateFlight(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondDomainError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Created(c, availability)
}

// GetAvailability handles GET /flights/:id/availability
func (h *FlightHandler) GetAvailability(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.flight.availability")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	flightID := c.Param("id")
	if flightID == "" {
		span.SetStatus(codes.Error, "flight id required")
		response.BadRequest(c, "flight id required")
		return
	}
	span.SetAttributes(attribute.String("flight_id", flightID))

	availability, err := h.flightService.GetAvailability(ctx, flightID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondDomainError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, availability)
}

// FindFlights handles GET /flights?cabin=&seats=
func (h *FlightHandler) FindFlights(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.flight.find")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	cabin := c.Query("cabin")
	if cabin == "" {
		span.SetStatus(codes.Error, "cabin required")
		response.BadRequest(c, "cabin query parameter is required")
		return
	}

	seats := 1
	if raw := c.Query("seats"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			span.SetStatus(codes.Error, "invalid seats")
			response.BadRequest(c, "seats must be a positive integer")
			return
		}
		seats = parsed
	}

	span.SetAttributes(
		attribute.String("cabin", cabin),
		attribute.Int("seats", seats),
	)

	flights, err := h.flightService.FindAvailableFlights(ctx, cabin, seats)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondDomainError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, flights)
}
