package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
)

// BookFlightRequest represents a request to book a seat on a flight
type BookFlightRequest struct {
	FlightID     string           `json:"flight_id" binding:"required"`
	Cabin        string           `json:"cabin" binding:"required"`
	Passenger    PassengerRequest `json:"passenger" binding:"required"`
	ContactEmail string           `json:"contact_email" binding:"required,email"`
	SeatNumber   string           `json:"seat_number,omitempty"`
	SuccessURL   string           `json:"success_url,omitempty"`
	CancelURL    string           `json:"cancel_url,omitempty"`
}

// PassengerRequest carries the passenger fields needed for ticketing
type PassengerRequest struct {
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	DateOfBirth string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	Gender      string `json:"gender,omitempty"`
	Type        string `json:"type,omitempty"`
}

// ToDomain converts the request to a domain Passenger. Type defaults to
// ADULT and gender to unspecified.
func (r PassengerRequest) ToDomain() (domain.Passenger, error) {
	passenger := domain.Passenger{
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Gender:    domain.GenderUnspecified,
		Type:      domain.PassengerTypeAdult,
	}

	if r.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", r.DateOfBirth)
		if err != nil {
			return domain.Passenger{}, fmt.Errorf("date_of_birth %q: %w", r.DateOfBirth, domain.ErrInvalidPassenger)
		}
		passenger.DateOfBirth = dob
	}
	if r.Gender != "" {
		passenger.Gender = domain.Gender(strings.ToUpper(strings.TrimSpace(r.Gender)))
	}
	if r.Type != "" {
		passenger.Type = domain.PassengerType(strings.ToUpper(strings.TrimSpace(r.Type)))
		if !passenger.Type.IsValid() {
			return domain.Passenger{}, fmt.Errorf("passenger type %q: %w", r.Type, domain.ErrInvalidPassenger)
		}
	}

	return passenger, nil
}

// ConfirmBookingRequest carries payment details for an out-of-band
// confirmation. All fields are optional; an empty body confirms with
// whatever the provider reported.
type ConfirmBookingRequest struct {
	CheckoutID    string     `json:"checkout_id,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// CancelBookingRequest represents a passenger-initiated cancellation
type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// BookFlightResponse represents the outcome of a booking request
type BookFlightResponse struct {
	Booking         *BookingResponse `json:"booking"`
	CheckoutURL     string           `json:"checkout_url,omitempty"`
	ManageToken     string           `json:"manage_token"`
	ManageExpiresAt time.Time        `json:"manage_token_expires_at"`
}

// BookingResponse represents a booking in API responses
type BookingResponse struct {
	ID                   string              `json:"id"`
	PnrCode              string              `json:"pnr_code"`
	Status               string              `json:"status"`
	ContactEmail         string              `json:"contact_email"`
	Passengers           []PassengerResponse `json:"passengers"`
	Segments             []SegmentResponse   `json:"segments"`
	TotalPrice           domain.Money        `json:"total_price"`
	PaymentTransactionID string              `json:"payment_transaction_id,omitempty"`
	CancelReason         string              `json:"cancel_reason,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	PaidAt               *time.Time          `json:"paid_at,omitempty"`
	ExpiresAt            *time.Time          `json:"expires_at,omitempty"`
}

// PassengerResponse represents a passenger in API responses
type PassengerResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Type      string `json:"type"`
}

// SegmentResponse represents a flight segment in API responses
type SegmentResponse struct {
	ID         string       `json:"id"`
	FlightID   string       `json:"flight_id"`
	Cabin      string       `json:"cabin"`
	Price      domain.Money `json:"price"`
	SeatNumber string       `json:"seat_number,omitempty"`
}

// BookingDetailResponse pairs a booking with its ticket when issued
type BookingDetailResponse struct {
	Booking *BookingResponse `json:"booking"`
	Ticket  *TicketResponse  `json:"ticket,omitempty"`
}

// TicketResponse represents an issued ticket in API responses
type TicketResponse struct {
	TicketNumber  string           `json:"ticket_number"`
	PnrCode       string           `json:"pnr_code"`
	Status        string           `json:"status"`
	PassengerName string           `json:"passenger_name"`
	IssuedAt      time.Time        `json:"issued_at"`
	Coupons       []CouponResponse `json:"coupons"`
}

// CouponResponse represents a ticket coupon in API responses
type CouponResponse struct {
	Number     int    `json:"number"`
	FlightID   string `json:"flight_id"`
	SeatNumber string `json:"seat_number,omitempty"`
	Status     string `json:"status"`
}

// FromBooking converts a domain Booking to a BookingResponse
func FromBooking(b *domain.Booking) *BookingResponse {
	passengers := make([]PassengerResponse, 0, len(b.Passengers))
	for _, p := range b.Passengers {
		passengers = append(passengers, PassengerResponse{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Type:      string(p.Type),
		})
	}

	segments := make([]SegmentResponse, 0, len(b.Segments))
	for _, s := range b.Segments {
		segments = append(segments, SegmentResponse{
			ID:         s.ID,
			FlightID:   s.FlightID,
			Cabin:      string(s.Cabin),
			Price:      s.Price,
			SeatNumber: s.SeatNumber,
		})
	}

	total, _ := b.TotalPrice()

	return &BookingResponse{
		ID:                   b.ID,
		PnrCode:              string(b.PnrCode),
		Status:               string(b.Status),
		ContactEmail:         b.ContactEmail,
		Passengers:           passengers,
		Segments:             segments,
		TotalPrice:           total,
		PaymentTransactionID: b.PaymentTransactionID,
		CancelReason:         b.CancelReason,
		CreatedAt:            b.CreatedAt,
		PaidAt:               b.PaidAt,
		ExpiresAt:            b.ExpiresAt,
	}
}

// FromTicket converts a domain Ticket to a TicketResponse
func FromTicket(t *domain.Ticket) *TicketResponse {
	coupons := make([]CouponResponse, 0, len(t.Coupons))
	for _, c := range t.Coupons {
		coupons = append(coupons, CouponResponse{
			Number:     c.Number,
			FlightID:   c.FlightID,
			SeatNumber: c.SeatNumber,
			Status:     string(c.Status),
		})
	}

	return &TicketResponse{
		TicketNumber:  t.TicketNumber,
		PnrCode:       string(t.PnrCode),
		Status:        string(t.Status),
		PassengerName: t.PassengerName,
		IssuedAt:      t.IssuedAt,
		Coupons:       coupons,
	}
}
