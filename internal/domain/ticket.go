package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Ticket numbers are thirteen digits: a three digit carrier prefix
// followed by a ten digit document serial.
const (
	TicketNumberLength = 13
	carrierCodeLength  = 3
	ticketSerialLength = TicketNumberLength - carrierCodeLength
)

// TicketStatus represents the lifecycle state of a ticket
type TicketStatus string

const (
	TicketStatusIssued TicketStatus = "issued"
)

// CouponStatus represents the lifecycle state of a flight coupon
type CouponStatus string

const (
	CouponStatusOpen CouponStatus = "open"
)

// Coupon entitles a passenger to one flight segment of a ticket.
type Coupon struct {
	Number     int          `json:"number"`
	FlightID   string       `json:"flight_id"`
	SeatNumber string       `json:"seat_number,omitempty"`
	Status     CouponStatus `json:"status"`
}

// Ticket is the travel document issued once a booking confirms. One
// ticket is issued per confirmed booking, covering the lead passenger.
type Ticket struct {
	TicketNumber  string       `json:"ticket_number"`
	BookingID     string       `json:"booking_id"`
	PnrCode       PnrCode      `json:"pnr_code"`
	Status        TicketStatus `json:"status"`
	PassengerID   string       `json:"passenger_id"`
	PassengerName string       `json:"passenger_name"`
	Coupons       []Coupon     `json:"coupons"`
	IssuedAt      time.Time    `json:"issued_at"`

	pendingEvents []DomainEvent
}

// GenerateTicketNumber draws a document serial from a cryptographic
// source and prefixes it with the carrier code, which must be exactly
// three digits.
func GenerateTicketNumber(carrierCode string) (string, error) {
	if len(carrierCode) != carrierCodeLength {
		return "", fmt.Errorf("carrier code %q: %w", carrierCode, ErrInvalidCarrierCode)
	}
	for _, r := range carrierCode {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("carrier code %q: %w", carrierCode, ErrInvalidCarrierCode)
		}
	}

	ten := big.NewInt(10)
	buf := make([]byte, ticketSerialLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to draw ticket digit: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return carrierCode + string(buf), nil
}

// IssueTicket creates the travel document for a confirmed booking. Each
// segment becomes one open coupon, numbered in segment order. It stages a
// TicketIssued event.
func IssueTicket(booking *Booking, ticketNumber string) (*Ticket, error) {
	if booking.Status != BookingStatusConfirmed {
		return nil, fmt.Errorf("issue ticket for %s booking: %w", booking.Status, ErrInvalidBookingState)
	}
	if len(ticketNumber) != TicketNumberLength {
		return nil, fmt.Errorf("ticket number %q: %w", ticketNumber, ErrInvalidCarrierCode)
	}

	passenger := booking.LeadPassenger()
	coupons := make([]Coupon, 0, len(booking.Segments))
	for i, seg := range booking.Segments {
		coupons = append(coupons, Coupon{
			Number:     i + 1,
			FlightID:   seg.FlightID,
			SeatNumber: seg.SeatNumber,
			Status:     CouponStatusOpen,
		})
	}

	now := time.Now()
	t := &Ticket{
		TicketNumber:  ticketNumber,
		BookingID:     booking.ID,
		PnrCode:       booking.PnrCode,
		Status:        TicketStatusIssued,
		PassengerID:   passenger.ID,
		PassengerName: passenger.FullName(),
		Coupons:       coupons,
		IssuedAt:      now,
	}
	t.pendingEvents = append(t.pendingEvents, TicketIssuedEvent{
		TicketNumber:   t.TicketNumber,
		BookingID:      t.BookingID,
		PnrCode:        t.PnrCode,
		PassengerID:    t.PassengerID,
		PassengerName:  t.PassengerName,
		RecipientEmail: booking.ContactEmail,
		IssuedAt:       now,
	})
	return t, nil
}

// PendingEvents returns the events staged since the last save.
func (t *Ticket) PendingEvents() []DomainEvent {
	return t.pendingEvents
}

// ClearPendingEvents drops staged events once they are written to the outbox.
func (t *Ticket) ClearPendingEvents() {
	t.pendingEvents = nil
}
