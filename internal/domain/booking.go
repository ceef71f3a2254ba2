package domain

import (
	"fmt"
	"strings"
	"time"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusHeld      BookingStatus = "held"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

// IsValid checks if the status is a valid BookingStatus
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusHeld, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of BookingStatus
func (s BookingStatus) String() string {
	return string(s)
}

// IsTerminal checks if the status admits no further transitions.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusCancelled, BookingStatusExpired:
		return true
	}
	return false
}

// PassengerType classifies a traveller for fare purposes.
type PassengerType string

const (
	PassengerTypeAdult  PassengerType = "ADULT"
	PassengerTypeChild  PassengerType = "CHILD"
	PassengerTypeInfant PassengerType = "INFANT"
)

// IsValid checks if the type is a known PassengerType
func (t PassengerType) IsValid() bool {
	switch t {
	case PassengerTypeAdult, PassengerTypeChild, PassengerTypeInfant:
		return true
	}
	return false
}

// Gender codes follow airline reservation conventions.
type Gender string

const (
	GenderMale        Gender = "M"
	GenderFemale      Gender = "F"
	GenderUnspecified Gender = "X"
)

// Passenger is a traveller named on a booking.
type Passenger struct {
	ID          string        `json:"id"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	DateOfBirth time.Time     `json:"date_of_birth"`
	Gender      Gender        `json:"gender"`
	Type        PassengerType `json:"type"`
}

// Validate checks the passenger fields needed for ticketing.
func (p Passenger) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("missing passenger id: %w", ErrInvalidPassenger)
	}
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("missing passenger name: %w", ErrInvalidPassenger)
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("passenger type %q: %w", p.Type, ErrInvalidPassenger)
	}
	return nil
}

// FullName returns the display name used on tickets.
func (p Passenger) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Segment is one flight leg of a booking with the price captured at hold
// time.
type Segment struct {
	ID         string     `json:"id"`
	FlightID   string     `json:"flight_id"`
	Cabin      CabinClass `json:"cabin"`
	Price      Money      `json:"price"`
	SeatNumber string     `json:"seat_number,omitempty"`
}

// Validate checks the segment references a flight and a known cabin.
func (s Segment) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("missing segment id: %w", ErrInvalidSegment)
	}
	if strings.TrimSpace(s.FlightID) == "" {
		return fmt.Errorf("missing flight id: %w", ErrInvalidSegment)
	}
	if !s.Cabin.IsValid() {
		return fmt.Errorf("cabin %q: %w", s.Cabin, ErrInvalidSegment)
	}
	return nil
}

// Booking is the reservation aggregate. Its record locator never changes
// after creation and terminal statuses admit no further transitions.
type Booking struct {
	ID           string        `json:"id"`
	PnrCode      PnrCode       `json:"pnr_code"`
	Status       BookingStatus `json:"status"`
	ContactEmail string        `json:"contact_email"`
	Passengers   []Passenger   `json:"passengers"`
	Segments     []Segment     `json:"segments"`

	PaymentTransactionID string     `json:"payment_transaction_id,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	CancelReason         string     `json:"cancel_reason,omitempty"`

	Version   int64      `json:"version"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	pendingEvents []DomainEvent
}

// NewBooking builds an unsaved held booking (version zero) that expires
// after the hold duration unless confirmed. It stages a BookingCreated
// event.
func NewBooking(id string, pnr PnrCode, contactEmail string, passengers []Passenger, segments []Segment, holdDuration time.Duration) (*Booking, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("missing booking id: %w", ErrInvalidBookingState)
	}
	if !pnr.IsValid() {
		return nil, fmt.Errorf("pnr %q: %w", pnr, ErrInvalidPnrCode)
	}
	if len(passengers) < 1 {
		return nil, fmt.Errorf("booking needs at least one passenger: %w", ErrInvalidPassenger)
	}
	if len(segments) < 1 {
		return nil, fmt.Errorf("booking needs at least one segment: %w", ErrInvalidSegment)
	}
	for _, p := range passengers {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	for _, s := range segments {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	if holdDuration <= 0 {
		return nil, fmt.Errorf("hold duration %s: %w", holdDuration, ErrInvalidAmount)
	}

	now := time.Now()
	expiresAt := now.Add(holdDuration)
	b := &Booking{
		ID:           id,
		PnrCode:      pnr,
		Status:       BookingStatusHeld,
		ContactEmail: contactEmail,
		Passengers:   passengers,
		Segments:     segments,
		Version:      0,
		ExpiresAt:    &expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	total, err := b.TotalPrice()
	if err != nil {
		return nil, err
	}
	b.pendingEvents = append(b.pendingEvents, BookingCreatedEvent{
		BookingID:   b.ID,
		PnrCode:     b.PnrCode,
		TotalAmount: total,
		ExpiresAt:   b.ExpiresAt,
		CreatedAt:   now,
	})
	return b, nil
}

// TotalPrice sums the segment prices. All segments must share a currency.
func (b *Booking) TotalPrice() (Money, error) {
	total := b.Segments[0].Price
	for _, s := range b.Segments[1:] {
		sum, err := total.Add(s.Price)
		if err != nil {
			return Money{}, err
		}
		total = sum
	}
	return total, nil
}

// IsHeld checks if the booking is awaiting payment.
func (b *Booking) IsHeld() bool {
	return b.Status == BookingStatusHeld
}

// IsConfirmed checks if the booking has settled.
func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// IsTerminal checks if the booking admits no further transitions.
func (b *Booking) IsTerminal() bool {
	return b.Status.IsTerminal()
}

// IsExpiredAt checks if the hold window has lapsed at the given time.
func (b *Booking) IsExpiredAt(t time.Time) bool {
	return b.Status == BookingStatusHeld && b.ExpiresAt != nil && t.After(*b.ExpiresAt)
}

// Confirm settles a held booking after successful payment, clearing the
// hold deadline. It stages a BookingConfirmed event.
func (b *Booking) Confirm(transactionID string, paidAt time.Time) error {
	if b.Status != BookingStatusHeld {
		return fmt.Errorf("confirm from %s: %w", b.Status, ErrInvalidBookingState)
	}

	now := time.Now()
	b.Status = BookingStatusConfirmed
	b.PaymentTransactionID = transactionID
	b.PaidAt = &paidAt
	b.ExpiresAt = nil
	b.UpdatedAt = now
	b.pendingEvents = append(b.pendingEvents, BookingConfirmedEvent{
		BookingID:     b.ID,
		PnrCode:       b.PnrCode,
		TransactionID: transactionID,
		ConfirmedAt:   now,
	})
	return nil
}

// Cancel terminates a held booking with a reason, clearing the hold
// deadline. It stages a BookingCancelled event.
func (b *Booking) Cancel(reason string) error {
	if b.Status != BookingStatusHeld {
		return fmt.Errorf("cancel from %s: %w", b.Status, ErrInvalidBookingState)
	}

	now := time.Now()
	b.Status = BookingStatusCancelled
	b.CancelReason = reason
	b.ExpiresAt = nil
	b.UpdatedAt = now
	b.pendingEvents = append(b.pendingEvents, BookingCancelledEvent{
		BookingID:   b.ID,
		PnrCode:     b.PnrCode,
		Reason:      reason,
		CancelledAt: now,
	})
	return nil
}

// Expire terminates a held booking whose hold window lapsed. It stages a
// BookingExpired event.
func (b *Booking) Expire() error {
	if b.Status != BookingStatusHeld {
		return fmt.Errorf("expire from %s: %w", b.Status, ErrInvalidBookingState)
	}

	now := time.Now()
	b.Status = BookingStatusExpired
	b.ExpiresAt = nil
	b.UpdatedAt = now
	b.pendingEvents = append(b.pendingEvents, BookingExpiredEvent{
		BookingID: b.ID,
		PnrCode:   b.PnrCode,
		ExpiredAt: now,
	})
	return nil
}

// LeadPassenger returns the first passenger, the one ticketed and
// notified.
func (b *Booking) LeadPassenger() Passenger {
	return b.Passengers[0]
}

// PendingEvents returns the events staged since the last save.
func (b *Booking) PendingEvents() []DomainEvent {
	return b.pendingEvents
}

// ClearPendingEvents drops staged events once they are written to the outbox.
func (b *Booking) ClearPendingEvents() {
	b.pendingEvents = nil
}
