package domain

import (
	"time"
)

// Stable event type tags. Consumers key on these strings, so they never
// change even when the producing structs are renamed.
const (
	EventTypeSeatsHeld        = "SeatsHeld"
	EventTypeSeatsReleased    = "SeatsReleased"
	EventTypeBookingCreated   = "BookingCreated"
	EventTypeBookingConfirmed = "BookingConfirmed"
	EventTypeBookingCancelled = "BookingCancelled"
	EventTypeBookingExpired   = "BookingExpired"
	EventTypeTicketIssued     = "TicketIssued"
)

// Aggregate types used for outbox routing.
const (
	AggregateTypeInventory = "flight_inventory"
	AggregateTypeBooking   = "booking"
	AggregateTypeTicket    = "ticket"
)

// DomainEvent is a fact recorded by an aggregate mutation, staged on the
// aggregate until the next save appends it to the outbox.
type DomainEvent interface {
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
}

// SeatsHeldEvent records seats taken from a cabin bucket.
type SeatsHeldEvent struct {
	FlightID  string     `json:"flight_id"`
	Cabin     CabinClass `json:"cabin"`
	Seats     int        `json:"seats"`
	Available int        `json:"available"`
	HeldAt    time.Time  `json:"held_at"`
}

func (e SeatsHeldEvent) EventType() string { return EventTypeSeatsHeld }
func (e SeatsHeldEvent) AggregateID() string { return e.FlightID }
func (e SeatsHeldEvent) OccurredAt() time.Time { return e.HeldAt }

// SeatsReleasedEvent records seats returned to a cabin bucket.
type SeatsReleasedEvent struct {
	FlightID   string     `json:"flight_id"`
	Cabin      CabinClass `json:"cabin"`
	Seats      int        `json:"seats"`
	Available  int        `json:"available"`
	ReleasedAt time.Time  `json:"released_at"`
}

func (e SeatsReleasedEvent) EventType() string { return EventTypeSeatsReleased }
func (e SeatsReleasedEvent) AggregateID() string { return e.FlightID }
func (e SeatsReleasedEvent) OccurredAt() time.Time { return e.ReleasedAt }

// BookingCreatedEvent records a new booking entering the held state.
type BookingCreatedEvent struct {
	BookingID   string     `json:"booking_id"`
	PnrCode     PnrCode    `json:"pnr_code"`
	TotalAmount Money      `json:"total_amount"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (e BookingCreatedEvent) EventType() string { return EventTypeBookingCreated }
func (e BookingCreatedEvent) AggregateID() string { return e.BookingID }
func (e BookingCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// BookingConfirmedEvent records a successful payment settling a booking.
type BookingConfirmedEvent struct {
	BookingID     string    `json:"booking_id"`
	PnrCode       PnrCode   `json:"pnr_code"`
	TransactionID string    `json:"transaction_id"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

func (e BookingConfirmedEvent) EventType() string { return EventTypeBookingConfirmed }
func (e BookingConfirmedEvent) AggregateID() string { return e.BookingID }
func (e BookingConfirmedEvent) OccurredAt() time.Time { return e.ConfirmedAt }

// BookingCancelledEvent records a booking cancelled before confirmation.
type BookingCancelledEvent struct {
	BookingID   string    `json:"booking_id"`
	PnrCode     PnrCode   `json:"pnr_code"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (e BookingCancelledEvent) EventType() string { return EventTypeBookingCancelled }
func (e BookingCancelledEvent) AggregateID() string { return e.BookingID }
func (e BookingCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }

// BookingExpiredEvent records a held booking reclaimed after its hold
// window lapsed.
type BookingExpiredEvent struct {
	BookingID string    `json:"booking_id"`
	PnrCode   PnrCode   `json:"pnr_code"`
	ExpiredAt time.Time `json:"expired_at"`
}

func (e BookingExpiredEvent) EventType() string { return EventTypeBookingExpired }
func (e BookingExpiredEvent) AggregateID() string { return e.BookingID }
func (e BookingExpiredEvent) OccurredAt() time.Time { return e.ExpiredAt }

// TicketIssuedEvent records ticket issuance for a confirmed booking. The
// recipient fields let the notification consumer send without re-reading
// the booking.
type TicketIssuedEvent struct {
	TicketNumber   string    `json:"ticket_number"`
	BookingID      string    `json:"booking_id"`
	PnrCode        PnrCode   `json:"pnr_code"`
	PassengerID    string    `json:"passenger_id"`
	PassengerName  string    `json:"passenger_name"`
	RecipientEmail string    `json:"recipient_email"`
	IssuedAt       time.Time `json:"issued_at"`
}

func (e TicketIssuedEvent) EventType() string { return EventTypeTicketIssued }
func (e TicketIssuedEvent) AggregateID() string { return e.TicketNumber }
func (e TicketIssuedEvent) OccurredAt() time.Time { return e.IssuedAt }
