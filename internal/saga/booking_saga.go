// Package saga orchestrates the booking workflow: hold a seat, persist a
// held booking, open a payment checkout, then confirm on success or
// compensate on failure. Compensation releases the seat, cancels the
// booking and surfaces the original failure; anything it cannot undo is
// reclaimed by the expiration sweeper.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/gateway"
	"github.com/bakate/aeroreserve/internal/inventory"
	"github.com/bakate/aeroreserve/internal/metrics"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/pkg/logger"
	"github.com/bakate/aeroreserve/pkg/retry"
)

// SeatInventory is the slice of the inventory engine the saga drives.
type SeatInventory interface {
	HoldSeats(ctx context.Context, flightID string, cabin domain.CabinClass, seats int) (*inventory.HoldResult, error)
	ReleaseSeats(ctx context.Context, flightID string, cabin domain.CabinClass, seats int) (*inventory.ReleaseResult, error)
}

// BookFlightCommand carries one passenger's request for one seat on one
// flight. SuccessURL and CancelURL override the configured defaults when
// set.
type BookFlightCommand struct {
	FlightID     string
	Cabin        domain.CabinClass
	Passenger    domain.Passenger
	ContactEmail string
	SeatNumber   string
	SuccessURL   string
	CancelURL    string
}

// Validate checks the fields the saga needs before touching inventory.
// Passenger details are fully validated when the booking is built.
func (c *BookFlightCommand) Validate() error {
	if strings.TrimSpace(c.FlightID) == "" {
		return fmt.Errorf("flight id is required: %w", domain.ErrInvalidSegment)
	}
	if !c.Cabin.IsValid() {
		return fmt.Errorf("cabin %q: %w", c.Cabin, domain.ErrInvalidSegment)
	}
	if strings.TrimSpace(c.ContactEmail) == "" {
		return fmt.Errorf("contact email is required: %w", domain.ErrInvalidPassenger)
	}
	return nil
}

// BookFlightResult is what BookFlight hands back to the caller. The
// booking is Held when checkout completion arrives out of band, Confirmed
// when the saga polled the checkout to completion itself.
type BookFlightResult struct {
	Booking     *domain.Booking
	CheckoutURL string
}

// BookingSagaConfig holds configuration for the booking saga
type BookingSagaConfig struct {
	// CarrierCode is the 3-digit prefix on issued ticket numbers
	CarrierCode string
	// PnrMaxAttempts bounds the unique record locator search
	PnrMaxAttempts int
	// ConfirmMaxRetries is how many extra saves a confirm or cancel gets
	// after an optimistic conflict, re-reading the booking in between
	ConfirmMaxRetries int
	// HoldDuration is how long a held booking keeps its seat
	HoldDuration time.Duration
	// SuccessURL and CancelURL are the checkout redirect defaults
	SuccessURL string
	CancelURL  string
	// PaymentTimeout caps each checkout API call
	PaymentTimeout time.Duration
	// PaymentMaxAttempts bounds transport attempts per checkout API call
	PaymentMaxAttempts int
	// PollInterval is the pause between checkout status polls
	PollInterval time.Duration
	// PollTimeout bounds the whole checkout await. Zero disables polling:
	// BookFlight returns the held booking and the checkout URL, and a
	// webhook drives ConfirmBooking.
	PollTimeout time.Duration
	// NotifyTimeout caps each ticket notification send
	NotifyTimeout time.Duration
	// NotifyMaxAttempts bounds notification sends per ticket
	NotifyMaxAttempts int
}

// DefaultBookingSagaConfig returns default configuration
func DefaultBookingSagaConfig() *BookingSagaConfig {
	return &BookingSagaConfig{
		CarrierCode:        "731",
		PnrMaxAttempts:     100,
		ConfirmMaxRetries:  3,
		HoldDuration:       30 * time.Minute,
		PaymentTimeout:     30 * time.Second,
		PaymentMaxAttempts: 3,
		PollInterval:       3 * time.Second,
		PollTimeout:        0,
		NotifyTimeout:      10 * time.Second,
		NotifyMaxAttempts:  3,
	}
}

// errAlreadyApplied signals that a re-read booking no longer needs the
// requested transition, so the retrying save can stop successfully.
var errAlreadyApplied = errors.New("transition already applied")

// BookingSaga coordinates inventory, persistence, payment and
// notification for one booking at a time.
type BookingSaga struct {
	inventory SeatInventory
	bookings  repository.BookingRepository
	tickets   repository.TicketRepository
	tx        repository.TransactionManager
	payments  gateway.PaymentGateway
	notifier  gateway.NotificationGateway
	config    *BookingSagaConfig
	log       *logger.Logger
}

// NewBookingSaga creates a new booking saga
func NewBookingSaga(
	inventory SeatInventory,
	bookings repository.BookingRepository,
	tickets repository.TicketRepository,
	tx repository.TransactionManager,
	payments gateway.PaymentGateway,
	notifier gateway.NotificationGateway,
	config *BookingSagaConfig,
) *BookingSaga {
	if config == nil {
		config = DefaultBookingSagaConfig()
	}
	if config.PnrMaxAttempts <= 0 {
		config.PnrMaxAttempts = 100
	}
	if config.ConfirmMaxRetries < 0 {
		config.ConfirmMaxRetries = 0
	}
	if config.HoldDuration <= 0 {
		config.HoldDuration = 30 * time.Minute
	}
	if config.PaymentTimeout <= 0 {
		config.PaymentTimeout = 30 * time.Second
	}
	if config.PaymentMaxAttempts <= 0 {
		config.PaymentMaxAttempts = 3
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 3 * time.Second
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = 10 * time.Second
	}
	if config.NotifyMaxAttempts <= 0 {
		config.NotifyMaxAttempts = 3
	}

	return &BookingSaga{
		inventory: inventory,
		bookings:  bookings,
		tickets:   tickets,
		tx:        tx,
		payments:  payments,
		notifier:  notifier,
		config:    config,
		log:       logger.Get(),
	}
}

// BookFlight runs the booking workflow for one seat. On a payment
// terminal failure it compensates and returns the original failure. A
// caller cancellation aborts without compensation: the held booking
// stays persisted and the sweeper reclaims it.
func (s *BookingSaga) BookFlight(ctx context.Context, cmd *BookFlightCommand) (*BookFlightResult, error) {
	if cmd == nil {
		return nil, fmt.Errorf("book flight command is required")
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Step 1: hold the seat. Nothing is persisted yet, so a full flight
	// propagates straight to the caller.
	hold, err := s.inventory.HoldSeats(ctx, cmd.FlightID, cmd.Cabin, 1)
	if err != nil {
		return nil, fmt.Errorf("hold seats: %w", err)
	}

	// Steps 2-3: build and persist the held booking. Until the booking
	// row exists the hold is invisible to the sweeper, so failures here
	// must release the seat themselves, even when the caller is gone.
	booking, err := s.prepareHeldBooking(ctx, cmd, hold)
	if err != nil {
		s.releaseSeat(context.WithoutCancel(ctx), cmd.FlightID, cmd.Cabin)
		return nil, err
	}

	// Step 4: open the checkout, idempotent on the PNR.
	session, err := s.openCheckout(ctx, booking, cmd)
	if err != nil {
		return nil, s.compensate(ctx, booking, err)
	}

	if s.config.PollTimeout <= 0 {
		// Checkout completion arrives through the webhook entrypoint.
		return &BookFlightResult{Booking: booking, CheckoutURL: session.CheckoutURL}, nil
	}

	confirmation, err := s.awaitCheckout(ctx, session.ID)
	if err != nil {
		if ctx.Err() != nil {
			// Caller abandoned the saga mid-await. The held booking
			// stays for the sweeper.
			return nil, fmt.Errorf("await checkout: %w", err)
		}
		return nil, s.compensate(ctx, booking, err)
	}

	// Step 6: confirm. Payment has settled, so failures here are
	// surfaced without compensation; a later ConfirmBooking or the
	// sweeper resolves the booking.
	confirmed, err := s.applyConfirm(ctx, booking, confirmation)
	if err != nil {
		s.log.Error(fmt.Sprintf("Booking %s paid but not confirmed: %v", booking.ID, err))
		return nil, err
	}

	// Step 7: ticket and notification, both non-fatal.
	s.finalizeConfirmed(ctx, confirmed)

	return &BookFlightResult{Booking: confirmed, CheckoutURL: session.CheckoutURL}, nil
}

// ConfirmBooking is the idempotent completion entrypoint used when the
// checkout outcome arrives out of band, typically a provider webhook. A
// confirmed booking reports success and backfills a missing ticket; held
// bookings are confirmed with the supplied payment details; other
// terminal bookings fail with ErrInvalidBookingState.
func (s *BookingSaga) ConfirmBooking(ctx context.Context, bookingID string, confirmation *gateway.PaymentConfirmation) (*domain.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, fmt.Errorf("booking id is required")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, domain.ErrBookingNotFound)
	}

	if booking.IsConfirmed() {
		s.finalizeConfirmed(ctx, booking)
		return booking, nil
	}
	if booking.IsTerminal() {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, domain.ErrInvalidBookingState)
	}

	confirmed, err := s.applyConfirm(ctx, booking, confirmation)
	if err != nil {
		return nil, err
	}

	s.finalizeConfirmed(ctx, confirmed)
	return confirmed, nil
}

// CancelBooking drives a held booking to Cancelled on the passenger's
// request. The cancelled state is persisted before seats are released:
// the version guard on the save loses cleanly against a concurrent
// payment confirmation, which must keep its seats. Bookings that already
// reached Cancelled or Expired report success with their actual state.
func (s *BookingSaga) CancelBooking(ctx context.Context, bookingID, reason string) (*domain.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, fmt.Errorf("booking id is required")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "passenger_request"
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, domain.ErrBookingNotFound)
	}

	switch booking.Status {
	case domain.BookingStatusCancelled, domain.BookingStatusExpired:
		return booking, nil
	case domain.BookingStatusConfirmed:
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, domain.ErrInvalidBookingState)
	}

	// applied tracks whether the final save attempt carried our
	// transition, as opposed to finding it done already.
	applied := false
	cancelled, err := s.saveBookingRetrying(ctx, booking, func(current *domain.Booking) error {
		applied = false
		switch current.Status {
		case domain.BookingStatusCancelled, domain.BookingStatusExpired:
			return errAlreadyApplied
		}
		applied = true
		return current.Cancel(reason)
	})
	if err != nil {
		return nil, fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}

	if applied {
		for _, segment := range cancelled.Segments {
			s.releaseSeat(ctx, segment.FlightID, segment.Cabin)
		}
		metrics.RecordBookingCancelled(ctx, reason)
	}
	return cancelled, nil
}

// prepareHeldBooking allocates a unique PNR, builds the held booking at
// the fare the hold was priced at and persists it with its
// BookingCreated event.
func (s *BookingSaga) prepareHeldBooking(ctx context.Context, cmd *BookFlightCommand, hold *inventory.HoldResult) (*domain.Booking, error) {
	pnr, err := s.allocatePnr(ctx)
	if err != nil {
		return nil, err
	}

	passenger := cmd.Passenger
	if passenger.ID == "" {
		passenger.ID = uuid.New().String()
	}
	segment := domain.Segment{
		ID:         uuid.New().String(),
		FlightID:   cmd.FlightID,
		Cabin:      cmd.Cabin,
		Price:      hold.UnitPrice,
		SeatNumber: cmd.SeatNumber,
	}

	booking, err := domain.NewBooking(
		uuid.New().String(),
		pnr,
		cmd.ContactEmail,
		[]domain.Passenger{passenger},
		[]domain.Segment{segment},
		s.config.HoldDuration,
	)
	if err != nil {
		return nil, err
	}

	if err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		return s.bookings.Save(ctx, booking)
	}); err != nil {
		return nil, fmt.Errorf("persist held booking: %w", err)
	}

	metrics.RecordBookingCreated(ctx)
	return booking, nil
}

// allocatePnr draws record locators until one is free among live
// bookings, bounded by PnrMaxAttempts.
func (s *BookingSaga) allocatePnr(ctx context.Context) (domain.PnrCode, error) {
	for attempt := 1; attempt <= s.config.PnrMaxAttempts; attempt++ {
		pnr, err := domain.GeneratePnrCode()
		if err != nil {
			return "", fmt.Errorf("generate pnr: %w", err)
		}

		existing, err := s.bookings.FindByPnr(ctx, pnr)
		if err != nil {
			return "", fmt.Errorf("probe pnr: %w", err)
		}
		if existing == nil {
			return pnr, nil
		}
		metrics.RecordPnrCollision(ctx)
	}
	return "", fmt.Errorf("%d attempts: %w", s.config.PnrMaxAttempts, domain.ErrPnrExhausted)
}

// openCheckout creates the payment session, retrying transport failures.
// The provider-side idempotency key is derived from the PNR, so retries
// land on the same session.
func (s *BookingSaga) openCheckout(ctx context.Context, booking *domain.Booking, cmd *BookFlightCommand) (*gateway.CheckoutSession, error) {
	amount, err := booking.TotalPrice()
	if err != nil {
		return nil, fmt.Errorf("price booking: %w", err)
	}

	params := &gateway.CreateCheckoutParams{
		Amount:           amount,
		CustomerEmail:    booking.ContactEmail,
		BookingReference: string(booking.PnrCode),
		BookingID:        booking.ID,
		SuccessURL:       s.config.SuccessURL,
		CancelURL:        s.config.CancelURL,
	}
	if cmd.SuccessURL != "" {
		params.SuccessURL = cmd.SuccessURL
	}
	if cmd.CancelURL != "" {
		params.CancelURL = cmd.CancelURL
	}
	if booking.ExpiresAt != nil {
		params.ExpiresAt = *booking.ExpiresAt
	}

	var session *gateway.CheckoutSession
	result := retry.Do(ctx, s.transportRetryConfig(), func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.config.PaymentTimeout)
		defer cancel()

		created, err := s.payments.CreateCheckout(callCtx, params)
		if err != nil {
			if errors.Is(err, domain.ErrPaymentDeclined) || errors.Is(err, domain.ErrUnsupportedCurrency) {
				return retry.Permanent(err)
			}
			return err
		}
		session = created
		return nil
	})
	if result.Err != nil {
		return nil, fmt.Errorf("create checkout: %w", result.Err)
	}
	return session, nil
}

// awaitCheckout polls the checkout until it reaches a terminal state or
// PollTimeout elapses. A still-pending checkout at the deadline counts as
// expired and triggers compensation.
func (s *BookingSaga) awaitCheckout(ctx context.Context, checkoutID string) (*gateway.PaymentConfirmation, error) {
	deadline := time.Now().Add(s.config.PollTimeout)
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		status, err := s.checkoutStatus(ctx, checkoutID)
		if err != nil {
			return nil, err
		}

		switch status.State {
		case gateway.CheckoutStateCompleted:
			if status.Confirmation == nil {
				return nil, fmt.Errorf("checkout %s completed without confirmation: %w", checkoutID, domain.ErrPaymentUnavailable)
			}
			return status.Confirmation, nil
		case gateway.CheckoutStateDeclined:
			return nil, fmt.Errorf("checkout %s: %s: %w", checkoutID, status.FailureReason, domain.ErrPaymentDeclined)
		case gateway.CheckoutStateFailed:
			return nil, fmt.Errorf("checkout %s: %s: %w", checkoutID, status.FailureReason, domain.ErrPaymentFailed)
		case gateway.CheckoutStateExpired:
			return nil, fmt.Errorf("checkout %s: %w", checkoutID, domain.ErrCheckoutExpired)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("checkout %s still pending after %s: %w", checkoutID, s.config.PollTimeout, domain.ErrCheckoutExpired)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// checkoutStatus reads the checkout state, retrying transport failures.
func (s *BookingSaga) checkoutStatus(ctx context.Context, checkoutID string) (*gateway.CheckoutStatus, error) {
	var status *gateway.CheckoutStatus
	result := retry.Do(ctx, s.transportRetryConfig(), func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.config.PaymentTimeout)
		defer cancel()

		current, err := s.payments.GetCheckoutStatus(callCtx, checkoutID)
		if err != nil {
			if errors.Is(err, domain.ErrCheckoutNotFound) {
				return retry.Permanent(err)
			}
			return err
		}
		status = current
		return nil
	})
	if result.Err != nil {
		return nil, fmt.Errorf("checkout status: %w", result.Err)
	}
	return status, nil
}

func (s *BookingSaga) transportRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:      s.config.PaymentMaxAttempts - 1,
		InitialInterval: 1 * time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
	}
}

// compensate unwinds a persisted held booking: release the seat, cancel
// the booking, then surface the original failure. Both undo steps are
// best-effort; whatever they leave behind the sweeper reclaims.
func (s *BookingSaga) compensate(ctx context.Context, booking *domain.Booking, cause error) error {
	reason := cancelReason(cause)
	s.log.Warn(fmt.Sprintf("Compensating booking %s (%s): %v", booking.ID, reason, cause))

	for _, segment := range booking.Segments {
		s.releaseSeat(ctx, segment.FlightID, segment.Cabin)
	}

	if _, err := s.saveBookingRetrying(ctx, booking, func(b *domain.Booking) error {
		if b.IsTerminal() {
			return errAlreadyApplied
		}
		return b.Cancel(reason)
	}); err != nil {
		s.log.Error(fmt.Sprintf("Failed to cancel booking %s during compensation: %v", booking.ID, err))
	} else {
		metrics.RecordBookingCancelled(ctx, reason)
	}

	return cause
}

// releaseSeat returns one seat to inventory, logging failures. The engine
// handles version-conflict retries internally.
func (s *BookingSaga) releaseSeat(ctx context.Context, flightID string, cabin domain.CabinClass) {
	if _, err := s.inventory.ReleaseSeats(ctx, flightID, cabin, 1); err != nil {
		s.log.Error(fmt.Sprintf("Failed to release seat on flight %s: %v", flightID, err))
	}
}

// cancelReason classifies a saga failure into a stable cancellation tag.
func cancelReason(cause error) string {
	switch {
	case errors.Is(cause, domain.ErrPaymentDeclined):
		return "payment_declined"
	case errors.Is(cause, domain.ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(cause, domain.ErrCheckoutExpired):
		return "checkout_expired"
	case errors.Is(cause, domain.ErrPaymentUnavailable):
		return "payment_unavailable"
	default:
		return "saga_failure"
	}
}

// applyConfirm settles the held booking with the payment details,
// retrying optimistic conflicts with a fresh read in between.
func (s *BookingSaga) applyConfirm(ctx context.Context, booking *domain.Booking, confirmation *gateway.PaymentConfirmation) (*domain.Booking, error) {
	transactionID := ""
	paidAt := time.Now()
	if confirmation != nil {
		transactionID = confirmation.TransactionID
		if !confirmation.PaidAt.IsZero() {
			paidAt = confirmation.PaidAt
		}
	}

	confirmed, err := s.saveBookingRetrying(ctx, booking, func(b *domain.Booking) error {
		if b.IsConfirmed() {
			return errAlreadyApplied
		}
		return b.Confirm(transactionID, paidAt)
	})
	if err != nil {
		return nil, fmt.Errorf("confirm booking %s: %w", booking.ID, err)
	}

	metrics.RecordBookingConfirmed(ctx, time.Since(confirmed.CreatedAt).Seconds())
	return confirmed, nil
}

// saveBookingRetrying applies mutate and saves, re-reading the booking and
// re-applying mutate after an optimistic conflict, up to ConfirmMaxRetries
// extra attempts. A mutate returning errAlreadyApplied reports success
// without another save, which is how a webhook race or a sweeper touch on
// an already-settled booking resolves.
func (s *BookingSaga) saveBookingRetrying(ctx context.Context, booking *domain.Booking, mutate func(*domain.Booking) error) (*domain.Booking, error) {
	current := booking
	for attempt := 0; ; attempt++ {
		if err := mutate(current); err != nil {
			if errors.Is(err, errAlreadyApplied) {
				return current, nil
			}
			return nil, err
		}

		err := s.tx.Transaction(ctx, func(ctx context.Context) error {
			return s.bookings.Save(ctx, current)
		})
		if err == nil {
			return current, nil
		}
		if !errors.Is(err, domain.ErrOptimisticLockConflict) || attempt >= s.config.ConfirmMaxRetries {
			return nil, err
		}

		fresh, findErr := s.bookings.FindByID(ctx, current.ID)
		if findErr != nil {
			return nil, fmt.Errorf("reload booking %s: %w", current.ID, findErr)
		}
		if fresh == nil {
			return nil, fmt.Errorf("booking %s: %w", current.ID, domain.ErrBookingNotFound)
		}
		current = fresh
	}
}

// finalizeConfirmed issues the ticket and sends the notification. Both
// are non-fatal: the TicketIssued outbox event gives delivery a durable
// second chance, and re-running ConfirmBooking backfills a missing
// ticket.
func (s *BookingSaga) finalizeConfirmed(ctx context.Context, booking *domain.Booking) {
	ticket, err := s.issueTicket(ctx, booking)
	if err != nil {
		s.log.Error(fmt.Sprintf("Failed to issue ticket for booking %s: %v", booking.ID, err))
		return
	}
	s.notifyTicket(ctx, booking, ticket)
}

// issueTicket creates the travel document exactly once per booking. A
// concurrent confirm path losing the insert race falls back to the
// winner's ticket.
func (s *BookingSaga) issueTicket(ctx context.Context, booking *domain.Booking) (*domain.Ticket, error) {
	existing, err := s.tickets.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("probe ticket: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	number, err := domain.GenerateTicketNumber(s.config.CarrierCode)
	if err != nil {
		return nil, err
	}
	ticket, err := domain.IssueTicket(booking, number)
	if err != nil {
		return nil, err
	}

	if err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		return s.tickets.Save(ctx, ticket)
	}); err != nil {
		if errors.Is(err, domain.ErrDuplicateEntity) {
			winner, findErr := s.tickets.FindByBookingID(ctx, booking.ID)
			if findErr == nil && winner != nil {
				return winner, nil
			}
		}
		return nil, fmt.Errorf("persist ticket: %w", err)
	}

	metrics.RecordTicketIssued(ctx)
	return ticket, nil
}

// notifyTicket emails the ticket with per-send timeouts and bounded
// retries. Failures are logged, never surfaced.
func (s *BookingSaga) notifyTicket(ctx context.Context, booking *domain.Booking, ticket *domain.Ticket) {
	recipient := &gateway.Recipient{
		Email: booking.ContactEmail,
		Name:  booking.LeadPassenger().FullName(),
	}

	cfg := &retry.Config{
		MaxRetries:      s.config.NotifyMaxAttempts - 1,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
	result := retry.Do(ctx, cfg, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.config.NotifyTimeout)
		defer cancel()

		_, err := s.notifier.SendTicket(callCtx, ticket, recipient)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrInvalidRecipient) || errors.Is(err, domain.ErrNotificationAuth) {
			return retry.Permanent(err)
		}

		// Honor the provider's advertised backoff before the next try.
		var rateLimited *domain.RateLimitError
		if errors.As(err, &rateLimited) && rateLimited.RetryAfter > 0 {
			select {
			case <-time.After(rateLimited.RetryAfter):
			case <-ctx.Done():
				return retry.Permanent(ctx.Err())
			}
		}
		return err
	})
	if result.Err != nil {
		metrics.RecordNotificationFailed(ctx, "send_error")
		s.log.Warn(fmt.Sprintf("Failed to send ticket %s for booking %s: %v", ticket.TicketNumber, booking.ID, result.Err))
		return
	}

	metrics.RecordNotificationSent(ctx)
}
