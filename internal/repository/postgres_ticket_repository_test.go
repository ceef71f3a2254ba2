package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
)

func newTestTicket(t *testing.T, bookingID, ticketNumber string) *domain.Ticket {
	t.Helper()

	booking := newTestBooking(t, bookingID, "test-flight-tkt")
	if err := booking.Confirm("txn-tkt", time.Now()); err != nil {
		t.Fatalf("Failed to confirm booking: %v", err)
	}

	ticket, err := domain.IssueTicket(booking, ticketNumber)
	if err != nil {
		t.Fatalf("Failed to issue ticket: %v", err)
	}
	return ticket
}

func TestPostgresTicketRepository_SaveAndFindByBookingID(t *testing.T) {
	skipIfNoIntegration(t)

	db := setupTestDB(t)
	defer db.Close()
	defer cleanupTestData(t, db)

	uow := NewPgxTransactionManager(db.Pool())
	outbox := NewPostgresOutboxRepository(db.Pool())
	repo := NewPostgresTicketRepository(db.Pool(), uow, outbox)
	ctx := context.Background()

	ticket := newTestTicket(t, "test-booking-ticket", "7312400000001")
	if err := repo.Save(ctx, ticket); err != nil {
		t.Fatalf("Failed to save ticket: %v", err)
	}
	if len(ticket.PendingEvents()) != 0 {
		t.Errorf("PendingEvents after save = %d, want 0", len(ticket.PendingEvents()))
	}

	found, err := repo.FindByBookingID(ctx, "test-booking-ticket")
	if err != nil {
		t.Fatalf("Failed to find ticket: %v", err)
	}
	if found == nil {
		t.Fatal("Expected ticket, got nil")
	}

	if found.TicketNumber != "7312400000001" {
		t.Errorf("TicketNumber = %s, want 7312400000001", found.TicketNumber)
	}
	if found.Status != domain.TicketStatusIssued {
		t.Errorf("Status = %s, want %s", found.Status, domain.TicketStatusIssued)
	}
	if found.PassengerName != "Ada Lovelace" {
		t.Errorf("PassengerName = %s, want Ada Lovelace", found.PassengerName)
	}
	if len(found.Coupons) != 1 {
		t.Fatalf("Coupons = %d, want 1", len(found.Coupons))
	}
	if found.Coupons[0].Number != 1 {
		t.Errorf("Coupon number = %d, want 1", found.Coupons[0].Number)
	}
	if found.Coupons[0].FlightID != "test-flight-tkt" {
		t.Errorf("Coupon flight = %s, want test-flight-tkt", found.Coupons[0].FlightID)
	}
	if found.Coupons[0].Status != domain.CouponStatusOpen {
		t.Errorf("Coupon status = %s, want %s", found.Coupons[0].Status, domain.CouponStatusOpen)
	}
}

func TestPostgresTicketRepository_Save_DuplicateBooking(t *testing.T) {
	skipIfNoIntegration(t)

	db := setupTestDB(t)
	defer db.Close()
	defer cleanupTestData(t, db)

	uow := NewPgxTransactionManager(db.Pool())
	outbox := NewPostgresOutboxRepository(db.Pool())
	repo := NewPostgresTicketRepository(db.Pool(), uow, outbox)
	ctx := context.Background()

	first := newTestTicket(t, "test-booking-dup-tkt", "7312400000002")
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Failed to save first ticket: %v", err)
	}

	second := newTestTicket(t, "test-booking-dup-tkt", "7312400000003")
	err := repo.Save(ctx, second)
	if !errors.Is(err, domain.ErrDuplicateEntity) {
		t.Errorf("Expected ErrDuplicateEntity, got %v", err)
	}

	// The first ticket must be untouched by the failed insert.
	found, err := repo.FindByBookingID(ctx, "test-booking-dup-tkt")
	if err != nil {
		t.Fatalf("Failed to find ticket: %v", err)
	}
	if found == nil || found.TicketNumber != "7312400000002" {
		t.Errorf("FindByBookingID = %+v, want ticket 7312400000002", found)
	}
}

func TestPostgresTicketRepository_FindByBookingID_NotFound(t *testing.T) {
	skipIfNoIntegration(t)

	db := setupTestDB(t)
	defer db.Close()

	uow := NewPgxTransactionManager(db.Pool())
	outbox := NewPostgresOutboxRepository(db.Pool())
	repo := NewPostgresTicketRepository(db.Pool(), uow, outbox)

	found, err := repo.FindByBookingID(context.Background(), "test-booking-unticketed")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if found != nil {
		t.Errorf("Expected nil ticket, got %+v", found)
	}
}

func TestPostgresTicketRepository_FindByTicketNumber(t *testing.T) {
	skipIfNoIntegration(t)

	db := setupTestDB(t)
	defer db.Close()
	defer cleanupTestData(t, db)

	uow := NewPgxTransactionManager(db.Pool())
	outbox := NewPostgresOutboxRepository(db.Pool())
	repo := NewPostgresTicketRepository(db.Pool(), uow, outbox)
	ctx := context.Background()

	ticket := newTestTicket(t, "test-booking-bynum", "7312400000004")
	if err := repo.Save(ctx, ticket); err != nil {
		t.Fatalf("Failed to save ticket: %v", err)
	}

	found, err := repo.FindByTicketNumber(ctx, "7312400000004")
	if err != nil {
		t.Fatalf("Failed to find ticket: %v", err)
	}
	if found == nil || found.BookingID != "test-booking-bynum" {
		t.Errorf("FindByTicketNumber = %+v, want booking test-booking-bynum", found)
	}
}
