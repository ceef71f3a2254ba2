package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakate/aeroreserve/internal/domain"
)

// PostgresBookingRepository implements BookingRepository using PostgreSQL
type PostgresBookingRepository struct {
	pool   *pgxpool.Pool
	uow    TransactionManager
	outbox OutboxRepository
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(pool *pgxpool.Pool, uow TransactionManager, outbox OutboxRepository) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		pool:   pool,
		uow:    uow,
		outbox: outbox,
	}
}

const bookingColumns = `
	id, pnr_code, status, contact_email,
	payment_transaction_id, paid_at, cancel_reason,
	version, expires_at, created_at, updated_at
`

// Save persists the booking under its version guard, replaces child rows
// and appends staged events to the outbox in the same transaction
func (r *PostgresBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	now := time.Now()

	err := r.uow.Transaction(ctx, func(ctx context.Context) error {
		q := queryerFrom(ctx, r.pool)

		if booking.Version == 0 {
			if err := r.insertBooking(ctx, q, booking, now); err != nil {
				return err
			}
		} else {
			if err := r.updateBooking(ctx, q, booking, now); err != nil {
				return err
			}
		}

		if err := r.replaceChildren(ctx, q, booking); err != nil {
			return err
		}

		for _, event := range booking.PendingEvents() {
			entry, err := domain.NewOutboxEntry(event, domain.AggregateTypeBooking)
			if err != nil {
				return fmt.Errorf("failed to build outbox entry: %w", err)
			}
			if err := r.outbox.Persist(ctx, entry); err != nil {
				return err
			}
		}

		// The in-memory aggregate must not advance until the outermost
		// transaction commits; a joined save defers this to the owner.
		OnCommit(ctx, func() {
			booking.Version++
			booking.UpdatedAt = now
			booking.ClearPendingEvents()
		})

		return nil
	})
	return err
}

func (r *PostgresBookingRepository) insertBooking(ctx context.Context, q querier, booking *domain.Booking, now time.Time) error {
	query := `
		INSERT INTO bookings (
			id, pnr_code, status, contact_email,
			payment_transaction_id, paid_at, cancel_reason,
			version, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := q.Exec(ctx, query,
		booking.ID,
		booking.PnrCode.String(),
		booking.Status.String(),
		booking.ContactEmail,
		nullStringPtr(booking.PaymentTransactionID),
		booking.PaidAt,
		nullStringPtr(booking.CancelReason),
		booking.Version+1,
		booking.ExpiresAt,
		booking.CreatedAt,
		now,
	)
	if err != nil {
		return mapPgError("insert booking", err)
	}

	return nil
}

func (r *PostgresBookingRepository) updateBooking(ctx context.Context, q querier, booking *domain.Booking, now time.Time) error {
	query := `
		UPDATE bookings SET
			status = $2,
			contact_email = $3,
			payment_transaction_id = $4,
			paid_at = $5,
			cancel_reason = $6,
			version = $7,
			expires_at = $8,
			updated_at = $9
		WHERE id = $1 AND version = $10
	`

	result, err := q.Exec(ctx, query,
		booking.ID,
		booking.Status.String(),
		booking.ContactEmail,
		nullStringPtr(booking.PaymentTransactionID),
		booking.PaidAt,
		nullStringPtr(booking.CancelReason),
		booking.Version+1,
		booking.ExpiresAt,
		now,
		booking.Version,
	)
	if err != nil {
		return mapPgError("update booking", err)
	}

	if result.RowsAffected() == 0 {
		// Check whether the row is missing or the version moved
		var actual int64
		err := q.QueryRow(ctx, "SELECT version FROM bookings WHERE id = $1", booking.ID).Scan(&actual)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("booking %s: %w", booking.ID, domain.ErrBookingNotFound)
			}
			return mapPgError("check booking version", err)
		}
		return &domain.OptimisticLockError{
			AggregateID:     booking.ID,
			ExpectedVersion: booking.Version,
			ActualVersion:   actual,
		}
	}

	return nil
}

// replaceChildren rewrites passenger and segment rows from the aggregate.
// Position columns preserve slice order on reload.
func (r *PostgresBookingRepository) replaceChildren(ctx context.Context, q querier, booking *domain.Booking) error {
	if _, err := q.Exec(ctx, "DELETE FROM passengers WHERE booking_id = $1", booking.ID); err != nil {
		return mapPgError("delete passengers", err)
	}
	if _, err := q.Exec(ctx, "DELETE FROM segments WHERE booking_id = $1", booking.ID); err != nil {
		return mapPgError("delete segments", err)
	}

	passengerQuery := `
		INSERT INTO passengers (
			id, booking_id, first_name, last_name,
			date_of_birth, gender, passenger_type, position
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`
	for i, p := range booking.Passengers {
		_, err := q.Exec(ctx, passengerQuery,
			p.ID,
			booking.ID,
			p.FirstName,
			p.LastName,
			p.DateOfBirth,
			string(p.Gender),
			string(p.Type),
			i,
		)
		if err != nil {
			return mapPgError("insert passenger", err)
		}
	}

	segmentQuery := `
		INSERT INTO segments (
			id, booking_id, flight_id, cabin,
			price_amount, price_currency, seat_number, position
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`
	for i, s := range booking.Segments {
		_, err := q.Exec(ctx, segmentQuery,
			s.ID,
			booking.ID,
			s.FlightID,
			s.Cabin.String(),
			s.Price.Amount(),
			s.Price.Currency().String(),
			nullStringPtr(s.SeatNumber),
			i,
		)
		if err != nil {
			return mapPgError("insert segment", err)
		}
	}

	return nil
}

// FindByID retrieves a booking with its children, (nil, nil) on miss
func (r *PostgresBookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	q := queryerFrom(ctx, r.pool)
	booking, err := scanBooking(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPgError("find booking", err)
	}

	if err := r.loadChildren(ctx, q, booking); err != nil {
		return nil, err
	}

	return booking, nil
}

// FindByPnr retrieves the non-terminal booking holding the record locator,
// (nil, nil) when the locator is free
func (r *PostgresBookingRepository) FindByPnr(ctx context.Context, pnr domain.PnrCode) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE pnr_code = $1 AND status = $2`

	q := queryerFrom(ctx, r.pool)
	booking, err := scanBooking(q.QueryRow(ctx, query, pnr.String(), domain.BookingStatusHeld.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPgError("find booking by pnr", err)
	}

	if err := r.loadChildren(ctx, q, booking); err != nil {
		return nil, err
	}

	return booking, nil
}

// FindExpired pages held bookings whose hold lapsed before the cutoff
func (r *PostgresBookingRepository) FindExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3
	`

	q := queryerFrom(ctx, r.pool)
	rows, err := q.Query(ctx, query, domain.BookingStatusHeld.String(), before, limit)
	if err != nil {
		return nil, mapPgError("find expired bookings", err)
	}
	defer rows.Close()

	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}

	for _, booking := range bookings {
		if err := r.loadChildren(ctx, q, booking); err != nil {
			return nil, err
		}
	}

	return bookings, nil
}

// FindByPassengerID lists bookings naming the passenger, newest first
func (r *PostgresBookingRepository) FindByPassengerID(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE id IN (SELECT booking_id FROM passengers WHERE id = $1)
		ORDER BY created_at DESC
	`

	q := queryerFrom(ctx, r.pool)
	rows, err := q.Query(ctx, query, passengerID)
	if err != nil {
		return nil, mapPgError("find bookings by passenger", err)
	}
	defer rows.Close()

	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}

	for _, booking := range bookings {
		if err := r.loadChildren(ctx, q, booking); err != nil {
			return nil, err
		}
	}

	return bookings, nil
}

// loadChildren loads passenger and segment rows in stored order
func (r *PostgresBookingRepository) loadChildren(ctx context.Context, q querier, booking *domain.Booking) error {
	passengerQuery := `
		SELECT id, first_name, last_name, date_of_birth, gender, passenger_type
		FROM passengers
		WHERE booking_id = $1
		ORDER BY position ASC
	`

	rows, err := q.Query(ctx, passengerQuery, booking.ID)
	if err != nil {
		return mapPgError("load passengers", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p      domain.Passenger
			gender string
			ptype  string
		)
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &gender, &ptype); err != nil {
			return mapPgError("scan passenger", err)
		}
		p.Gender = domain.Gender(gender)
		p.Type = domain.PassengerType(ptype)
		booking.Passengers = append(booking.Passengers, p)
	}
	if err := rows.Err(); err != nil {
		return mapPgError("iterate passengers", err)
	}
	rows.Close()

	segmentQuery := `
		SELECT id, flight_id, cabin, price_amount, price_currency, seat_number
		FROM segments
		WHERE booking_id = $1
		ORDER BY position ASC
	`

	rows, err = q.Query(ctx, segmentQuery, booking.ID)
	if err != nil {
		return mapPgError("load segments", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s          domain.Segment
			cabin      string
			amount     int64
			currency   string
			seatNumber *string
		)
		if err := rows.Scan(&s.ID, &s.FlightID, &cabin, &amount, &currency, &seatNumber); err != nil {
			return mapPgError("scan segment", err)
		}

		price, err := domain.NewMoney(amount, domain.Currency(currency))
		if err != nil {
			return &domain.PersistenceError{
				Op:   "decode segment price",
				Kind: domain.ErrDataIntegrity,
				Err:  err,
			}
		}

		s.Cabin = domain.CabinClass(cabin)
		s.Price = price
		s.SeatNumber = derefString(seatNumber)
		booking.Segments = append(booking.Segments, s)
	}
	if err := rows.Err(); err != nil {
		return mapPgError("iterate segments", err)
	}

	return nil
}

// scanBooking scans a single booking row
func scanBooking(row pgx.Row) (*domain.Booking, error) {
	b := &domain.Booking{}
	var (
		pnr          string
		status       string
		paymentTxnID *string
		cancelReason *string
	)

	err := row.Scan(
		&b.ID,
		&pnr,
		&status,
		&b.ContactEmail,
		&paymentTxnID,
		&b.PaidAt,
		&cancelReason,
		&b.Version,
		&b.ExpiresAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.PnrCode = domain.PnrCode(pnr)
	b.Status = domain.BookingStatus(status)
	b.PaymentTransactionID = derefString(paymentTxnID)
	b.CancelReason = derefString(cancelReason)

	return b, nil
}

// scanBookings scans booking rows without children
func scanBookings(rows pgx.Rows) ([]*domain.Booking, error) {
	var bookings []*domain.Booking

	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, mapPgError("scan booking", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, mapPgError("iterate bookings", err)
	}

	return bookings, nil
}

// Ensure PostgresBookingRepository implements BookingRepository
var _ BookingRepository = (*PostgresBookingRepository)(nil)
