package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakate/aeroreserve/internal/domain"
)

// PostgresTicketRepository stores tickets and coupons in PostgreSQL.
// A unique index on booking_id guarantees at most one ticket per
// booking; a duplicate insert surfaces as ErrDuplicateEntity so the
// caller can treat the ticket as already issued.
type PostgresTicketRepository struct {
	pool   *pgxpool.Pool
	uow    TransactionManager
	outbox OutboxRepository
}

// NewPostgresTicketRepository creates a PostgreSQL ticket repository.
func NewPostgresTicketRepository(pool *pgxpool.Pool, uow TransactionManager, outbox OutboxRepository) *PostgresTicketRepository {
	return &PostgresTicketRepository{pool: pool, uow: uow, outbox: outbox}
}

// Save inserts the ticket, its coupons and its pending events in one
// transaction. Tickets are immutable, so there is no update path.
func (r *PostgresTicketRepository) Save(ctx context.Context, ticket *domain.Ticket) error {
	err := r.uow.Transaction(ctx, func(txCtx context.Context) error {
		q := queryerFrom(txCtx, r.pool)

		_, err := q.Exec(txCtx, `
			INSERT INTO tickets (ticket_number, booking_id, pnr_code, status, passenger_id, passenger_name, issued_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ticket.TicketNumber,
			ticket.BookingID,
			string(ticket.PnrCode),
			string(ticket.Status),
			ticket.PassengerID,
			ticket.PassengerName,
			ticket.IssuedAt,
		)
		if err != nil {
			return mapPgError("insert ticket", err)
		}

		for _, c := range ticket.Coupons {
			_, err := q.Exec(txCtx, `
				INSERT INTO coupons (ticket_number, coupon_number, flight_id, seat_number, status)
				VALUES ($1, $2, $3, $4, $5)`,
				ticket.TicketNumber,
				c.Number,
				c.FlightID,
				nullStringPtr(c.SeatNumber),
				string(c.Status),
			)
			if err != nil {
				return mapPgError("insert coupon", err)
			}
		}

		for _, event := range ticket.PendingEvents() {
			entry, err := domain.NewOutboxEntry(event, domain.AggregateTypeTicket)
			if err != nil {
				return fmt.Errorf("build outbox entry: %w", err)
			}
			if err := r.outbox.Persist(txCtx, entry); err != nil {
				return err
			}
		}

		OnCommit(txCtx, ticket.ClearPendingEvents)
		return nil
	})
	return err
}

// FindByBookingID returns the ticket issued for a booking, or (nil, nil)
// when no ticket exists.
func (r *PostgresTicketRepository) FindByBookingID(ctx context.Context, bookingID string) (*domain.Ticket, error) {
	return r.findOne(ctx, `
		SELECT ticket_number, booking_id, pnr_code, status, passenger_id, passenger_name, issued_at
		FROM tickets
		WHERE booking_id = $1`, bookingID)
}

// FindByTicketNumber returns the ticket with the given document number,
// or (nil, nil) when it does not exist.
func (r *PostgresTicketRepository) FindByTicketNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error) {
	return r.findOne(ctx, `
		SELECT ticket_number, booking_id, pnr_code, status, passenger_id, passenger_name, issued_at
		FROM tickets
		WHERE ticket_number = $1`, ticketNumber)
}

func (r *PostgresTicketRepository) findOne(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	q := queryerFrom(ctx, r.pool)

	var (
		ticket domain.Ticket
		pnr    string
		status string
	)
	err := q.QueryRow(ctx, query, arg).Scan(
		&ticket.TicketNumber,
		&ticket.BookingID,
		&pnr,
		&status,
		&ticket.PassengerID,
		&ticket.PassengerName,
		&ticket.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPgError("find ticket", err)
	}
	ticket.PnrCode = domain.PnrCode(pnr)
	ticket.Status = domain.TicketStatus(status)

	if err := r.loadCoupons(ctx, q, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *PostgresTicketRepository) loadCoupons(ctx context.Context, q querier, ticket *domain.Ticket) error {
	rows, err := q.Query(ctx, `
		SELECT coupon_number, flight_id, seat_number, status
		FROM coupons
		WHERE ticket_number = $1
		ORDER BY coupon_number ASC`, ticket.TicketNumber)
	if err != nil {
		return mapPgError("load coupons", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c          domain.Coupon
			seatNumber *string
			status     string
		)
		if err := rows.Scan(&c.Number, &c.FlightID, &seatNumber, &status); err != nil {
			return mapPgError("scan coupon", err)
		}
		c.SeatNumber = derefString(seatNumber)
		c.Status = domain.CouponStatus(status)
		ticket.Coupons = append(ticket.Coupons, c)
	}
	if err := rows.Err(); err != nil {
		return mapPgError("iterate coupons", err)
	}
	return nil
}

var _ TicketRepository = (*PostgresTicketRepository)(nil)
