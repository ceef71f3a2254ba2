package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements creates the persistence schema. Every statement is
// idempotent so Bootstrap can run on every startup.
//
// The partial unique index on bookings enforces record locator
// uniqueness among held bookings only: once a booking reaches a
// terminal status its locator may be assigned again.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS flight_inventory (
		flight_id TEXT PRIMARY KEY,
		availability JSONB NOT NULL,
		version BIGINT NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		pnr_code TEXT NOT NULL,
		status TEXT NOT NULL,
		contact_email TEXT NOT NULL,
		payment_transaction_id TEXT,
		paid_at TIMESTAMPTZ,
		cancel_reason TEXT,
		version BIGINT NOT NULL,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_pnr_active
		ON bookings (pnr_code) WHERE status = 'held'`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_expiring
		ON bookings (expires_at) WHERE status = 'held'`,

	`CREATE TABLE IF NOT EXISTS passengers (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		date_of_birth DATE NOT NULL,
		gender TEXT NOT NULL,
		passenger_type TEXT NOT NULL,
		position INT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_passengers_booking ON passengers (booking_id)`,

	`CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
		flight_id TEXT NOT NULL,
		cabin TEXT NOT NULL,
		price_amount BIGINT NOT NULL,
		price_currency TEXT NOT NULL,
		seat_number TEXT,
		position INT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_booking ON segments (booking_id)`,

	`CREATE TABLE IF NOT EXISTS tickets (
		ticket_number TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL UNIQUE,
		pnr_code TEXT NOT NULL,
		status TEXT NOT NULL,
		passenger_id TEXT NOT NULL,
		passenger_name TEXT NOT NULL,
		issued_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS coupons (
		ticket_number TEXT NOT NULL REFERENCES tickets (ticket_number) ON DELETE CASCADE,
		coupon_number INT NOT NULL,
		flight_id TEXT NOT NULL,
		seat_number TEXT,
		status TEXT NOT NULL,
		PRIMARY KEY (ticket_number, coupon_number)
	)`,

	`CREATE TABLE IF NOT EXISTS event_outbox (
		id TEXT PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		topic TEXT NOT NULL,
		partition_key TEXT NOT NULL,
		retry_count INT NOT NULL DEFAULT 0,
		last_error TEXT,
		published_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_event_outbox_unpublished
		ON event_outbox (created_at) WHERE published_at IS NULL`,
}

// Bootstrap creates any missing tables and indexes.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
