package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakate/aeroreserve/internal/domain"
)

// maxFlightResults caps availability search result sets
const maxFlightResults = 100

// PostgresInventoryRepository implements InventoryRepository using PostgreSQL
type PostgresInventoryRepository struct {
	pool   *pgxpool.Pool
	uow    TransactionManager
	outbox OutboxRepository
}

// NewPostgresInventoryRepository creates a new PostgresInventoryRepository
func NewPostgresInventoryRepository(pool *pgxpool.Pool, uow TransactionManager, outbox OutboxRepository) *PostgresInventoryRepository {
	return &PostgresInventoryRepository{
		pool:   pool,
		uow:    uow,
		outbox: outbox,
	}
}

// Create inserts a new flight inventory aggregate
func (r *PostgresInventoryRepository) Create(ctx context.Context, inventory *domain.FlightInventory) error {
	availability, err := json.Marshal(inventory.Availability)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}

	query := `
		INSERT INTO flight_inventory (
			flight_id, availability, version, last_updated
		) VALUES (
			$1, $2, $3, $4
		)
	`

	now := time.Now()
	q := queryerFrom(ctx, r.pool)
	if _, err := q.Exec(ctx, query, inventory.FlightID, availability, inventory.Version+1, now); err != nil {
		return mapPgError("create flight inventory", err)
	}

	OnCommit(ctx, func() {
		inventory.Version++
		inventory.LastUpdated = now
		inventory.ClearPendingEvents()
	})

	return nil
}

// FindByFlightID retrieves an inventory by flight ID, (nil, nil) on miss
func (r *PostgresInventoryRepository) FindByFlightID(ctx context.Context, flightID string) (*domain.FlightInventory, error) {
	query := `
		SELECT flight_id, availability, version, last_updated
		FROM flight_inventory
		WHERE flight_id = $1
	`

	q := queryerFrom(ctx, r.pool)
	inventory, err := scanInventory(q.QueryRow(ctx, query, flightID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPgError("find flight inventory", err)
	}

	return inventory, nil
}

// Save persists the aggregate under its version guard and appends staged
// events to the outbox in the same transaction
func (r *PostgresInventoryRepository) Save(ctx context.Context, inventory *domain.FlightInventory) error {
	availability, err := json.Marshal(inventory.Availability)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}

	now := time.Now()
	err = r.uow.Transaction(ctx, func(ctx context.Context) error {
		q := queryerFrom(ctx, r.pool)

		query := `
			UPDATE flight_inventory SET
				availability = $2,
				version = $3,
				last_updated = $4
			WHERE flight_id = $1 AND version = $5
		`

		result, err := q.Exec(ctx, query,
			inventory.FlightID,
			availability,
			inventory.Version+1,
			now,
			inventory.Version,
		)
		if err != nil {
			return mapPgError("save flight inventory", err)
		}

		if result.RowsAffected() == 0 {
			// Check whether the row is missing or the version moved
			var actual int64
			err := q.QueryRow(ctx, "SELECT version FROM flight_inventory WHERE flight_id = $1", inventory.FlightID).Scan(&actual)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("flight %s: %w", inventory.FlightID, domain.ErrFlightNotFound)
				}
				return mapPgError("check flight inventory version", err)
			}
			return &domain.OptimisticLockError{
				AggregateID:     inventory.FlightID,
				ExpectedVersion: inventory.Version,
				ActualVersion:   actual,
			}
		}

		for _, event := range inventory.PendingEvents() {
			entry, err := domain.NewOutboxEntry(event, domain.AggregateTypeInventory)
			if err != nil {
				return fmt.Errorf("failed to build outbox entry: %w", err)
			}
			if err := r.outbox.Persist(ctx, entry); err != nil {
				return err
			}
		}

		// Deferred so a joined save only advances the aggregate once the
		// owning transaction commits.
		OnCommit(ctx, func() {
			inventory.Version++
			inventory.LastUpdated = now
			inventory.ClearPendingEvents()
		})

		return nil
	})
	return err
}

// FindAvailable lists flights with at least minSeats open in the cabin
func (r *PostgresInventoryRepository) FindAvailable(ctx context.Context, cabin domain.CabinClass, minSeats int) ([]*domain.FlightInventory, error) {
	query := `
		SELECT flight_id, availability, version, last_updated
		FROM flight_inventory
		WHERE (availability -> $1 ->> 'available')::int >= $2
		ORDER BY flight_id ASC
		LIMIT $3
	`

	q := queryerFrom(ctx, r.pool)
	rows, err := q.Query(ctx, query, cabin.String(), minSeats, maxFlightResults)
	if err != nil {
		return nil, mapPgError("find available flights", err)
	}
	defer rows.Close()

	var inventories []*domain.FlightInventory
	for rows.Next() {
		inventory, err := scanInventory(rows)
		if err != nil {
			return nil, mapPgError("scan flight inventory", err)
		}
		inventories = append(inventories, inventory)
	}

	if err := rows.Err(); err != nil {
		return nil, mapPgError("iterate flight inventories", err)
	}

	return inventories, nil
}

// scanInventory scans a single inventory row
func scanInventory(row pgx.Row) (*domain.FlightInventory, error) {
	var (
		flightID     string
		availability []byte
		version      int64
		lastUpdated  time.Time
	)

	if err := row.Scan(&flightID, &availability, &version, &lastUpdated); err != nil {
		return nil, err
	}

	buckets := make(map[domain.CabinClass]*domain.SeatBucket)
	if err := json.Unmarshal(availability, &buckets); err != nil {
		return nil, fmt.Errorf("failed to decode availability for flight %s: %w", flightID, err)
	}

	return &domain.FlightInventory{
		FlightID:     flightID,
		Availability: buckets,
		Version:      version,
		LastUpdated:  lastUpdated,
	}, nil
}

// Ensure PostgresInventoryRepository implements InventoryRepository
var _ InventoryRepository = (*PostgresInventoryRepository)(nil)
