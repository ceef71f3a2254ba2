package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakate/aeroreserve/internal/domain"
)

// PostgresOutboxRepository implements OutboxRepository using PostgreSQL
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOutboxRepository creates a new PostgresOutboxRepository
func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// Persist appends an outbox entry, joining the ambient transaction when open
func (r *PostgresOutboxRepository) Persist(ctx context.Context, entry *domain.OutboxEntry) error {
	query := `
		INSERT INTO event_outbox (
			id, aggregate_type, aggregate_id, event_type,
			payload, topic, partition_key, retry_count, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	q := queryerFrom(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		entry.ID,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Payload,
		entry.Topic,
		entry.PartitionKey,
		entry.RetryCount,
		entry.CreatedAt,
	)

	if err != nil {
		return mapPgError("persist outbox entry", err)
	}

	return nil
}

// GetUnpublished returns entries still eligible for publishing, oldest first
func (r *PostgresOutboxRepository) GetUnpublished(ctx context.Context, limit, maxRetries int) ([]*domain.OutboxEntry, error) {
	query := `
		SELECT
			id, aggregate_type, aggregate_id, event_type,
			payload, topic, partition_key, retry_count,
			last_error, created_at, published_at
		FROM event_outbox
		WHERE published_at IS NULL AND retry_count < $2
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	q := queryerFrom(ctx, r.pool)
	rows, err := q.Query(ctx, query, limit, maxRetries)
	if err != nil {
		return nil, mapPgError("get unpublished outbox entries", err)
	}
	defer rows.Close()

	return scanOutboxEntries(rows)
}

// MarkPublished stamps an entry as successfully published
func (r *PostgresOutboxRepository) MarkPublished(ctx context.Context, id string) error {
	query := `
		UPDATE event_outbox SET
			published_at = $2
		WHERE id = $1
	`

	q := queryerFrom(ctx, r.pool)
	result, err := q.Exec(ctx, query, id, time.Now())
	if err != nil {
		return mapPgError("mark outbox entry published", err)
	}

	if result.RowsAffected() == 0 {
		return errors.New("outbox entry not found")
	}

	return nil
}

// MarkFailed records a publish failure and increments the retry count
func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE event_outbox SET
			retry_count = retry_count + 1,
			last_error = $2
		WHERE id = $1
	`

	q := queryerFrom(ctx, r.pool)
	result, err := q.Exec(ctx, query, id, errMsg)
	if err != nil {
		return mapPgError("mark outbox entry failed", err)
	}

	if result.RowsAffected() == 0 {
		return errors.New("outbox entry not found")
	}

	return nil
}

// DeletePublishedBefore removes published entries older than the given
// number of days
func (r *PostgresOutboxRepository) DeletePublishedBefore(ctx context.Context, olderThanDays int) (int64, error) {
	query := `
		DELETE FROM event_outbox
		WHERE published_at IS NOT NULL AND published_at < $1
	`

	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	q := queryerFrom(ctx, r.pool)
	result, err := q.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, mapPgError("delete published outbox entries", err)
	}

	return result.RowsAffected(), nil
}

// scanOutboxEntries scans rows into OutboxEntry slice
func scanOutboxEntries(rows pgx.Rows) ([]*domain.OutboxEntry, error) {
	var entries []*domain.OutboxEntry

	for rows.Next() {
		entry := &domain.OutboxEntry{}
		var lastError *string

		err := rows.Scan(
			&entry.ID,
			&entry.AggregateType,
			&entry.AggregateID,
			&entry.EventType,
			&entry.Payload,
			&entry.Topic,
			&entry.PartitionKey,
			&entry.RetryCount,
			&lastError,
			&entry.CreatedAt,
			&entry.PublishedAt,
		)

		if err != nil {
			return nil, mapPgError("scan outbox entry", err)
		}

		entry.LastError = derefString(lastError)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, mapPgError("iterate outbox entries", err)
	}

	return entries, nil
}

// Ensure PostgresOutboxRepository implements OutboxRepository
var _ OutboxRepository = (*PostgresOutboxRepository)(nil)
