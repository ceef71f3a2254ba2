package repository

import (
	"context"

	"github.com/bakate/aeroreserve/internal/domain"
)

// OutboxRepository defines the interface for outbox data access
type OutboxRepository interface {
	// Persist appends an entry, joining the ambient transaction when one
	// is open so the entry commits with the aggregate that staged it
	Persist(ctx context.Context, entry *domain.OutboxEntry) error

	// GetUnpublished returns entries still eligible for publishing,
	// oldest first
	GetUnpublished(ctx context.Context, limit, maxRetries int) ([]*domain.OutboxEntry, error)

	// MarkPublished stamps an entry as successfully published
	MarkPublished(ctx context.Context, id string) error

	// MarkFailed records a publish failure and increments the retry count
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// DeletePublishedBefore removes published entries older than the given
	// number of days and reports how many were deleted
	DeletePublishedBefore(ctx context.Context, olderThanDays int) (int64, error)
}
