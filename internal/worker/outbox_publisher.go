package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/metrics"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/pkg/logger"
	"github.com/bakate/aeroreserve/pkg/retry"
)

// OutboxPublisherConfig contains configuration for the outbox publisher
type OutboxPublisherConfig struct {
	// PollInterval is the time between polls for unpublished entries
	PollInterval time.Duration
	// BatchSize is the number of entries to fetch in each poll
	BatchSize int
	// MaxRetries is how many failed dispatches an entry gets before it is
	// parked for inspection
	MaxRetries int
	// CleanupInterval is the time between purges of old published entries
	CleanupInterval time.Duration
	// RetentionDays is how long published entries stay queryable
	RetentionDays int
	// DLQ receives a copy of entries that exhaust their retries. Optional;
	// nil disables dead-lettering.
	DLQ retry.DLQPublisher
}

// DefaultOutboxPublisherConfig returns default configuration
func DefaultOutboxPublisherConfig() *OutboxPublisherConfig {
	return &OutboxPublisherConfig{
		PollInterval:    5 * time.Second,
		BatchSize:       100,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		RetentionDays:   7,
	}
}

// OutboxPublisher polls the outbox table and dispatches entries through a
// Dispatcher. One query serves first attempts and retries alike: anything
// unpublished with retries left, oldest first. Entries that exhaust their
// retries stay in the table unpublished; if a DLQ publisher is configured
// they are also copied to the dead letter topic for inspection.
type OutboxPublisher struct {
	outbox     repository.OutboxRepository
	dispatcher *Dispatcher
	config     *OutboxPublisherConfig
	dlq        retry.DLQPublisher
	log        *logger.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool

	// Stats
	totalPublished int64
	totalFailed    int64
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(
	outbox repository.OutboxRepository,
	dispatcher *Dispatcher,
	config *OutboxPublisherConfig,
) *OutboxPublisher {
	if config == nil {
		config = DefaultOutboxPublisherConfig()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 1 * time.Hour
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 7
	}

	return &OutboxPublisher{
		outbox:     outbox,
		dispatcher: dispatcher,
		config:     config,
		dlq:        config.DLQ,
		log:        logger.Get(),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the outbox publisher
func (w *OutboxPublisher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox publisher already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting outbox publisher")

	w.wg.Add(1)
	go w.poll(ctx)

	w.wg.Add(1)
	go w.cleanup(ctx)

	return nil
}

// Stop stops the outbox publisher
func (w *OutboxPublisher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping outbox publisher")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Outbox publisher stopped")
}

// poll dispatches unpublished entries on a fixed cadence
func (w *OutboxPublisher) poll(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.publishBatch(ctx)
		}
	}
}

// publishBatch fetches and dispatches one batch of unpublished entries
func (w *OutboxPublisher) publishBatch(ctx context.Context) {
	entries, err := w.outbox.GetUnpublished(ctx, w.config.BatchSize, w.config.MaxRetries)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to get unpublished entries: %v", err))
		return
	}

	for _, entry := range entries {
		if err := w.dispatcher.Dispatch(ctx, entry); err != nil {
			w.log.Error(fmt.Sprintf("Failed to dispatch entry %s (%s, attempt %d/%d): %v",
				entry.ID, entry.EventType, entry.RetryCount+1, w.config.MaxRetries, err))
			if markErr := w.outbox.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
				w.log.Error(fmt.Sprintf("Failed to mark entry %s as failed: %v", entry.ID, markErr))
			}
			if w.dlq != nil && entry.RetryCount+1 >= w.config.MaxRetries {
				w.deadLetter(ctx, entry, err)
			}
			w.mu.Lock()
			w.totalFailed++
			w.mu.Unlock()
			metrics.RecordOutboxFailed(ctx, entry.Topic, entry.EventType)
			continue
		}

		if markErr := w.outbox.MarkPublished(ctx, entry.ID); markErr != nil {
			w.log.Error(fmt.Sprintf("Failed to mark entry %s as published: %v", entry.ID, markErr))
			continue
		}
		w.mu.Lock()
		w.totalPublished++
		w.mu.Unlock()
		metrics.RecordOutboxPublished(ctx, entry.Topic, entry.EventType)
	}
}

// deadLetter copies an entry that used up its retry budget to the dead
// letter topic. The entry itself stays in the outbox table unpublished;
// the copy exists so operators see exhausted entries without querying
// the database.
func (w *OutboxPublisher) deadLetter(ctx context.Context, entry *domain.OutboxEntry, cause error) {
	msg := &retry.DLQMessage{
		ID:            entry.ID,
		OriginalTopic: entry.Topic,
		OriginalKey:   entry.PartitionKey,
		Payload:       json.RawMessage(entry.Payload),
		Error:         cause.Error(),
		Attempts:      entry.RetryCount + 1,
	}
	if err := w.dlq.PublishToDLQ(ctx, msg); err != nil {
		w.log.Error(fmt.Sprintf("Failed to dead-letter entry %s: %v", entry.ID, err))
		return
	}
	w.log.Warn(fmt.Sprintf("Entry %s (%s) dead-lettered after %d attempts", entry.ID, entry.EventType, entry.RetryCount+1))
}

// cleanup purges published entries past the retention window
func (w *OutboxPublisher) cleanup(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			deleted, err := w.outbox.DeletePublishedBefore(ctx, w.config.RetentionDays)
			if err != nil {
				w.log.Error(fmt.Sprintf("Failed to clean up published entries: %v", err))
			} else if deleted > 0 {
				w.log.Info(fmt.Sprintf("Cleaned up %d published outbox entries", deleted))
			}
		}
	}
}

// GetStats returns publisher statistics
func (w *OutboxPublisher) GetStats() *OutboxPublisherStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &OutboxPublisherStats{
		IsRunning:      w.running,
		TotalPublished: w.totalPublished,
		TotalFailed:    w.totalFailed,
	}
}

// OutboxPublisherStats contains publisher statistics
type OutboxPublisherStats struct {
	IsRunning      bool  `json:"is_running"`
	TotalPublished int64 `json:"total_published"`
	TotalFailed    int64 `json:"total_failed"`
}
