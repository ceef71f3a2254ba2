package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kafka topics for relayed domain events, keyed by aggregate type.
const (
	TopicBookingEvents   = "booking-events"
	TopicInventoryEvents = "inventory-events"
	TopicTicketEvents    = "ticket-events"
)

// TopicForAggregate maps an aggregate type to its relay topic.
func TopicForAggregate(aggregateType string) string {
	switch aggregateType {
	case AggregateTypeInventory:
		return TopicInventoryEvents
	case AggregateTypeTicket:
		return TopicTicketEvents
	default:
		return TopicBookingEvents
	}
}

// OutboxEntry is a domain event staged in the same transaction as the
// aggregate change that produced it. A polling publisher dispatches
// entries later; publishedAt stays null until a dispatch succeeds.
type OutboxEntry struct {
	ID            string     `json:"id"`
	AggregateType string     `json:"aggregate_type"`
	AggregateID   string     `json:"aggregate_id"`
	EventType     string     `json:"event_type"`
	Payload       []byte     `json:"payload"`
	Topic         string     `json:"topic"`
	PartitionKey  string     `json:"partition_key"`
	RetryCount    int        `json:"retry_count"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// NewOutboxEntry stages a domain event for publication. The partition key
// is the aggregate id so all events of one aggregate stay ordered on the
// broker.
func NewOutboxEntry(event DomainEvent, aggregateType string) (*OutboxEntry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event.EventType(), err)
	}

	return &OutboxEntry{
		ID:            uuid.New().String(),
		AggregateType: aggregateType,
		AggregateID:   event.AggregateID(),
		EventType:     event.EventType(),
		Payload:       payload,
		Topic:         TopicForAggregate(aggregateType),
		PartitionKey:  event.AggregateID(),
		RetryCount:    0,
		CreatedAt:     time.Now(),
	}, nil
}

// IsPublished checks if the entry has been dispatched.
func (e *OutboxEntry) IsPublished() bool {
	return e.PublishedAt != nil
}

// CanRetry checks if the entry is still eligible for dispatch.
func (e *OutboxEntry) CanRetry(maxRetries int) bool {
	return e.PublishedAt == nil && e.RetryCount < maxRetries
}

// MarkPublished records a successful dispatch.
func (e *OutboxEntry) MarkPublished() {
	now := time.Now()
	e.PublishedAt = &now
}

// MarkFailed records a dispatch failure. The entry is retained even after
// retries are exhausted so the failure stays visible.
func (e *OutboxEntry) MarkFailed(errMsg string) {
	e.RetryCount++
	e.LastError = errMsg
}

// DecodePayload unmarshals the payload into the given value.
func (e *OutboxEntry) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
