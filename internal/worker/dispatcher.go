package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/gateway"
	"github.com/bakate/aeroreserve/internal/repository"
	"github.com/bakate/aeroreserve/pkg/kafka"
)

// EventHandler consumes one outbox entry. A returned error counts as a
// failed dispatch for the whole entry.
type EventHandler func(ctx context.Context, entry *domain.OutboxEntry) error

// EventProducer is the broker surface the relay publishes through.
// Satisfied by kafka.Producer.
type EventProducer interface {
	Produce(ctx context.Context, msg *kafka.Message) error
}

// Dispatcher routes outbox entries. Every entry goes through the relay;
// event types with registered handlers additionally get those, in
// registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	relay    EventHandler
	handlers map[string][]EventHandler
}

// NewDispatcher creates a dispatcher with the given relay. A nil relay
// means entries are only delivered to registered handlers.
func NewDispatcher(relay EventHandler) *Dispatcher {
	return &Dispatcher{
		relay:    relay,
		handlers: make(map[string][]EventHandler),
	}
}

// Register adds a handler for one event type.
func (d *Dispatcher) Register(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Dispatch delivers one entry. The first failing step fails the dispatch;
// steps already completed rely on consumer-side idempotency when the entry
// is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, entry *domain.OutboxEntry) error {
	d.mu.RLock()
	relay := d.relay
	handlers := d.handlers[entry.EventType]
	d.mu.RUnlock()

	if relay != nil {
		if err := relay(ctx, entry); err != nil {
			return fmt.Errorf("relay %s: %w", entry.EventType, err)
		}
	}
	for _, handler := range handlers {
		if err := handler(ctx, entry); err != nil {
			return fmt.Errorf("handle %s: %w", entry.EventType, err)
		}
	}
	return nil
}

// NewKafkaRelay returns the relay handler publishing entries to the topic
// staged on them, keyed by the aggregate id so per-aggregate order is
// preserved on the broker.
func NewKafkaRelay(producer EventProducer) EventHandler {
	return func(ctx context.Context, entry *domain.OutboxEntry) error {
		return producer.Produce(ctx, &kafka.Message{
			Topic: entry.Topic,
			Key:   []byte(entry.PartitionKey),
			Value: entry.Payload,
			Headers: map[string]string{
				"event_type":     entry.EventType,
				"aggregate_type": entry.AggregateType,
				"aggregate_id":   entry.AggregateID,
				"content_type":   "application/json",
				"source":         "outbox-publisher",
			},
			Timestamp: time.Now(),
		})
	}
}

// NewTicketNotificationHandler returns the handler that emails the ticket
// named by a TicketIssued entry. The gateway derives its idempotency key
// from the ticket number, so the provider drops resends of a ticket that
// already went out at confirmation time; this path completes deliveries
// the inline send missed.
func NewTicketNotificationHandler(
	tickets repository.TicketRepository,
	notifier gateway.NotificationGateway,
) EventHandler {
	return func(ctx context.Context, entry *domain.OutboxEntry) error {
		var event domain.TicketIssuedEvent
		if err := entry.DecodePayload(&event); err != nil {
			return fmt.Errorf("decode %s payload: %w", entry.EventType, err)
		}

		ticket, err := tickets.FindByTicketNumber(ctx, event.TicketNumber)
		if err != nil {
			return fmt.Errorf("load ticket %s: %w", event.TicketNumber, err)
		}
		if ticket == nil {
			return fmt.Errorf("ticket %s: %w", event.TicketNumber, domain.ErrReferenceNotFound)
		}

		_, err = notifier.SendTicket(ctx, ticket, &gateway.Recipient{
			Email: event.RecipientEmail,
			Name:  event.PassengerName,
		})
		if err != nil {
			return fmt.Errorf("send ticket %s: %w", event.TicketNumber, err)
		}
		return nil
	}
}
