package domain

import (
	"testing"
	"time"
)

func TestNewOutboxEntry(t *testing.T) {
	event := BookingCreatedEvent{
		BookingID:   "bk-1",
		PnrCode:     "ABC123",
		TotalAmount: mustMoney(t, 10000, CurrencyEUR),
		CreatedAt:   time.Now(),
	}

	entry, err := NewOutboxEntry(event, AggregateTypeBooking)
	if err != nil {
		t.Fatalf("NewOutboxEntry() error = %v", err)
	}

	if entry.ID == "" {
		t.Error("ID should be assigned")
	}
	if entry.EventType != EventTypeBookingCreated {
		t.Errorf("EventType = %s, want %s", entry.EventType, EventTypeBookingCreated)
	}
	if entry.AggregateID != "bk-1" {
		t.Errorf("AggregateID = %s, want bk-1", entry.AggregateID)
	}
	if entry.Topic != TopicBookingEvents {
		t.Errorf("Topic = %s, want %s", entry.Topic, TopicBookingEvents)
	}
	if entry.PartitionKey != "bk-1" {
		t.Errorf("PartitionKey = %s, want bk-1", entry.PartitionKey)
	}
	if entry.PublishedAt != nil {
		t.Error("PublishedAt should start nil")
	}
	if entry.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", entry.RetryCount)
	}

	var decoded BookingCreatedEvent
	if err := entry.DecodePayload(&decoded); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if decoded.BookingID != event.BookingID || decoded.PnrCode != event.PnrCode {
		t.Errorf("decoded payload = %+v", decoded)
	}
	if decoded.TotalAmount.Amount() != 10000 {
		t.Errorf("decoded TotalAmount = %d, want 10000", decoded.TotalAmount.Amount())
	}
}

func TestTopicForAggregate(t *testing.T) {
	tests := []struct {
		name          string
		aggregateType string
		want          string
	}{
		{"inventory", AggregateTypeInventory, TopicInventoryEvents},
		{"booking", AggregateTypeBooking, TopicBookingEvents},
		{"ticket", AggregateTypeTicket, TopicTicketEvents},
		{"unknown defaults to booking", "other", TopicBookingEvents},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TopicForAggregate(tt.aggregateType); got != tt.want {
				t.Errorf("TopicForAggregate(%s) = %s, want %s", tt.aggregateType, got, tt.want)
			}
		})
	}
}

func TestOutboxEntry_MarkPublished(t *testing.T) {
	entry := &OutboxEntry{ID: "msg-1"}

	entry.MarkPublished()

	if !entry.IsPublished() {
		t.Error("IsPublished() = false after MarkPublished")
	}
	if entry.PublishedAt == nil {
		t.Fatal("PublishedAt should be set")
	}
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	entry := &OutboxEntry{ID: "msg-1", RetryCount: 1}

	entry.MarkFailed("broker unreachable")

	if entry.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", entry.RetryCount)
	}
	if entry.LastError != "broker unreachable" {
		t.Errorf("LastError = %q", entry.LastError)
	}
	if entry.IsPublished() {
		t.Error("IsPublished() = true after failure")
	}
}

func TestOutboxEntry_CanRetry(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name        string
		retryCount  int
		publishedAt *time.Time
		maxRetries  int
		want        bool
	}{
		{"fresh entry", 0, nil, 3, true},
		{"retries left", 2, nil, 3, true},
		{"retries exhausted", 3, nil, 3, false},
		{"already published", 0, &now, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &OutboxEntry{RetryCount: tt.retryCount, PublishedAt: tt.publishedAt}
			if got := entry.CanRetry(tt.maxRetries); got != tt.want {
				t.Errorf("CanRetry(%d) = %v, want %v", tt.maxRetries, got, tt.want)
			}
		})
	}
}
