package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/bakate/aeroreserve/internal/domain"
)

func TestMockNotificationGateway_SendTicket(t *testing.T) {
	gw := NewMockNotificationGateway()
	ticket := issuedTestTicket(t)
	recipient := &Recipient{Email: "ada@example.com", Name: "Ada Lovelace"}
	ctx := context.Background()

	first, err := gw.SendTicket(ctx, ticket, recipient)
	if err != nil {
		t.Fatalf("SendTicket failed: %v", err)
	}
	if first.MessageID == "" {
		t.Error("Expected a message ID")
	}

	// Re-sending the same ticket returns the original receipt.
	second, err := gw.SendTicket(ctx, ticket, recipient)
	if err != nil {
		t.Fatalf("Second SendTicket failed: %v", err)
	}
	if second.MessageID != first.MessageID {
		t.Errorf("Expected the same receipt for resend, got %s and %s", first.MessageID, second.MessageID)
	}
	if gw.SentCount() != 1 {
		t.Errorf("SentCount = %d, want 1", gw.SentCount())
	}
}

func TestMockNotificationGateway_FailWith(t *testing.T) {
	gw := NewMockNotificationGateway()
	gw.FailWith(domain.ErrNotificationUnavailable)

	_, err := gw.SendTicket(context.Background(), issuedTestTicket(t), &Recipient{Email: "ada@example.com"})
	if !errors.Is(err, domain.ErrNotificationUnavailable) {
		t.Errorf("Expected ErrNotificationUnavailable, got %v", err)
	}
	if gw.SentCount() != 0 {
		t.Errorf("SentCount = %d, want 0", gw.SentCount())
	}

	gw.FailWith(nil)
	if _, err := gw.SendTicket(context.Background(), issuedTestTicket(t), &Recipient{Email: "ada@example.com"}); err != nil {
		t.Errorf("Expected success after clearing failure, got %v", err)
	}
}

func TestMockNotificationGateway_MissingRecipient(t *testing.T) {
	gw := NewMockNotificationGateway()

	_, err := gw.SendTicket(context.Background(), issuedTestTicket(t), nil)
	if !errors.Is(err, domain.ErrInvalidRecipient) {
		t.Errorf("Expected ErrInvalidRecipient, got %v", err)
	}
}
