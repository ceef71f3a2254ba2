package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/pkg/telemetry"
)

// RestNotificationGateway implements NotificationGateway against a REST
// mail provider. Sends carry an idempotency key derived from the ticket
// number, so redelivery after a transport failure cannot double-send.
type RestNotificationGateway struct {
	config     *RestNotificationGatewayConfig
	httpClient *http.Client
}

// RestNotificationGatewayConfig holds configuration for the REST gateway
type RestNotificationGatewayConfig struct {
	BaseURL        string
	APIKey         string
	SenderEmail    string
	SenderName     string
	RequestTimeout time.Duration
}

// NewRestNotificationGateway creates a new REST notification gateway
func NewRestNotificationGateway(config *RestNotificationGatewayConfig) (*RestNotificationGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("notification config is required")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("notification base URL is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("notification API key is required")
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}

	return &RestNotificationGateway{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}, nil
}

// ticketMessage is the wire shape the mail provider accepts.
type ticketMessage struct {
	From    messageParty `json:"from"`
	To      messageParty `json:"to"`
	Subject string       `json:"subject"`
	Ticket  ticketBody   `json:"ticket"`
}

type messageParty struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type ticketBody struct {
	TicketNumber  string       `json:"ticket_number"`
	PnrCode       string       `json:"pnr_code"`
	PassengerName string       `json:"passenger_name"`
	IssuedAt      time.Time    `json:"issued_at"`
	Coupons       []couponBody `json:"coupons"`
}

type couponBody struct {
	Number     int    `json:"number"`
	FlightID   string `json:"flight_id"`
	SeatNumber string `json:"seat_number,omitempty"`
	Status     string `json:"status"`
}

// SendTicket posts the ticket to the provider's message endpoint
func (g *RestNotificationGateway) SendTicket(ctx context.Context, ticket *domain.Ticket, recipient *Recipient) (*SendReceipt, error) {
	if ticket == nil {
		return nil, fmt.Errorf("ticket is required")
	}
	if recipient == nil || recipient.Email == "" {
		return nil, fmt.Errorf("recipient email is required: %w", domain.ErrInvalidRecipient)
	}

	message := ticketMessage{
		From: messageParty{
			Email: g.config.SenderEmail,
			Name:  g.config.SenderName,
		},
		To: messageParty{
			Email: recipient.Email,
			Name:  recipient.Name,
		},
		Subject: fmt.Sprintf("Your e-ticket %s (booking %s)", ticket.TicketNumber, ticket.PnrCode),
		Ticket: ticketBody{
			TicketNumber:  ticket.TicketNumber,
			PnrCode:       string(ticket.PnrCode),
			PassengerName: ticket.PassengerName,
			IssuedAt:      ticket.IssuedAt,
		},
	}
	for _, coupon := range ticket.Coupons {
		message.Ticket.Coupons = append(message.Ticket.Coupons, couponBody{
			Number:     coupon.Number,
			FlightID:   coupon.FlightID,
			SeatNumber: coupon.SeatNumber,
			Status:     string(coupon.Status),
		})
	}

	body, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", g.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	req.Header.Set("Idempotency-Key", ticketIdempotencyKey(ticket.TicketNumber))
	telemetry.InjectTraceContext(ctx, req.Header)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("send ticket: %w: %w", domain.ErrExternalTimeout, domain.ErrNotificationUnavailable)
		}
		return nil, fmt.Errorf("send ticket: %w", domain.ErrNotificationUnavailable)
	}
	defer resp.Body.Close()

	if err := mapNotificationStatus(resp); err != nil {
		return nil, err
	}

	var accepted struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &SendReceipt{MessageID: accepted.MessageID}, nil
}

// Name returns the gateway name
func (g *RestNotificationGateway) Name() string {
	return "rest"
}

// ticketIdempotencyKey derives the idempotency key from the ticket number.
func ticketIdempotencyKey(ticketNumber string) string {
	return "ticket-" + ticketNumber
}

// mapNotificationStatus converts provider HTTP statuses into the domain
// taxonomy. Accepted statuses return nil.
func mapNotificationStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("send ticket: status %d: %w", resp.StatusCode, domain.ErrNotificationAuth)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("send ticket: status %d: %w", resp.StatusCode, domain.ErrInvalidRecipient)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.RateLimitError{RetryAfter: retryAfterDuration(resp)}
	case resp.StatusCode >= 500:
		return fmt.Errorf("send ticket: status %d: %w", resp.StatusCode, domain.ErrNotificationUnavailable)
	default:
		return &domain.UnexpectedStatusError{Service: "notification", StatusCode: resp.StatusCode}
	}
}

// retryAfterDuration reads the Retry-After header in seconds, falling
// back to one second when it is missing or malformed.
func retryAfterDuration(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return time.Second
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}

var _ NotificationGateway = (*RestNotificationGateway)(nil)
