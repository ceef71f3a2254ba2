package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/bakate/aeroreserve/internal/domain"
)

// StripePaymentGateway implements PaymentGateway using Stripe Checkout
type StripePaymentGateway struct {
	config *StripePaymentGatewayConfig
}

// StripePaymentGatewayConfig holds configuration for the Stripe gateway
type StripePaymentGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	Environment   string // "test" or "live"
}

// NewStripePaymentGateway creates a new Stripe gateway
func NewStripePaymentGateway(config *StripePaymentGatewayConfig) (*StripePaymentGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key globally
	stripe.Key = config.SecretKey

	return &StripePaymentGateway{
		config: config,
	}, nil
}

// CreateCheckout opens a Stripe Checkout Session for the booking. The
// idempotency key is derived from the booking reference, so retrying the
// call after a transport failure returns the session Stripe already made.
func (g *StripePaymentGateway) CreateCheckout(ctx context.Context, p *CreateCheckoutParams) (*CheckoutSession, error) {
	if p == nil {
		return nil, fmt.Errorf("checkout params are required")
	}

	description := p.Description
	if description == "" {
		description = fmt.Sprintf("Flight booking %s", p.BookingReference)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(string(p.Amount.Currency()))),
					UnitAmount: stripe.Int64(p.Amount.Amount()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		ClientReferenceID: stripe.String(p.BookingID),
	}
	params.Context = ctx
	params.SetIdempotencyKey(checkoutIdempotencyKey(p.BookingReference))
	params.Metadata = map[string]string{
		"booking_id": p.BookingID,
		"pnr_code":   p.BookingReference,
	}

	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	if p.CancelURL != "" {
		params.CancelURL = stripe.String(p.CancelURL)
	}
	if !p.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(p.ExpiresAt.Unix())
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, mapStripeError("create checkout", err)
	}

	out := &CheckoutSession{
		ID:          sess.ID,
		CheckoutURL: sess.URL,
	}
	if sess.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(sess.ExpiresAt, 0)
	}
	return out, nil
}

// GetCheckoutStatus retrieves and maps the state of a Stripe Checkout Session
func (g *StripePaymentGateway) GetCheckoutStatus(ctx context.Context, checkoutID string) (*CheckoutStatus, error) {
	if checkoutID == "" {
		return nil, fmt.Errorf("checkout ID is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	sess, err := session.Get(checkoutID, params)
	if err != nil {
		return nil, mapStripeError("get checkout status", err)
	}

	return checkoutStatusFromSession(sess), nil
}

// Name returns the gateway name
func (g *StripePaymentGateway) Name() string {
	return "stripe"
}

// checkoutIdempotencyKey derives the idempotency key from the booking PNR.
func checkoutIdempotencyKey(bookingReference string) string {
	return "checkout-" + bookingReference
}

// checkoutStatusFromSession maps a Stripe session onto the port's states.
// An open session is pending; a complete session is only completed once
// Stripe reports it paid.
func checkoutStatusFromSession(sess *stripe.CheckoutSession) *CheckoutStatus {
	status := &CheckoutStatus{ID: sess.ID}

	switch sess.Status {
	case stripe.CheckoutSessionStatusExpired:
		status.State = CheckoutStateExpired
	case stripe.CheckoutSessionStatusComplete:
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			// Async payment method still settling.
			status.State = CheckoutStatePending
			return status
		}
		status.State = CheckoutStateCompleted
		status.Confirmation = confirmationFromSession(sess)
	default:
		status.State = CheckoutStatePending
	}

	return status
}

func confirmationFromSession(sess *stripe.CheckoutSession) *PaymentConfirmation {
	confirmation := &PaymentConfirmation{
		CheckoutID: sess.ID,
		PaidAt:     time.Now(),
		Amount:     moneyFromStripe(sess.AmountTotal, sess.Currency),
	}
	if sess.PaymentIntent != nil {
		confirmation.TransactionID = sess.PaymentIntent.ID
		if sess.PaymentIntent.Created > 0 {
			confirmation.PaidAt = time.Unix(sess.PaymentIntent.Created, 0)
		}
	}
	return confirmation
}

func moneyFromStripe(amount int64, currency stripe.Currency) domain.Money {
	m, err := domain.NewMoney(amount, domain.Currency(strings.ToUpper(string(currency))))
	if err != nil {
		return domain.Money{}
	}
	return m
}

// mapStripeError converts Stripe SDK failures into the domain taxonomy.
// Messages carry the Stripe error type and code, never request payloads.
func mapStripeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		detail := fmt.Sprintf("stripe %s/%s", stripeErr.Type, stripeErr.Code)
		switch {
		case stripeErr.Type == stripe.ErrorTypeCard:
			return fmt.Errorf("%s: %s: %w", op, detail, domain.ErrPaymentDeclined)
		case stripeErr.Code == stripe.ErrorCodeResourceMissing:
			return fmt.Errorf("%s: %s: %w", op, detail, domain.ErrCheckoutNotFound)
		case strings.Contains(strings.ToLower(stripeErr.Param), "currency"):
			return fmt.Errorf("%s: %s: %w", op, detail, domain.ErrUnsupportedCurrency)
		default:
			return fmt.Errorf("%s: %s: %w", op, detail, domain.ErrPaymentUnavailable)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrExternalTimeout, domain.ErrPaymentUnavailable)
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrPaymentUnavailable)
}

var _ PaymentGateway = (*StripePaymentGateway)(nil)
