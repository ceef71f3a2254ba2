package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stripe/stripe-go/v82"

	"github.com/bakate/aeroreserve/internal/domain"
)

func TestNewStripePaymentGateway_Validation(t *testing.T) {
	if _, err := NewStripePaymentGateway(nil); err == nil {
		t.Error("Expected error for nil config")
	}
	if _, err := NewStripePaymentGateway(&StripePaymentGatewayConfig{}); err == nil {
		t.Error("Expected error for missing secret key")
	}

	gw, err := NewStripePaymentGateway(&StripePaymentGatewayConfig{SecretKey: "sk_test_123"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gw.Name() != "stripe" {
		t.Errorf("Expected name 'stripe', got '%s'", gw.Name())
	}
}

func TestCheckoutIdempotencyKey(t *testing.T) {
	if got := checkoutIdempotencyKey("AB12CD"); got != "checkout-AB12CD" {
		t.Errorf("checkoutIdempotencyKey() = %q, want %q", got, "checkout-AB12CD")
	}
}

func TestMapStripeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "card error maps to declined",
			err:  &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined},
			want: domain.ErrPaymentDeclined,
		},
		{
			name: "resource missing maps to checkout not found",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Code: stripe.ErrorCodeResourceMissing},
			want: domain.ErrCheckoutNotFound,
		},
		{
			name: "currency param maps to unsupported currency",
			err:  &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Param: "line_items[0][price_data][currency]"},
			want: domain.ErrUnsupportedCurrency,
		},
		{
			name: "api error maps to unavailable",
			err:  &stripe.Error{Type: stripe.ErrorTypeAPI},
			want: domain.ErrPaymentUnavailable,
		},
		{
			name: "deadline maps to timeout",
			err:  context.DeadlineExceeded,
			want: domain.ErrExternalTimeout,
		},
		{
			name: "plain transport error maps to unavailable",
			err:  fmt.Errorf("connection refused"),
			want: domain.ErrPaymentUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapStripeError("create checkout", tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("mapStripeError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapStripeError_Nil(t *testing.T) {
	if got := mapStripeError("op", nil); got != nil {
		t.Errorf("mapStripeError(nil) = %v, want nil", got)
	}
}

func TestCheckoutStatusFromSession(t *testing.T) {
	tests := []struct {
		name      string
		session   *stripe.CheckoutSession
		wantState CheckoutState
	}{
		{
			name:      "open session is pending",
			session:   &stripe.CheckoutSession{ID: "cs_1", Status: stripe.CheckoutSessionStatusOpen},
			wantState: CheckoutStatePending,
		},
		{
			name:      "expired session is expired",
			session:   &stripe.CheckoutSession{ID: "cs_2", Status: stripe.CheckoutSessionStatusExpired},
			wantState: CheckoutStateExpired,
		},
		{
			name: "complete but unpaid session is still pending",
			session: &stripe.CheckoutSession{
				ID:            "cs_3",
				Status:        stripe.CheckoutSessionStatusComplete,
				PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
			},
			wantState: CheckoutStatePending,
		},
		{
			name: "complete paid session is completed",
			session: &stripe.CheckoutSession{
				ID:            "cs_4",
				Status:        stripe.CheckoutSessionStatusComplete,
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
				AmountTotal:   12000,
				Currency:      stripe.CurrencyEUR,
				PaymentIntent: &stripe.PaymentIntent{ID: "pi_123", Created: 1700000000},
			},
			wantState: CheckoutStateCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkoutStatusFromSession(tt.session)
			if got.State != tt.wantState {
				t.Errorf("State = %v, want %v", got.State, tt.wantState)
			}
			if got.ID != tt.session.ID {
				t.Errorf("ID = %v, want %v", got.ID, tt.session.ID)
			}

			if tt.wantState != CheckoutStateCompleted {
				if got.Confirmation != nil {
					t.Error("Confirmation should be nil for non-completed states")
				}
				return
			}

			if got.Confirmation == nil {
				t.Fatal("Expected confirmation for completed state")
			}
			if got.Confirmation.TransactionID != "pi_123" {
				t.Errorf("TransactionID = %v, want pi_123", got.Confirmation.TransactionID)
			}
			if got.Confirmation.Amount.Amount() != 12000 {
				t.Errorf("Amount = %v, want 12000", got.Confirmation.Amount.Amount())
			}
			if got.Confirmation.Amount.Currency() != domain.CurrencyEUR {
				t.Errorf("Currency = %v, want EUR", got.Confirmation.Amount.Currency())
			}
			if got.Confirmation.PaidAt.Unix() != 1700000000 {
				t.Errorf("PaidAt = %v, want unix 1700000000", got.Confirmation.PaidAt.Unix())
			}
		})
	}
}

func TestCheckoutState_Terminal(t *testing.T) {
	if CheckoutStatePending.Terminal() {
		t.Error("pending should not be terminal")
	}
	for _, state := range []CheckoutState{CheckoutStateCompleted, CheckoutStateExpired, CheckoutStateFailed, CheckoutStateDeclined} {
		if !state.Terminal() {
			t.Errorf("%s should be terminal", state)
		}
	}
}
