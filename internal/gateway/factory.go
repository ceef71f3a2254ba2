package gateway

import (
	"fmt"
	"strings"

	"github.com/bakate/aeroreserve/pkg/config"
)

// Provider identifies a gateway implementation
type Provider string

const (
	ProviderMock   Provider = "mock"
	ProviderStripe Provider = "stripe"
)

// NewPaymentGatewayFromConfig builds the payment gateway named by the
// configuration, defaulting to the mock when no provider is set.
func NewPaymentGatewayFromConfig(cfg config.PaymentConfig) (PaymentGateway, error) {
	switch Provider(strings.ToLower(cfg.Provider)) {
	case ProviderMock, "":
		return NewMockPaymentGateway(DefaultMockPaymentGatewayConfig()), nil

	case ProviderStripe:
		return NewStripePaymentGateway(&StripePaymentGatewayConfig{
			SecretKey:     cfg.APIKey,
			WebhookSecret: cfg.WebhookSecret,
		})

	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", cfg.Provider)
	}
}

// NewNotificationGatewayFromConfig builds the notification gateway. An
// unset base URL or API key selects the mock, which keeps development
// environments working without provider credentials.
func NewNotificationGatewayFromConfig(cfg config.NotificationConfig) (NotificationGateway, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return NewMockNotificationGateway(), nil
	}

	return NewRestNotificationGateway(&RestNotificationGatewayConfig{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		SenderEmail:    cfg.SenderEmail,
		SenderName:     cfg.SenderName,
		RequestTimeout: cfg.RequestTimeout,
	})
}
