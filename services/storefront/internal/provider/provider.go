package provider

import (
	"context"

	"github.com/gothglitter/storefront/services/storefront/internal/domain"
)

// IntentInput holds the parameters for creating a payment intent.
type IntentInput struct {
	Amount    int64
	Currency  string
	SessionID string
}

// Provider defines the interface for payment provider integrations.
type Provider interface {
	// Name returns the provider name (e.g., "mock", "stripe").
	Name() string

	// CreateIntent opens a payment intent the browser confirms with its client secret.
	CreateIntent(ctx context.Context, input *IntentInput) (*domain.PaymentIntent, error)
}
