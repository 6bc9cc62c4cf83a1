package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/gothglitter/storefront/services/storefront/internal/domain"
	"github.com/gothglitter/storefront/services/storefront/internal/provider"
)

// Provider is a mock payment provider that always succeeds.
// It is intended for development and testing purposes.
type Provider struct{}

// NewProvider creates a new mock payment provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// CreateIntent returns an intent that needs no confirmation round trip.
func (p *Provider) CreateIntent(_ context.Context, input *provider.IntentInput) (*domain.PaymentIntent, error) {
	id := "pi_mock_" + uuid.NewString()
	return &domain.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString(),
		Amount:       input.Amount,
		Currency:     input.Currency,
		Status:       "requires_payment_method",
	}, nil
}
