package service

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/services/storefront/internal/domain"
	"github.com/gothglitter/storefront/services/storefront/internal/provider"
)

// DefaultCurrency is used when a request names none.
const DefaultCurrency = "usd"

// PaymentService relays payment intent creation to the configured provider.
type PaymentService struct {
	provider provider.Provider
	logger   *slog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(p provider.Provider, logger *slog.Logger) *PaymentService {
	return &PaymentService{provider: p, logger: logger}
}

// CreateIntent opens a payment intent for amount minor units of currency.
func (s *PaymentService) CreateIntent(ctx context.Context, sessionID string, amount int64, currency string) (*domain.PaymentIntent, error) {
	if amount < domain.MinIntentAmount {
		return nil, apperrors.InvalidInput(fmt.Sprintf("amount must be at least %d", domain.MinIntentAmount))
	}
	currency = domain.NormalizeCurrency(currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid currency %q", currency))
	}

	intent, err := s.provider.CreateIntent(ctx, &provider.IntentInput{
		Amount:    amount,
		Currency:  currency,
		SessionID: sessionID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "payment intent failed",
			slog.String("provider", s.provider.Name()),
			slog.Int64("amount", amount),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return intent, nil
}
