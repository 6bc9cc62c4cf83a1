package cartsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
)

// PaymentClient asks the storefront's payment relay for an intent the
// checkout form can confirm.
type PaymentClient struct {
	t      *Transport
	logger *slog.Logger
}

func NewPaymentClient(t *Transport, logger *slog.Logger) *PaymentClient {
	return &PaymentClient{t: t, logger: logger}
}

type paymentIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

type paymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreatePaymentIntent requests an intent for amount minor units and returns
// its client secret. The relay answers with a bare object, not the data
// envelope.
func (c *PaymentClient) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (string, error) {
	if amount < 1 {
		return "", apperrors.InvalidInput(fmt.Sprintf("amount must be positive, got %d", amount))
	}
	resp, err := c.t.post(ctx, paymentIntentRequest{
		Amount:   amount,
		Currency: strings.ToLower(currency),
	}, "api", "create-payment-intent")
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out paymentIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode payment intent: %w", err)
	}
	if out.ClientSecret == "" {
		return "", errors.New("payment intent response has no client secret")
	}
	c.logger.DebugContext(ctx, "payment intent created", slog.Int64("amount", amount))
	return out.ClientSecret, nil
}

// MinorUnits converts a two-decimal amount such as 24.50 to 2450.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
