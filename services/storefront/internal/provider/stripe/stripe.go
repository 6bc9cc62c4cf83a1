package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v84"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/services/storefront/internal/domain"
	"github.com/gothglitter/storefront/services/storefront/internal/provider"
)

var errAPIKeyRequired = errors.New("stripe api key is required")

// intentCreator is the slice of the Stripe client the provider uses.
type intentCreator interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

// Provider creates payment intents through the Stripe API.
type Provider struct {
	intents intentCreator
	logger  *slog.Logger
}

// NewProvider builds a Stripe provider from a secret or restricted key.
func NewProvider(apiKey string, logger *slog.Logger) (*Provider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(apiKey); err != nil {
		return nil, err
	}

	sc := stripe.NewClient(apiKey)
	logger.Info("stripe provider initialized", slog.Bool("live", isLive(apiKey)))
	return newProvider(sc.V1PaymentIntents, logger), nil
}

func newProvider(intents intentCreator, logger *slog.Logger) *Provider {
	return &Provider{intents: intents, logger: logger}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stripe"
}

// CreateIntent opens a Stripe PaymentIntent with automatic payment methods.
func (p *Provider) CreateIntent(ctx context.Context, input *provider.IntentInput) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(input.Amount),
		Currency: stripe.String(input.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if input.SessionID != "" {
		params.Metadata = map[string]string{"session_id": input.SessionID}
	}

	pi, err := p.intents.Create(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}

	p.logger.InfoContext(ctx, "payment intent created",
		slog.String("intent_id", pi.ID),
		slog.Int64("amount", pi.Amount),
		slog.String("currency", string(pi.Currency)),
	)
	return &domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}

// mapError keeps Stripe's message for card and request errors and hides
// everything else behind a generic payment failure.
func mapError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("stripe create intent: %w", err)
	}
	switch se.Type {
	case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
		return apperrors.PaymentFailed(se.Msg)
	default:
		return apperrors.PaymentFailed(fmt.Sprintf("stripe error (%s)", se.Type))
	}
}

func validateAPIKey(key string) error {
	for _, prefix := range []string{"sk_test", "rk_test", "sk_live", "rk_live"} {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe api key must be a secret or restricted key (sk_/rk_)")
}

func isLive(key string) bool {
	return strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live")
}
