package stripe

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/services/storefront/internal/provider"
)

type mockIntents struct {
	mock.Mock
}

func (m *mockIntents) Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.PaymentIntent), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCreateIntent_Success(t *testing.T) {
	intents := new(mockIntents)
	p := newProvider(intents, newTestLogger())

	intents.On("Create", mock.Anything, mock.MatchedBy(func(params *stripe.PaymentIntentCreateParams) bool {
		return *params.Amount == 2500 &&
			*params.Currency == "usd" &&
			*params.AutomaticPaymentMethods.Enabled &&
			params.Metadata["session_id"] == "sess-1"
	})).Return(&stripe.PaymentIntent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret_abc",
		Amount:       2500,
		Currency:     stripe.CurrencyUSD,
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}, nil)

	intent, err := p.CreateIntent(context.Background(), &provider.IntentInput{
		Amount:    2500,
		Currency:  "usd",
		SessionID: "sess-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.Equal(t, "usd", intent.Currency)
	assert.Equal(t, "requires_payment_method", intent.Status)
	intents.AssertExpectations(t)
}

func TestCreateIntent_CardError(t *testing.T) {
	intents := new(mockIntents)
	p := newProvider(intents, newTestLogger())

	intents.On("Create", mock.Anything, mock.Anything).Return(nil, &stripe.Error{
		Type: stripe.ErrorTypeInvalidRequest,
		Msg:  "Amount must be at least $0.50 usd",
	})

	_, err := p.CreateIntent(context.Background(), &provider.IntentInput{Amount: 10, Currency: "usd"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPaymentFailed))
	assert.Contains(t, err.Error(), "at least")
}

func TestCreateIntent_APIErrorHidesMessage(t *testing.T) {
	intents := new(mockIntents)
	p := newProvider(intents, newTestLogger())

	intents.On("Create", mock.Anything, mock.Anything).Return(nil, &stripe.Error{
		Type: stripe.ErrorTypeAPI,
		Msg:  "internal detail",
	})

	_, err := p.CreateIntent(context.Background(), &provider.IntentInput{Amount: 1000, Currency: "usd"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPaymentFailed))
	assert.NotContains(t, err.Error(), "internal detail")
}

func TestCreateIntent_TransportError(t *testing.T) {
	intents := new(mockIntents)
	p := newProvider(intents, newTestLogger())

	intents.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: refused"))

	_, err := p.CreateIntent(context.Background(), &provider.IntentInput{Amount: 1000, Currency: "usd"})

	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrPaymentFailed))
}

func TestNewProvider_KeyValidation(t *testing.T) {
	_, err := NewProvider("", newTestLogger())
	assert.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewProvider("pk_test_publishable", newTestLogger())
	assert.Error(t, err)

	p, err := NewProvider("sk_test_123", newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "stripe", p.Name())
}
