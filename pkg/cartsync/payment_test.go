package cartsync

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
)

func TestCreatePaymentIntent(t *testing.T) {
	h := newHarness(t, nil)

	secret, err := h.sess.Payments.CreatePaymentIntent(context.Background(), 2450, "USD")
	require.NoError(t, err)

	assert.Contains(t, secret, "pi_fake_secret_")
	assert.Equal(t, []paymentIntentRequest{{Amount: 2450, Currency: "usd"}}, h.shop.Intents())
}

func TestCreatePaymentIntent_RejectedAmount(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.sess.Payments.CreatePaymentIntent(context.Background(), 10, "usd")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, h.shop.Intents())
}

func TestCreatePaymentIntent_NonPositiveAmountNotSent(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.sess.Payments.CreatePaymentIntent(context.Background(), 0, "usd")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, h.shop.Calls("intent"))
}

func TestCreatePaymentIntent_ProviderFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.shop.Fail("intent", http.StatusBadGateway)

	secret, err := h.sess.Payments.CreatePaymentIntent(context.Background(), 5000, "usd")
	assert.Error(t, err)
	assert.Empty(t, secret)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2450), MinorUnits(decimal.RequireFromString("24.50")))
	assert.Equal(t, int64(9900), MinorUnits(decimal.RequireFromString("99")))
	assert.Equal(t, int64(13), MinorUnits(decimal.RequireFromString("0.125")))
	assert.Zero(t, MinorUnits(decimal.Zero))
}
