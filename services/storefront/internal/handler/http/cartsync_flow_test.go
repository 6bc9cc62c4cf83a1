package http

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gothglitter/storefront/pkg/cartsync"
	"github.com/gothglitter/storefront/pkg/logger"
)

// These flows drive the real router through the client library, the way a
// storefront page does.

func newShopper(t *testing.T, baseURL string) *cartsync.Session {
	t.Helper()
	cfg := cartsync.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.ReadRetries = 0
	cfg.PollInterval = 20 * time.Millisecond
	s, err := cartsync.NewSession(cfg, logger.Discard())
	require.NoError(t, err)
	return s
}

func TestFlow_TwoShoppersContendForLastUnits(t *testing.T) {
	srv, _ := setupServer(t, adminToken)
	ctx := context.Background()
	alice, bob := newShopper(t, srv.URL), newShopper(t, srv.URL)

	res, err := alice.Store.SetItemQuantity(ctx, "lipstick", 2, cartsync.Metadata{Name: "Lipstick", UnitPrice: decimal.RequireFromString("12.00")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Quantity)

	res, err = bob.Store.SetItemQuantity(ctx, "lipstick", 2, cartsync.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Confirmed)
	assert.Equal(t, 1, res.Quantity)
	assert.Equal(t, "only 1 available, 1 could not be added", res.Message())

	_, err = bob.Store.SetItemQuantity(ctx, "veil", 1, cartsync.Metadata{})
	require.NoError(t, err)
	res, err = alice.Store.SetItemQuantity(ctx, "veil", 1, cartsync.Metadata{})
	require.NoError(t, err)
	assert.Zero(t, res.Quantity)
	assert.Equal(t, cartsync.MsgSoldOut, res.Message())

	assert.Equal(t, "24.00", alice.Store.Total().StringFixed(2))
}

func TestFlow_DecreaseReturnsUnitsToOthers(t *testing.T) {
	srv, _ := setupServer(t, adminToken)
	ctx := context.Background()
	alice, bob := newShopper(t, srv.URL), newShopper(t, srv.URL)

	_, err := alice.Store.SetItemQuantity(ctx, "lipstick", 3, cartsync.Metadata{})
	require.NoError(t, err)

	n, err := bob.Reservations.Available(ctx, "lipstick")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = alice.Store.SetItemQuantity(ctx, "lipstick", 1, cartsync.Metadata{})
	require.NoError(t, err)

	n, err = bob.Reservations.Available(ctx, "lipstick")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := bob.Store.SetItemQuantity(ctx, "lipstick", 2, cartsync.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Quantity)
}

func TestFlow_ClearAndRefresh(t *testing.T) {
	srv, _ := setupServer(t, adminToken)
	ctx := context.Background()
	shopper := newShopper(t, srv.URL)

	var events []cartsync.Event
	shopper.Bus.Subscribe(func(ev cartsync.Event) { events = append(events, ev) })

	_, err := shopper.Store.SetItemQuantity(ctx, "lipstick", 2, cartsync.Metadata{})
	require.NoError(t, err)
	_, err = shopper.Store.SetItemQuantity(ctx, "veil", 1, cartsync.Metadata{})
	require.NoError(t, err)

	// A second tab of the same session sees the server cart.
	shopper.Store.RemoveLine("veil")
	require.NoError(t, shopper.Store.Refresh(ctx))
	assert.Equal(t, 1, shopper.Store.Quantity("veil"))
	assert.Equal(t, 2, shopper.Store.Len())

	require.NoError(t, shopper.Store.ClearAndRelease(ctx, cartsync.ReasonManual))
	assert.Zero(t, shopper.Store.Len())

	n, err := shopper.Reservations.Available(ctx, "lipstick")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, cartsync.ReasonManual, last.Reason)
	assert.ElementsMatch(t, []string{"lipstick", "veil"}, last.ProductIDs)
}

func TestFlow_ProductViewClampsToStock(t *testing.T) {
	srv, _ := setupServer(t, adminToken)
	ctx := context.Background()
	shopper := newShopper(t, srv.URL)

	view := shopper.View("lipstick")
	defer view.Close()

	n, err := view.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, view.Clamp(10))

	res, msg, err := view.SetQuantity(ctx, 10, cartsync.Metadata{})
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Equal(t, 3, res.Quantity)
}

func TestFlow_CheckoutPaysTotalThenReleases(t *testing.T) {
	srv, _ := setupServer(t, adminToken)
	ctx := context.Background()
	alice := newShopper(t, srv.URL)

	_, err := alice.Store.SetItemQuantity(ctx, "lipstick", 2, cartsync.Metadata{Name: "Lipstick", UnitPrice: decimal.RequireFromString("12.00")})
	require.NoError(t, err)

	secret, err := alice.Payments.CreatePaymentIntent(ctx, cartsync.MinorUnits(alice.Store.Total()), alice.Config.Currency)
	require.NoError(t, err)
	assert.Contains(t, secret, "_secret_")

	require.NoError(t, alice.Store.ClearAfterPayment(ctx))
	n, err := alice.Reservations.Available(ctx, "lipstick")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
