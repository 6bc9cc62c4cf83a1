package cartsync

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
)

func ghost() Metadata {
	return Metadata{Name: "Ghost", UnitPrice: decimal.NewFromInt(10)}
}

func TestSetItemQuantity_AddsConfirmedUnits(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx := context.Background()

	res, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)

	assert.Equal(t, Result{ProductID: "p1", Requested: 2, Confirmed: 2, Quantity: 2}, res)
	assert.Empty(t, res.Message())

	items := h.sess.Store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "Ghost", items[0].Name)
	assert.True(t, items[0].UnitPrice.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, Unbounded, items[0].AvailableHint)

	assert.Equal(t, 2, h.shop.Calls("reserve"))
	assert.Equal(t, 1, h.shop.Calls("add"))
	assert.Equal(t, 3, h.shop.Stock("p1"))
	assert.Equal(t, 2, h.shop.Committed("p1"))
	assert.Zero(t, h.shop.Pending("p1"))

	events := h.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, []string{"p1"}, events[0].ProductIDs)
	assert.Equal(t, ReasonManual, events[0].Reason)
	assert.Empty(t, events[0].Origin)
}

func TestSetItemQuantity_PartialAvailability(t *testing.T) {
	h := newHarness(t, map[string]int{"p2": 1})

	res, err := h.sess.Store.SetItemQuantity(context.Background(), "p2", 3, Metadata{Name: "Bat"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 1, res.Confirmed)
	assert.Equal(t, 2, res.Unavailable())
	assert.Equal(t, 1, res.Quantity)
	assert.Contains(t, res.Message(), "only 1 available")
	assert.Contains(t, res.Message(), "2 could not be added")

	assert.Equal(t, 1, h.sess.Store.Quantity("p2"))
	// Two successful reserves would be impossible; the second call is the 409.
	assert.Equal(t, 2, h.shop.Calls("reserve"))
	assert.Equal(t, 1, h.shop.Calls("add"))
	assert.Len(t, h.events.all(), 1)
}

func TestSetItemQuantity_SoldOut(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 0})

	res, err := h.sess.Store.SetItemQuantity(context.Background(), "p1", 1, ghost())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Requested)
	assert.Zero(t, res.Confirmed)
	assert.Equal(t, MsgSoldOut, res.Message())
	assert.Zero(t, h.sess.Store.Len())
	assert.Zero(t, h.shop.Calls("add"))
	assert.Empty(t, h.events.all())
}

func TestSetItemQuantity_SameQuantityIsNoop(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx := context.Background()

	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)
	reserves := h.shop.Calls("reserve")

	res, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, Metadata{ImageRef: "ghost.png"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Quantity)
	assert.Zero(t, res.Requested)
	assert.Equal(t, reserves, h.shop.Calls("reserve"))
	line, ok := h.sess.Store.Line("p1")
	require.True(t, ok)
	assert.Equal(t, "ghost.png", line.ImageRef)
	assert.Equal(t, "Ghost", line.Name)
	assert.Len(t, h.events.all(), 1)
}

func TestSetItemQuantity_Decrease(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx := context.Background()

	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 3, ghost())
	require.NoError(t, err)

	res, err := h.sess.Store.SetItemQuantity(ctx, "p1", 1, Metadata{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Quantity)
	assert.Equal(t, 2, res.Confirmed)
	assert.True(t, res.Decrease)
	assert.Empty(t, res.Message())
	assert.Equal(t, 1, h.sess.Store.Quantity("p1"))
	assert.Equal(t, 1, h.shop.Calls("remove"))
	assert.Equal(t, 2, h.shop.Calls("release"))
	assert.Equal(t, 4, h.shop.Stock("p1"))
	assert.Equal(t, 1, h.shop.Committed("p1"))
	assert.Zero(t, h.shop.Pending("p1"))
	assert.Len(t, h.events.all(), 2)
}

func TestSetItemQuantity_DecreaseReportsActualDrop(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx := context.Background()

	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 3, ghost())
	require.NoError(t, err)
	// Another tab of the same session adds two more.
	h.shop.CommitDirect("p1", 2)

	res, err := h.sess.Store.SetItemQuantity(ctx, "p1", 1, Metadata{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Requested)
	assert.Zero(t, res.Confirmed)
	assert.Equal(t, 3, res.Quantity)
	assert.Empty(t, res.Message())
	assert.Equal(t, 3, h.sess.Store.Quantity("p1"))
	// Both units the server moved out of the cart went back to stock.
	assert.Zero(t, h.shop.Pending("p1"))
	assert.Equal(t, 2, h.shop.Calls("release"))
}

func TestSetItemQuantity_ZeroRemovesLine(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx := context.Background()

	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)
	_, err = h.sess.Store.SetItemQuantity(ctx, "p1", -4, Metadata{})
	require.NoError(t, err)

	_, ok := h.sess.Store.Line("p1")
	assert.False(t, ok)
	assert.Equal(t, 5, h.shop.Stock("p1"))
}

func TestSetItemQuantity_AddFailureReleasesHolds(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	h.shop.Fail("add", http.StatusInternalServerError)

	_, err := h.sess.Store.SetItemQuantity(context.Background(), "p1", 2, ghost())
	require.Error(t, err)

	assert.Zero(t, h.sess.Store.Len())
	assert.Equal(t, 2, h.shop.Calls("release"))
	assert.Equal(t, 5, h.shop.Stock("p1"))
	assert.Empty(t, h.events.all())
	assert.Equal(t, MsgRetry, UserMessage(err))
}

func TestSetItemQuantity_RemoveFailureLeavesState(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx := context.Background()
	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)

	h.shop.Fail("remove", http.StatusServiceUnavailable)
	_, err = h.sess.Store.SetItemQuantity(ctx, "p1", 0, Metadata{})
	require.Error(t, err)

	assert.Equal(t, 2, h.sess.Store.Quantity("p1"))
	assert.Zero(t, h.shop.Calls("release"))
	assert.Len(t, h.events.all(), 1)
}

func TestSetItemQuantity_IgnoresCancellationOnceStarted(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Quantity)
}

func TestSetItemQuantity_InvalidProductID(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.sess.Store.SetItemQuantity(context.Background(), "", 1, Metadata{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = h.sess.Store.SetItemQuantity(context.Background(), "../etc", 1, Metadata{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, h.shop.Calls("reserve"))
}

func TestSetItemQuantity_ConcurrentSameProduct(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 50})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(target int) {
			defer wg.Done()
			_, err := h.sess.Store.SetItemQuantity(ctx, "p1", target, ghost())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	q := h.sess.Store.Quantity("p1")
	assert.Equal(t, h.shop.Committed("p1"), q)
	assert.Zero(t, h.shop.Pending("p1"))
	assert.Equal(t, 50-q, h.shop.Stock("p1"))
	assert.False(t, h.sess.Store.Busy("p1"))
}

func TestClearAndRelease(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5, "p2": 5})
	ctx := context.Background()
	_, err := h.sess.Store.SetItemQuantity(ctx, "p2", 1, Metadata{})
	require.NoError(t, err)
	_, err = h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)

	require.NoError(t, h.sess.Store.ClearAndRelease(ctx, ReasonManual))

	assert.Zero(t, h.sess.Store.Len())
	assert.Equal(t, 1, h.shop.Calls("clear"))
	assert.Equal(t, 5, h.shop.Stock("p1"))
	assert.Equal(t, 5, h.shop.Stock("p2"))

	events := h.events.all()
	require.Len(t, events, 3)
	assert.Equal(t, []string{"p1", "p2"}, events[2].ProductIDs)
	assert.Equal(t, ReasonManual, events[2].Reason)
}

func TestClearAndRelease_EmptyCartStillAnnounces(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.sess.Store.ClearAfterPayment(context.Background()))

	events := h.events.all()
	require.Len(t, events, 1)
	assert.Empty(t, events[0].ProductIDs)
	assert.Equal(t, ReasonPayment, events[0].Reason)
}

func TestClearAndRelease_FailureKeepsLocalCart(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx := context.Background()
	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 1, ghost())
	require.NoError(t, err)

	h.shop.Fail("clear", http.StatusInternalServerError)
	require.Error(t, h.sess.Store.ClearAndRelease(ctx, ReasonManual))

	assert.Equal(t, 1, h.sess.Store.Quantity("p1"))
	assert.Len(t, h.events.all(), 1)
}

func TestClearAndRelease_UnknownReason(t *testing.T) {
	h := newHarness(t, nil)
	err := h.sess.Store.ClearAndRelease(context.Background(), Reason("bored"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, h.shop.Calls("clear"))
}

func TestRefresh_ReconcilesWithServer(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5, "p3": 5})
	ctx := context.Background()
	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)
	h.sess.Store.SetAvailableHint("p1", 3)

	h.shop.CommitDirect("p3", 4)
	require.NoError(t, h.sess.Store.Refresh(ctx))

	items := h.sess.Store.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, "Ghost", items[0].Name)
	assert.Equal(t, 3, items[0].AvailableHint)
	assert.Equal(t, "p3", items[1].ProductID)
	assert.Equal(t, 4, items[1].Quantity)
	assert.Empty(t, items[1].Name)
	assert.Equal(t, Unbounded, items[1].AvailableHint)
}

func TestRefresh_DropsLinesMissingOnServer(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx := context.Background()
	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)

	h.shop.CommitDirect("p1", -2)
	require.NoError(t, h.sess.Store.Refresh(ctx))
	assert.Zero(t, h.sess.Store.Len())
}

func TestRefresh_Idempotent(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5, "p2": 5})
	ctx := context.Background()
	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)
	h.shop.CommitDirect("p2", 1)

	require.NoError(t, h.sess.Store.Refresh(ctx))
	first := h.sess.Store.Items()
	require.NoError(t, h.sess.Store.Refresh(ctx))

	assert.Equal(t, first, h.sess.Store.Items())
}

func TestRefresh_ReadFailureKeepsState(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx := context.Background()
	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)

	h.shop.Fail("items", http.StatusBadGateway)
	require.Error(t, h.sess.Store.Refresh(ctx))
	assert.Equal(t, 2, h.sess.Store.Quantity("p1"))
}

func TestTotal(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5, "p2": 5})
	ctx := context.Background()
	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, Metadata{UnitPrice: decimal.RequireFromString("10.50")})
	require.NoError(t, err)
	_, err = h.sess.Store.SetItemQuantity(ctx, "p2", 3, Metadata{UnitPrice: decimal.RequireFromString("0.99")})
	require.NoError(t, err)

	assert.Equal(t, "23.97", h.sess.Store.Total().StringFixed(2))
}

func TestRemoveLine_IsLocalOnly(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5})
	ctx := context.Background()
	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 2, ghost())
	require.NoError(t, err)

	h.sess.Store.RemoveLine("p1")

	assert.Zero(t, h.sess.Store.Len())
	assert.Equal(t, 2, h.shop.Committed("p1"))
	assert.Len(t, h.events.all(), 1)
}

func TestOnChange_ReportsEmptinessTransitions(t *testing.T) {
	h := newHarness(t, map[string]int{"p1": 5, "p2": 5})
	ctx := context.Background()

	var got []bool
	stop := h.sess.Store.OnChange(func(empty bool) { got = append(got, empty) })

	_, err := h.sess.Store.SetItemQuantity(ctx, "p1", 1, Metadata{})
	require.NoError(t, err)
	_, err = h.sess.Store.SetItemQuantity(ctx, "p2", 1, Metadata{})
	require.NoError(t, err)
	require.NoError(t, h.sess.Store.ClearAndRelease(ctx, ReasonManual))

	stop()
	_, err = h.sess.Store.SetItemQuantity(ctx, "p1", 1, Metadata{})
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true}, got)
}
