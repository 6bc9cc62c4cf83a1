package cartsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
)

// ReservationClient places and releases unit holds on the storefront
// inventory for the transport's session.
type ReservationClient struct {
	t      *Transport
	logger *slog.Logger
}

func NewReservationClient(t *Transport, logger *slog.Logger) *ReservationClient {
	return &ReservationClient{t: t, logger: logger}
}

// ReserveUnits asks for count units one at a time and stops at the first
// OUT_OF_STOCK answer. It returns how many were confirmed. Exhaustion is not
// an error; any other failure is returned along with the count confirmed so far.
func (c *ReservationClient) ReserveUnits(ctx context.Context, productID string, count int) (int, error) {
	if err := checkProductID(productID); err != nil {
		return 0, err
	}
	if count < 1 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("count must be positive, got %d", count))
	}

	confirmed := 0
	for confirmed < count {
		resp, err := c.t.mutate(ctx, nil, "api", "inventory", productID, "reserve")
		if errors.Is(err, apperrors.ErrExhausted) {
			reserveConflicts.Inc()
			c.logger.DebugContext(ctx, "reservation cut short",
				slog.String("product_id", productID),
				slog.Int("requested", count),
				slog.Int("confirmed", confirmed),
			)
			return confirmed, nil
		}
		if err != nil {
			return confirmed, fmt.Errorf("reserve %s: %w", productID, err)
		}
		_ = resp.Body.Close()
		confirmed++
		unitsReserved.Inc()
	}
	return confirmed, nil
}

// ReleaseUnits hands count holds back. It is best-effort: failures are logged
// and counted, never returned. It reports how many releases succeeded.
func (c *ReservationClient) ReleaseUnits(ctx context.Context, productID string, count int) int {
	if count < 1 || checkProductID(productID) != nil {
		return 0
	}
	released := 0
	for i := 0; i < count; i++ {
		resp, err := c.t.mutate(ctx, nil, "api", "inventory", productID, "release")
		if err != nil {
			releaseFailures.Inc()
			c.logger.WarnContext(ctx, "release failed",
				slog.String("product_id", productID),
				slog.Int("remaining", count-i),
				slog.String("error", err.Error()),
			)
			// The storefront sweeper reclaims whatever is left.
			break
		}
		_ = resp.Body.Close()
		released++
		unitsReleased.Inc()
	}
	return released
}

// Available returns the units of productID currently free to reserve.
func (c *ReservationClient) Available(ctx context.Context, productID string) (int, error) {
	if err := checkProductID(productID); err != nil {
		return 0, err
	}
	resp, err := c.t.fetch(ctx, nil, "api", "inventory", productID, "available")
	if err != nil {
		return 0, fmt.Errorf("availability of %s: %w", productID, err)
	}
	return decode[int](resp)
}
