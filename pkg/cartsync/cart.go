package cartsync

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
)

// CartClient talks to the storefront's session cart. The server's
// quantities are authoritative; every mutation returns the new value.
type CartClient struct {
	t      *Transport
	logger *slog.Logger
}

func NewCartClient(t *Transport, logger *slog.Logger) *CartClient {
	return &CartClient{t: t, logger: logger}
}

// Add commits n reserved units of productID to the cart and returns the
// resulting quantity.
func (c *CartClient) Add(ctx context.Context, productID string, n int) (int, error) {
	if err := checkArgs(productID, n); err != nil {
		return 0, err
	}
	resp, err := c.t.mutate(ctx, qty(n), "api", "cart", productID, "add")
	if err != nil {
		return 0, fmt.Errorf("add %d of %s: %w", n, productID, err)
	}
	return decode[int](resp)
}

// Remove takes n units of productID out of the cart, leaving them reserved,
// and returns the resulting quantity.
func (c *CartClient) Remove(ctx context.Context, productID string, n int) (int, error) {
	if err := checkArgs(productID, n); err != nil {
		return 0, err
	}
	resp, err := c.t.mutate(ctx, qty(n), "api", "cart", productID, "remove")
	if err != nil {
		return 0, fmt.Errorf("remove %d of %s: %w", n, productID, err)
	}
	return decode[int](resp)
}

// Quantity returns the server's quantity for one product.
func (c *CartClient) Quantity(ctx context.Context, productID string) (int, error) {
	if err := checkProductID(productID); err != nil {
		return 0, err
	}
	resp, err := c.t.fetch(ctx, nil, "api", "cart", productID, "qty")
	if err != nil {
		return 0, fmt.Errorf("quantity of %s: %w", productID, err)
	}
	return decode[int](resp)
}

// Items returns the server's product → quantity map.
func (c *CartClient) Items(ctx context.Context) (map[string]int, error) {
	resp, err := c.t.fetch(ctx, nil, "api", "cart")
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	items, err := decode[map[string]int](resp)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = map[string]int{}
	}
	return items, nil
}

// Clear empties the cart and releases every hold of the session.
func (c *CartClient) Clear(ctx context.Context) error {
	resp, err := c.t.mutate(ctx, nil, "api", "cart", "clear")
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// Touch refreshes the session's last-activity time.
func (c *CartClient) Touch(ctx context.Context) error {
	resp, err := c.t.mutate(ctx, nil, "api", "cart", "touch")
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func checkArgs(productID string, n int) error {
	if err := checkProductID(productID); err != nil {
		return err
	}
	if n < 1 {
		return apperrors.InvalidInput(fmt.Sprintf("qty must be positive, got %d", n))
	}
	return nil
}
