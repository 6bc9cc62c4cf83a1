package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/services/storefront/internal/domain"
	"github.com/gothglitter/storefront/services/storefront/internal/repository"
)

// CartService manages the committed side of a session's holds: the cart.
type CartService struct {
	holds     repository.HoldStore
	inventory *InventoryService
	logger    *slog.Logger
	now       func() time.Time
}

// NewCartService creates a new cart service. Stock seeding and event
// publishing go through inventory.
func NewCartService(holds repository.HoldStore, inventory *InventoryService, logger *slog.Logger) *CartService {
	return &CartService{
		holds:     holds,
		inventory: inventory,
		logger:    logger,
		now:       time.Now,
	}
}

// Add commits n units of productID to the cart, using the session's pending
// holds first, and returns the cart quantity. Fewer than n units are added
// when stock runs out.
func (s *CartService) Add(ctx context.Context, sessionID, productID string, n int) (int, error) {
	if err := checkSessionProduct(sessionID, productID); err != nil {
		return 0, err
	}
	if err := domain.ValidateQuantity(n); err != nil {
		return 0, apperrors.InvalidInput(err.Error())
	}

	var qty, fresh int
	err := s.inventory.withSeed(ctx, productID, func() error {
		var err error
		qty, fresh, err = s.holds.Commit(ctx, sessionID, productID, n, s.now())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add %s: %w", productID, err)
	}

	if fresh > 0 {
		left, _ := s.holds.Available(ctx, productID)
		s.inventory.publish(ctx, domain.StockChange{
			ProductID: productID,
			SessionID: sessionID,
			Action:    domain.ActionCommitted,
			Units:     fresh,
			Available: left,
		})
	}
	return qty, nil
}

// Remove takes up to n units of productID out of the cart, keeping them as
// pending holds for the client to release, and returns the cart quantity.
func (s *CartService) Remove(ctx context.Context, sessionID, productID string, n int) (int, error) {
	if err := checkSessionProduct(sessionID, productID); err != nil {
		return 0, err
	}
	if err := domain.ValidateQuantity(n); err != nil {
		return 0, apperrors.InvalidInput(err.Error())
	}

	qty, err := s.holds.Uncommit(ctx, sessionID, productID, n, s.now())
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", productID, err)
	}
	return qty, nil
}

// Quantity returns the cart quantity of productID.
func (s *CartService) Quantity(ctx context.Context, sessionID, productID string) (int, error) {
	if err := checkSessionProduct(sessionID, productID); err != nil {
		return 0, err
	}
	h, err := s.holds.Holds(ctx, sessionID, productID, s.now())
	if err != nil {
		return 0, fmt.Errorf("quantity %s: %w", productID, err)
	}
	return h.Committed, nil
}

// Items returns the session's cart as product → quantity.
func (s *CartService) Items(ctx context.Context, sessionID string) (map[string]int, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session is required")
	}
	items, err := s.holds.Items(ctx, sessionID, s.now())
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return items, nil
}

// Clear returns every unit the session holds, pending or committed, to stock.
func (s *CartService) Clear(ctx context.Context, sessionID string) (domain.Released, error) {
	if sessionID == "" {
		return domain.Released{}, apperrors.InvalidInput("session is required")
	}
	released, _, err := s.holds.ReleaseAll(ctx, sessionID, time.Time{})
	if err != nil {
		return domain.Released{}, fmt.Errorf("clear cart: %w", err)
	}
	s.announceReleased(ctx, released, domain.ActionCleared)
	s.logger.InfoContext(ctx, "cart cleared", slog.Int("products", len(released.Units)))
	return released, nil
}

// Touch records activity on the session.
func (s *CartService) Touch(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperrors.InvalidInput("session is required")
	}
	if err := s.holds.Touch(ctx, sessionID, s.now()); err != nil {
		return fmt.Errorf("touch: %w", err)
	}
	return nil
}

// Expire releases the session if it has not been touched since idleSince.
func (s *CartService) Expire(ctx context.Context, sessionID string, idleSince time.Time) (domain.Released, bool, error) {
	released, ok, err := s.holds.ReleaseAll(ctx, sessionID, idleSince)
	if err != nil {
		return domain.Released{}, false, fmt.Errorf("expire %s: %w", sessionID, err)
	}
	if ok {
		s.announceReleased(ctx, released, domain.ActionExpired)
	}
	return released, ok, nil
}

func (s *CartService) announceReleased(ctx context.Context, released domain.Released, action string) {
	for productID, units := range released.Units {
		left, _ := s.holds.Available(ctx, productID)
		s.inventory.publish(ctx, domain.StockChange{
			ProductID: productID,
			SessionID: released.SessionID,
			Action:    action,
			Units:     units,
			Available: left,
		})
	}
}
