package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/services/storefront/internal/domain"
	"github.com/gothglitter/storefront/services/storefront/internal/repository"
)

// EventPublisher announces stock movements.
type EventPublisher interface {
	PublishStockChanged(ctx context.Context, change domain.StockChange) error
}

// InventoryService places and releases single-unit holds and answers
// availability. Stock counters are seeded lazily from the catalog.
type InventoryService struct {
	holds   repository.HoldStore
	catalog repository.Catalog
	events  EventPublisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(holds repository.HoldStore, catalog repository.Catalog, events EventPublisher, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		holds:   holds,
		catalog: catalog,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// Reserve holds one unit of productID for the session and returns the units
// still free.
func (s *InventoryService) Reserve(ctx context.Context, sessionID, productID string) (int, error) {
	if err := checkSessionProduct(sessionID, productID); err != nil {
		return 0, err
	}

	var left int
	err := s.withSeed(ctx, productID, func() error {
		var err error
		left, err = s.holds.Reserve(ctx, sessionID, productID, s.now())
		return err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrExhausted) {
			reservations.WithLabelValues("exhausted").Inc()
			return 0, err
		}
		reservations.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("reserve %s: %w", productID, err)
	}
	reservations.WithLabelValues("ok").Inc()

	s.publish(ctx, domain.StockChange{
		ProductID: productID,
		SessionID: sessionID,
		Action:    domain.ActionReserved,
		Units:     1,
		Available: left,
	})
	return left, nil
}

// Release hands one of the session's units of productID back to stock and
// returns the units now free. Releasing with nothing held is not an error.
func (s *InventoryService) Release(ctx context.Context, sessionID, productID string) (int, error) {
	if err := checkSessionProduct(sessionID, productID); err != nil {
		return 0, err
	}

	moved, left, err := s.holds.Release(ctx, sessionID, productID, s.now())
	if err != nil {
		return 0, fmt.Errorf("release %s: %w", productID, err)
	}
	if moved {
		s.publish(ctx, domain.StockChange{
			ProductID: productID,
			SessionID: sessionID,
			Action:    domain.ActionReleased,
			Units:     1,
			Available: left,
		})
	}
	return left, nil
}

// Available returns the free units of productID.
func (s *InventoryService) Available(ctx context.Context, productID string) (int, error) {
	if !domain.ValidProductID(productID) {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid product id %q", productID))
	}
	var n int
	err := s.withSeed(ctx, productID, func() error {
		var err error
		n, err = s.holds.Available(ctx, productID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("available %s: %w", productID, err)
	}
	return n, nil
}

// SetStock overwrites the free units of productID. Admin only.
func (s *InventoryService) SetStock(ctx context.Context, productID string, qty int) (int, error) {
	if !domain.ValidProductID(productID) {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid product id %q", productID))
	}
	if qty < 0 {
		return 0, apperrors.InvalidInput("qty must not be negative")
	}
	if err := s.holds.SetStock(ctx, productID, qty); err != nil {
		return 0, fmt.Errorf("set stock %s: %w", productID, err)
	}

	s.logger.InfoContext(ctx, "stock set",
		slog.String("product_id", productID),
		slog.Int("quantity", qty),
	)
	s.publish(ctx, domain.StockChange{
		ProductID: productID,
		Action:    domain.ActionRestocked,
		Available: qty,
	})
	return qty, nil
}

// withSeed runs op, and if the product has no stock counter yet, seeds it
// from the catalog and runs op once more.
func (s *InventoryService) withSeed(ctx context.Context, productID string, op func() error) error {
	err := op()
	if !errors.Is(err, repository.ErrUnseeded) {
		return err
	}
	if err := s.seed(ctx, productID); err != nil {
		return err
	}
	return op()
}

func (s *InventoryService) seed(ctx context.Context, productID string) error {
	qty, err := s.catalog.StockQuantity(ctx, productID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		// Unknown products exist with nothing to sell.
		qty = 0
	case err != nil:
		return fmt.Errorf("seed %s from catalog: %w", productID, err)
	}

	created, err := s.holds.Seed(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("seed %s: %w", productID, err)
	}
	if created {
		stockSeeded.Inc()
		s.logger.InfoContext(ctx, "stock seeded from catalog",
			slog.String("product_id", productID),
			slog.Int("quantity", qty),
		)
	}
	return nil
}

func (s *InventoryService) publish(ctx context.Context, change domain.StockChange) {
	if s.events == nil {
		return
	}
	if change.At.IsZero() {
		change.At = s.now().UTC()
	}
	if err := s.events.PublishStockChanged(ctx, change); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish inventory.changed event",
			slog.String("product_id", change.ProductID),
			slog.String("action", change.Action),
			slog.String("error", err.Error()),
		)
	}
}

func checkSessionProduct(sessionID, productID string) error {
	if sessionID == "" {
		return apperrors.InvalidInput("session is required")
	}
	if !domain.ValidProductID(productID) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid product id %q", productID))
	}
	return nil
}
