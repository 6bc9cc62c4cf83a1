package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gothglitter/storefront/pkg/database"
	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/services/storefront/internal/domain"
	"github.com/gothglitter/storefront/services/storefront/internal/repository"
)

// CatalogRepository reads initial stock from the products table.
type CatalogRepository struct {
	pool database.DBTX
}

var _ repository.Catalog = (*CatalogRepository)(nil)

// NewCatalogRepository creates a new PostgreSQL-backed catalog.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// StockQuantity returns the catalog quantity for productID.
func (r *CatalogRepository) StockQuantity(ctx context.Context, productID string) (int, error) {
	const query = `SELECT quantity FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "select", query)
	var qty int
	err := r.pool.QueryRow(ctx, query, productID).Scan(&qty)
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("product", productID)
		}
		return 0, fmt.Errorf("get product quantity: %w", err)
	}
	return qty, nil
}

// Ping runs a trivial query.
func (r *CatalogRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping catalog: %w", err)
	}
	return nil
}

// Upsert writes products in one transaction, replacing name, price, stock
// and image of existing rows.
func (r *CatalogRepository) Upsert(ctx context.Context, products []domain.Product) error {
	const query = `
		INSERT INTO products (id, name, price_cents, quantity, image_ref)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price_cents = EXCLUDED.price_cents,
			quantity = EXCLUDED.quantity,
			image_ref = EXCLUDED.image_ref,
			updated_at = NOW()`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range products {
		if _, err := tx.Exec(ctx, query, p.ID, p.Name, p.PriceCents, p.Quantity, p.ImageRef); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}
