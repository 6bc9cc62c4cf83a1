package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gothglitter/storefront/services/storefront/internal/domain"
)

// ErrUnseeded is returned when a product has no stock counter yet. Callers
// seed it from the catalog and try again.
var ErrUnseeded = errors.New("stock not seeded")

// HoldStore keeps stock counters and per-session holds. Every method that
// names a session also marks it as touched at the given time.
type HoldStore interface {
	// Reserve moves one unit from stock to the session's pending holds and
	// returns the remaining stock. apperrors.ErrExhausted when none is left.
	Reserve(ctx context.Context, sessionID, productID string, at time.Time) (int, error)

	// Release returns one pending unit, or failing that one committed unit,
	// to stock. It reports whether a unit moved and the resulting stock.
	Release(ctx context.Context, sessionID, productID string, at time.Time) (bool, int, error)

	// Commit moves up to n pending units into the cart and reserves fresh
	// stock for the rest while it lasts. It returns the cart quantity and
	// how many units were taken from fresh stock.
	Commit(ctx context.Context, sessionID, productID string, n int, at time.Time) (qty, fresh int, err error)

	// Uncommit moves up to n cart units back to pending and returns the cart quantity.
	Uncommit(ctx context.Context, sessionID, productID string, n int, at time.Time) (int, error)

	Holds(ctx context.Context, sessionID, productID string, at time.Time) (domain.Holds, error)
	Items(ctx context.Context, sessionID string, at time.Time) (map[string]int, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error

	// ReleaseAll returns every hold of the session to stock. When
	// idleSince is non-zero the session is only released if it has not
	// been touched after idleSince; ok reports whether it was.
	ReleaseAll(ctx context.Context, sessionID string, idleSince time.Time) (released domain.Released, ok bool, err error)

	// IdleSessions lists up to limit sessions last touched before cutoff.
	IdleSessions(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// Available returns the stock counter, or ErrUnseeded.
	Available(ctx context.Context, productID string) (int, error)
	// Seed sets the stock counter only if it does not exist yet.
	Seed(ctx context.Context, productID string, qty int) (bool, error)
	// SetStock overwrites the stock counter.
	SetStock(ctx context.Context, productID string, qty int) error

	Ping(ctx context.Context) error
}

// Catalog is the source of initial stock.
type Catalog interface {
	// StockQuantity returns the catalog quantity, or apperrors.ErrNotFound.
	StockQuantity(ctx context.Context, productID string) (int, error)
	Ping(ctx context.Context) error
}
