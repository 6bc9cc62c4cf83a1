package domain

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultCartTTL is how long a session may sit untouched before the sweeper
// returns its holds to stock.
const DefaultCartTTL = 20 * time.Minute

// Stock change actions.
const (
	ActionReserved  = "reserved"
	ActionReleased  = "released"
	ActionCommitted = "committed"
	ActionCleared   = "cleared"
	ActionExpired   = "expired"
	ActionRestocked = "restocked"
)

var productIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidProductID reports whether id is usable as a product key.
func ValidProductID(id string) bool {
	return productIDPattern.MatchString(id)
}

// Holds is one session's claim on one product. Pending units are reserved
// but not yet in the cart; Committed units are the cart quantity.
type Holds struct {
	Pending   int `json:"pending"`
	Committed int `json:"committed"`
}

// StockChange records a movement of units between stock and a session.
type StockChange struct {
	ProductID string    `json:"product_id"`
	SessionID string    `json:"session_id,omitempty"`
	Action    string    `json:"action"`
	Units     int       `json:"units"`
	Available int       `json:"available"`
	At        time.Time `json:"at"`
}

// Released is the outcome of returning a whole session to stock.
type Released struct {
	SessionID string
	// Units maps product id to the number of units put back.
	Units map[string]int
}

// ValidateQuantity rejects non-positive unit counts.
func ValidateQuantity(n int) error {
	if n < 1 {
		return fmt.Errorf("quantity must be positive, got %d", n)
	}
	return nil
}
