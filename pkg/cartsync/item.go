package cartsync

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unbounded is the availability hint of a product whose stock has not been fetched yet.
const Unbounded = -1

// Metadata is best-effort display data for a line. It is cached from whichever
// caller last supplied it and is never authoritative.
type Metadata struct {
	Name      string
	UnitPrice decimal.Decimal
	ImageRef  string
}

// merge overlays the non-empty fields of o onto m.
func (m Metadata) merge(o Metadata) Metadata {
	if o.Name != "" {
		m.Name = o.Name
	}
	if !o.UnitPrice.IsZero() {
		m.UnitPrice = o.UnitPrice
	}
	if o.ImageRef != "" {
		m.ImageRef = o.ImageRef
	}
	return m
}

// LineItem is one product in the cart. Quantity is always positive; a line
// that reaches zero is removed.
type LineItem struct {
	ProductID string
	Metadata
	Quantity int
	// AvailableHint is the last server-reported availability, or Unbounded.
	AvailableHint int
}

// Subtotal is UnitPrice × Quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Reason says why availability may have changed.
type Reason string

const (
	ReasonManual  Reason = "manual"
	ReasonPayment Reason = "payment"
	ReasonIdle    Reason = "idle"
)

// Valid reports whether r is one of the known reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonManual, ReasonPayment, ReasonIdle:
		return true
	}
	return false
}

// Event announces that availability of ProductIDs may have changed.
type Event struct {
	ProductIDs []string
	Reason     Reason
	// Origin is empty for events raised in this process and carries the
	// sending session's id for events that arrived over the relay.
	Origin string
	At     time.Time
}

// Has reports whether the event concerns productID.
func (e Event) Has(productID string) bool {
	for _, id := range e.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}
