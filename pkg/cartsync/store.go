package cartsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
)

// Reserver places and releases holds on inventory.
type Reserver interface {
	ReserveUnits(ctx context.Context, productID string, count int) (int, error)
	ReleaseUnits(ctx context.Context, productID string, count int) int
}

// CartAPI is the storefront's session cart.
type CartAPI interface {
	Add(ctx context.Context, productID string, n int) (int, error)
	Remove(ctx context.Context, productID string, n int) (int, error)
	Items(ctx context.Context) (map[string]int, error)
	Clear(ctx context.Context) error
}

// Result describes one quantity change. For increases Confirmed may fall
// short of Requested when the product ran out. For decreases it is how far
// the cart quantity actually dropped, which is less than Requested when
// another tab already changed the line.
type Result struct {
	ProductID string
	Requested int
	Confirmed int
	// Quantity is the server's quantity after the change.
	Quantity int
	Decrease bool
}

// Unavailable is the number of requested units that could not be reserved.
func (r Result) Unavailable() int {
	return r.Requested - r.Confirmed
}

// Message is the notice to show the shopper, or "" when nothing needs saying.
func (r Result) Message() string {
	switch {
	case r.Decrease, r.Unavailable() <= 0:
		return ""
	case r.Confirmed == 0:
		return MsgSoldOut
	default:
		return fmt.Sprintf("only %d available, %d could not be added", r.Quantity, r.Unavailable())
	}
}

const (
	MsgSoldOut = "just sold out"
	MsgRetry   = "could not update your cart, please try again"
)

// UserMessage maps a mutation error to the notice shown to the shopper.
func UserMessage(err error) string {
	if errors.Is(err, apperrors.ErrExhausted) {
		return MsgSoldOut
	}
	return MsgRetry
}

// Store is the session's local cart. It mirrors server quantities, keeps
// display metadata, and announces every successful change on the bus.
type Store struct {
	reserver Reserver
	cart     CartAPI
	bus      *Bus
	logger   *slog.Logger

	// ops is held shared by per-product mutations and exclusively by
	// whole-cart operations.
	ops   sync.RWMutex
	locks keyedMutex

	mu        sync.RWMutex
	lines     map[string]*LineItem
	busy      map[string]int
	observers map[uint64]func(empty bool)
	nextObs   uint64
}

func NewStore(reserver Reserver, cart CartAPI, bus *Bus, logger *slog.Logger) *Store {
	return &Store{
		reserver:  reserver,
		cart:      cart,
		bus:       bus,
		logger:    logger,
		lines:     make(map[string]*LineItem),
		busy:      make(map[string]int),
		observers: make(map[uint64]func(bool)),
	}
}

// SetItemQuantity moves productID's quantity to target. Increases reserve
// units first and commit only what was confirmed; decreases uncommit then
// release. meta seeds display data for a new line and overlays an existing one.
// The server calls are not cancelled with ctx once started.
func (s *Store) SetItemQuantity(ctx context.Context, productID string, target int, meta Metadata) (Result, error) {
	if err := checkProductID(productID); err != nil {
		return Result{}, err
	}
	if target < 0 {
		target = 0
	}

	s.ops.RLock()
	defer s.ops.RUnlock()
	unlock := s.locks.Lock(productID)
	defer unlock()

	current := s.Quantity(productID)
	delta := target - current
	if delta == 0 {
		s.mergeMetadata(productID, meta)
		return Result{ProductID: productID, Quantity: current}, nil
	}

	s.setBusy(productID, true)
	defer s.setBusy(productID, false)

	ctx = context.WithoutCancel(ctx)
	if delta > 0 {
		return s.increase(ctx, productID, delta, meta)
	}
	return s.decrease(ctx, productID, current, -delta, meta)
}

func (s *Store) increase(ctx context.Context, productID string, n int, meta Metadata) (Result, error) {
	res := Result{ProductID: productID, Requested: n}

	confirmed, err := s.reserver.ReserveUnits(ctx, productID, n)
	if err != nil {
		if confirmed > 0 {
			s.reserver.ReleaseUnits(ctx, productID, confirmed)
		}
		return Result{}, err
	}
	if confirmed == 0 {
		res.Quantity = s.Quantity(productID)
		s.SetAvailableHint(productID, 0)
		return res, nil
	}

	q, err := s.cart.Add(ctx, productID, confirmed)
	if err != nil {
		s.reserver.ReleaseUnits(ctx, productID, confirmed)
		return Result{}, err
	}

	res.Confirmed = confirmed
	res.Quantity = q
	s.apply(productID, q, meta)
	s.announce(ReasonManual, productID)
	return res, nil
}

func (s *Store) decrease(ctx context.Context, productID string, current, n int, meta Metadata) (Result, error) {
	q, err := s.cart.Remove(ctx, productID, n)
	if err != nil {
		return Result{}, err
	}
	s.apply(productID, q, meta)

	// The server moves min(n, its quantity) units to pending. A non-zero
	// result means all n moved; at zero it moved at most what we held.
	dropped := min(n, max(current-q, 0))
	moved := dropped
	if q > 0 {
		moved = n
	}
	if moved > 0 {
		s.reserver.ReleaseUnits(ctx, productID, moved)
	}
	s.announce(ReasonManual, productID)
	return Result{ProductID: productID, Requested: n, Confirmed: dropped, Quantity: q, Decrease: true}, nil
}

// RemoveLine drops productID locally without touching the server or
// announcing anything.
func (s *Store) RemoveLine(productID string) {
	s.mutateLines(func() {
		delete(s.lines, productID)
	})
}

// ClearAndRelease clears the server cart, releasing every hold, then empties
// the local cart and announces the products it held. On failure the local
// cart is left as it was.
func (s *Store) ClearAndRelease(ctx context.Context, reason Reason) error {
	if !reason.Valid() {
		return apperrors.InvalidInput(fmt.Sprintf("unknown reason %q", reason))
	}

	s.ops.Lock()
	defer s.ops.Unlock()

	ids := s.productIDs()
	if err := s.cart.Clear(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	s.mutateLines(func() {
		s.lines = make(map[string]*LineItem)
	})
	s.announce(reason, ids...)
	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("reason", string(reason)),
		slog.Int("products", len(ids)),
	)
	return nil
}

// ClearAfterPayment is ClearAndRelease for a completed payment.
func (s *Store) ClearAfterPayment(ctx context.Context) error {
	return s.ClearAndRelease(ctx, ReasonPayment)
}

// Refresh replaces local quantities with the server's. Metadata and
// availability hints of products still present are kept; new products get
// blank metadata.
func (s *Store) Refresh(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	items, err := s.cart.Items(ctx)
	if err != nil {
		return err
	}

	s.mutateLines(func() {
		next := make(map[string]*LineItem, len(items))
		for id, q := range items {
			if q <= 0 {
				continue
			}
			line := &LineItem{ProductID: id, AvailableHint: Unbounded}
			if prev, ok := s.lines[id]; ok {
				cp := *prev
				line = &cp
			}
			line.Quantity = q
			next[id] = line
		}
		s.lines = next
	})
	return nil
}

// Items returns a copy of the lines ordered by product id.
func (s *Store) Items() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LineItem, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// Line returns the line for productID.
func (s *Store) Line(productID string) (LineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lines[productID]
	if !ok {
		return LineItem{}, false
	}
	return *l, true
}

// Quantity is the local quantity of productID, 0 when absent.
func (s *Store) Quantity(productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.lines[productID]; ok {
		return l.Quantity
	}
	return 0
}

// Len is the number of lines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Total sums the line subtotals.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// SetAvailableHint records the latest known availability of productID if it
// is in the cart.
func (s *Store) SetAvailableHint(productID string, available int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.lines[productID]; ok {
		l.AvailableHint = available
	}
}

// Busy reports whether a change to productID is in flight.
func (s *Store) Busy(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy[productID] > 0
}

// OnChange registers fn to be told whenever the cart goes from empty to
// non-empty or back. It returns a function that removes the observer.
func (s *Store) OnChange(fn func(empty bool)) func() {
	s.mu.Lock()
	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) setBusy(productID string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.busy[productID]++
		return
	}
	if s.busy[productID]--; s.busy[productID] <= 0 {
		delete(s.busy, productID)
	}
}

func (s *Store) apply(productID string, q int, meta Metadata) {
	s.mutateLines(func() {
		if q <= 0 {
			delete(s.lines, productID)
			return
		}
		l, ok := s.lines[productID]
		if !ok {
			l = &LineItem{ProductID: productID, AvailableHint: Unbounded}
			s.lines[productID] = l
		}
		l.Metadata = l.Metadata.merge(meta)
		l.Quantity = q
	})
}

func (s *Store) mergeMetadata(productID string, meta Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.lines[productID]; ok {
		l.Metadata = l.Metadata.merge(meta)
	}
}

// mutateLines runs fn under the write lock and notifies observers,
// outside the lock, if emptiness flipped.
func (s *Store) mutateLines(fn func()) {
	s.mu.Lock()
	wasEmpty := len(s.lines) == 0
	fn()
	empty := len(s.lines) == 0
	var observers []func(bool)
	if empty != wasEmpty {
		ids := make([]uint64, 0, len(s.observers))
		for id := range s.observers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			observers = append(observers, s.observers[id])
		}
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(empty)
	}
}

func (s *Store) productIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.lines))
	for id := range s.lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) announce(reason Reason, ids ...string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(Event{ProductIDs: ids, Reason: reason})
}
