package cartsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// AvailabilitySource reports how many units of a product are free.
type AvailabilitySource interface {
	Available(ctx context.Context, productID string) (int, error)
}

var errSuperseded = errors.New("availability poll superseded")

// ProductView keeps one product's availability current while it is on
// screen: on a timer, after the shopper changes the quantity, and whenever
// an event names the product. A newer poll supersedes an older one.
type ProductView struct {
	productID string
	store     *Store
	source    AvailabilitySource
	every     time.Duration
	logger    *slog.Logger
	sub       *Subscription

	mu        sync.Mutex
	available int
	seq       uint64
	cancel    context.CancelFunc
	closed    bool
	wg        sync.WaitGroup
}

func NewProductView(productID string, store *Store, source AvailabilitySource, bus *Bus, every time.Duration, logger *slog.Logger) *ProductView {
	v := &ProductView{
		productID: productID,
		store:     store,
		source:    source,
		every:     every,
		logger:    logger,
		available: Unbounded,
	}
	if bus != nil {
		v.sub = bus.Subscribe(func(Event) { v.pollAsync() }, productID)
	}
	return v
}

// Run polls on the view's interval until ctx is done or the view is closed.
func (v *ProductView) Run(ctx context.Context) {
	v.pollAsync()
	ticker := time.NewTicker(v.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.mu.Lock()
			closed := v.closed
			v.mu.Unlock()
			if closed {
				return
			}
			v.pollAsync()
		}
	}
}

// Poll fetches availability now, cancelling any poll still in flight.
func (v *ProductView) Poll(ctx context.Context) (int, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return 0, errSuperseded
	}
	if v.cancel != nil {
		v.cancel()
	}
	pctx, cancel := context.WithCancel(ctx)
	v.seq++
	seq := v.seq
	v.cancel = cancel
	v.mu.Unlock()
	defer cancel()

	n, err := v.source.Available(pctx, v.productID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || seq != v.seq {
		return 0, errSuperseded
	}
	v.cancel = nil
	if err != nil {
		return 0, err
	}
	v.available = n
	v.store.SetAvailableHint(v.productID, n)
	return n, nil
}

func (v *ProductView) pollAsync() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.wg.Add(1)
	v.mu.Unlock()
	go func() {
		defer v.wg.Done()
		if _, err := v.Poll(context.Background()); err != nil && !errors.Is(err, errSuperseded) && !errors.Is(err, context.Canceled) {
			v.logger.Debug("availability poll failed",
				slog.String("product_id", v.productID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Available is the last fetched availability, or Unbounded.
func (v *ProductView) Available() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.available
}

// Clamp bounds a requested quantity to what the shopper could hold: the
// free units plus what is already in the cart.
func (v *ProductView) Clamp(target int) int {
	if target < 0 {
		return 0
	}
	avail := v.Available()
	if avail == Unbounded {
		return target
	}
	return min(target, avail+v.store.Quantity(v.productID))
}

// SetQuantity clamps target, applies it, and returns the notice to show.
func (v *ProductView) SetQuantity(ctx context.Context, target int, meta Metadata) (Result, string, error) {
	res, err := v.store.SetItemQuantity(ctx, v.productID, v.Clamp(target), meta)
	v.pollAsync()
	if err != nil {
		return Result{}, UserMessage(err), err
	}
	return res, res.Message(), nil
}

// Busy reports whether a change to this product is in flight.
func (v *ProductView) Busy() bool {
	return v.store.Busy(v.productID)
}

// Close stops polling, cancels any poll in flight and unsubscribes.
func (v *ProductView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	if v.cancel != nil {
		v.cancel()
	}
	v.mu.Unlock()
	if v.sub != nil {
		v.sub.Unsubscribe()
	}
	v.wg.Wait()
}
