package cartsync

import (
	"slices"
	"sync"
	"time"
)

// Bus fans availability events out to subscribers in the same process.
// Delivery is synchronous and in subscription order; handlers that do I/O
// should hand off to their own goroutine.
type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]subscriber
	now  func() time.Time
}

type subscriber struct {
	fn     func(Event)
	filter map[string]struct{}
}

func (s subscriber) wants(ev Event) bool {
	if len(s.filter) == 0 {
		return true
	}
	for _, id := range ev.ProductIDs {
		if _, ok := s.filter[id]; ok {
			return true
		}
	}
	return false
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]subscriber), now: time.Now}
}

// Subscription is returned by Subscribe. Unsubscribe is idempotent.
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
	})
}

// Subscribe registers fn for every event, or only for events naming one of
// productIDs when any are given.
func (b *Bus) Subscribe(fn func(Event), productIDs ...string) *Subscription {
	sub := subscriber{fn: fn}
	if len(productIDs) > 0 {
		sub.filter = make(map[string]struct{}, len(productIDs))
		for _, id := range productIDs {
			sub.filter[id] = struct{}{}
		}
	}

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = sub
	b.mu.Unlock()

	return &Subscription{bus: b, id: id}
}

// Publish delivers ev to every interested subscriber before returning.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	ev.ProductIDs = append([]string(nil), ev.ProductIDs...)

	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	b.mu.RUnlock()
	slices.Sort(ids)

	eventsPublished.WithLabelValues(string(ev.Reason)).Inc()
	for _, id := range ids {
		b.mu.RLock()
		sub, ok := b.subs[id]
		b.mu.RUnlock()
		// Unsubscribed by an earlier handler.
		if !ok || !sub.wants(ev) {
			continue
		}
		sub.fn(ev)
	}
}
