package cartsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

// relayPayload is the wire form of an event shared between sessions. The
// same JSON is stored under the relay key and published on it.
type relayPayload struct {
	IDs    []string `json:"ids"`
	TS     int64    `json:"ts"`
	Reason Reason   `json:"reason"`
	Origin string   `json:"origin"`
}

// Relay shares local bus events with other sessions through Redis and feeds
// theirs back into the local bus. A session never re-delivers its own events.
type Relay struct {
	rdb    redis.UniversalClient
	bus    *Bus
	key    string
	origin string
	logger *slog.Logger

	out   chan Event
	ready chan struct{}
	once  sync.Once
}

func NewRelay(rdb redis.UniversalClient, bus *Bus, key string, logger *slog.Logger) *Relay {
	return &Relay{
		rdb:    rdb,
		bus:    bus,
		key:    key,
		origin: uuid.NewString(),
		logger: logger,
		out:    make(chan Event, 64),
		ready:  make(chan struct{}),
	}
}

// Origin identifies this relay in published payloads.
func (r *Relay) Origin() string { return r.origin }

// Ready is closed once Run is subscribed.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Run relays in both directions until ctx is done.
func (r *Relay) Run(ctx context.Context) (err error) {
	ps := r.rdb.Subscribe(ctx, r.key)
	defer func() { err = multierr.Append(err, ps.Close()) }()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.key, err)
	}

	sub := r.bus.Subscribe(r.enqueue)
	defer sub.Unsubscribe()
	r.once.Do(func() { close(r.ready) })

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.out:
			if err := r.Announce(ctx, ev); err != nil {
				relayDropped.Inc()
				r.logger.WarnContext(ctx, "relay announce failed", slog.String("error", err.Error()))
			}
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("relay subscription closed")
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

// enqueue runs on the publisher's goroutine, so it never blocks.
func (r *Relay) enqueue(ev Event) {
	if ev.Origin != "" {
		return
	}
	select {
	case r.out <- ev:
	default:
		relayDropped.Inc()
	}
}

func (r *Relay) deliver(ctx context.Context, raw string) {
	var p relayPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		r.logger.WarnContext(ctx, "malformed relay payload", slog.String("error", err.Error()))
		return
	}
	if p.Origin == r.origin || p.Origin == "" {
		return
	}
	r.bus.Publish(Event{
		ProductIDs: p.IDs,
		Reason:     p.Reason,
		Origin:     p.Origin,
		At:         time.UnixMilli(p.TS),
	})
}

// Announce stores ev as the latest event and publishes it to other sessions.
func (r *Relay) Announce(ctx context.Context, ev Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	body, err := json.Marshal(relayPayload{
		IDs:    ev.ProductIDs,
		TS:     at.UnixMilli(),
		Reason: ev.Reason,
		Origin: r.origin,
	})
	if err != nil {
		return fmt.Errorf("encode relay payload: %w", err)
	}
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key, body, 0)
		pipe.Publish(ctx, r.key, body)
		return nil
	})
	if err != nil {
		return fmt.Errorf("announce on %s: %w", r.key, err)
	}
	return nil
}

// Latest returns the most recent event any session announced.
func (r *Relay) Latest(ctx context.Context) (Event, bool, error) {
	raw, err := r.rdb.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, fmt.Errorf("read %s: %w", r.key, err)
	}
	var p relayPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Event{}, false, fmt.Errorf("decode %s: %w", r.key, err)
	}
	return Event{
		ProductIDs: p.IDs,
		Reason:     p.Reason,
		Origin:     p.Origin,
		At:         time.UnixMilli(p.TS),
	}, true, nil
}

// CatchUp replays the latest event another session announced into the local
// bus, so a session that joins late refreshes what changed before it started.
// It reports whether anything was replayed.
func (r *Relay) CatchUp(ctx context.Context) (bool, error) {
	ev, ok, err := r.Latest(ctx)
	if err != nil || !ok {
		return false, err
	}
	if ev.Origin == "" || ev.Origin == r.origin {
		return false, nil
	}
	r.bus.Publish(ev)
	return true, nil
}
