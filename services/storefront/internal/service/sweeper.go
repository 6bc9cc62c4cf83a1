package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/gothglitter/storefront/services/storefront/internal/repository"
)

const sweepBatch = 100

// Sweeper returns the holds of sessions that have gone quiet for longer
// than the cart TTL. It covers shoppers whose client never released.
type Sweeper struct {
	cart   *CartService
	holds  repository.HoldStore
	ttl    time.Duration
	every  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewSweeper(cart *CartService, holds repository.HoldStore, ttl, every time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cart:   cart,
		holds:  holds,
		ttl:    ttl,
		every:  every,
		logger: logger,
		now:    time.Now,
	}
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "cart sweeper started",
		slog.Duration("ttl", s.ttl),
		slog.Duration("interval", s.every),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "cart sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep releases every session idle past the TTL and returns how many it released.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	expired := 0
	for {
		ids, err := s.holds.IdleSessions(ctx, cutoff, sweepBatch)
		if err != nil {
			return expired, err
		}
		skipped := 0
		for _, id := range ids {
			released, ok, err := s.cart.Expire(ctx, id, cutoff)
			if err != nil {
				return expired, err
			}
			if !ok {
				skipped++
				continue
			}
			expired++
			sessionsExpired.Inc()
			units := 0
			for _, n := range released.Units {
				units += n
			}
			unitsExpired.Add(float64(units))
			s.logger.InfoContext(ctx, "idle cart released",
				slog.String("session_id", id),
				slog.Int("units", units),
			)
		}
		// A short batch means the backlog is drained; a batch of only
		// re-touched sessions would otherwise repeat forever.
		if len(ids) < sweepBatch || skipped == len(ids) {
			return expired, nil
		}
	}
}
