package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gothglitter/storefront/pkg/cartsync"
	"github.com/gothglitter/storefront/pkg/database"
	"github.com/gothglitter/storefront/pkg/logger"
	"github.com/gothglitter/storefront/services/shopper/internal/config"
	"github.com/gothglitter/storefront/services/shopper/internal/shell"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Logs go to stderr so they do not interleave with the prompt.
	log := logger.NewWithWriter("shopper", cfg.LogLevel, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("shopper error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	session, err := cartsync.NewSession(cfg.Client, log)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	// Pick up whatever the server still holds for this session.
	if err := session.Store.Refresh(ctx); err != nil {
		log.Warn("initial cart refresh failed", slog.String("error", err.Error()))
	}

	// Leaving the shell ends the session.
	ctx, endSession := context.WithCancel(ctx)
	defer endSession()

	sh := shell.New(session, os.Stdout)
	defer sh.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Monitor.Run(gctx) })

	if cfg.RelayEnabled {
		rdb, err := database.NewRedisClient(gctx, cfg.Redis, log)
		if err != nil {
			endSession()
			_ = g.Wait()
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()

		relay := cartsync.NewRelay(rdb, session.Bus, cfg.Client.RelayKey, log)
		if _, err := relay.CatchUp(gctx); err != nil {
			log.Warn("relay catch-up failed", slog.String("error", err.Error()))
		}
		g.Go(func() error { return relay.Run(gctx) })
		log.Info("cross-session relay enabled", slog.String("origin", relay.Origin()))
	}

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-session.Monitor.Fired():
				_, _ = fmt.Fprintln(os.Stdout, "\ncart released after inactivity")
			}
		}
	})

	g.Go(func() error {
		defer endSession()
		return sh.Run(gctx, os.Stdin)
	})

	return g.Wait()
}
