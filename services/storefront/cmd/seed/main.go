// Command seed fills the storefront catalog with demo products.
//
// Run: go run ./services/storefront/cmd/seed -n 200
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/gothglitter/storefront/pkg/database"
	"github.com/gothglitter/storefront/pkg/logger"
	"github.com/gothglitter/storefront/services/storefront/internal/config"
	"github.com/gothglitter/storefront/services/storefront/internal/repository/postgres"
	"github.com/gothglitter/storefront/services/storefront/internal/seed"
	"github.com/gothglitter/storefront/services/storefront/migrations"
)

const batchSize = 500

func main() {
	n := flag.Int("n", 200, "number of products")
	rngSeed := flag.Uint64("seed", 1, "generator seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("storefront-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, &cfg.Postgres, log)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	catalog := postgres.NewCatalogRepository(pool)
	products := seed.Products(*n, *rngSeed)
	start := time.Now()
	for i := 0; i < len(products); i += batchSize {
		batch := products[i:min(i+batchSize, len(products))]
		if err := catalog.Upsert(ctx, batch); err != nil {
			log.Error("failed to upsert products", slog.Int("offset", i), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	log.Info("catalog seeded",
		slog.Int("products", len(products)),
		slog.Duration("elapsed", time.Since(start)),
	)
}
