// One shot catalog sync. Meant for external cron or manual runs when the
// in-process scheduler is disabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/justtherip/packvault/internal/db"
	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/repository/postgres"
	"github.com/justtherip/packvault/internal/service/catalog"
)

func run(ctx context.Context, getenv func(string) string, args []string) error {
	dsn := getenv("DATABASE_URI")
	baseURL := catalog.DefaultBaseURL
	if v := getenv("TCG_BASE_URL"); v != "" {
		baseURL = v
	}
	logLevel := logger.LevelInfo
	if v := getenv("LOG_LEVEL"); v != "" {
		logLevel = v
	}
	categories := catalog.DefaultCategories

	fs := pflag.NewFlagSet("catalogsync", pflag.ContinueOnError)
	fs.StringVarP(&dsn, "database", "d", dsn, "Database connection string")
	fs.StringVar(&baseURL, "tcg-url", baseURL, "Upstream catalog base URL")
	fs.StringVarP(&logLevel, "log-level", "l", logLevel, "Logging level (debug, info, warn, error)")
	fs.StringSliceVar(&categories, "categories", categories, "Card categories to sync")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log, err := logger.NewTextLogger(logLevel)
	if err != nil {
		return err
	}

	pool, err := db.ConnectAndMigrate(ctx, dsn)
	if err != nil {
		return fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	defer pool.Close()

	storage := postgres.NewStorage(pool)
	client := catalog.NewClient(baseURL, log)
	syncer := catalog.NewSyncer(client, storage, log, catalog.Options{Categories: categories})

	stats, err := syncer.Run(ctx)
	log.Info("Catalog sync finished",
		"categories", stats.CategoriesProcessed,
		"groups", stats.GroupsProcessed,
		"products", stats.ProductsUpserted,
		"prices", stats.PricesUpserted,
		"errors", len(stats.Errors),
		"duration_ms", stats.DurationMS,
	)
	return err
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Getenv, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "catalog sync failed: %v\n", err)
		os.Exit(1)
	}
}
