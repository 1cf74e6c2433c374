// Package main applies the parkwatch schema to the database named by
// DATABASE_URL (environment or .env file). The DDL is idempotent, so the
// tool is safe to rerun after every deploy.
//
// Usage:
//
//	go run ./cmd/ops/setupdb
//	go run ./cmd/ops/setupdb --stats
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"parkwatch/internal/config"
	"parkwatch/internal/db"
)

func main() {
	stats := flag.Bool("stats", false, "Print reading statistics after migrating")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// .env is optional here.
	_ = godotenv.Load()

	var dbCfg config.DatabaseConfig
	if err := envconfig.Process("", &dbCfg); err != nil {
		logger.Error("invalid database configuration", "error", err)
		os.Exit(1)
	}
	if dbCfg.URL.Unmask() == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPool(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var reader db.StatsReader
	if *stats {
		reader = db.NewReadingRepository(pool)
	}
	if err := run(ctx, pool, reader, os.Stdout, logger); err != nil {
		logger.Error("setup failed", "error", err)
		os.Exit(1)
	}
}

// run migrates and, when stats is non-nil, prints the reading statistics
// as JSON.
func run(ctx context.Context, conn db.DBTX, stats db.StatsReader, out io.Writer, logger *slog.Logger) error {
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}
	logger.Info("schema applied")

	if stats == nil {
		return nil
	}
	s, err := stats.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
