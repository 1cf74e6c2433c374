// Package main is the entry point for the parkwatch API server.
//
// It loads configuration, opens the Postgres pool (and Redis when
// configured), wires the forecaster, scraper and handlers into the core
// chassis, and serves HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"

	"parkwatch/internal/api/handlers"
	"parkwatch/internal/cache"
	"parkwatch/internal/config"
	"parkwatch/internal/core"
	"parkwatch/internal/db"
	"parkwatch/internal/forecasts"
	"parkwatch/internal/metrics"
	"parkwatch/internal/queue"
	"parkwatch/internal/scheduler"
	"parkwatch/internal/scraper"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// forecastService is what the forecast and trend handlers need from the
// forecaster.
type forecastService interface {
	handlers.Forecaster
	handlers.TrendAnalyzer
}

// readingStore is the read side of the reading repository used by the API.
type readingStore interface {
	handlers.GarageStore
	db.StatsReader
}

// deps are the collaborators buildServer mounts. Snapshots may be nil.
type deps struct {
	Readings   readingStore
	Forecaster forecastService
	Snapshots  handlers.SnapshotReader
	Scrape     handlers.ScrapeRunner
	Checker    handlers.ScrapeHealthChecker
	Metrics    *metrics.Prometheus
	Probes     []core.HealthProbe
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("parkwatch API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()
	loc, err := cfg.Forecast.Location()
	if err != nil {
		return err
	}

	notifier, err := ingestNotifier(ctx, cfg.AWS, logger)
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	readings := db.NewReadingRepository(pool)
	prom := metrics.NewPrometheus()

	forecaster := forecasts.NewForecaster(readings,
		forecasts.WithLocation(loc),
		forecasts.WithLookbackDays(cfg.Forecast.LookbackDays),
		forecasts.WithBatchConcurrency(cfg.Forecast.BatchConcurrency),
		forecasts.WithObserver(prom),
		forecasts.WithLogger(logger),
	)

	statusClient := scraper.NewClient(cfg.Scraper, loc, logger)
	scrapeJob := scheduler.NewScrapeJob(scheduler.ScrapeJobConfig{
		Scraper:  statusClient,
		Readings: readings,
		Garages:  db.NewGarageInfoRepository(pool),
		Notifier: notifier,
		Logger:   logger,
	})

	d := deps{
		Readings:   readings,
		Forecaster: forecaster,
		Scrape:     scrapeJob,
		Checker:    statusClient,
		Metrics:    prom,
		Probes: []core.HealthProbe{
			db.DatabaseProbe{Pool: pool},
			db.FreshnessProbe{Stats: readings},
		},
	}

	closers := []func() error{func() error { pool.Close(); return nil }}
	if cfg.Redis.URL.IsSet() {
		rdb, err := cache.NewClient(ctx, cfg.Redis.URL.Unmask())
		if err != nil {
			// The cache only backs /v1/forecast/cached; keep serving without it.
			logger.Warn("forecast cache unavailable", "error", err)
		} else {
			d.Snapshots = cache.NewForecastCache(rdb, cfg.Redis.CacheTTL)
			d.Probes = append(d.Probes, &cache.Probe{Client: rdb})
			closers = append([]func() error{rdb.Close}, closers...)
		}
	}

	srv, err := buildServer(cfg, logger, d)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Closers = closers

	return runHTTPServer(srv, cfg, logger)
}

// ingestNotifier announces API-triggered scrapes on the queue the scheduled
// scraper uses, so the forecast worker refreshes after either. Nil when no
// queue is configured.
func ingestNotifier(ctx context.Context, cfg config.AWSConfig, logger *slog.Logger) (scheduler.IngestNotifier, error) {
	if cfg.ReadingsIngestedQueue == "" {
		return nil, nil
	}
	awsCfg, err := config.LoadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return queue.NewIngestNotifier(sqs.NewFromConfig(awsCfg), cfg.ReadingsIngestedQueue, logger), nil
}

// buildServer wires handlers, probes and metrics into the core chassis and
// mounts the routes.
func buildServer(cfg *config.Config, logger *slog.Logger, d deps) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	if d.Metrics != nil {
		srv.Metrics = d.Metrics
		srv.MetricsHandler = d.Metrics.Handler()
	}
	srv.HealthProbes = d.Probes

	garageHandler := handlers.NewGarageHandler(d.Readings, srv.Validator, nil, logger)
	forecastHandler := handlers.NewForecastHandler(d.Forecaster, d.Snapshots, srv.Validator, nil, logger)
	trendHandler := handlers.NewTrendHandler(d.Forecaster, d.Readings, srv.Validator, logger)
	scrapeHandler := handlers.NewScrapeHandler(d.Scrape, d.Checker, srv.RequireBearerSecret(cfg.Scraper.CronSecret), logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Route("/garages", garageHandler.RegisterRoutes)
		r.Route("/forecast", forecastHandler.RegisterRoutes)
		r.Route("/trends", trendHandler.RegisterRoutes)
		r.Route("/scrape", scrapeHandler.RegisterRoutes)
	})

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer serves until a shutdown signal or server error, then drains
// connections and releases resources.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
