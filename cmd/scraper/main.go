// Package main is the entry point of the scrape job.
//
// Deployed as a Lambda, EventBridge invokes it every three minutes with an
// empty ScrapeInput. With APP_ENV=local it runs as a foreground loop that
// scrapes once at start and then on every SCRAPE_INTERVAL tick.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"parkwatch/internal/config"
	"parkwatch/internal/db"
	"parkwatch/internal/metrics"
	"parkwatch/internal/queue"
	"parkwatch/internal/scheduler"
	"parkwatch/internal/scraper"
	"parkwatch/internal/types"
)

// scrapeRunner is satisfied by *scheduler.ScrapeJob.
type scrapeRunner interface {
	Run(ctx context.Context, in scheduler.ScrapeInput) (*scheduler.ScrapeResult, error)
}

// newHandler adapts the job to the Lambda signature. Every invocation gets
// its own job id for log correlation.
func newHandler(job scrapeRunner, logger *slog.Logger) func(ctx context.Context, in scheduler.ScrapeInput) (*scheduler.ScrapeResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, in scheduler.ScrapeInput) (*scheduler.ScrapeResult, error) {
		if in.Source == "" {
			in.Source = "schedule"
		}
		ctx = types.WithJobID(ctx, uuid.NewString())
		logger.InfoContext(ctx, "scrape invoked", "job_id", types.GetJobID(ctx), "source", in.Source, "dry_run", in.DryRun)

		res, err := job.Run(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scrape failed: %w", err)
		}
		return res, nil
	}
}

// runLoop scrapes immediately and then once per interval until ctx ends.
// A failed tick is logged; the loop keeps going.
func runLoop(ctx context.Context, handle func(context.Context, scheduler.ScrapeInput) (*scheduler.ScrapeResult, error), interval time.Duration, logger *slog.Logger) {
	tick := func() {
		if _, err := handle(ctx, scheduler.ScrapeInput{Source: "local"}); err != nil {
			logger.ErrorContext(ctx, "scheduled scrape failed", "error", err)
		}
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("scrape loop stopped")
			return
		case <-ticker.C:
			tick()
		}
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("scraper initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	loc, err := cfg.Forecast.Location()
	if err != nil {
		logger.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	jobCfg := scheduler.ScrapeJobConfig{
		Scraper:  scraper.NewClient(cfg.Scraper, loc, logger),
		Readings: db.NewReadingRepository(pool),
		Garages:  db.NewGarageInfoRepository(pool),
		Logger:   logger,
	}

	local := cfg.Environment == "local"
	if cfg.AWS.ReadingsIngestedQueue != "" || (cfg.Observability.MetricsEnabled && !local) {
		awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		if cfg.AWS.ReadingsIngestedQueue != "" {
			jobCfg.Notifier = queue.NewIngestNotifier(sqs.NewFromConfig(awsCfg), cfg.AWS.ReadingsIngestedQueue, logger)
		}
		if cfg.Observability.MetricsEnabled && !local {
			jobCfg.Metrics = metrics.NewCloudWatchJobMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
		}
	}

	handler := newHandler(scheduler.NewScrapeJob(jobCfg), logger)

	if local {
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger.Info("APP_ENV=local: running scrape loop", "interval", cfg.Scraper.Interval.String())
		runLoop(ctx, handler, cfg.Scraper.Interval, logger)
		return
	}

	logger.Info("scraper initialized", "status_url", cfg.Scraper.StatusURL)
	lambda.Start(handler)
}
