// Package main is the forecast worker Lambda.
//
// It consumes ReadingsIngestedMessage events from SQS and refreshes the
// cached per-garage forecasts. A refresh always covers every garage, so a
// batch of messages is coalesced into one refresh driven by the newest
// message; older messages in the batch are acknowledged with it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"parkwatch/internal/cache"
	"parkwatch/internal/config"
	"parkwatch/internal/db"
	"parkwatch/internal/forecasts"
	"parkwatch/internal/metrics"
	"parkwatch/internal/scheduler"
	"parkwatch/internal/types"
)

// Refresher is satisfied by *scheduler.ForecastRefresher.
type Refresher interface {
	Refresh(ctx context.Context, msg types.ReadingsIngestedMessage) (scheduler.RefreshResult, error)
}

type Handler struct {
	refresher Refresher
	logger    *slog.Logger
}

// Handle processes one SQS batch. Unparsable messages are logged and
// acknowledged. If the refresh fails, every parsable message is reported as
// a batch item failure so SQS redelivers them.
func (h *Handler) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse

	var (
		newest   *types.ReadingsIngestedMessage
		parsable []string
	)
	for _, record := range ev.Records {
		var msg types.ReadingsIngestedMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			h.logger.ErrorContext(ctx, "dropping malformed message",
				"message_id", record.MessageId,
				"error", err,
			)
			continue
		}
		parsable = append(parsable, record.MessageId)
		if newest == nil || msg.ScrapedAt.After(newest.ScrapedAt) {
			m := msg
			newest = &m
		}
	}
	if newest == nil {
		return resp, nil
	}

	ctx = types.WithJobID(ctx, newest.BatchID)
	res, err := h.refresher.Refresh(ctx, *newest)
	if err != nil {
		h.logger.ErrorContext(ctx, "forecast refresh failed",
			"batch_id", newest.BatchID,
			"trace_id", newest.TraceID,
			"error", err,
		)
		for _, id := range parsable {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
		}
		return resp, nil
	}

	h.logger.InfoContext(ctx, "forecast refresh handled",
		"batch_id", newest.BatchID,
		"trace_id", newest.TraceID,
		"coalesced", len(parsable),
		"skipped", res.Skipped,
		"garages", res.Garages,
	)
	return resp, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("forecast worker initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.Redis.URL.IsSet() {
		logger.Error("REDIS_URL is required by the forecast worker")
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
	rdb, err := cache.NewClient(ctx, cfg.Redis.URL.Unmask())
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	forecaster := forecasts.NewForecaster(db.NewReadingRepository(pool),
		forecasts.WithLocation(loc),
		forecasts.WithLookbackDays(cfg.Forecast.LookbackDays),
		forecasts.WithBatchConcurrency(cfg.Forecast.BatchConcurrency),
		forecasts.WithLogger(logger),
	)

	var refreshMetrics scheduler.RefreshMetrics
	if cfg.Observability.MetricsEnabled && cfg.Environment != "local" {
		awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		refreshMetrics = metrics.NewCloudWatchJobMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
	}

	snapshots := cache.NewForecastCache(rdb, cfg.Redis.CacheTTL)
	refresher := scheduler.NewForecastRefresher(
		forecaster,
		snapshots,
		refreshMetrics,
		cfg.Forecast.BatchHorizonMinutes,
		nil,
		logger,
	)
	refresher.SetReuseWindow(reuseWindow(snapshots.TTL()))

	handler := &Handler{refresher: refresher, logger: logger}
	logger.Info("forecast worker initialized", "horizon_minutes", cfg.Forecast.BatchHorizonMinutes)

	// Local mode reads one SQS event from stdin:
	//   echo '{"Records":[{"messageId":"1","body":"{...}"}]}' | go run ./cmd/forecast-worker
	if cfg.Environment == "local" {
		if err := handleStdin(ctx, handler, os.Stdin, logger); err != nil {
			logger.Error("local invocation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler.Handle)
}

func handleStdin(ctx context.Context, h *Handler, r io.Reader, logger *slog.Logger) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	var ev events.SQSEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("parsing SQS event: %w", err)
	}
	resp, err := h.Handle(ctx, ev)
	if err != nil {
		return err
	}
	if n := len(resp.BatchItemFailures); n > 0 {
		return fmt.Errorf("%d message(s) failed", n)
	}
	logger.Info("local invocation complete", "records", len(ev.Records))
	return nil
}

// reuseWindow keeps unchanged-page reuse well inside the snapshot TTL so
// cached forecasts are rebuilt before they expire.
func reuseWindow(ttl time.Duration) time.Duration {
	return min(scheduler.DefaultReuseWindow, ttl/3)
}
