package scheduler

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"parkwatch/internal/metrics"
	"parkwatch/internal/scraper"
	"parkwatch/internal/types"
)

// PageScraper fetches the current status page.
type PageScraper interface {
	Scrape(ctx context.Context) (scraper.Page, error)
}

// ReadingWriter stores readings.
type ReadingWriter interface {
	Upsert(ctx context.Context, reading types.Reading) (int64, error)
}

// GarageInfoWriter keeps garage_info current.
type GarageInfoWriter interface {
	Upsert(ctx context.Context, info types.GarageInfo) error
}

// IngestNotifier announces stored batches to downstream consumers.
type IngestNotifier interface {
	NotifyIngested(ctx context.Context, msg types.ReadingsIngestedMessage) error
}

// ScrapeMetrics records scrape outcomes.
type ScrapeMetrics interface {
	RecordScrape(ctx context.Context, outcome metrics.ScrapeOutcome)
}

// ScrapeJobConfig holds the dependencies of a ScrapeJob. Notifier and
// Metrics are optional.
type ScrapeJobConfig struct {
	Scraper  PageScraper
	Readings ReadingWriter
	Garages  GarageInfoWriter
	Notifier IngestNotifier
	Metrics  ScrapeMetrics
	Clock    types.Clock
	Logger   *slog.Logger
}

// ScrapeJob turns one status page fetch into stored readings.
type ScrapeJob struct {
	scraper  PageScraper
	readings ReadingWriter
	garages  GarageInfoWriter
	notifier IngestNotifier
	metrics  ScrapeMetrics
	clock    types.Clock
	logger   *slog.Logger
}

func NewScrapeJob(cfg ScrapeJobConfig) *ScrapeJob {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &ScrapeJob{
		scraper:  cfg.Scraper,
		readings: cfg.Readings,
		garages:  cfg.Garages,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		clock:    clock,
		logger:   logger,
	}
}

// Run scrapes, stores one reading per garage (all stamped with the same
// minute and source hash) and publishes a ReadingsIngestedMessage.
//
// A garage whose reading cannot be stored is logged and counted; the run
// fails only if the page has no garages or nothing could be stored. A failed
// garage_info write or notification never fails the run.
func (j *ScrapeJob) Run(ctx context.Context, in ScrapeInput) (*ScrapeResult, error) {
	start := j.clock.Now()
	logger := j.logger.With("source", in.Source, "dry_run", in.DryRun)

	page, err := j.scraper.Scrape(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "scrape failed", "error", err)
		j.record(ctx, metrics.ScrapeOutcome{Duration: j.clock.Now().Sub(start)})
		return nil, err
	}
	if len(page.Garages) == 0 {
		j.record(ctx, metrics.ScrapeOutcome{Duration: j.clock.Now().Sub(start)})
		return nil, types.NewAppError(types.ErrCodeNotFoundGarageData, "no garage data found", nil)
	}

	readings := scraper.ToReadings(page.Garages, start)
	result := &ScrapeResult{
		Timestamp:     readings[0].Timestamp,
		BatchID:       uuid.NewString(),
		SourceHash:    readings[0].SourceHash,
		PageUpdatedAt: page.LastUpdated,
		DryRun:        in.DryRun,
		Data:          make([]ScrapedGarage, 0, len(page.Garages)),
	}

	if in.DryRun {
		for _, g := range page.Garages {
			result.Data = append(result.Data, scrapedGarage(g))
		}
		result.Success = true
		return result, nil
	}

	stored := make([]string, 0, len(readings))
	for i, g := range page.Garages {
		if _, err := j.readings.Upsert(ctx, readings[i]); err != nil {
			logger.ErrorContext(ctx, "failed to store reading", "garage_id", g.GarageID, "error", err)
			result.GaragesFailed++
			continue
		}
		if err := j.garages.Upsert(ctx, g.Info()); err != nil {
			logger.WarnContext(ctx, "failed to update garage info", "garage_id", g.GarageID, "error", err)
		}
		stored = append(stored, g.GarageID)
		result.Data = append(result.Data, scrapedGarage(g))
	}
	result.GaragesUpdated = len(stored)

	outcome := metrics.ScrapeOutcome{
		Success:  len(stored) > 0,
		Garages:  len(page.Garages),
		Stored:   len(stored),
		Failed:   result.GaragesFailed,
		Duration: j.clock.Now().Sub(start),
	}
	j.record(ctx, outcome)

	if len(stored) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalDB, "failed to store any reading", nil,
			map[string]any{"garages": len(page.Garages)})
	}
	result.Success = true

	if j.notifier != nil {
		msg := types.ReadingsIngestedMessage{
			BatchID:    result.BatchID,
			TraceID:    types.GetRequestID(ctx),
			SourceHash: result.SourceHash,
			ScrapedAt:  result.Timestamp,
			GarageIDs:  stored,
		}
		if err := j.notifier.NotifyIngested(ctx, msg); err != nil {
			logger.ErrorContext(ctx, "failed to publish ingest notification", "batch_id", result.BatchID, "error", err)
		}
	}

	logger.InfoContext(ctx, "scrape complete",
		"batch_id", result.BatchID,
		"garages_updated", result.GaragesUpdated,
		"garages_failed", result.GaragesFailed,
		"source_hash", result.SourceHash,
	)
	return result, nil
}

func (j *ScrapeJob) record(ctx context.Context, o metrics.ScrapeOutcome) {
	if j.metrics != nil {
		j.metrics.RecordScrape(ctx, o)
	}
}

func scrapedGarage(g scraper.Garage) ScrapedGarage {
	return ScrapedGarage{
		GarageID:           g.GarageID,
		GarageName:         g.GarageName,
		OccupiedPercentage: g.OccupiedPercentage,
		Address:            g.Address,
	}
}
