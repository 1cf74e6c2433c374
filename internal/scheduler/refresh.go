package scheduler

import (
	"context"
	"log/slog"
	"time"

	"parkwatch/internal/forecasts"
	"parkwatch/internal/types"
)

// BatchForecaster produces forecasts for every known garage.
type BatchForecaster interface {
	BatchForecast(ctx context.Context, horizonMinutes int) ([]types.ForecastPrediction, error)
}

// SnapshotStore persists per-garage forecast snapshots and remembers which
// scrape they were computed from.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, snap types.ForecastSnapshot) error
	LastSource(ctx context.Context) (types.SourceMark, error)
	MarkSource(ctx context.Context, mark types.SourceMark) error
}

// DefaultReuseWindow is how long snapshots built from an unchanged page are
// reused before being rebuilt. Forecasts start at "now", so an unchanged
// page still needs periodic refreshes. Keep it below the snapshot TTL.
const DefaultReuseWindow = 5 * time.Minute

// RefreshMetrics records forecast refresh outcomes.
type RefreshMetrics interface {
	RecordForecastRefresh(ctx context.Context, refreshed bool, garageFailures int)
}

// ForecastRefresher rebuilds cached forecasts after new readings land.
type ForecastRefresher struct {
	forecaster BatchForecaster
	store      SnapshotStore
	metrics    RefreshMetrics
	horizon    int
	reuse      time.Duration
	clock      types.Clock
	logger     *slog.Logger
}

// NewForecastRefresher builds a refresher. metrics may be nil.
func NewForecastRefresher(f BatchForecaster, store SnapshotStore, m RefreshMetrics, horizonMinutes int, clock types.Clock, logger *slog.Logger) *ForecastRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &ForecastRefresher{
		forecaster: f,
		store:      store,
		metrics:    m,
		horizon:    horizonMinutes,
		reuse:      DefaultReuseWindow,
		clock:      clock,
		logger:     logger,
	}
}

// SetReuseWindow overrides DefaultReuseWindow. Non-positive values disable
// skipping.
func (r *ForecastRefresher) SetReuseWindow(d time.Duration) {
	r.reuse = d
}

// Refresh runs a batch forecast and stores one snapshot per garage.
//
// A message is skipped only when its source hash matches the last successful
// refresh and that refresh is younger than the reuse window, so redelivered
// notifications are cheap while an unchanged page still gets fresh
// snapshots. The mark is only advanced once every snapshot write has
// succeeded; a partial write returns an error so the message is retried.
func (r *ForecastRefresher) Refresh(ctx context.Context, msg types.ReadingsIngestedMessage) (RefreshResult, error) {
	res := RefreshResult{SourceHash: msg.SourceHash}
	logger := r.logger.With("batch_id", msg.BatchID, "source_hash", msg.SourceHash)

	now := r.clock.Now().UTC()
	if msg.SourceHash != "" && r.reuse > 0 {
		last, err := r.store.LastSource(ctx)
		if err != nil {
			// Cache trouble is not a reason to skip; fall through and let
			// PutSnapshot surface it.
			logger.WarnContext(ctx, "could not read last source mark", "error", err)
		} else if last.Hash == msg.SourceHash && now.Sub(last.RefreshedAt) < r.reuse {
			res.Skipped = true
			logger.InfoContext(ctx, "source hash unchanged, reusing snapshots",
				"refreshed_at", last.RefreshedAt.Format(time.RFC3339))
			r.record(ctx, false, 0)
			return res, nil
		}
	}

	preds, err := r.forecaster.BatchForecast(ctx, r.horizon)
	if err != nil {
		return res, err
	}
	grouped := forecasts.GroupByGarage(preds)

	// Garages named in the message that produced nothing were skipped by
	// the batch.
	for _, id := range msg.GarageIDs {
		if _, ok := grouped[id]; !ok {
			res.Failed++
		}
	}

	var writeErr error
	for id, garagePreds := range grouped {
		snap := types.ForecastSnapshot{
			GarageID:       id,
			HorizonMinutes: r.horizon,
			GeneratedAt:    now,
			SourceHash:     msg.SourceHash,
			Predictions:    garagePreds,
		}
		if err := r.store.PutSnapshot(ctx, snap); err != nil {
			logger.ErrorContext(ctx, "failed to cache forecast", "garage_id", id, "error", err)
			writeErr = err
			continue
		}
		res.Garages++
	}
	res.Predictions = len(preds)

	if writeErr != nil {
		r.record(ctx, false, res.Failed)
		return res, writeErr
	}
	if msg.SourceHash != "" {
		if err := r.store.MarkSource(ctx, types.SourceMark{Hash: msg.SourceHash, RefreshedAt: now}); err != nil {
			logger.WarnContext(ctx, "failed to record source mark", "error", err)
		}
	}

	r.record(ctx, true, res.Failed)
	logger.InfoContext(ctx, "forecast refresh complete",
		"garages", res.Garages,
		"predictions", res.Predictions,
		"failed", res.Failed,
	)
	return res, nil
}

func (r *ForecastRefresher) record(ctx context.Context, refreshed bool, failures int) {
	if r.metrics != nil {
		r.metrics.RecordForecastRefresh(ctx, refreshed, failures)
	}
}
