package forecasts

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"parkwatch/internal/types"
)

// BatchForecast runs SeasonalNaiveForecast for every garage in the store and
// returns all predictions ordered by garage id, then timestamp. All garages
// share one reference minute.
//
// A garage that fails is logged and left out; it never aborts or cancels the
// others. Only a failure to enumerate garages is returned.
func (f *Forecaster) BatchForecast(ctx context.Context, horizonMinutes int) ([]types.ForecastPrediction, error) {
	if err := validateHorizon(horizonMinutes); err != nil {
		return nil, err
	}
	start := time.Now()

	ids, err := f.store.ListDistinctGarageIDs(ctx)
	if err != nil {
		return nil, err
	}
	ids = append([]string(nil), ids...)
	sort.Strings(ids)

	now := f.now()
	perGarage := make([][]types.ForecastPrediction, len(ids))
	var failures atomic.Int64

	var g errgroup.Group
	g.SetLimit(f.batchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			preds, err := f.forecastAt(ctx, id, horizonMinutes, now)
			if err != nil {
				failures.Add(1)
				f.logger.WarnContext(ctx, "skipping garage in batch forecast",
					"garage_id", id,
					"error", err,
				)
				return nil
			}
			perGarage[i] = preds
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, preds := range perGarage {
		total += len(preds)
	}
	out := make([]types.ForecastPrediction, 0, total)
	for _, preds := range perGarage {
		out = append(out, preds...)
	}

	failed := int(failures.Load())
	f.observer.ObserveBatch(len(ids), failed, time.Since(start))
	f.logger.InfoContext(ctx, "batch forecast complete",
		"garages", len(ids),
		"failed", failed,
		"predictions", len(out),
		"horizon_minutes", horizonMinutes,
	)
	return out, nil
}

// GroupByGarage splits a flattened batch back into per-garage slices,
// preserving order within each garage.
func GroupByGarage(predictions []types.ForecastPrediction) map[string][]types.ForecastPrediction {
	grouped := make(map[string][]types.ForecastPrediction)
	for _, p := range predictions {
		grouped[p.GarageID] = append(grouped[p.GarageID], p)
	}
	return grouped
}
