package forecasts

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"parkwatch/internal/types"
)

const (
	// stableThreshold is the |change_percentage| below which a trend is
	// classified as stable.
	stableThreshold = 1.0

	// peakShare is the fraction of observed hours reported as peak and as
	// off-peak.
	peakShare = 0.3
)

// GetTrendAnalysis fits a least-squares line to the garage's readings over the
// trailing days and reports its direction plus the busiest and quietest hours.
// Fewer than two readings yields NeutralTrend, not an error.
//
// The x axis is the sample index, not elapsed time, so irregular sampling is
// not corrected for.
func (f *Forecaster) GetTrendAnalysis(ctx context.Context, garageID string, days int) (types.TrendAnalysis, error) {
	if days <= 0 {
		return types.TrendAnalysis{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationOutOfRange,
			"trend window must be a positive number of days",
			nil,
			map[string]any{"days": days},
		)
	}

	readings, err := f.store.GetHistoricalData(ctx, garageID, days)
	if err != nil {
		return types.TrendAnalysis{}, err
	}
	if len(readings) < 2 {
		return types.NeutralTrend(), nil
	}

	xs := make([]float64, len(readings))
	ys := make([]float64, len(readings))
	for i, r := range readings {
		xs[i] = float64(i)
		ys[i] = r.OccupiedPercentage
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	mean := stat.Mean(ys, nil)

	var change float64
	if mean != 0 {
		change = slope * float64(len(ys)) / mean * 100
	}

	peak, offPeak := f.peakHours(readings)
	return types.TrendAnalysis{
		Trend:            classify(change),
		ChangePercentage: change,
		PeakHours:        peak,
		OffPeakHours:     offPeak,
	}, nil
}

func classify(change float64) types.Trend {
	switch {
	case math.Abs(change) < stableThreshold:
		return types.TrendStable
	case change > 0:
		return types.TrendIncreasing
	default:
		return types.TrendDecreasing
	}
}

// peakHours ranks the hours present in readings by mean occupancy (ties by
// hour) and returns the top and bottom ceil(30%) slices, each sorted by hour.
// The slices may overlap when few hours are present.
func (f *Forecaster) peakHours(readings []types.Reading) (peak, offPeak []int) {
	var byHour [24]accumulator
	for _, r := range readings {
		byHour[r.Timestamp.In(f.loc).Hour()].add(r.OccupiedPercentage)
	}

	type hourMean struct {
		hour int
		mean float64
	}
	ranked := make([]hourMean, 0, 24)
	for hour, acc := range byHour {
		if m, ok := acc.mean(); ok {
			ranked = append(ranked, hourMean{hour: hour, mean: m})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].mean != ranked[j].mean {
			return ranked[i].mean > ranked[j].mean
		}
		return ranked[i].hour < ranked[j].hour
	})

	k := int(math.Ceil(peakShare * float64(len(ranked))))
	peak = make([]int, 0, k)
	offPeak = make([]int, 0, k)
	for _, hm := range ranked[:k] {
		peak = append(peak, hm.hour)
	}
	for _, hm := range ranked[len(ranked)-k:] {
		offPeak = append(offPeak, hm.hour)
	}
	sort.Ints(peak)
	sort.Ints(offPeak)
	return peak, offPeak
}
