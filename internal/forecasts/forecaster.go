// Package forecasts turns a garage's stored readings into short-horizon
// occupancy forecasts and trend summaries. Every operation is a pure function
// of the history read at call time; nothing is persisted here.
package forecasts

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"parkwatch/internal/types"
)

const (
	// DefaultLookbackDays is the history window the seasonal-naive forecast
	// reads.
	DefaultLookbackDays = 14

	// DefaultBatchConcurrency bounds concurrent per-garage forecasts in
	// BatchForecast.
	DefaultBatchConcurrency = 8

	// seasonalTolerance is how far (in whole minutes) a reading may sit from
	// the same instant one week earlier and still count as its match.
	seasonalTolerance = 5

	week = 7 * 24 * time.Hour
)

// HistoryStore is the read side of the reading store.
type HistoryStore interface {
	// GetHistoricalData returns readings from the trailing window, ascending
	// by timestamp. An empty window is an empty slice, not an error.
	GetHistoricalData(ctx context.Context, garageID string, days int) ([]types.Reading, error)
	ListDistinctGarageIDs(ctx context.Context) ([]string, error)
}

// Observer receives batch-level measurements.
type Observer interface {
	ObserveBatch(garages, failures int, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveBatch(int, int, time.Duration) {}

// Forecaster computes forecasts and trends from a HistoryStore.
type Forecaster struct {
	store            HistoryStore
	clock            types.Clock
	logger           *slog.Logger
	loc              *time.Location
	lookbackDays     int
	batchConcurrency int
	observer         Observer
}

// Option configures a Forecaster.
type Option func(*Forecaster)

func WithClock(c types.Clock) Option { return func(f *Forecaster) { f.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(f *Forecaster) { f.logger = l } }

// WithLocation sets the zone in which hour-of-day and weekday are evaluated.
func WithLocation(loc *time.Location) Option { return func(f *Forecaster) { f.loc = loc } }

func WithLookbackDays(days int) Option { return func(f *Forecaster) { f.lookbackDays = days } }

func WithBatchConcurrency(n int) Option { return func(f *Forecaster) { f.batchConcurrency = n } }

func WithObserver(o Observer) Option { return func(f *Forecaster) { f.observer = o } }

// NewForecaster builds a Forecaster over store. Unset or invalid options fall
// back to the package defaults.
func NewForecaster(store HistoryStore, opts ...Option) *Forecaster {
	f := &Forecaster{
		store:            store,
		clock:            types.RealClock{},
		logger:           slog.Default(),
		loc:              time.UTC,
		lookbackDays:     DefaultLookbackDays,
		batchConcurrency: DefaultBatchConcurrency,
		observer:         noopObserver{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.clock == nil {
		f.clock = types.RealClock{}
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.loc == nil {
		f.loc = time.UTC
	}
	if f.lookbackDays <= 0 {
		f.lookbackDays = DefaultLookbackDays
	}
	if f.batchConcurrency <= 0 {
		f.batchConcurrency = DefaultBatchConcurrency
	}
	if f.observer == nil {
		f.observer = noopObserver{}
	}
	return f
}

// SeasonalNaiveForecast predicts one value per minute for the next
// horizonMinutes minutes. Each minute takes the first tier that has data:
//
//  1. the reading nearest to the same instant one week earlier, if within
//     five minutes (band 10),
//  2. the mean for the same weekday and hour (band 15),
//  3. the mean for the same hour (band 20),
//  4. the overall mean (band 25).
//
// It fails with not_found_historical_data when the lookback window holds no
// readings at all. Store errors are returned unchanged.
func (f *Forecaster) SeasonalNaiveForecast(ctx context.Context, garageID string, horizonMinutes int) ([]types.ForecastPrediction, error) {
	if err := validateHorizon(horizonMinutes); err != nil {
		return nil, err
	}
	return f.forecastAt(ctx, garageID, horizonMinutes, f.now())
}

func (f *Forecaster) now() time.Time {
	return f.clock.Now().UTC().Truncate(time.Minute)
}

func (f *Forecaster) forecastAt(ctx context.Context, garageID string, horizonMinutes int, now time.Time) ([]types.ForecastPrediction, error) {
	readings, err := f.store.GetHistoricalData(ctx, garageID, f.lookbackDays)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, types.NewNoHistoricalDataError(garageID, f.lookbackDays)
	}

	h := newHistory(readings, f.loc)
	predictions := make([]types.ForecastPrediction, 0, horizonMinutes)
	for i := 1; i <= horizonMinutes; i++ {
		target := now.Add(time.Duration(i) * time.Minute)
		value, method := h.estimate(target)
		predictions = append(predictions, newPrediction(garageID, target, value, method))
	}
	return predictions, nil
}

func newPrediction(garageID string, target time.Time, value float64, method types.ForecastMethod) types.ForecastPrediction {
	predicted := types.ClampPercentage(value)
	band := method.ConfidenceBand()
	return types.ForecastPrediction{
		GarageID:             garageID,
		Timestamp:            target,
		PredictedUtilization: predicted,
		ConfidenceInterval: types.ConfidenceInterval{
			Lower: types.ClampPercentage(predicted - band),
			Upper: types.ClampPercentage(predicted + band),
		},
		Method: method,
	}
}

// accumulator is a running sum for a mean.
type accumulator struct {
	sum float64
	n   int
}

func (a *accumulator) add(v float64) {
	a.sum += v
	a.n++
}

func (a accumulator) mean() (float64, bool) {
	if a.n == 0 {
		return 0, false
	}
	return a.sum / float64(a.n), true
}

// history is the per-call index over one garage's readings.
type history struct {
	readings []types.Reading
	loc      *time.Location
	byHour   [24]accumulator
	byDay    [7][24]accumulator
	overall  accumulator
}

func newHistory(readings []types.Reading, loc *time.Location) *history {
	sorted := readings
	if !sort.SliceIsSorted(readings, func(i, j int) bool { return readings[i].Timestamp.Before(readings[j].Timestamp) }) {
		sorted = make([]types.Reading, len(readings))
		copy(sorted, readings)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	}

	h := &history{readings: sorted, loc: loc}
	for _, r := range sorted {
		local := r.Timestamp.In(loc)
		h.byHour[local.Hour()].add(r.OccupiedPercentage)
		h.byDay[local.Weekday()][local.Hour()].add(r.OccupiedPercentage)
		h.overall.add(r.OccupiedPercentage)
	}
	return h
}

func (h *history) estimate(target time.Time) (float64, types.ForecastMethod) {
	if v, ok := h.weekAgo(target); ok {
		return v, types.MethodSeasonalNaiveWeekly
	}
	local := target.In(h.loc)
	if v, ok := h.byDay[local.Weekday()][local.Hour()].mean(); ok {
		return v, types.MethodWeekdayHourlyAverage
	}
	if v, ok := h.byHour[local.Hour()].mean(); ok {
		return v, types.MethodHourlyAverage
	}
	v, _ := h.overall.mean()
	return v, types.MethodOverallAverage
}

// weekAgo finds the reading closest to target minus one week. Only the two
// neighbours of the insertion point can be closest; on a tie the earlier one
// wins.
func (h *history) weekAgo(target time.Time) (float64, bool) {
	ref := target.Add(-week)
	idx := sort.Search(len(h.readings), func(i int) bool {
		return !h.readings[i].Timestamp.Before(ref)
	})

	best := -1
	var bestDist time.Duration
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(h.readings) {
			continue
		}
		dist := absDuration(h.readings[i].Timestamp.Sub(ref))
		if best == -1 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	// Compared in whole minutes, so a match up to 5m59s away still counts.
	if best == -1 || int64(bestDist/time.Minute) > seasonalTolerance {
		return 0, false
	}
	return h.readings[best].OccupiedPercentage, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func validateHorizon(minutes int) error {
	if minutes <= 0 {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationOutOfRange,
			"forecast horizon must be a positive number of minutes",
			nil,
			map[string]any{"minutes": minutes},
		)
	}
	return nil
}
