package types

import "time"

// ForecastMethod tags the fallback tier that produced a prediction.
type ForecastMethod string

const (
	MethodSeasonalNaiveWeekly  ForecastMethod = "seasonal_naive_weekly"
	MethodWeekdayHourlyAverage ForecastMethod = "weekday_hourly_average"
	MethodHourlyAverage        ForecastMethod = "hourly_average"
	MethodOverallAverage       ForecastMethod = "overall_average"
)

// ConfidenceBand returns the half-width of the confidence interval, in
// percentage points, associated with a method.
func (m ForecastMethod) ConfidenceBand() float64 {
	switch m {
	case MethodSeasonalNaiveWeekly:
		return 10
	case MethodWeekdayHourlyAverage:
		return 15
	case MethodHourlyAverage:
		return 20
	default:
		return 25
	}
}

// ConfidenceInterval bounds a prediction. Both ends lie in [0, 100].
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ForecastPrediction is one future point estimate at minute granularity.
type ForecastPrediction struct {
	GarageID             string             `json:"garage_id"`
	Timestamp            time.Time          `json:"timestamp"`
	PredictedUtilization float64            `json:"predicted_utilization"`
	ConfidenceInterval   ConfidenceInterval `json:"confidence_interval"`
	Method               ForecastMethod     `json:"method"`
}

// Trend classifies the direction of a fitted occupancy line.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// TrendAnalysis summarizes one garage over a lookback window.
type TrendAnalysis struct {
	Trend            Trend   `json:"trend"`
	ChangePercentage float64 `json:"change_percentage"`
	PeakHours        []int   `json:"peak_hours"`
	OffPeakHours     []int   `json:"off_peak_hours"`
}

// NeutralTrend is the result for windows with too few readings to fit a line.
func NeutralTrend() TrendAnalysis {
	return TrendAnalysis{
		Trend:        TrendStable,
		PeakHours:    []int{},
		OffPeakHours: []int{},
	}
}

// ForecastSnapshot is the cached batch forecast of one garage, written by the
// forecast worker and served by GET /v1/forecast/cached.
type ForecastSnapshot struct {
	GarageID       string               `json:"garage_id"`
	HorizonMinutes int                  `json:"horizon_minutes"`
	GeneratedAt    time.Time            `json:"generated_at"`
	SourceHash     string               `json:"source_hash,omitempty"`
	Predictions    []ForecastPrediction `json:"predictions"`
}

// SourceMark records which scrape the cached snapshots were built from and
// when.
type SourceMark struct {
	Hash        string    `json:"hash"`
	RefreshedAt time.Time `json:"refreshed_at"`
}
