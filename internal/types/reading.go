package types

import (
	"fmt"
	"strings"
	"time"
)

// Reading is one observation of a garage's occupancy. At most one reading is
// stored per (GarageID, minute); a repeat write in the same minute overwrites
// the descriptive fields and percentage.
type Reading struct {
	ID                 int64     `json:"id,omitempty"`
	GarageID           string    `json:"garage_id"`
	GarageName         string    `json:"garage_name"`
	Address            string    `json:"address"`
	OccupiedPercentage float64   `json:"occupied_percentage"`
	Capacity           *int      `json:"capacity,omitempty"`
	OccupiedSpaces     *int      `json:"occupied_spaces,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	SourceHash         string    `json:"source_hash,omitempty"`
}

// Normalize returns a copy with the timestamp truncated to the minute in UTC
// and the percentage clamped to [0, 100].
func (r Reading) Normalize() Reading {
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Minute)
	r.OccupiedPercentage = ClampPercentage(r.OccupiedPercentage)
	return r
}

// LatestReading is the most recent reading of a garage joined with its
// static info.
type LatestReading struct {
	Reading
	MapURL string `json:"map_url,omitempty"`
}

// ReadingStats summarizes ingestion freshness for health checks.
type ReadingStats struct {
	TableExists             bool       `json:"table_exists"`
	LatestReading           *time.Time `json:"latest_reading"`
	TotalReadings24h        int        `json:"total_readings_24h"`
	ActiveGarages           int        `json:"active_garages"`
	MinutesSinceLastReading float64    `json:"minutes_since_last_reading"`
}

// BucketSize selects the width of an aggregation bucket.
type BucketSize string

const (
	Bucket5Min   BucketSize = "5min"
	BucketHourly BucketSize = "hourly"
)

// ParseBucketSize reads an interval query value. Empty means hourly.
func ParseBucketSize(s string) (BucketSize, error) {
	switch b := BucketSize(strings.TrimSpace(s)); b {
	case "":
		return BucketHourly, nil
	case Bucket5Min, BucketHourly:
		return b, nil
	default:
		return "", NewAppErrorWithDetails(
			ErrCodeValidationInvalidParam,
			fmt.Sprintf("interval must be %q or %q", Bucket5Min, BucketHourly),
			nil,
			map[string]any{"field": "interval", "value": s},
		)
	}
}

// AggregatedBucket is one time-bucketed rollup. Buckets only exist when at
// least one reading fell inside them; the aggregates are pointers so an
// absent value renders as JSON null instead of a synthetic zero.
type AggregatedBucket struct {
	BucketStart time.Time `json:"bucket_start"`
	Avg         *float64  `json:"avg_utilization"`
	Max         *float64  `json:"max_utilization"`
	Min         *float64  `json:"min_utilization"`
	Last        *float64  `json:"last_utilization"`
}

// ClampPercentage bounds v to [0, 100].
func ClampPercentage(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
