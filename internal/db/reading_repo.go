package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"parkwatch/internal/types"
)

// readingColumns is the projection scanned by scanReading.
const readingColumns = `id, garage_id, garage_name, address, occupied_percentage,
       capacity, occupied_spaces, timestamp, COALESCE(source_hash, '')`

// bucketExpr maps a bucket size to its grouping expression. Values are fixed
// SQL fragments, never user input.
var bucketExpr = map[types.BucketSize]string{
	types.BucketHourly: `date_trunc('hour', timestamp)`,
	types.Bucket5Min:   `to_timestamp(floor(extract(epoch FROM timestamp) / 300) * 300)`,
}

// ReadingRepository is the reading store: raw garage_readings rows plus the
// aggregated views derived from them.
type ReadingRepository struct {
	db    DBTX
	clock types.Clock
}

func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db, clock: types.RealClock{}}
}

// Upsert stores one reading keyed by (garage_id, minute). A second write in
// the same minute replaces the descriptive fields, the percentage and the
// source hash; created_at keeps its first value.
func (r *ReadingRepository) Upsert(ctx context.Context, reading types.Reading) (int64, error) {
	reading = reading.Normalize()

	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO garage_readings
		   (garage_id, garage_name, address, occupied_percentage,
		    capacity, occupied_spaces, timestamp, source_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		 ON CONFLICT (garage_id, timestamp) DO UPDATE SET
		   garage_name = EXCLUDED.garage_name,
		   address = EXCLUDED.address,
		   occupied_percentage = EXCLUDED.occupied_percentage,
		   capacity = EXCLUDED.capacity,
		   occupied_spaces = EXCLUDED.occupied_spaces,
		   source_hash = EXCLUDED.source_hash
		 RETURNING id`,
		reading.GarageID,
		reading.GarageName,
		reading.Address,
		reading.OccupiedPercentage,
		reading.Capacity,
		reading.OccupiedSpaces,
		reading.Timestamp,
		reading.SourceHash,
	).Scan(&id)
	if err != nil {
		return 0, dbError("failed to upsert reading", err)
	}
	return id, nil
}

// GetHistoricalData returns the garage's readings from the trailing window,
// oldest first. No rows yields an empty slice and a nil error.
func (r *ReadingRepository) GetHistoricalData(ctx context.Context, garageID string, days int) ([]types.Reading, error) {
	since := r.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)

	rows, err := r.db.Query(ctx,
		`SELECT `+readingColumns+`
		 FROM garage_readings
		 WHERE garage_id = $1 AND timestamp >= $2
		 ORDER BY timestamp ASC`,
		garageID,
		since,
	)
	if err != nil {
		return nil, dbError("failed to query historical readings", err)
	}
	return collectReadings(rows)
}

// GetAggregatedData rolls readings in [now-lookback, now] into buckets.
// Only buckets that contain at least one reading are returned; gaps are not
// zero-filled. Last is the percentage of the newest reading in the bucket.
func (r *ReadingRepository) GetAggregatedData(ctx context.Context, garageID string, size types.BucketSize, lookbackHours int) ([]types.AggregatedBucket, error) {
	expr, ok := bucketExpr[size]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidParam, fmt.Sprintf("unsupported bucket size %q", size), nil)
	}
	now := r.clock.Now()
	since := now.Add(-time.Duration(lookbackHours) * time.Hour)

	rows, err := r.db.Query(ctx,
		`SELECT bucket,
		        AVG(occupied_percentage),
		        MAX(occupied_percentage),
		        MIN(occupied_percentage),
		        (ARRAY_AGG(occupied_percentage ORDER BY timestamp DESC))[1]
		 FROM (
		   SELECT `+expr+` AS bucket, occupied_percentage, timestamp
		   FROM garage_readings
		   WHERE garage_id = $1 AND timestamp >= $2 AND timestamp <= $3
		 ) b
		 GROUP BY bucket
		 ORDER BY bucket ASC`,
		garageID,
		since,
		now,
	)
	if err != nil {
		return nil, dbError("failed to query aggregated readings", err)
	}
	defer rows.Close()

	buckets := make([]types.AggregatedBucket, 0)
	for rows.Next() {
		var b types.AggregatedBucket
		if err := rows.Scan(&b.BucketStart, &b.Avg, &b.Max, &b.Min, &b.Last); err != nil {
			return nil, dbError("failed to scan aggregated bucket", err)
		}
		b.BucketStart = b.BucketStart.UTC()
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating aggregated buckets", err)
	}
	return buckets, nil
}

// ListDistinctGarageIDs returns every garage with at least one reading,
// sorted.
func (r *ReadingRepository) ListDistinctGarageIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT garage_id FROM garage_readings ORDER BY garage_id`)
	if err != nil {
		return nil, dbError("failed to list garage ids", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbError("failed to scan garage id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating garage ids", err)
	}
	return ids, nil
}

// GetLatestReadings returns the newest reading of each garage joined with
// its map URL.
func (r *ReadingRepository) GetLatestReadings(ctx context.Context) ([]types.LatestReading, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT ON (r.garage_id)
		        r.id, r.garage_id, r.garage_name, r.address, r.occupied_percentage,
		        r.capacity, r.occupied_spaces, r.timestamp, COALESCE(r.source_hash, ''),
		        COALESCE(g.map_url, '')
		 FROM garage_readings r
		 LEFT JOIN garage_info g ON g.garage_id = r.garage_id
		 ORDER BY r.garage_id, r.timestamp DESC`,
	)
	if err != nil {
		return nil, dbError("failed to query latest readings", err)
	}
	defer rows.Close()

	latest := make([]types.LatestReading, 0)
	for rows.Next() {
		var l types.LatestReading
		if err := rows.Scan(
			&l.ID, &l.GarageID, &l.GarageName, &l.Address, &l.OccupiedPercentage,
			&l.Capacity, &l.OccupiedSpaces, &l.Timestamp, &l.SourceHash,
			&l.MapURL,
		); err != nil {
			return nil, dbError("failed to scan latest reading", err)
		}
		l.Timestamp = l.Timestamp.UTC()
		latest = append(latest, l)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating latest readings", err)
	}
	return latest, nil
}

// GetStats reports table existence and the last 24 hours of ingestion.
func (r *ReadingRepository) GetStats(ctx context.Context) (types.ReadingStats, error) {
	var stats types.ReadingStats

	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM information_schema.tables
		   WHERE table_schema = current_schema() AND table_name = 'garage_readings'
		 )`,
	).Scan(&stats.TableExists)
	if err != nil {
		return stats, dbError("failed to check garage_readings table", err)
	}
	if !stats.TableExists {
		return stats, nil
	}

	now := r.clock.Now()
	err = r.db.QueryRow(ctx,
		`SELECT MAX(timestamp), COUNT(*), COUNT(DISTINCT garage_id)
		 FROM garage_readings
		 WHERE timestamp >= $1`,
		now.Add(-24*time.Hour),
	).Scan(&stats.LatestReading, &stats.TotalReadings24h, &stats.ActiveGarages)
	if err != nil {
		return stats, dbError("failed to query reading stats", err)
	}
	if stats.LatestReading != nil {
		latest := stats.LatestReading.UTC()
		stats.LatestReading = &latest
		stats.MinutesSinceLastReading = now.Sub(latest).Minutes()
	}
	return stats, nil
}

// ListBetween pages through readings with start <= timestamp < end in id
// order. Pass the last returned id as afterID to fetch the next page.
func (r *ReadingRepository) ListBetween(ctx context.Context, start, end time.Time, limit int, afterID int64) ([]types.Reading, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+readingColumns+`
		 FROM garage_readings
		 WHERE timestamp >= $1 AND timestamp < $2 AND id > $3
		 ORDER BY id ASC
		 LIMIT $4`,
		start,
		end,
		afterID,
		limit,
	)
	if err != nil {
		return nil, dbError("failed to query readings for export", err)
	}
	return collectReadings(rows)
}

func collectReadings(rows pgx.Rows) ([]types.Reading, error) {
	defer rows.Close()

	readings := make([]types.Reading, 0)
	for rows.Next() {
		var rd types.Reading
		if err := rows.Scan(
			&rd.ID, &rd.GarageID, &rd.GarageName, &rd.Address, &rd.OccupiedPercentage,
			&rd.Capacity, &rd.OccupiedSpaces, &rd.Timestamp, &rd.SourceHash,
		); err != nil {
			return nil, dbError("failed to scan reading", err)
		}
		rd.Timestamp = rd.Timestamp.UTC()
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("error iterating readings", err)
	}
	return readings, nil
}
