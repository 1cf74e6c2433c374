package db

import (
	"context"
	"fmt"
	"time"

	"parkwatch/internal/types"
)

// FreshnessThreshold is how old the newest reading may be before ingestion is
// reported as degraded.
const FreshnessThreshold = 10 * time.Minute

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProbe reports whether Postgres answers.
type DatabaseProbe struct {
	Pool Pinger
}

func (p DatabaseProbe) Name() string { return "database" }

func (p DatabaseProbe) Check(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// StatsReader is the part of ReadingRepository the freshness probe needs.
type StatsReader interface {
	GetStats(ctx context.Context) (types.ReadingStats, error)
}

// FreshnessProbe reports degraded (not failed) when the reading table is
// missing, empty for the last day, or older than MaxAge.
type FreshnessProbe struct {
	Stats  StatsReader
	MaxAge time.Duration
}

func (p FreshnessProbe) Name() string { return "ingestion" }

func (p FreshnessProbe) Check(ctx context.Context) error {
	stats, err := p.Stats.GetStats(ctx)
	if err != nil {
		return err
	}
	maxAge := p.MaxAge
	if maxAge <= 0 {
		maxAge = FreshnessThreshold
	}

	switch {
	case !stats.TableExists:
		return fmt.Errorf("%w: garage_readings table does not exist", types.ErrDegraded)
	case stats.LatestReading == nil:
		return fmt.Errorf("%w: no readings in the last 24 hours", types.ErrDegraded)
	case stats.MinutesSinceLastReading >= maxAge.Minutes():
		return fmt.Errorf("%w: last reading %.1f minutes ago", types.ErrDegraded, stats.MinutesSinceLastReading)
	}
	return nil
}
