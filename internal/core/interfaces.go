package core

import (
	"context"
	"time"
)

// MetricsCollector defines the interface for recording API telemetry.
// The production implementation is the Prometheus collector.
type MetricsCollector interface {
	// RecordRequest records latency and count for one request. route is the
	// chi route pattern so label cardinality stays bounded.
	RecordRequest(method, route, status string, duration time.Duration)
}

// HealthProbe defines the interface for a subsystem health check.
// Each probe represents a dependency (database, ingestion freshness, cache)
// the service needs.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe (e.g., "database").
	Name() string

	// Check performs the health check against the subsystem. It should respect
	// the context deadline. Returning an error that wraps types.ErrDegraded
	// marks the component degraded instead of unhealthy.
	Check(ctx context.Context) error
}
