// Package cache stores batch forecast snapshots in Redis and announces fresh
// ones on a pub/sub channel.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"parkwatch/internal/types"
)

const (
	keyPrefix      = "parkwatch:forecast:"
	sourceMarkKey  = "parkwatch:forecast-source"
	UpdatesChannel = "parkwatch:forecasts"
	DefaultTTL     = 15 * time.Minute
)

// Redis is the subset of *redis.Client the cache uses.
type Redis interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewClient connects to the Redis URL and pings it.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// ForecastCache holds the latest forecast snapshot of each garage.
type ForecastCache struct {
	rdb Redis
	ttl time.Duration
}

func NewForecastCache(rdb Redis, ttl time.Duration) *ForecastCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ForecastCache{rdb: rdb, ttl: ttl}
}

func snapshotKey(garageID string) string {
	return keyPrefix + garageID
}

// PutSnapshot stores the snapshot under the garage's key and publishes the
// garage id on UpdatesChannel. A failed publish is reported; the snapshot
// stays stored.
func (c *ForecastCache) PutSnapshot(ctx context.Context, snap types.ForecastSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to encode forecast snapshot", err)
	}
	if err := c.rdb.Set(ctx, snapshotKey(snap.GarageID), data, c.ttl).Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to store forecast snapshot", err)
	}
	if err := c.rdb.Publish(ctx, UpdatesChannel, snap.GarageID).Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to publish forecast update", err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot, or a not_found_forecast AppError
// when none is stored.
func (c *ForecastCache) GetSnapshot(ctx context.Context, garageID string) (*types.ForecastSnapshot, error) {
	raw, err := c.rdb.Get(ctx, snapshotKey(garageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeNotFoundForecast,
			fmt.Sprintf("no cached forecast for garage %s", garageID),
			nil,
			map[string]any{"garage_id": garageID},
		)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalCache, "failed to read forecast snapshot", err)
	}

	var snap types.ForecastSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalCache, "corrupt forecast snapshot", err)
	}
	return &snap, nil
}

// LastSource returns the mark of the last refresh, or the zero mark if none
// is stored or the stored value cannot be decoded.
func (c *ForecastCache) LastSource(ctx context.Context) (types.SourceMark, error) {
	raw, err := c.rdb.Get(ctx, sourceMarkKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.SourceMark{}, nil
	}
	if err != nil {
		return types.SourceMark{}, types.NewAppError(types.ErrCodeInternalCache, "failed to read source mark", err)
	}
	var mark types.SourceMark
	if err := json.Unmarshal(raw, &mark); err != nil {
		return types.SourceMark{}, nil
	}
	return mark, nil
}

// MarkSource stores the mark with the snapshot TTL so it never outlives the
// snapshots it describes.
func (c *ForecastCache) MarkSource(ctx context.Context, mark types.SourceMark) error {
	data, err := json.Marshal(mark)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to encode source mark", err)
	}
	if err := c.rdb.Set(ctx, sourceMarkKey, data, c.ttl).Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalCache, "failed to store source mark", err)
	}
	return nil
}

// TTL is how long snapshots stay readable.
func (c *ForecastCache) TTL() time.Duration {
	return c.ttl
}

// Probe checks Redis reachability for /health.
type Probe struct {
	Client Redis
}

func (p *Probe) Name() string { return "cache" }

func (p *Probe) Check(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
