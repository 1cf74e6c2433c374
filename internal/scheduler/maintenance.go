package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"

	"parkwatch/internal/types"
)

const (
	// DefaultExportPageSize bounds each keyset page read during export.
	DefaultExportPageSize = 5000
	// DefaultHistoryRetention is how long finished job_history rows are kept.
	DefaultHistoryRetention = 30 * 24 * time.Hour
)

// -----------------------------------------------------------------------------
// Reading export
// -----------------------------------------------------------------------------

// ReadingLister pages through readings in id order.
type ReadingLister interface {
	ListBetween(ctx context.Context, start, end time.Time, limit int, afterID int64) ([]types.Reading, error)
}

// ObjectPutter is the subset of the S3 client the exporter needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ReadingExporter archives one UTC day of readings to S3 as zstd-compressed
// JSON lines.
type ReadingExporter struct {
	readings ReadingLister
	s3       ObjectPutter
	bucket   string
	pageSize int
	logger   *slog.Logger
}

func NewReadingExporter(readings ReadingLister, s3c ObjectPutter, bucket string, pageSize int, logger *slog.Logger) *ReadingExporter {
	if pageSize <= 0 {
		pageSize = DefaultExportPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingExporter{
		readings: readings,
		s3:       s3c,
		bucket:   bucket,
		pageSize: pageSize,
		logger:   logger,
	}
}

// ExportKey is the object key for the archive of the day containing t.
func ExportKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("readings/%04d/%02d/%02d.jsonl.zst", t.Year(), int(t.Month()), t.Day())
}

// ExportPreviousDay archives the UTC day before now and returns how many
// readings were written. Days with no readings upload nothing. Re-running
// for the same day overwrites the object.
func (e *ReadingExporter) ExportPreviousDay(ctx context.Context, now time.Time) (int, error) {
	end := now.UTC().Truncate(24 * time.Hour)
	start := end.Add(-24 * time.Hour)
	return e.Export(ctx, start, end)
}

// Export archives readings with start <= timestamp < end under the key of
// start's day.
func (e *ReadingExporter) Export(ctx context.Context, start, end time.Time) (int, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create zstd encoder", err)
	}
	lines := json.NewEncoder(enc)

	count := 0
	var afterID int64
	for {
		page, err := e.readings.ListBetween(ctx, start, end, e.pageSize, afterID)
		if err != nil {
			enc.Close()
			return count, err
		}
		for _, rd := range page {
			if err := lines.Encode(rd); err != nil {
				enc.Close()
				return count, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode reading", err)
			}
		}
		count += len(page)
		if len(page) < e.pageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}
	if err := enc.Close(); err != nil {
		return count, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to finish zstd stream", err)
	}

	key := ExportKey(start)
	if count == 0 {
		e.logger.InfoContext(ctx, "no readings to export", "key", key)
		return 0, nil
	}

	_, err = e.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(e.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("zstd"),
	})
	if err != nil {
		return count, types.NewAppErrorWithDetails(types.ErrCodeUnavailableDependency, "failed to upload reading archive", err,
			map[string]any{"bucket": e.bucket, "key": key})
	}

	e.logger.InfoContext(ctx, "exported readings",
		"bucket", e.bucket,
		"key", key,
		"readings", count,
		"compressed_bytes", buf.Len(),
	)
	return count, nil
}

// -----------------------------------------------------------------------------
// Job history pruning
// -----------------------------------------------------------------------------

// HistoryPrunerDB deletes finished job_history rows.
type HistoryPrunerDB interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryPruner keeps job_history bounded.
type HistoryPruner struct {
	db        HistoryPrunerDB
	retention time.Duration
	logger    *slog.Logger
}

func NewHistoryPruner(db HistoryPrunerDB, retention time.Duration, logger *slog.Logger) *HistoryPruner {
	if retention <= 0 {
		retention = DefaultHistoryRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryPruner{db: db, retention: retention, logger: logger}
}

// Prune removes finished runs older than the retention window.
func (p *HistoryPruner) Prune(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-p.retention)
	n, err := p.db.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	p.logger.InfoContext(ctx, "pruned job history", "cutoff", cutoff, "deleted", n)
	return int(n), nil
}
