// Package main is the archiver Lambda, the maintenance multiplexer.
//
// EventBridge rules send a MaintenancePayload naming the task. The handler
// takes a job lock so overlapping invocations of the same task run once,
// records the run in job_history, and routes to the task:
//
//   - export_readings: archive the previous UTC day of readings to S3.
//   - prune_job_history: drop finished job_history rows older than 30 days.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"parkwatch/internal/config"
	"parkwatch/internal/db"
	"parkwatch/internal/metrics"
	"parkwatch/internal/scheduler"
	"parkwatch/internal/types"
)

// lockTTL covers the longest expected run with margin.
const lockTTL = 15 * time.Minute

// ReadingExporter archives a day of readings.
type ReadingExporter interface {
	ExportPreviousDay(ctx context.Context, now time.Time) (int, error)
}

// HistoryPruner trims job_history.
type HistoryPruner interface {
	Prune(ctx context.Context, now time.Time) (int, error)
}

// ArchiveMetrics records export volume.
type ArchiveMetrics interface {
	RecordArchive(ctx context.Context, readings int)
}

// JobLocker abstracts the distributed lock acquisition.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
}

// JobHistorian abstracts the job history recording.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// Handler holds the dependencies of the archiver. Exporter is nil when no
// archive bucket is configured; Metrics may be nil.
type Handler struct {
	Exporter   ReadingExporter
	Pruner     HistoryPruner
	Metrics    ArchiveMetrics
	JobLock    JobLocker
	JobHistory JobHistorian
	WorkerID   string
	Clock      types.Clock
	Logger     *slog.Logger
}

// Handle runs one maintenance task:
//  1. Determine the reference time (payload override or now).
//  2. Acquire the lock "task:YYYY-MM-DDTHH"; a held lock skips the run.
//  3. Record the start in job_history (failure is logged, not fatal).
//  4. Dispatch to the task.
//  5. Record the outcome.
func (h *Handler) Handle(ctx context.Context, payload scheduler.MaintenancePayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := h.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	now := clock.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}
	task := string(payload.Task)
	if task == "" {
		return "", fmt.Errorf("empty task type in maintenance payload")
	}
	ctx = types.WithJobID(ctx, uuid.NewString())

	logger.InfoContext(ctx, "archiver invoked",
		"task", task,
		"reference_time", now.Format(time.RFC3339),
		"worker_id", h.WorkerID,
	)

	lockID := fmt.Sprintf("%s:%s", task, now.Truncate(time.Hour).Format("2006-01-02T15"))
	acquired, err := h.JobLock.Acquire(ctx, lockID, h.WorkerID, lockTTL)
	if err != nil {
		return "", fmt.Errorf("acquiring job lock %s: %w", lockID, err)
	}
	if !acquired {
		logger.InfoContext(ctx, "job lock held by another worker", "lock_id", lockID)
		return fmt.Sprintf("skipped: lock %s held by another worker", lockID), nil
	}

	jobID, err := h.JobHistory.Start(ctx, task)
	if err != nil {
		logger.ErrorContext(ctx, "failed to start job history", "task", task, "error", err)
		jobID = 0
	}

	items, execErr := h.dispatch(ctx, payload.Task, now)

	status := db.JobStatusSuccess
	if execErr != nil {
		status = db.JobStatusFailed
	}
	if jobID != 0 {
		if err := h.JobHistory.Finish(ctx, jobID, status, items, execErr); err != nil {
			logger.ErrorContext(ctx, "failed to finish job history", "job_id", jobID, "error", err)
		}
	}

	if execErr != nil {
		logger.ErrorContext(ctx, "task failed", "task", task, "items_before_error", items, "error", execErr)
		return "", fmt.Errorf("task %s failed: %w", task, execErr)
	}

	result := fmt.Sprintf("task %s complete: %d items processed", task, items)
	logger.InfoContext(ctx, result, "task", task, "items", items)
	return result, nil
}

func (h *Handler) dispatch(ctx context.Context, task scheduler.TaskType, now time.Time) (int, error) {
	switch task {
	case scheduler.TaskExportReadings:
		if h.Exporter == nil {
			return 0, fmt.Errorf("export_readings requires ARCHIVE_BUCKET")
		}
		n, err := h.Exporter.ExportPreviousDay(ctx, now)
		if err == nil && h.Metrics != nil {
			h.Metrics.RecordArchive(ctx, n)
		}
		return n, err

	case scheduler.TaskPruneJobHistory:
		return h.Pruner.Prune(ctx, now)

	default:
		return 0, fmt.Errorf("unknown task type: %q", task)
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("archiver initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	workerID := uuid.NewString()
	handler := &Handler{
		Pruner:     scheduler.NewHistoryPruner(db.NewJobHistoryRepository(pool), scheduler.DefaultHistoryRetention, logger),
		JobLock:    db.NewJobLockRepository(pool),
		JobHistory: db.NewJobHistoryRepository(pool),
		WorkerID:   workerID,
		Logger:     logger,
	}

	if cfg.AWS.ArchiveBucket != "" {
		awsCfg, err := config.LoadAWS(ctx, cfg.AWS)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			// LocalStack serves buckets by path.
			o.UsePathStyle = cfg.AWS.EndpointURL != ""
		})
		handler.Exporter = scheduler.NewReadingExporter(db.NewReadingRepository(pool), s3Client, cfg.AWS.ArchiveBucket, scheduler.DefaultExportPageSize, logger)
		if cfg.Observability.MetricsEnabled {
			handler.Metrics = metrics.NewCloudWatchJobMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
		}
	}

	logger.Info("archiver initialized", "worker_id", workerID, "archive_bucket", cfg.AWS.ArchiveBucket)
	lambda.Start(handler.Handle)
}
