package db

import (
	"context"
	"time"

	"parkwatch/internal/types"
)

// Job run statuses stored in job_history.status.
const (
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
	JobStatusSkipped = "skipped"
)

// JobLockRepository serializes scheduled work across concurrent Lambda
// invocations through the job_locks table.
type JobLockRepository struct {
	db    DBTX
	clock types.Clock
}

func NewJobLockRepository(db DBTX) *JobLockRepository {
	return &JobLockRepository{db: db, clock: types.RealClock{}}
}

// Acquire takes lockID for ttl. It reports false, without error, while another
// worker holds an unexpired lock; an expired lock is taken over.
//
// Timestamps are computed here rather than with SQL interval arithmetic so a
// Go duration never has to be parsed by Postgres.
func (r *JobLockRepository) Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error) {
	now := r.clock.Now()

	tag, err := r.db.Exec(ctx,
		`INSERT INTO job_locks (id, worker_id, locked_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		   SET worker_id = EXCLUDED.worker_id,
		       locked_at = EXCLUDED.locked_at,
		       expires_at = EXCLUDED.expires_at
		   WHERE job_locks.expires_at < $3`,
		lockID,
		workerID,
		now,
		now.Add(ttl),
	)
	if err != nil {
		return false, dbError("failed to acquire job lock", err)
	}
	return tag.RowsAffected() > 0, nil
}

// JobHistoryRepository records every scheduled run in job_history.
type JobHistoryRepository struct {
	db DBTX
}

func NewJobHistoryRepository(db DBTX) *JobHistoryRepository {
	return &JobHistoryRepository{db: db}
}

// Start opens a run in the running state and returns its id.
func (r *JobHistoryRepository) Start(ctx context.Context, jobType string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO job_history (job_type, started_at, status)
		 VALUES ($1, NOW(), $2)
		 RETURNING id`,
		jobType,
		JobStatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, dbError("failed to start job history entry", err)
	}
	return id, nil
}

// Finish closes run id with its outcome. jobErr, when set, is stored as text.
func (r *JobHistoryRepository) Finish(ctx context.Context, id int64, status string, items int, jobErr error) error {
	var errMsg *string
	if jobErr != nil {
		s := jobErr.Error()
		errMsg = &s
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE job_history
		 SET finished_at = NOW(), status = $2, items_count = $3, error = $4
		 WHERE id = $1`,
		id,
		status,
		items,
		errMsg,
	)
	if err != nil {
		return dbError("failed to finish job history entry", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "job history entry not found", nil)
	}
	return nil
}

// PruneBefore deletes finished runs that started before cutoff and returns
// how many were removed. Running entries are kept.
func (r *JobHistoryRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM job_history WHERE started_at < $1 AND status <> $2`,
		cutoff,
		JobStatusRunning,
	)
	if err != nil {
		return 0, dbError("failed to prune job history", err)
	}
	return tag.RowsAffected(), nil
}
