package db

import (
	"context"
	"fmt"
)

// schemaStatements is the idempotent DDL applied by Migrate, in order.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS garage_info (
		garage_id   TEXT PRIMARY KEY,
		garage_name TEXT NOT NULL,
		address     TEXT NOT NULL DEFAULT '',
		map_url     TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS garage_readings (
		id                  BIGSERIAL PRIMARY KEY,
		garage_id           TEXT NOT NULL,
		garage_name         TEXT NOT NULL,
		address             TEXT NOT NULL DEFAULT '',
		occupied_percentage DOUBLE PRECISION NOT NULL
			CHECK (occupied_percentage >= 0 AND occupied_percentage <= 100),
		capacity            INTEGER,
		occupied_spaces     INTEGER,
		timestamp           TIMESTAMPTZ NOT NULL,
		source_hash         TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (garage_id, timestamp)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_garage_readings_garage_time
		ON garage_readings (garage_id, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_garage_readings_time
		ON garage_readings (timestamp)`,
	`CREATE TABLE IF NOT EXISTS job_locks (
		id         TEXT PRIMARY KEY,
		worker_id  TEXT NOT NULL,
		locked_at  TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS job_history (
		id          BIGSERIAL PRIMARY KEY,
		job_type    TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status      TEXT NOT NULL,
		items_count INTEGER NOT NULL DEFAULT 0,
		error       TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_history_started
		ON job_history (started_at)`,
}

// Migrate applies the schema. Safe to run repeatedly.
func Migrate(ctx context.Context, db DBTX) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return dbError(fmt.Sprintf("failed to apply schema statement %d", i+1), err)
		}
	}
	return nil
}
