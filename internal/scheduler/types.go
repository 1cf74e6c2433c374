// Package scheduler implements the scheduled jobs: the recurring scrape, the
// forecast refresh triggered by new readings, and the maintenance tasks run
// by the archiver multiplexer.
package scheduler

import "time"

// TaskType identifies which maintenance task the archiver runs.
type TaskType string

const (
	TaskExportReadings  TaskType = "export_readings"
	TaskPruneJobHistory TaskType = "prune_job_history"
)

// MaintenancePayload is the JSON EventBridge sends to the archiver Lambda.
//
//	{
//	  "task": "export_readings",
//	  "reference_time": "2025-08-18T03:00:00Z"  // optional
//	}
type MaintenancePayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for manual runs and backfills.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// ScrapeInput is the scrape Lambda payload. EventBridge sends an empty
// object; manual invocations may ask for a dry run.
type ScrapeInput struct {
	// DryRun scrapes and parses but writes nothing.
	DryRun bool `json:"dry_run"`
	// Source labels the trigger in logs ("schedule", "api", "manual").
	Source string `json:"source,omitempty"`
}

// ScrapedGarage is the per-garage line of a ScrapeResult.
type ScrapedGarage struct {
	GarageID           string  `json:"garage_id"`
	GarageName         string  `json:"garage_name"`
	OccupiedPercentage float64 `json:"occupied_percentage"`
	Address            string  `json:"address"`
}

// ScrapeResult summarizes one scrape run.
type ScrapeResult struct {
	Success        bool            `json:"success"`
	Timestamp      time.Time       `json:"timestamp"`
	BatchID        string          `json:"batch_id"`
	SourceHash     string          `json:"source_hash"`
	PageUpdatedAt  *time.Time      `json:"page_updated_at,omitempty"`
	DryRun         bool            `json:"dry_run,omitempty"`
	GaragesUpdated int             `json:"garages_updated"`
	GaragesFailed  int             `json:"garages_failed"`
	Data           []ScrapedGarage `json:"data"`
}

// RefreshResult summarizes one forecast refresh.
type RefreshResult struct {
	Skipped     bool   `json:"skipped"`
	SourceHash  string `json:"source_hash"`
	Garages     int    `json:"garages"`
	Predictions int    `json:"predictions"`
	Failed      int    `json:"failed"`
}
