package types

import "time"

// ReadingsIngestedMessage is the SQS payload the scrape job publishes after a
// batch of readings has been stored. The forecast worker consumes it to
// refresh cached forecasts.
type ReadingsIngestedMessage struct {
	BatchID    string    `json:"batch_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	SourceHash string    `json:"source_hash"`
	ScrapedAt  time.Time `json:"scraped_at"`
	GarageIDs  []string  `json:"garage_ids"`
}
