package model

import "time"

// ImportStatus is the lifecycle state of an ingestion pass.
type ImportStatus string

const (
	ImportStatusRunning  ImportStatus = "running"
	ImportStatusComplete ImportStatus = "complete"
	ImportStatusFailed   ImportStatus = "failed"
)

// ImportResult is what one successful ingestion pass reports. Skipped counts
// rows that were dropped by the decoder and is informational only.
type ImportResult struct {
	BlockGroups int `json:"block_groups"`
	Counties    int `json:"counties"`
	Skipped     int `json:"skipped"`
}

// ImportRun is the audit row of one ingestion pass.
type ImportRun struct {
	ID          string       `json:"id"`
	Source      string       `json:"source"`
	Status      ImportStatus `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	BlockGroups int          `json:"block_groups"`
	Counties    int          `json:"counties"`
	Error       string       `json:"error,omitempty"`
}
