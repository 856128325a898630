package scheduler

import "context"

// RunFunc performs one reconciliation of source and reports the stored run
type RunFunc func(ctx context.Context, source string) (runID, status string, err error)

// UpsertJobRequest represents a request to create or update a scheduled job
type UpsertJobRequest struct {
	Name     string `json:"name"`
	Cron     string `json:"cron"` // 5- or 6-field expression
	Timezone string `json:"timezone"`
	Source   string `json:"source"` // spreadsheet path
	Enabled  bool   `json:"enabled"`
}

// JobListResponse represents a scheduled job in list responses
type JobListResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Cron       string  `json:"cron"`
	Timezone   string  `json:"timezone"`
	Source     string  `json:"source"`
	Enabled    bool    `json:"enabled"`
	LastRunID  string  `json:"last_run_id,omitempty"`
	LastStatus string  `json:"last_status,omitempty"`
	LastRunAt  *string `json:"last_run_at"` // ISO 8601 format
	NextRun    *string `json:"next_run"`    // ISO 8601 format
}
