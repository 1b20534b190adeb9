package domain

import "time"

// CampaignRun summarizes one pipeline execution.
type CampaignRun struct {
	ID         string    `json:"id"`
	Agreement  string    `json:"agreement"`
	Campaign   string    `json:"campaign"`
	Team       string    `json:"team"`
	InputRows  int       `json:"inputRows"`
	OutputRows int       `json:"outputRows"`
	ConvaiRows int       `json:"convaiRows"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Run status values.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
