package model

import "time"

// RunStatus represents the outcome of a harvest run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunSummary records the counters of one harvest run.
type RunSummary struct {
	RunID             string     `json:"run_id"`
	Status            RunStatus  `json:"status"`
	Pages             int        `json:"pages"`
	Docs              int        `json:"docs"`
	Included          int        `json:"included"`
	Written           int        `json:"written"`
	SkippedDuplicates int        `json:"skipped_duplicates"`
	DecodeFailures    int        `json:"decode_failures"`
	WriteFailures     int        `json:"write_failures"`
	LastCursor        string     `json:"last_cursor"`
	// Truncated is set when MAX_PAGES stopped the run before the cursor was exhausted.
	Truncated         bool       `json:"truncated"`
	Error             string     `json:"error,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// StoredActivity is a harvested activity as served by the read API.
type StoredActivity struct {
	IATIIdentifier string    `json:"iati_identifier"`
	Activity       []byte    `json:"-"`
	UpdatedAt      time.Time `json:"updated_at"`
}
