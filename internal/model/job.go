package model

import "time"

// SearchMethod selects how a spatial search is anchored.
type SearchMethod string

const (
	SearchMethodCoordinates SearchMethod = "coordinates"
	SearchMethodCity        SearchMethod = "city"
)

// SearchJobStatus represents the current state of a search job.
// Transitions are one-directional except retry, which resets a failed
// job back to pending with zeroed counters.
type SearchJobStatus string

const (
	SearchStatusPending   SearchJobStatus = "pending"
	SearchStatusInProcess SearchJobStatus = "in_process"
	SearchStatusCompleted SearchJobStatus = "completed"
	SearchStatusFailed    SearchJobStatus = "failed"
)

// SearchResultSummary is the per-lead snapshot attached to a completed
// search job for the polling UI.
type SearchResultSummary struct {
	LeadID   string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Website  string `json:"website,omitempty"`
	Type     string `json:"type,omitempty"`
	Location string `json:"location,omitempty"`
}

// SearchJob represents one invocation of the spatial search engine,
// persisted as a search_history record and polled by the caller.
type SearchJob struct {
	ID     string          `json:"id"`
	Method SearchMethod    `json:"search_method"`
	Status SearchJobStatus `json:"status"`

	// Coordinate mode.
	Coordinates string `json:"coordinates,omitempty"` // "lat, lng"
	Radius      int    `json:"radius,omitempty"`

	// City mode.
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`

	Categories []string `json:"categories"`

	ProcessedCount int                   `json:"processed_count"`
	TotalResults   int                   `json:"total_results"`
	ErrorMessage   string                `json:"error_message,omitempty"`
	Results        []SearchResultSummary `json:"results,omitempty"`

	CreatedBy string `json:"created_by,omitempty"`
	Currency  string `json:"currency,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"processing_started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// EnrichmentJobStatus represents the state of a batch enrichment job.
// All states other than running are terminal.
type EnrichmentJobStatus string

const (
	EnrichmentRunning   EnrichmentJobStatus = "running"
	EnrichmentCompleted EnrichmentJobStatus = "completed"
	EnrichmentCancelled EnrichmentJobStatus = "cancelled"
	EnrichmentError     EnrichmentJobStatus = "error"
)

// EnrichmentProgress is the progress tuple reported after each lead
// (sequential mode) or chunk (parallel mode).
type EnrichmentProgress struct {
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
	CurrentLead string `json:"current_lead,omitempty"`
}

// EnrichmentResultSummary is one lead's outcome, attached to the job
// when the batch completes.
type EnrichmentResultSummary struct {
	LeadID string      `json:"lead_id"`
	Name   string      `json:"name,omitempty"`
	Email  string      `json:"email,omitempty"`
	Status EmailStatus `json:"email_status"`
	Source string      `json:"source,omitempty"`
}

// EnrichmentJob tracks one batch enrichment run. Job state lives for
// the process lifetime only; a restart loses in-flight job visibility.
type EnrichmentJob struct {
	ID        string                    `json:"id"`
	Status    EnrichmentJobStatus       `json:"status"`
	Progress  EnrichmentProgress        `json:"progress"`
	Results   []EnrichmentResultSummary `json:"results,omitempty"`
	Error     string                    `json:"error,omitempty"`
	StartedAt time.Time                 `json:"started_at"`
}

// Terminal reports whether the job has left the running state.
func (j EnrichmentJob) Terminal() bool {
	return j.Status != EnrichmentRunning
}
