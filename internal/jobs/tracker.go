// Package jobs tracks in-flight enrichment runs so the HTTP surface can
// report progress and request cancellation without sharing state with
// the orchestrator goroutine.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geoleads/leadgen-cli/internal/model"
)

// Tracker is the registry of enrichment jobs.
type Tracker interface {
	// Create registers a new running job and returns it.
	Create(total int, currentLead string) *model.EnrichmentJob
	// Get returns a snapshot of the job, or false when unknown.
	Get(id string) (*model.EnrichmentJob, bool)
	// UpdateProgress records how far a running job has advanced.
	// Updates to jobs in a terminal state are ignored.
	UpdateProgress(id string, completed, total int, currentLead string)
	// Cancel flags a running job for cooperative cancellation. Returns
	// false when the job is unknown or already terminal.
	Cancel(id string) bool
	// IsCancelled reports whether cancellation has been requested.
	IsCancelled(id string) bool
	// Complete marks a job finished and attaches the per-lead result
	// summary. A job cancelled mid-run stays cancelled.
	Complete(id string, results []model.EnrichmentResultSummary)
	// Fail marks a job failed with an error message.
	Fail(id string, msg string)
}

// MemoryTracker is a process-local Tracker. Jobs do not survive a
// restart; the persisted leads do.
type MemoryTracker struct {
	mu   sync.RWMutex
	jobs map[string]*model.EnrichmentJob
}

// NewMemoryTracker creates an empty in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{jobs: make(map[string]*model.EnrichmentJob)}
}

func (t *MemoryTracker) Create(total int, currentLead string) *model.EnrichmentJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	job := &model.EnrichmentJob{
		ID:     uuid.NewString(),
		Status: model.EnrichmentRunning,
		Progress: model.EnrichmentProgress{
			Total:       total,
			CurrentLead: currentLead,
		},
		StartedAt: time.Now().UTC(),
	}
	t.jobs[job.ID] = job
	return snapshot(job)
}

func (t *MemoryTracker) Get(id string) (*model.EnrichmentJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	return snapshot(job), true
}

func (t *MemoryTracker) UpdateProgress(id string, completed, total int, currentLead string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	job.Progress = model.EnrichmentProgress{
		Completed:   completed,
		Total:       total,
		CurrentLead: currentLead,
	}
}

func (t *MemoryTracker) Cancel(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.Terminal() {
		return false
	}
	job.Status = model.EnrichmentCancelled
	return true
}

func (t *MemoryTracker) IsCancelled(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	return ok && job.Status == model.EnrichmentCancelled
}

func (t *MemoryTracker) Complete(id string, results []model.EnrichmentResultSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	job.Status = model.EnrichmentCompleted
	job.Progress.Completed = job.Progress.Total
	job.Progress.CurrentLead = ""
	job.Results = results
}

func (t *MemoryTracker) Fail(id string, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	job.Status = model.EnrichmentError
	job.Error = msg
}

// snapshot copies a job so callers cannot mutate tracked state.
func snapshot(job *model.EnrichmentJob) *model.EnrichmentJob {
	cp := *job
	if job.Results != nil {
		cp.Results = append([]model.EnrichmentResultSummary(nil), job.Results...)
	}
	return &cp
}
