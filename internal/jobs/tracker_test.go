package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoleads/leadgen-cli/internal/model"
)

func TestMemoryTracker_Lifecycle(t *testing.T) {
	tr := NewMemoryTracker()

	job := tr.Create(10, "Acme Cafe")
	require.NotEmpty(t, job.ID)
	assert.Equal(t, model.EnrichmentRunning, job.Status)
	assert.Equal(t, 10, job.Progress.Total)
	assert.Equal(t, "Acme Cafe", job.Progress.CurrentLead)
	assert.False(t, job.StartedAt.IsZero())

	tr.UpdateProgress(job.ID, 4, 10, "Burger Spot")
	got, ok := tr.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, 4, got.Progress.Completed)
	assert.Equal(t, "Burger Spot", got.Progress.CurrentLead)

	results := []model.EnrichmentResultSummary{
		{LeadID: "ID1", Name: "Acme Cafe", Email: "info@acme.example", Status: model.EmailStatusVerified, Source: "hunter"},
	}
	tr.Complete(job.ID, results)
	got, _ = tr.Get(job.ID)
	assert.Equal(t, model.EnrichmentCompleted, got.Status)
	assert.Equal(t, 10, got.Progress.Completed)
	assert.Empty(t, got.Progress.CurrentLead)
	assert.Equal(t, results, got.Results)
}

func TestMemoryTracker_Cancel(t *testing.T) {
	tr := NewMemoryTracker()
	job := tr.Create(5, "")

	assert.False(t, tr.IsCancelled(job.ID))
	assert.True(t, tr.Cancel(job.ID))
	assert.True(t, tr.IsCancelled(job.ID))

	// Cancelled is terminal: no second cancel, no completion overwrite.
	assert.False(t, tr.Cancel(job.ID))
	tr.Complete(job.ID, nil)
	got, _ := tr.Get(job.ID)
	assert.Equal(t, model.EnrichmentCancelled, got.Status)
}

func TestMemoryTracker_Fail(t *testing.T) {
	tr := NewMemoryTracker()
	job := tr.Create(5, "")

	tr.Fail(job.ID, "store unavailable")
	got, _ := tr.Get(job.ID)
	assert.Equal(t, model.EnrichmentError, got.Status)
	assert.Equal(t, "store unavailable", got.Error)

	// Progress updates after a terminal state are ignored.
	tr.UpdateProgress(job.ID, 3, 5, "x")
	got, _ = tr.Get(job.ID)
	assert.Zero(t, got.Progress.Completed)
}

func TestMemoryTracker_UnknownJob(t *testing.T) {
	tr := NewMemoryTracker()

	_, ok := tr.Get("missing")
	assert.False(t, ok)
	assert.False(t, tr.Cancel("missing"))
	assert.False(t, tr.IsCancelled("missing"))
}

func TestMemoryTracker_SnapshotsAreCopies(t *testing.T) {
	tr := NewMemoryTracker()
	job := tr.Create(5, "")

	job.Status = model.EnrichmentError
	got, _ := tr.Get(job.ID)
	assert.Equal(t, model.EnrichmentRunning, got.Status)
}
