package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoleads/leadgen-cli/internal/jobs"
	"github.com/geoleads/leadgen-cli/internal/model"
)

type emailUpdate struct {
	Email  string
	Status model.EmailStatus
}

// recordingWriter captures per-lead persistence calls.
type recordingWriter struct {
	mu      sync.Mutex
	updates map[string]emailUpdate
	err     error
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{updates: make(map[string]emailUpdate)}
}

func (w *recordingWriter) UpdateLeadEmail(ctx context.Context, externalID, email string, status model.EmailStatus) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.updates[externalID] = emailUpdate{Email: email, Status: status}
	return nil
}

// leadKeyedProvider answers per-lead so batch tests can script mixed
// outcomes.
type leadKeyedProvider struct {
	emails map[string]string
	errs   map[string]error
}

func (p *leadKeyedProvider) Name() string { return "scripted" }

func (p *leadKeyedProvider) Lookup(ctx context.Context, lead model.Lead) (string, error) {
	if err := p.errs[lead.ExternalID]; err != nil {
		return "", err
	}
	return p.emails[lead.ExternalID], nil
}

func batchLeads(n int) []model.Lead {
	leads := make([]model.Lead, n)
	for i := range leads {
		leads[i] = model.Lead{
			ExternalID: string(rune('a' + i)),
			Name:       "Lead " + string(rune('A'+i)),
			Website:    "https://lead.example",
		}
	}
	return leads
}

func newTestOrchestrator(w *Waterfall, writer LeadWriter, tracker jobs.Tracker, opts ...OrchestratorOption) *Orchestrator {
	opts = append([]OrchestratorOption{WithLeadDelay(0)}, opts...)
	return NewOrchestrator(w, writer, tracker, opts...)
}

func TestOrchestrator_Sequential(t *testing.T) {
	provider := &leadKeyedProvider{emails: map[string]string{
		"a": "a@lead.example",
		"b": "",
		"c": "c@lead.example",
	}}
	w := newTestWaterfall(&fakeVerifier{score: 90}, provider)

	writer := newRecordingWriter()
	tracker := jobs.NewMemoryTracker()
	leads := batchLeads(3)
	job := tracker.Create(len(leads), leads[0].Name)

	results, err := newTestOrchestrator(w, writer, tracker).Run(context.Background(), job.ID, leads)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, model.EmailStatusVerified, results[0].Status)
	assert.Equal(t, model.EmailStatusNotFound, results[1].Status)
	assert.Equal(t, model.EmailStatusVerified, results[2].Status)

	assert.Equal(t, emailUpdate{Email: "a@lead.example", Status: model.EmailStatusVerified}, writer.updates["a"])
	// Exhausted leads are persisted as not found with an empty email.
	assert.Equal(t, emailUpdate{Email: "", Status: model.EmailStatusNotFound}, writer.updates["b"])

	final, ok := tracker.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, model.EnrichmentCompleted, final.Status)
	assert.Equal(t, 3, final.Progress.Completed)

	// The completed job carries one summary per lead, in batch order.
	require.Len(t, final.Results, 3)
	assert.Equal(t, model.EnrichmentResultSummary{
		LeadID: "a",
		Name:   "Lead A",
		Email:  "a@lead.example",
		Status: model.EmailStatusVerified,
		Source: "scripted",
	}, final.Results[0])
	assert.Equal(t, model.EmailStatusNotFound, final.Results[1].Status)
	assert.Empty(t, final.Results[1].Email)
}

func TestOrchestrator_PartialFailureIsolation(t *testing.T) {
	provider := &leadKeyedProvider{
		emails: map[string]string{"a": "a@lead.example", "c": "c@lead.example"},
		errs:   map[string]error{"b": errors.New("provider exploded")},
	}
	w := newTestWaterfall(&fakeVerifier{score: 90}, provider)

	writer := newRecordingWriter()
	tracker := jobs.NewMemoryTracker()
	leads := batchLeads(3)
	job := tracker.Create(len(leads), leads[0].Name)

	results, err := newTestOrchestrator(w, writer, tracker).Run(context.Background(), job.ID, leads)
	require.NoError(t, err)

	// The failing lead degrades to not found; its neighbors still enrich.
	assert.Equal(t, model.EmailStatusVerified, results[0].Status)
	assert.Equal(t, model.EmailStatusNotFound, results[1].Status)
	assert.Equal(t, model.EmailStatusVerified, results[2].Status)

	final, _ := tracker.Get(job.ID)
	assert.Equal(t, model.EnrichmentCompleted, final.Status)
}

func TestOrchestrator_Chunked(t *testing.T) {
	emails := map[string]string{}
	leads := batchLeads(7)
	for _, l := range leads {
		emails[l.ExternalID] = l.ExternalID + "@lead.example"
	}
	w := newTestWaterfall(&fakeVerifier{score: 90}, &leadKeyedProvider{emails: emails})

	writer := newRecordingWriter()
	tracker := jobs.NewMemoryTracker()
	job := tracker.Create(len(leads), leads[0].Name)

	results, err := newTestOrchestrator(w, writer, tracker, WithChunkSize(3)).Run(context.Background(), job.ID, leads)
	require.NoError(t, err)
	require.Len(t, results, 7)

	for i, l := range leads {
		assert.Equal(t, l.ExternalID+"@lead.example", results[i].Email)
	}
	assert.Len(t, writer.updates, 7)

	final, _ := tracker.Get(job.ID)
	assert.Equal(t, model.EnrichmentCompleted, final.Status)
	assert.Equal(t, 7, final.Progress.Completed)
}

func TestOrchestrator_CancellationStopsBetweenLeads(t *testing.T) {
	emails := map[string]string{}
	leads := batchLeads(5)
	for _, l := range leads {
		emails[l.ExternalID] = l.ExternalID + "@lead.example"
	}

	tracker := jobs.NewMemoryTracker()
	job := tracker.Create(len(leads), leads[0].Name)

	// Cancel as soon as the first lead has been processed.
	cancelAfterFirst := &cancellingProvider{
		inner:   &leadKeyedProvider{emails: emails},
		tracker: tracker,
		jobID:   job.ID,
		after:   1,
	}
	w := newTestWaterfall(&fakeVerifier{score: 90}, cancelAfterFirst)

	writer := newRecordingWriter()
	_, err := newTestOrchestrator(w, writer, tracker).Run(context.Background(), job.ID, leads)
	require.NoError(t, err)

	assert.Less(t, len(writer.updates), 5)

	final, _ := tracker.Get(job.ID)
	assert.Equal(t, model.EnrichmentCancelled, final.Status)
}

// cancellingProvider flags the job cancelled after a set number of
// lookups.
type cancellingProvider struct {
	inner   Provider
	tracker jobs.Tracker
	jobID   string
	after   int
	seen    int
}

func (p *cancellingProvider) Name() string { return p.inner.Name() }

func (p *cancellingProvider) Lookup(ctx context.Context, lead model.Lead) (string, error) {
	p.seen++
	if p.seen == p.after {
		p.tracker.Cancel(p.jobID)
	}
	return p.inner.Lookup(ctx, lead)
}

func TestOrchestrator_ExistingEmailNotRewritten(t *testing.T) {
	provider := &leadKeyedProvider{emails: map[string]string{"a": "new@lead.example"}}
	w := newTestWaterfall(&fakeVerifier{score: 90}, provider)

	writer := newRecordingWriter()
	tracker := jobs.NewMemoryTracker()

	leads := batchLeads(1)
	leads[0].Email = "existing@lead.example"
	leads[0].EmailStatus = model.EmailStatusVerified
	job := tracker.Create(1, leads[0].Name)

	results, err := newTestOrchestrator(w, writer, tracker).Run(context.Background(), job.ID, leads)
	require.NoError(t, err)

	assert.Equal(t, "existing@lead.example", results[0].Email)
	assert.Empty(t, writer.updates)
}

func TestOrchestrator_ContextCancelledMarksJobCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newTestWaterfall(&fakeVerifier{score: 90}, &leadKeyedProvider{})
	tracker := jobs.NewMemoryTracker()
	leads := batchLeads(3)
	job := tracker.Create(len(leads), leads[0].Name)

	_, err := newTestOrchestrator(w, newRecordingWriter(), tracker).Run(ctx, job.ID, leads)
	require.NoError(t, err)

	final, _ := tracker.Get(job.ID)
	assert.Equal(t, model.EnrichmentCancelled, final.Status)
}
