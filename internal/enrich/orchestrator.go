package enrich

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geoleads/leadgen-cli/internal/jobs"
	"github.com/geoleads/leadgen-cli/internal/model"
)

// DefaultLeadDelay spaces consecutive leads in sequential mode and
// consecutive chunks in parallel mode.
const DefaultLeadDelay = time.Second

// LeadWriter persists the outcome of one lead's enrichment. Satisfied
// by the lead store.
type LeadWriter interface {
	UpdateLeadEmail(ctx context.Context, externalID, email string, status model.EmailStatus) error
}

// Orchestrator runs the waterfall across a batch of leads, either one
// at a time or in bounded parallel chunks, persisting per-lead results
// and reporting progress through the job tracker.
type Orchestrator struct {
	waterfall *Waterfall
	store     LeadWriter
	tracker   jobs.Tracker
	chunkSize int
	delay     time.Duration
	log       *zap.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithChunkSize enables parallel mode with the given chunk width.
// Values below 2 keep sequential mode.
func WithChunkSize(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.chunkSize = n }
}

// WithLeadDelay overrides the pause between leads or chunks. Zero
// disables the pause.
func WithLeadDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.delay = d }
}

// NewOrchestrator builds a batch orchestrator. Sequential mode by
// default.
func NewOrchestrator(w *Waterfall, store LeadWriter, tracker jobs.Tracker, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		waterfall: w,
		store:     store,
		tracker:   tracker,
		chunkSize: 1,
		delay:     DefaultLeadDelay,
		log:       zap.L().With(zap.String("component", "enrich.orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run enriches every lead in the batch under the given job ID. One
// lead failing never aborts the batch; each failure degrades to a
// not-found result for that lead alone. Run returns early without
// error when the job is cancelled through the tracker, leaving already
// persisted results in place.
func (o *Orchestrator) Run(ctx context.Context, jobID string, leads []model.Lead) ([]Result, error) {
	results := make([]Result, len(leads))

	var err error
	if o.chunkSize > 1 {
		err = o.runChunked(ctx, jobID, leads, results)
	} else {
		err = o.runSequential(ctx, jobID, leads, results)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			o.tracker.Cancel(jobID)
			return results, nil
		}
		o.tracker.Fail(jobID, err.Error())
		return results, err
	}

	o.tracker.Complete(jobID, summarize(leads, results))
	return results, nil
}

// summarize pairs each lead with its waterfall outcome for the job's
// result snapshot.
func summarize(leads []model.Lead, results []Result) []model.EnrichmentResultSummary {
	out := make([]model.EnrichmentResultSummary, len(leads))
	for i, l := range leads {
		email := results[i].Email
		if email == model.NotFoundSentinel {
			email = ""
		}
		out[i] = model.EnrichmentResultSummary{
			LeadID: l.ExternalID,
			Name:   l.Name,
			Email:  email,
			Status: results[i].Status,
			Source: results[i].Source,
		}
	}
	return out
}

func (o *Orchestrator) runSequential(ctx context.Context, jobID string, leads []model.Lead, results []Result) error {
	for i, lead := range leads {
		if o.tracker.IsCancelled(jobID) {
			o.log.Info("job cancelled", zap.String("job", jobID), zap.Int("completed", i))
			return nil
		}

		results[i] = o.enrichOne(ctx, lead)
		if err := ctx.Err(); err != nil {
			return err
		}
		o.tracker.UpdateProgress(jobID, i+1, len(leads), lead.Name)

		if i < len(leads)-1 && o.delay > 0 {
			if err := sleep(ctx, o.delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) runChunked(ctx context.Context, jobID string, leads []model.Lead, results []Result) error {
	for start := 0; start < len(leads); start += o.chunkSize {
		if o.tracker.IsCancelled(jobID) {
			o.log.Info("job cancelled", zap.String("job", jobID), zap.Int("completed", start))
			return nil
		}

		end := start + o.chunkSize
		if end > len(leads) {
			end = len(leads)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = o.enrichOne(gctx, leads[i])
				return nil
			})
		}
		// Workers swallow their own failures, so Wait only surfaces
		// context cancellation.
		if err := g.Wait(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		o.tracker.UpdateProgress(jobID, end, len(leads), leads[end-1].Name)

		if end < len(leads) && o.delay > 0 {
			if err := sleep(ctx, o.delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// enrichOne runs the waterfall for a single lead and persists the
// outcome. Both waterfall and persistence failures are contained here.
func (o *Orchestrator) enrichOne(ctx context.Context, lead model.Lead) Result {
	res, err := o.waterfall.Enrich(ctx, lead)
	if err != nil {
		// Context cancellation; the batch loop will notice ctx.Err.
		return res
	}

	email := res.Email
	if email == model.NotFoundSentinel {
		email = ""
	}
	if res.Source == "existing" {
		// Already enriched; nothing to write.
		return res
	}
	if err := o.store.UpdateLeadEmail(ctx, lead.ExternalID, email, res.Status); err != nil {
		o.log.Error("failed to persist enrichment result",
			zap.String("lead", lead.ExternalID),
			zap.Error(err),
		)
	}
	return res
}
