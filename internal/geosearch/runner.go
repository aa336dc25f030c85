package geosearch

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/geoleads/leadgen-cli/internal/model"
	"github.com/geoleads/leadgen-cli/internal/store"
)

// Runner executes one search job end to end: claim the job, run the
// spatial engine, resolve details for every unique place, persist the
// leads, and record the outcome on the job.
type Runner struct {
	engine   *Engine
	resolver *Resolver
	store    store.Store
	log      *zap.Logger
}

// NewRunner creates a search job runner.
func NewRunner(engine *Engine, resolver *Resolver, st store.Store) *Runner {
	return &Runner{
		engine:   engine,
		resolver: resolver,
		store:    st,
		log:      zap.L().With(zap.String("component", "geosearch.runner")),
	}
}

// Execute runs the pending job with the given ID. The job moves to
// in_process immediately and ends completed or failed; a failure
// message is recorded on the job for the retry path.
func (r *Runner) Execute(ctx context.Context, jobID string) error {
	job, err := r.store.GetSearchJob(ctx, jobID)
	if err != nil {
		return eris.Wrapf(err, "geosearch: load job %s", jobID)
	}
	if err := r.store.StartSearchJob(ctx, jobID); err != nil {
		return err
	}

	raw, err := r.discover(ctx, job)
	if err != nil {
		if failErr := r.store.FailSearchJob(ctx, jobID, err.Error()); failErr != nil {
			r.log.Error("failed to record job failure", zap.String("job", jobID), zap.Error(failErr))
		}
		return eris.Wrapf(err, "geosearch: job %s", jobID)
	}

	meta := LeadMeta{CreatedBy: job.CreatedBy, Currency: job.Currency}
	leads := make([]model.Lead, 0, len(raw))
	for _, place := range raw {
		lead, err := r.resolver.Resolve(ctx, place.PlaceID, place.Category, meta)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			// Detail lookup exhausted its retries; keep the lead with
			// the fields the search response already carried.
			r.log.Warn("detail resolution failed, using search fields",
				zap.String("place_id", place.PlaceID),
				zap.Error(err),
			)
			lead = r.resolver.FromSearchResult(place, meta)
		}
		leads = append(leads, *lead)
	}
	if err := ctx.Err(); err != nil {
		if failErr := r.store.FailSearchJob(ctx, jobID, err.Error()); failErr != nil {
			r.log.Error("failed to record job failure", zap.String("job", jobID), zap.Error(failErr))
		}
		return eris.Wrapf(err, "geosearch: job %s", jobID)
	}

	if _, err := r.store.UpsertLeads(ctx, leads); err != nil {
		if failErr := r.store.FailSearchJob(ctx, jobID, err.Error()); failErr != nil {
			r.log.Error("failed to record job failure", zap.String("job", jobID), zap.Error(failErr))
		}
		return eris.Wrapf(err, "geosearch: persist leads for job %s", jobID)
	}

	summaries := make([]model.SearchResultSummary, len(leads))
	for i, l := range leads {
		summaries[i] = model.SearchResultSummary{
			LeadID:   l.ExternalID,
			Name:     l.Name,
			Address:  l.Address,
			City:     l.City,
			Phone:    l.Phone,
			Website:  l.Website,
			Type:     l.BusinessType,
			Location: l.Location,
		}
	}
	if err := r.store.CompleteSearchJob(ctx, jobID, summaries); err != nil {
		return eris.Wrapf(err, "geosearch: complete job %s", jobID)
	}

	r.log.Info("search job complete",
		zap.String("job", jobID),
		zap.Int("leads", len(leads)),
	)
	return nil
}

// Retry resets a failed job to pending and executes it again.
func (r *Runner) Retry(ctx context.Context, jobID string) error {
	if err := r.store.ResetSearchJob(ctx, jobID); err != nil {
		return err
	}
	return r.Execute(ctx, jobID)
}

// discover runs the engine strategy matching the job's search method,
// persisting per-point progress as it goes.
func (r *Runner) discover(ctx context.Context, job *model.SearchJob) ([]model.RawPlace, error) {
	progress := func(done, total int, message string) {
		if err := r.store.UpdateSearchProgress(ctx, job.ID, done); err != nil {
			r.log.Warn("failed to persist progress", zap.String("job", job.ID), zap.Error(err))
		}
		r.log.Debug(message, zap.Int("done", done), zap.Int("total", total))
	}

	switch job.Method {
	case model.SearchMethodCoordinates:
		center, err := ParsePoint(job.Coordinates)
		if err != nil {
			return nil, err
		}
		return r.engine.SearchCoordinates(ctx, center, job.Radius, job.Categories, progress)
	case model.SearchMethodCity:
		return r.engine.SearchCity(ctx, job.City, job.Country, job.Categories, progress)
	default:
		return nil, eris.Errorf("geosearch: unknown search method %q", job.Method)
	}
}
