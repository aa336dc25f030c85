package enrich

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/geoleads/leadgen-cli/internal/model"
)

// DefaultVerifiedThreshold is the minimum verifier confidence score for
// an address to be stored as verified. Anything below it is invalid.
const DefaultVerifiedThreshold = 82

// DefaultProviderDelay spaces consecutive provider attempts for one
// lead, keeping burst pressure off the providers' rate limits.
const DefaultProviderDelay = time.Second

// Waterfall tries each provider in order until one yields a usable
// address, verifies it, and stops. Providers are never consulted past
// the first usable candidate.
type Waterfall struct {
	providers []Provider
	verifier  Verifier
	threshold int
	delay     time.Duration
	log       *zap.Logger
}

// WaterfallOption configures a Waterfall.
type WaterfallOption func(*Waterfall)

// WithThreshold overrides the verified confidence cutoff.
func WithThreshold(threshold int) WaterfallOption {
	return func(w *Waterfall) { w.threshold = threshold }
}

// WithProviderDelay overrides the pause between provider attempts.
// Zero disables the pause.
func WithProviderDelay(d time.Duration) WaterfallOption {
	return func(w *Waterfall) { w.delay = d }
}

// NewWaterfall builds a waterfall over the given providers, tried in
// the order given.
func NewWaterfall(providers []Provider, verifier Verifier, opts ...WaterfallOption) *Waterfall {
	w := &Waterfall{
		providers: providers,
		verifier:  verifier,
		threshold: DefaultVerifiedThreshold,
		delay:     DefaultProviderDelay,
		log:       zap.L().With(zap.String("component", "enrich.waterfall")),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enrich runs the waterfall for a single lead. It never fails on a
// provider error; the only error it returns is context cancellation.
//
// Leads that already carry an address are returned untouched with zero
// provider calls, and leads without a website are marked not found
// immediately since every provider needs a domain to query.
func (w *Waterfall) Enrich(ctx context.Context, lead model.Lead) (Result, error) {
	if lead.HasEmail() {
		status := lead.EmailStatus
		if status == "" {
			status = model.EmailStatusUnverified
		}
		return Result{Email: lead.Email, Status: status, Source: "existing"}, nil
	}
	if strings.TrimSpace(lead.Website) == "" {
		w.log.Debug("no website, skipping providers", zap.String("lead", lead.ExternalID))
		return notFound(), nil
	}

	for i, p := range w.providers {
		if i > 0 && w.delay > 0 {
			if err := sleep(ctx, w.delay); err != nil {
				return notFound(), err
			}
		}

		email, err := p.Lookup(ctx, lead)
		if err != nil {
			if ctx.Err() != nil {
				return notFound(), ctx.Err()
			}
			w.log.Warn("provider lookup failed",
				zap.String("provider", p.Name()),
				zap.String("lead", lead.ExternalID),
				zap.Error(err),
			)
			continue
		}
		if !usableEmail(email) {
			continue
		}

		status, score := w.verify(ctx, email)
		w.log.Info("email found",
			zap.String("provider", p.Name()),
			zap.String("lead", lead.ExternalID),
			zap.String("status", string(status)),
			zap.Int("score", score),
		)
		return Result{Email: email, Status: status, Source: p.Name(), Score: score}, nil
	}

	if ctx.Err() != nil {
		return notFound(), ctx.Err()
	}
	return notFound(), nil
}

// verify scores a candidate through the verifier. A verifier outage
// must not discard an address a provider already found, so failures
// degrade to unverified rather than dropping the result.
func (w *Waterfall) verify(ctx context.Context, email string) (model.EmailStatus, int) {
	v, err := w.verifier.Verify(ctx, email)
	if err != nil {
		w.log.Warn("verification failed, keeping as unverified", zap.Error(err))
		return model.EmailStatusUnverified, 0
	}
	if v.Score >= w.threshold {
		return model.EmailStatusVerified, v.Score
	}
	return model.EmailStatusInvalid, v.Score
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
