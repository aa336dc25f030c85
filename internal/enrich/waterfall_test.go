package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoleads/leadgen-cli/internal/model"
	"github.com/geoleads/leadgen-cli/pkg/hunter"
)

// fakeProvider is a scripted waterfall step that records whether it was
// consulted.
type fakeProvider struct {
	name   string
	email  string
	err    error
	called int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Lookup(ctx context.Context, lead model.Lead) (string, error) {
	p.called++
	return p.email, p.err
}

type fakeVerifier struct {
	score  int
	err    error
	called int
}

func (v *fakeVerifier) Verify(ctx context.Context, email string) (*hunter.Verification, error) {
	v.called++
	if v.err != nil {
		return nil, v.err
	}
	return &hunter.Verification{Result: "deliverable", Score: v.score}, nil
}

func websiteLead() model.Lead {
	return model.Lead{ExternalID: "ID1", Name: "Acme Cafe", Website: "https://acmecafe.example"}
}

func newTestWaterfall(verifier Verifier, providers ...Provider) *Waterfall {
	return NewWaterfall(providers, verifier, WithProviderDelay(0))
}

func TestWaterfall_FirstProviderWins(t *testing.T) {
	first := &fakeProvider{name: "scraper", email: "info@acmecafe.example"}
	second := &fakeProvider{name: "hunter", email: "other@acmecafe.example"}
	verifier := &fakeVerifier{score: 95}

	w := newTestWaterfall(verifier, first, second)
	res, err := w.Enrich(context.Background(), websiteLead())
	require.NoError(t, err)

	assert.Equal(t, "info@acmecafe.example", res.Email)
	assert.Equal(t, model.EmailStatusVerified, res.Status)
	assert.Equal(t, "scraper", res.Source)
	assert.Equal(t, 95, res.Score)

	// The waterfall stops at the first usable candidate.
	assert.Equal(t, 1, first.called)
	assert.Zero(t, second.called)
	assert.Equal(t, 1, verifier.called)
}

func TestWaterfall_FallsThroughOnEmptyAndError(t *testing.T) {
	empty := &fakeProvider{name: "scraper"}
	failing := &fakeProvider{name: "hunter", err: errors.New("rate limited")}
	last := &fakeProvider{name: "snov", email: "contact@acmecafe.example"}

	w := newTestWaterfall(&fakeVerifier{score: 90}, empty, failing, last)
	res, err := w.Enrich(context.Background(), websiteLead())
	require.NoError(t, err)

	assert.Equal(t, "contact@acmecafe.example", res.Email)
	assert.Equal(t, "snov", res.Source)
	assert.Equal(t, 1, empty.called)
	assert.Equal(t, 1, failing.called)
	assert.Equal(t, 1, last.called)
}

func TestWaterfall_SentinelAnswersAreNotEmails(t *testing.T) {
	sentinel := &fakeProvider{name: "scraper", email: "No email found"}
	real := &fakeProvider{name: "hunter", email: "info@acmecafe.example"}
	verifier := &fakeVerifier{score: 90}

	w := newTestWaterfall(verifier, sentinel, real)
	res, err := w.Enrich(context.Background(), websiteLead())
	require.NoError(t, err)

	assert.Equal(t, "info@acmecafe.example", res.Email)
	assert.Equal(t, "hunter", res.Source)
	// The sentinel never reached the verifier.
	assert.Equal(t, 1, verifier.called)
}

func TestWaterfall_ThresholdBoundary(t *testing.T) {
	provider := &fakeProvider{name: "hunter", email: "info@acmecafe.example"}

	res, err := newTestWaterfall(&fakeVerifier{score: 82}, provider).Enrich(context.Background(), websiteLead())
	require.NoError(t, err)
	assert.Equal(t, model.EmailStatusVerified, res.Status)

	res, err = newTestWaterfall(&fakeVerifier{score: 81}, provider).Enrich(context.Background(), websiteLead())
	require.NoError(t, err)
	assert.Equal(t, model.EmailStatusInvalid, res.Status)
	assert.Equal(t, "info@acmecafe.example", res.Email)
}

func TestWaterfall_VerifierFailureKeepsEmailUnverified(t *testing.T) {
	provider := &fakeProvider{name: "hunter", email: "info@acmecafe.example"}
	verifier := &fakeVerifier{err: errors.New("verifier down")}

	res, err := newTestWaterfall(verifier, provider).Enrich(context.Background(), websiteLead())
	require.NoError(t, err)

	assert.Equal(t, "info@acmecafe.example", res.Email)
	assert.Equal(t, model.EmailStatusUnverified, res.Status)
	assert.Zero(t, res.Score)
}

func TestWaterfall_SkipsLeadWithExistingEmail(t *testing.T) {
	provider := &fakeProvider{name: "scraper", email: "new@acmecafe.example"}
	verifier := &fakeVerifier{score: 99}

	lead := websiteLead()
	lead.Email = "existing@acmecafe.example"
	lead.EmailStatus = model.EmailStatusVerified

	res, err := newTestWaterfall(verifier, provider).Enrich(context.Background(), lead)
	require.NoError(t, err)

	assert.Equal(t, "existing@acmecafe.example", res.Email)
	assert.Equal(t, model.EmailStatusVerified, res.Status)
	assert.Equal(t, "existing", res.Source)
	assert.Zero(t, provider.called)
	assert.Zero(t, verifier.called)
}

func TestWaterfall_NotFoundSentinelDoesNotCountAsExisting(t *testing.T) {
	provider := &fakeProvider{name: "scraper", email: "info@acmecafe.example"}

	lead := websiteLead()
	lead.Email = model.NotFoundSentinel
	lead.EmailStatus = model.EmailStatusNotFound

	res, err := newTestWaterfall(&fakeVerifier{score: 90}, provider).Enrich(context.Background(), lead)
	require.NoError(t, err)

	assert.Equal(t, "info@acmecafe.example", res.Email)
	assert.Equal(t, 1, provider.called)
}

func TestWaterfall_NoWebsiteShortCircuits(t *testing.T) {
	provider := &fakeProvider{name: "scraper", email: "info@acmecafe.example"}

	lead := model.Lead{ExternalID: "ID2", Name: "No Site Diner"}
	res, err := newTestWaterfall(&fakeVerifier{score: 90}, provider).Enrich(context.Background(), lead)
	require.NoError(t, err)

	assert.Equal(t, model.NotFoundSentinel, res.Email)
	assert.Equal(t, model.EmailStatusNotFound, res.Status)
	assert.Zero(t, provider.called)
}

func TestWaterfall_AllProvidersEmpty(t *testing.T) {
	w := newTestWaterfall(&fakeVerifier{score: 90},
		&fakeProvider{name: "scraper"},
		&fakeProvider{name: "hunter"},
		&fakeProvider{name: "snov"},
	)

	res, err := w.Enrich(context.Background(), websiteLead())
	require.NoError(t, err)

	assert.Equal(t, model.NotFoundSentinel, res.Email)
	assert.Equal(t, model.EmailStatusNotFound, res.Status)
	assert.Equal(t, "none", res.Source)
}

func TestWaterfall_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWaterfall([]Provider{
		&fakeProvider{name: "scraper"},
		&fakeProvider{name: "hunter"},
	}, &fakeVerifier{score: 90})

	_, err := w.Enrich(ctx, websiteLead())
	assert.ErrorIs(t, err, context.Canceled)
}
