// Package enrich implements the provider-waterfall email enrichment
// engine and the batch orchestrator that fans leads through it.
package enrich

import (
	"context"
	"strings"

	"github.com/geoleads/leadgen-cli/internal/model"
	"github.com/geoleads/leadgen-cli/pkg/hunter"
	"github.com/geoleads/leadgen-cli/pkg/scraperfn"
	"github.com/geoleads/leadgen-cli/pkg/snov"
)

// Provider is one email source in the waterfall. Lookup returns a
// candidate address or "" when the provider has nothing for the lead;
// errors are treated as "try the next provider", never fatal.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, lead model.Lead) (string, error)
}

// Verifier checks the deliverability of a candidate email. Every
// candidate is verified through the same verifier regardless of which
// provider found it.
type Verifier interface {
	Verify(ctx context.Context, email string) (*hunter.Verification, error)
}

// Result is the transient outcome of one lead's waterfall run, folded
// into the lead's email and email_status columns.
type Result struct {
	Email  string            `json:"email"`
	Status model.EmailStatus `json:"email_status"`
	Source string            `json:"source"`
	Score  int               `json:"confidence_score,omitempty"`
}

// notFound is the terminal result when every provider came up empty.
func notFound() Result {
	return Result{
		Email:  model.NotFoundSentinel,
		Status: model.EmailStatusNotFound,
		Source: "none",
	}
}

// usableEmail filters the placeholder strings the providers emit in
// place of a real absence. Anything without an "@" or carrying a
// not-found phrase is treated as no result, so the waterfall continues
// instead of accepting a sentinel as an address.
func usableEmail(s string) bool {
	if !strings.Contains(s, "@") {
		return false
	}
	lower := strings.ToLower(s)
	for _, sentinel := range []string{"no email", "not found", "not_found", "unknown"} {
		if strings.Contains(lower, sentinel) {
			return false
		}
	}
	return true
}

// mainDomain extracts the registrable domain from a website URL:
// scheme and path stripped, last two dot-separated labels kept.
func mainDomain(website string) string {
	host := website
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	parts := strings.Split(host, ".")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}

// ScraperProvider crawls the lead's website directly via the deployed
// scraper function. Tried first: it finds addresses the index-backed
// providers miss and has no per-query credit cost.
type ScraperProvider struct {
	client scraperfn.Client
}

// NewScraperProvider wraps a scraper function client as a Provider.
func NewScraperProvider(client scraperfn.Client) *ScraperProvider {
	return &ScraperProvider{client: client}
}

func (p *ScraperProvider) Name() string { return "scraper" }

func (p *ScraperProvider) Lookup(ctx context.Context, lead model.Lead) (string, error) {
	return p.client.Scrape(ctx, lead.Website, lead.Name)
}

// HunterProvider queries the Hunter.io domain index.
type HunterProvider struct {
	client hunter.Client
}

// NewHunterProvider wraps a Hunter client as a Provider.
func NewHunterProvider(client hunter.Client) *HunterProvider {
	return &HunterProvider{client: client}
}

func (p *HunterProvider) Name() string { return "hunter" }

func (p *HunterProvider) Lookup(ctx context.Context, lead model.Lead) (string, error) {
	return p.client.DomainSearch(ctx, mainDomain(lead.Website))
}

// SnovProvider queries the Snov.io domain index.
type SnovProvider struct {
	client snov.Client
}

// NewSnovProvider wraps a Snov client as a Provider.
func NewSnovProvider(client snov.Client) *SnovProvider {
	return &SnovProvider{client: client}
}

func (p *SnovProvider) Name() string { return "snov" }

func (p *SnovProvider) Lookup(ctx context.Context, lead model.Lead) (string, error) {
	emails, err := p.client.DomainEmails(ctx, mainDomain(lead.Website))
	if err != nil {
		return "", err
	}
	if len(emails) == 0 {
		return "", nil
	}
	return emails[0], nil
}
