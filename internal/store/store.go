// Package store persists leads and search history in PostgreSQL or
// SQLite behind a common interface.
package store

import (
	"context"

	"github.com/geoleads/leadgen-cli/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	MissingEmail bool   `json:"missing_email,omitempty"`
	City         string `json:"city,omitempty"`
	BusinessType string `json:"business_type,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// Store defines the persistence interface shared by the search engine,
// the enrichment orchestrator, and the HTTP surface.
type Store interface {
	// Leads
	UpsertLead(ctx context.Context, lead *model.Lead) error
	UpsertLeads(ctx context.Context, leads []model.Lead) (int, error)
	GetLead(ctx context.Context, externalID string) (*model.Lead, error)
	GetLeadsByIDs(ctx context.Context, externalIDs []string) ([]model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadEmail(ctx context.Context, externalID, email string, status model.EmailStatus) error

	// Search history
	CreateSearchJob(ctx context.Context, job *model.SearchJob) error
	GetSearchJob(ctx context.Context, id string) (*model.SearchJob, error)
	ListSearchJobs(ctx context.Context, limit int) ([]model.SearchJob, error)
	StartSearchJob(ctx context.Context, id string) error
	UpdateSearchProgress(ctx context.Context, id string, processed int) error
	CompleteSearchJob(ctx context.Context, id string, results []model.SearchResultSummary) error
	FailSearchJob(ctx context.Context, id string, msg string) error
	ResetSearchJob(ctx context.Context, id string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
