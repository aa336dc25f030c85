package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/geoleads/leadgen-cli/internal/db"
	"github.com/geoleads/leadgen-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// leadColumns is the column order used by every lead query; scanLead
// must stay in sync with it.
var leadColumns = []string{
	"external_id", "name", "website", "phone", "email", "email_status",
	"address", "city", "country", "location", "business_type",
	"created_by", "record_owner", "currency", "source",
	"campaign", "campaign_status", "upload_status",
	"created_at", "last_modified",
}

// leadUpdateColumns are the columns refreshed when a search re-discovers
// an existing lead. Email fields are deliberately absent so a re-run
// never clobbers enrichment results.
var leadUpdateColumns = []string{
	"name", "website", "phone", "address", "city", "country",
	"location", "business_type", "last_modified",
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_lead":               `SELECT ` + leadColumnList + ` FROM leads WHERE external_id = $1`,
	"update_lead_email":      `UPDATE leads SET email = $1, email_status = $2, last_modified = $3 WHERE external_id = $4`,
	"update_search_progress": `UPDATE search_history SET processed_count = $1 WHERE id = $2`,
}

const leadColumnList = `external_id, name, website, phone, email, email_status, address, city, country, location, business_type, created_by, record_owner, currency, source, campaign, campaign_status, upload_status, created_at, last_modified`

const searchJobColumnList = `id, search_method, status, coordinates, radius, city, country, categories, processed_count, total_results, error_message, results, created_by, currency, created_at, processing_started_at, completed_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	external_id     TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	website         TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	email_status    TEXT NOT NULL DEFAULT 'unverified',
	address         TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	country         TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	business_type   TEXT NOT NULL DEFAULT '',
	created_by      TEXT NOT NULL DEFAULT '',
	record_owner    TEXT NOT NULL DEFAULT '',
	currency        TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT '',
	campaign        TEXT NOT NULL DEFAULT '',
	campaign_status TEXT NOT NULL DEFAULT '',
	upload_status   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_modified   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_email_status ON leads(email_status);
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads(city);
CREATE INDEX IF NOT EXISTS idx_leads_business_type ON leads(business_type);

CREATE TABLE IF NOT EXISTS search_history (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	search_method         TEXT NOT NULL,
	status                TEXT NOT NULL DEFAULT 'pending',
	coordinates           TEXT NOT NULL DEFAULT '',
	radius                INTEGER NOT NULL DEFAULT 0,
	city                  TEXT NOT NULL DEFAULT '',
	country               TEXT NOT NULL DEFAULT '',
	categories            JSONB NOT NULL DEFAULT '[]',
	processed_count       INTEGER NOT NULL DEFAULT 0,
	total_results         INTEGER NOT NULL DEFAULT 0,
	error_message         TEXT NOT NULL DEFAULT '',
	results               JSONB,
	created_by            TEXT NOT NULL DEFAULT '',
	currency              TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	processing_started_at TIMESTAMPTZ,
	completed_at          TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_search_history_status ON search_history(status);
CREATE INDEX IF NOT EXISTS idx_search_history_created_at ON search_history(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertLead(ctx context.Context, lead *model.Lead) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, `+leadColumnList+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 ON CONFLICT (external_id) DO UPDATE SET
			name = EXCLUDED.name,
			website = EXCLUDED.website,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			location = EXCLUDED.location,
			business_type = EXCLUDED.business_type,
			last_modified = EXCLUDED.last_modified`,
		uuid.New().String(),
		lead.ExternalID, lead.Name, lead.Website, lead.Phone, lead.Email, string(lead.EmailStatus),
		lead.Address, lead.City, lead.Country, lead.Location, lead.BusinessType,
		lead.CreatedBy, lead.RecordOwner, lead.Currency, lead.Source,
		lead.Campaign, lead.CampaignStatus, lead.UploadStatus,
		lead.CreatedAt, lead.LastModified,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert lead %s", lead.ExternalID)
	}
	return nil
}

// UpsertLeads bulk-upserts a search result batch through a temp table
// and COPY, keyed on external_id. Returns the number of rows written.
func (s *PostgresStore) UpsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	columns := append([]string{"id"}, leadColumns...)
	rows := make([][]any, len(leads))
	for i, l := range leads {
		rows[i] = []any{
			uuid.New().String(),
			l.ExternalID, l.Name, l.Website, l.Phone, l.Email, string(l.EmailStatus),
			l.Address, l.City, l.Country, l.Location, l.BusinessType,
			l.CreatedBy, l.RecordOwner, l.Currency, l.Source,
			l.Campaign, l.CampaignStatus, l.UploadStatus,
			l.CreatedAt, l.LastModified,
		}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      columns,
		ConflictKeys: []string{"external_id"},
		UpdateCols:   leadUpdateColumns,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk upsert leads")
	}
	return int(n), nil
}

func (s *PostgresStore) GetLead(ctx context.Context, externalID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumnList+` FROM leads WHERE external_id = $1`,
		externalID,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", externalID)
	}
	return lead, nil
}

func (s *PostgresStore) GetLeadsByIDs(ctx context.Context, externalIDs []string) ([]model.Lead, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumnList+` FROM leads WHERE external_id = ANY($1) ORDER BY created_at`,
		externalIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get leads by ids")
	}
	defer rows.Close()

	return collectLeads(rows)
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumnList + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.MissingEmail {
		query += ` AND (email = '' OR email = 'not_found' OR email_status = 'not_found')`
	}
	if filter.City != "" {
		query += fmt.Sprintf(` AND city = $%d`, argIdx)
		args = append(args, filter.City)
		argIdx++
	}
	if filter.BusinessType != "" {
		query += fmt.Sprintf(` AND business_type = $%d`, argIdx)
		args = append(args, filter.BusinessType)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	return collectLeads(rows)
}

func (s *PostgresStore) UpdateLeadEmail(ctx context.Context, externalID, email string, status model.EmailStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET email = $1, email_status = $2, last_modified = $3 WHERE external_id = $4`,
		email, string(status), time.Now().UTC(), externalID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead email %s", externalID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", externalID)
	}
	return nil
}

func (s *PostgresStore) CreateSearchJob(ctx context.Context, job *model.SearchJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.Status = model.SearchStatusPending

	categoriesJSON, err := json.Marshal(job.Categories)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal categories")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO search_history (id, search_method, status, coordinates, radius, city, country, categories, created_by, currency, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, string(job.Method), string(job.Status), job.Coordinates, job.Radius,
		job.City, job.Country, categoriesJSON, job.CreatedBy, job.Currency, job.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert search job")
	}
	return nil
}

func (s *PostgresStore) GetSearchJob(ctx context.Context, id string) (*model.SearchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+searchJobColumnList+` FROM search_history WHERE id = $1`,
		id,
	)
	job, err := scanSearchJob(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get search job %s", id)
	}
	return job, nil
}

func (s *PostgresStore) ListSearchJobs(ctx context.Context, limit int) ([]model.SearchJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+searchJobColumnList+` FROM search_history ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list search jobs")
	}
	defer rows.Close()

	var jobs []model.SearchJob
	for rows.Next() {
		job, err := scanSearchJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan search job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list search jobs")
}

// StartSearchJob moves a pending job to in_process and stamps the
// processing start time. A job in any other state is left untouched and
// reported as a conflict.
func (s *PostgresStore) StartSearchJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE search_history SET status = $1, processing_started_at = $2 WHERE id = $3 AND status = $4`,
		string(model.SearchStatusInProcess), time.Now().UTC(), id, string(model.SearchStatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: start search job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("search job not pending: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateSearchProgress(ctx context.Context, id string, processed int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE search_history SET processed_count = $1 WHERE id = $2`,
		processed, id,
	)
	return eris.Wrapf(err, "postgres: update search progress %s", id)
}

func (s *PostgresStore) CompleteSearchJob(ctx context.Context, id string, results []model.SearchResultSummary) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal results")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE search_history SET status = $1, total_results = $2, results = $3, completed_at = $4 WHERE id = $5`,
		string(model.SearchStatusCompleted), len(results), resultsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete search job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("search job not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) FailSearchJob(ctx context.Context, id string, msg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE search_history SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4`,
		string(model.SearchStatusFailed), msg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail search job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("search job not found: %s", id)
	}
	return nil
}

// ResetSearchJob returns a failed job to pending with zeroed progress
// so it can be retried from scratch. Only failed jobs are eligible.
func (s *PostgresStore) ResetSearchJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE search_history SET status = $1, processed_count = 0, total_results = 0, error_message = '', results = NULL, processing_started_at = NULL, completed_at = NULL
		 WHERE id = $2 AND status = $3`,
		string(model.SearchStatusPending), id, string(model.SearchStatusFailed),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reset search job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("search job not failed: %s", id)
	}
	return nil
}

// scanLead reads one lead row in leadColumnList order.
func scanLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var status string
	err := row.Scan(
		&l.ExternalID, &l.Name, &l.Website, &l.Phone, &l.Email, &status,
		&l.Address, &l.City, &l.Country, &l.Location, &l.BusinessType,
		&l.CreatedBy, &l.RecordOwner, &l.Currency, &l.Source,
		&l.Campaign, &l.CampaignStatus, &l.UploadStatus,
		&l.CreatedAt, &l.LastModified,
	)
	if err != nil {
		return nil, err
	}
	l.EmailStatus = model.EmailStatus(status)
	return &l, nil
}

func collectLeads(rows pgx.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: collect leads")
}

// scanSearchJob reads one search_history row in searchJobColumnList order.
func scanSearchJob(row pgx.Row) (*model.SearchJob, error) {
	var j model.SearchJob
	var method, status string
	var categoriesJSON []byte
	var resultsJSON *[]byte

	err := row.Scan(
		&j.ID, &method, &status, &j.Coordinates, &j.Radius, &j.City, &j.Country,
		&categoriesJSON, &j.ProcessedCount, &j.TotalResults, &j.ErrorMessage,
		&resultsJSON, &j.CreatedBy, &j.Currency, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Method = model.SearchMethod(method)
	j.Status = model.SearchJobStatus(status)
	if err := json.Unmarshal(categoriesJSON, &j.Categories); err != nil {
		return nil, eris.Wrap(err, "unmarshal categories")
	}
	if resultsJSON != nil {
		if err := json.Unmarshal(*resultsJSON, &j.Results); err != nil {
			return nil, eris.Wrap(err, "unmarshal results")
		}
	}
	return &j, nil
}
