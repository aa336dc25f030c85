package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/geoleads/leadgen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for
// single-user CLI runs; the HTTP surface should run on Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
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
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	last_modified   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_email_status ON leads(email_status);
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads(city);

CREATE TABLE IF NOT EXISTS search_history (
	id                    TEXT PRIMARY KEY,
	search_method         TEXT NOT NULL,
	status                TEXT NOT NULL DEFAULT 'pending',
	coordinates           TEXT NOT NULL DEFAULT '',
	radius                INTEGER NOT NULL DEFAULT 0,
	city                  TEXT NOT NULL DEFAULT '',
	country               TEXT NOT NULL DEFAULT '',
	categories            TEXT NOT NULL DEFAULT '[]',
	processed_count       INTEGER NOT NULL DEFAULT 0,
	total_results         INTEGER NOT NULL DEFAULT 0,
	error_message         TEXT NOT NULL DEFAULT '',
	results               TEXT,
	created_by            TEXT NOT NULL DEFAULT '',
	currency              TEXT NOT NULL DEFAULT '',
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	processing_started_at DATETIME,
	completed_at          DATETIME
);

CREATE INDEX IF NOT EXISTS idx_search_history_status ON search_history(status);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertLead(ctx context.Context, lead *model.Lead) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, `+leadColumnList+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (external_id) DO UPDATE SET
			name = excluded.name,
			website = excluded.website,
			phone = excluded.phone,
			address = excluded.address,
			city = excluded.city,
			country = excluded.country,
			location = excluded.location,
			business_type = excluded.business_type,
			last_modified = excluded.last_modified`,
		uuid.New().String(),
		lead.ExternalID, lead.Name, lead.Website, lead.Phone, lead.Email, string(lead.EmailStatus),
		lead.Address, lead.City, lead.Country, lead.Location, lead.BusinessType,
		lead.CreatedBy, lead.RecordOwner, lead.Currency, lead.Source,
		lead.Campaign, lead.CampaignStatus, lead.UploadStatus,
		lead.CreatedAt, lead.LastModified,
	)
	return eris.Wrapf(err, "sqlite: upsert lead %s", lead.ExternalID)
}

func (s *SQLiteStore) UpsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	count := 0
	for i := range leads {
		l := leads[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO leads (id, `+leadColumnList+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (external_id) DO UPDATE SET
				name = excluded.name,
				website = excluded.website,
				phone = excluded.phone,
				address = excluded.address,
				city = excluded.city,
				country = excluded.country,
				location = excluded.location,
				business_type = excluded.business_type,
				last_modified = excluded.last_modified`,
			uuid.New().String(),
			l.ExternalID, l.Name, l.Website, l.Phone, l.Email, string(l.EmailStatus),
			l.Address, l.City, l.Country, l.Location, l.BusinessType,
			l.CreatedBy, l.RecordOwner, l.Currency, l.Source,
			l.Campaign, l.CampaignStatus, l.UploadStatus,
			l.CreatedAt, l.LastModified,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert lead %s", l.ExternalID)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return count, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, externalID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumnList+` FROM leads WHERE external_id = ?`,
		externalID,
	)
	lead, err := scanLeadSQL(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", externalID)
	}
	return lead, nil
}

func (s *SQLiteStore) GetLeadsByIDs(ctx context.Context, externalIDs []string) ([]model.Lead, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(externalIDs)), ",")
	args := make([]any, len(externalIDs))
	for i, id := range externalIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumnList+` FROM leads WHERE external_id IN (`+placeholders+`) ORDER BY created_at`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get leads by ids")
	}
	defer rows.Close()

	return collectLeadsSQL(rows)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumnList + ` FROM leads WHERE true`
	args := []any{}

	if filter.MissingEmail {
		query += ` AND (email = '' OR email = 'not_found' OR email_status = 'not_found')`
	}
	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	if filter.BusinessType != "" {
		query += ` AND business_type = ?`
		args = append(args, filter.BusinessType)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	return collectLeadsSQL(rows)
}

func (s *SQLiteStore) UpdateLeadEmail(ctx context.Context, externalID, email string, status model.EmailStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET email = ?, email_status = ?, last_modified = ? WHERE external_id = ?`,
		email, string(status), time.Now().UTC(), externalID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead email %s", externalID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("lead not found: %s", externalID)
	}
	return nil
}

func (s *SQLiteStore) CreateSearchJob(ctx context.Context, job *model.SearchJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.Status = model.SearchStatusPending

	categoriesJSON, err := json.Marshal(job.Categories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal categories")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_history (id, search_method, status, coordinates, radius, city, country, categories, created_by, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Method), string(job.Status), job.Coordinates, job.Radius,
		job.City, job.Country, string(categoriesJSON), job.CreatedBy, job.Currency, job.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert search job")
}

func (s *SQLiteStore) GetSearchJob(ctx context.Context, id string) (*model.SearchJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+searchJobColumnList+` FROM search_history WHERE id = ?`,
		id,
	)
	job, err := scanSearchJobSQL(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get search job %s", id)
	}
	return job, nil
}

func (s *SQLiteStore) ListSearchJobs(ctx context.Context, limit int) ([]model.SearchJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+searchJobColumnList+` FROM search_history ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list search jobs")
	}
	defer rows.Close()

	var jobs []model.SearchJob
	for rows.Next() {
		job, err := scanSearchJobSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list search jobs")
}

func (s *SQLiteStore) StartSearchJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_history SET status = ?, processing_started_at = ? WHERE id = ? AND status = ?`,
		string(model.SearchStatusInProcess), time.Now().UTC(), id, string(model.SearchStatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: start search job %s", id)
	}
	return requireRow(res, fmt.Sprintf("search job not pending: %s", id))
}

func (s *SQLiteStore) UpdateSearchProgress(ctx context.Context, id string, processed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE search_history SET processed_count = ? WHERE id = ?`,
		processed, id,
	)
	return eris.Wrapf(err, "sqlite: update search progress %s", id)
}

func (s *SQLiteStore) CompleteSearchJob(ctx context.Context, id string, results []model.SearchResultSummary) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal results")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE search_history SET status = ?, total_results = ?, results = ?, completed_at = ? WHERE id = ?`,
		string(model.SearchStatusCompleted), len(results), string(resultsJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete search job %s", id)
	}
	return requireRow(res, fmt.Sprintf("search job not found: %s", id))
}

func (s *SQLiteStore) FailSearchJob(ctx context.Context, id string, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_history SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		string(model.SearchStatusFailed), msg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail search job %s", id)
	}
	return requireRow(res, fmt.Sprintf("search job not found: %s", id))
}

func (s *SQLiteStore) ResetSearchJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_history SET status = ?, processed_count = 0, total_results = 0, error_message = '', results = NULL, processing_started_at = NULL, completed_at = NULL
		 WHERE id = ? AND status = ?`,
		string(model.SearchStatusPending), id, string(model.SearchStatusFailed),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reset search job %s", id)
	}
	return requireRow(res, fmt.Sprintf("search job not failed: %s", id))
}

func requireRow(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.New(msg)
	}
	return nil
}

// sqlRow covers both *sql.Row and *sql.Rows.
type sqlRow interface {
	Scan(dest ...any) error
}

func scanLeadSQL(row sqlRow) (*model.Lead, error) {
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

func collectLeadsSQL(rows *sql.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		l, err := scanLeadSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: collect leads")
}

func scanSearchJobSQL(row sqlRow) (*model.SearchJob, error) {
	var j model.SearchJob
	var method, status, categoriesJSON string
	var resultsJSON sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&j.ID, &method, &status, &j.Coordinates, &j.Radius, &j.City, &j.Country,
		&categoriesJSON, &j.ProcessedCount, &j.TotalResults, &j.ErrorMessage,
		&resultsJSON, &j.CreatedBy, &j.Currency, &j.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Method = model.SearchMethod(method)
	j.Status = model.SearchJobStatus(status)
	if err := json.Unmarshal([]byte(categoriesJSON), &j.Categories); err != nil {
		return nil, eris.Wrap(err, "unmarshal categories")
	}
	if resultsJSON.Valid && resultsJSON.String != "" {
		if err := json.Unmarshal([]byte(resultsJSON.String), &j.Results); err != nil {
			return nil, eris.Wrap(err, "unmarshal results")
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return &j, nil
}
