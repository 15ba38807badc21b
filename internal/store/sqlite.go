package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-enrichment/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection serialises writers; the pipeline appends logs from
	// several goroutines at once.
	db.SetMaxOpenConns(1)
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
	id                           TEXT PRIMARY KEY,
	full_name                    TEXT NOT NULL DEFAULT '',
	email                        TEXT,
	company                      TEXT NOT NULL DEFAULT '',
	city                         TEXT NOT NULL DEFAULT '',
	state                        TEXT NOT NULL DEFAULT '',
	zipcode                      TEXT NOT NULL DEFAULT '',
	category                     TEXT NOT NULL DEFAULT '',
	mics_sector                  TEXT,
	mics_subsector               TEXT,
	mics_segment                 TEXT,
	dma                          TEXT,
	user_id                      TEXT,
	domain                       TEXT,
	source_url                   TEXT,
	enrichment_source            TEXT,
	enrichment_confidence        REAL,
	enrichment_status            TEXT NOT NULL DEFAULT 'pending',
	email_domain_validated       BOOLEAN,
	latitude                     REAL,
	longitude                    REAL,
	distance_miles               REAL,
	distance_confidence          TEXT,
	domain_relevance_score       REAL,
	domain_relevance_explanation TEXT,
	match_score                  REAL,
	match_score_source           TEXT,
	facebook                     TEXT,
	facebook_validated           BOOLEAN,
	linkedin                     TEXT,
	linkedin_validated           BOOLEAN,
	instagram                    TEXT,
	instagram_validated          BOOLEAN,
	contact_linkedin             TEXT,
	contact_facebook             TEXT,
	contact_youtube              TEXT,
	company_industry             TEXT,
	company_size                 TEXT,
	company_revenue              TEXT,
	founded_date                 TEXT,
	description                  TEXT,
	products_services            TEXT,
	news                         TEXT,
	diagnosis_category           TEXT,
	diagnosis_explanation        TEXT,
	diagnosis_recommendation     TEXT,
	diagnosis_confidence         REAL,
	enrichment_logs              TEXT NOT NULL DEFAULT '[]',
	company_contacts             TEXT NOT NULL DEFAULT '[]',
	created_at                   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at                   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          TEXT PRIMARY KEY,
	lead_id     TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	result      TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_leads_enrichment_status ON leads(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_lead_id ON pipeline_runs(lead_id, started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	l := prepareNewLead(lead)
	args, err := insertArgs(l)
	if err != nil {
		return nil, err
	}
	textJSON(args)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(insertColumns)), ", ")
	query := fmt.Sprintf(`INSERT INTO leads (%s) VALUES (%s)`, strings.Join(insertColumns, ", "), placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return l, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return s.GetLeadColumns(ctx, id)
}

func (s *SQLiteStore) GetLeadColumns(ctx context.Context, id string, cols ...string) (*model.Lead, error) {
	resolved, err := resolveColumns(cols)
	if err != nil {
		return nil, err
	}
	sc := newLeadScanner(resolved)
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM leads WHERE id = ?`, columnList(resolved)),
		id,
	).Scan(sc.dests...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	l, err := sc.finish()
	if err != nil {
		return nil, err
	}
	l.ID = id
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE 1=1`, columnList(model.Columns))
	var args []any

	if filter.Status != "" {
		query += ` AND enrichment_status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MissingDomain {
		query += ` AND (domain IS NULL OR domain = '')`
	}
	if filter.Company != "" {
		query += ` AND company LIKE ?`
		args = append(args, "%"+filter.Company+"%")
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, defaultLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		sc := newLeadScanner(model.Columns)
		if err := rows.Scan(sc.dests...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		l, err := sc.finish()
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, id string, patch *model.LeadPatch) error {
	sets, args, err := patchArgs(patch)
	if err != nil {
		return err
	}
	textJSON(args)
	for i := range sets {
		sets[i] += " = ?"
	}
	query := fmt.Sprintf(`UPDATE leads SET %s, updated_at = ? WHERE id = ?`, strings.Join(sets, ", "))
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: update lead %s", id)
	}
	return nil
}

// AppendLogs reads, merges and writes enrichment_logs inside one transaction.
func (s *SQLiteStore) AppendLogs(ctx context.Context, id string, entries ...model.LogEntry) ([]model.LogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin append logs")
	}
	defer tx.Rollback() //nolint:errcheck

	var stored []byte
	err = tx.QueryRowContext(ctx, `SELECT enrichment_logs FROM leads WHERE id = ?`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: append logs %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read logs %s", id)
	}
	if len(entries) == 0 {
		return decodeLogs(stored)
	}

	merged, err := mergeLogs(stored, entries)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET enrichment_logs = ?, updated_at = ? WHERE id = ?`,
		string(merged), time.Now().UTC(), id,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: write logs %s", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit append logs")
	}
	return decodeLogs(merged)
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.RunResult) error {
	resultJSON, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, lead_id, outcome, result, started_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET outcome = excluded.outcome, result = excluded.result, duration_ms = excluded.duration_ms`,
		run.RunID, run.LeadID, string(run.Outcome), string(resultJSON), run.StartedAt.UTC(), run.Duration.Milliseconds(),
	)
	return eris.Wrapf(err, "sqlite: save run %s", run.RunID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, leadID string, limit int) ([]model.RunResult, error) {
	query := `SELECT result FROM pipeline_runs`
	var args []any
	if leadID != "" {
		query += ` WHERE lead_id = ?`
		args = append(args, leadID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, defaultLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.RunResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var r model.RunResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// textJSON stores encoded JSON columns as TEXT.
func textJSON(args []any) {
	for i, a := range args {
		if b, ok := a.([]byte); ok {
			args[i] = string(b)
		}
	}
}
