package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrichment/internal/db"
	"github.com/sells-group/lead-enrichment/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Open(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	enrichment_confidence        DOUBLE PRECISION,
	enrichment_status            TEXT NOT NULL DEFAULT 'pending',
	email_domain_validated       BOOLEAN,
	latitude                     DOUBLE PRECISION,
	longitude                    DOUBLE PRECISION,
	distance_miles               DOUBLE PRECISION,
	distance_confidence          TEXT,
	domain_relevance_score       DOUBLE PRECISION,
	domain_relevance_explanation TEXT,
	match_score                  DOUBLE PRECISION,
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
	news                         JSONB,
	diagnosis_category           TEXT,
	diagnosis_explanation        TEXT,
	diagnosis_recommendation     TEXT,
	diagnosis_confidence         DOUBLE PRECISION,
	enrichment_logs              JSONB NOT NULL DEFAULT '[]'::jsonb,
	company_contacts             JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at                   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          TEXT PRIMARY KEY,
	lead_id     TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	result      JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_leads_enrichment_status ON leads(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_lead_id ON pipeline_runs(lead_id, started_at DESC);
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

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	l := prepareNewLead(lead)
	args, err := insertArgs(l)
	if err != nil {
		return nil, err
	}

	placeholders := make([]string, len(insertColumns))
	for i := range insertColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO leads (%s) VALUES (%s)`,
		strings.Join(insertColumns, ", "), strings.Join(placeholders, ", "))

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return l, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return s.GetLeadColumns(ctx, id)
}

func (s *PostgresStore) GetLeadColumns(ctx context.Context, id string, cols ...string) (*model.Lead, error) {
	resolved, err := resolveColumns(cols)
	if err != nil {
		return nil, err
	}
	sc := newLeadScanner(resolved)
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM leads WHERE id = $1`, columnList(resolved)),
		id,
	).Scan(sc.dests...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: get lead %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	l, err := sc.finish()
	if err != nil {
		return nil, err
	}
	l.ID = id
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE true`, columnList(model.Columns))
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND enrichment_status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.MissingDomain {
		query += ` AND (domain IS NULL OR domain = '')`
	}
	if filter.Company != "" {
		query += fmt.Sprintf(` AND company ILIKE $%d`, argIdx)
		args = append(args, "%"+filter.Company+"%")
		argIdx++
	}
	query += ` ORDER BY created_at ASC, id ASC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, defaultLimit(filter.Limit))
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

	var leads []model.Lead
	for rows.Next() {
		sc := newLeadScanner(model.Columns)
		if err := rows.Scan(sc.dests...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		l, err := sc.finish()
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLead(ctx context.Context, id string, patch *model.LeadPatch) error {
	sets, args, err := patchArgs(patch)
	if err != nil {
		return err
	}
	for i := range sets {
		sets[i] = fmt.Sprintf("%s = $%d", sets[i], i+1)
	}
	n := len(args)
	query := fmt.Sprintf(`UPDATE leads SET %s, updated_at = $%d WHERE id = $%d`,
		strings.Join(sets, ", "), n+1, n+2)
	args = append(args, time.Now().UTC(), id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update lead %s", id)
	}
	return nil
}

// AppendLogs concatenates entries onto the stored JSONB array in a single
// statement, so concurrent appends never drop each other's entries.
func (s *PostgresStore) AppendLogs(ctx context.Context, id string, entries ...model.LogEntry) ([]model.LogEntry, error) {
	if len(entries) == 0 {
		l, err := s.GetLeadColumns(ctx, id, model.ColEnrichmentLogs)
		if err != nil {
			return nil, err
		}
		return l.EnrichmentLogs, nil
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal log entries")
	}

	var merged []byte
	err = s.pool.QueryRow(ctx,
		`UPDATE leads SET enrichment_logs = COALESCE(enrichment_logs, '[]'::jsonb) || $1::jsonb, updated_at = $2 WHERE id = $3 RETURNING enrichment_logs`,
		payload, time.Now().UTC(), id,
	).Scan(&merged)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: append logs %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: append logs %s", id)
	}
	return decodeLogs(merged)
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.RunResult) error {
	resultJSON, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, lead_id, outcome, result, started_at, duration_ms) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET outcome = EXCLUDED.outcome, result = EXCLUDED.result, duration_ms = EXCLUDED.duration_ms`,
		run.RunID, run.LeadID, string(run.Outcome), resultJSON, run.StartedAt, run.Duration.Milliseconds(),
	)
	return eris.Wrapf(err, "postgres: save run %s", run.RunID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, leadID string, limit int) ([]model.RunResult, error) {
	query := `SELECT result FROM pipeline_runs`
	args := []any{}
	if leadID != "" {
		query += ` WHERE lead_id = $1`
		args = append(args, leadID)
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, defaultLimit(limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var r model.RunResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
