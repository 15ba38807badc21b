package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrichment/internal/model"
)

// ErrNotFound is returned when a lead or run does not exist.
var ErrNotFound = eris.New("store: not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status        model.EnrichmentStatus `json:"status,omitempty"`
	MissingDomain bool                   `json:"missing_domain,omitempty"`
	Company       string                 `json:"company,omitempty"`
	Limit         int                    `json:"limit,omitempty"`
	Offset        int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for leads and pipeline runs. The
// remote enrichment functions write to the same leads table directly, so
// readers must not cache lead rows across pipeline steps.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	// GetLeadColumns re-reads only the named columns; other fields of the
	// returned lead are zero.
	GetLeadColumns(ctx context.Context, id string, cols ...string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLead(ctx context.Context, id string, patch *model.LeadPatch) error
	// AppendLogs appends entries to enrichment_logs, keeping every stored
	// entry, and returns the merged log.
	AppendLogs(ctx context.Context, id string, entries ...model.LogEntry) ([]model.LogEntry, error)

	// Runs
	SaveRun(ctx context.Context, run *model.RunResult) error
	ListRuns(ctx context.Context, leadID string, limit int) ([]model.RunResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// insertColumns are written by CreateLead.
var insertColumns = []string{
	model.ColID, model.ColFullName, model.ColEmail, model.ColCompany, model.ColCity,
	model.ColState, model.ColZipcode, model.ColCategory, model.ColMicsSector,
	model.ColMicsSubsector, model.ColMicsSegment, model.ColDMA, model.ColUserID,
	model.ColEnrichmentStatus, model.ColEnrichmentLogs, model.ColCompanyContacts,
	model.ColCreatedAt, model.ColUpdatedAt,
}

func resolveColumns(cols []string) ([]model.Column, error) {
	if len(cols) == 0 {
		return model.Columns, nil
	}
	out := make([]model.Column, 0, len(cols))
	for _, name := range cols {
		c, ok := model.LookupColumn(name)
		if !ok {
			return nil, eris.Errorf("store: unknown lead column %q", name)
		}
		out = append(out, c)
	}
	return out, nil
}

func columnList(cols []model.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

// prepareNewLead fills identity, status and timestamps for an insert.
func prepareNewLead(in *model.Lead) *model.Lead {
	l := *in
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.EnrichmentStatus == "" {
		l.EnrichmentStatus = model.EnrichmentStatusPending
	}
	if l.EnrichmentLogs == nil {
		l.EnrichmentLogs = []model.LogEntry{}
	}
	if l.CompanyContacts == nil {
		l.CompanyContacts = []model.Contact{}
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	return &l
}

func insertArgs(l *model.Lead) ([]any, error) {
	args := make([]any, len(insertColumns))
	for i, name := range insertColumns {
		c, _ := model.LookupColumn(name)
		v, err := fieldValue(c, l)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// patchArgs validates patch and returns its column names and encoded values.
func patchArgs(patch *model.LeadPatch) ([]string, []any, error) {
	if err := patch.Validate(); err != nil {
		return nil, nil, eris.Wrap(err, "store: invalid patch")
	}
	sets := make([]string, 0, patch.Len())
	args := make([]any, 0, patch.Len())
	for _, a := range patch.Assignments() {
		c, _ := model.LookupColumn(a.Column)
		v, err := encodeValue(c, a.Value)
		if err != nil {
			return nil, nil, err
		}
		sets = append(sets, a.Column)
		args = append(args, v)
	}
	return sets, args, nil
}
