package store

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrichment/internal/model"
)

// leadScanner collects Scan destinations for a set of columns and decodes
// the JSON columns once the row has been scanned.
type leadScanner struct {
	lead  *model.Lead
	cols  []model.Column
	dests []any
	raw   map[int]*[]byte
}

func newLeadScanner(cols []model.Column) *leadScanner {
	s := &leadScanner{
		lead:  &model.Lead{},
		cols:  cols,
		dests: make([]any, len(cols)),
		raw:   make(map[int]*[]byte),
	}
	for i, c := range cols {
		if c.Kind == model.KindJSON {
			b := new([]byte)
			s.raw[i] = b
			s.dests[i] = b
			continue
		}
		s.dests[i] = c.Field(s.lead)
	}
	return s
}

// finish decodes JSON columns and returns the scanned lead.
func (s *leadScanner) finish() (*model.Lead, error) {
	for i, b := range s.raw {
		if b == nil || len(*b) == 0 {
			continue
		}
		if err := json.Unmarshal(*b, s.cols[i].Field(s.lead)); err != nil {
			return nil, eris.Wrapf(err, "store: decode column %s", s.cols[i].Name)
		}
	}
	if s.lead.EnrichmentLogs == nil {
		s.lead.EnrichmentLogs = []model.LogEntry{}
	}
	if s.lead.CompanyContacts == nil {
		s.lead.CompanyContacts = []model.Contact{}
	}
	return s.lead, nil
}

// encodeValue converts a patch value into a driver argument for column c.
func encodeValue(c model.Column, v any) (any, error) {
	if c.Kind != model.KindJSON {
		if st, ok := v.(model.EnrichmentStatus); ok {
			return string(st), nil
		}
		return v, nil
	}
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrapf(err, "store: encode column %s", c.Name)
	}
	return b, nil
}

// fieldValue returns the driver argument for column c of lead l.
func fieldValue(c model.Column, l *model.Lead) (any, error) {
	if c.Kind == model.KindJSON {
		b, err := json.Marshal(c.Field(l))
		if err != nil {
			return nil, eris.Wrapf(err, "store: encode column %s", c.Name)
		}
		if bytes.Equal(b, []byte("null")) {
			return nil, nil
		}
		return b, nil
	}
	switch p := c.Field(l).(type) {
	case *string:
		return *p, nil
	case **string:
		return *p, nil
	case **float64:
		return *p, nil
	case **bool:
		return *p, nil
	case *time.Time:
		return *p, nil
	case *model.EnrichmentStatus:
		return string(*p), nil
	}
	return nil, eris.Errorf("store: unsupported column %s", c.Name)
}

// mergeLogs appends entries to the stored JSON array without re-encoding the
// stored entries.
func mergeLogs(stored []byte, entries []model.LogEntry) ([]byte, error) {
	var existing []json.RawMessage
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &existing); err != nil {
			return nil, eris.Wrap(err, "store: decode enrichment_logs")
		}
	}
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, eris.Wrap(err, "store: encode log entry")
		}
		existing = append(existing, b)
	}
	if existing == nil {
		existing = []json.RawMessage{}
	}
	out, err := json.Marshal(existing)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode enrichment_logs")
	}
	return out, nil
}

func decodeLogs(b []byte) ([]model.LogEntry, error) {
	logs := []model.LogEntry{}
	if len(b) == 0 {
		return logs, nil
	}
	if err := json.Unmarshal(b, &logs); err != nil {
		return nil, eris.Wrap(err, "store: decode enrichment_logs")
	}
	return logs, nil
}
