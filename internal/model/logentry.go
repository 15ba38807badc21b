package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Log sources written by the remote functions and by this service.
const (
	LogSourceApollo           = "apollo"
	LogSourceGoogle           = "google"
	LogSourceEmail            = "email"
	LogSourceFacebookSearch   = "facebook_search"
	LogSourceLinkedInSearch   = "linkedin_search"
	LogSourceInstagramSearch  = "instagram_search"
	LogStepDomainValidation   = "domain_validation"
	LogStepPipeline           = "pipeline"
	LogActionMatchScoreForced = "match_score_policy"
)

// Keys with dedicated fields in LogEntry.
const (
	keySource    = "source"
	keyAction    = "action"
	keyStep      = "step"
	keyTimestamp = "timestamp"
)

// LogEntry is one element of a lead's append-only enrichment log. Entries are
// a tagged union: exactly one of Source, Action or Step identifies the shape
// of Payload. Keys this package does not know about are kept in Payload and
// written back unchanged.
type LogEntry struct {
	Source    string
	Action    string
	Step      string
	Timestamp string
	Payload   map[string]any
}

// Kind returns the entry discriminator, preferring source over action over step.
func (e LogEntry) Kind() string {
	switch {
	case e.Source != "":
		return e.Source
	case e.Action != "":
		return e.Action
	default:
		return e.Step
	}
}

// Time parses the entry timestamp. Zero is returned when it is missing or malformed.
func (e LogEntry) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// String returns a payload value as a string, or "".
func (e LogEntry) String(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// Bool returns a payload value as a bool and whether it was present.
func (e LogEntry) Bool(key string) (bool, bool) {
	b, ok := e.Payload[key].(bool)
	return b, ok
}

// MarshalJSON flattens the discriminators and payload into one object.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Payload)+4)
	for k, v := range e.Payload {
		out[k] = v
	}
	if e.Source != "" {
		out[keySource] = e.Source
	}
	if e.Action != "" {
		out[keyAction] = e.Action
	}
	if e.Step != "" {
		out[keyStep] = e.Step
	}
	if e.Timestamp != "" {
		out[keyTimestamp] = e.Timestamp
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object into discriminators and payload.
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: unmarshal log entry")
	}
	*e = LogEntry{Payload: make(map[string]any, len(raw))}
	for k, v := range raw {
		s, isString := v.(string)
		switch {
		case k == keySource && isString:
			e.Source = s
		case k == keyAction && isString:
			e.Action = s
		case k == keyStep && isString:
			e.Step = s
		case k == keyTimestamp && isString:
			e.Timestamp = s
		default:
			e.Payload[k] = v
		}
	}
	return nil
}

// NewValidationEntry builds the log entry written by domain validation.
func NewValidationEntry(now time.Time, domain, sourceURL string, valid, parked bool, reason string, httpStatus int) LogEntry {
	return LogEntry{
		Step:      LogStepDomainValidation,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Payload: map[string]any{
			"domain":          domain,
			"source_url":      sourceURL,
			"is_valid_domain": valid,
			"is_parked":       parked,
			"reason":          reason,
			"http_status":     httpStatus,
		},
	}
}

// NewPipelineEntry builds the log entry recording a finished pipeline run.
func NewPipelineEntry(now time.Time, r *RunResult) LogEntry {
	payload := map[string]any{
		"run_id":      r.RunID,
		"outcome":     string(r.Outcome),
		"title":       r.Notification.Title,
		"description": r.Notification.Description,
		"duration_ms": r.Duration.Milliseconds(),
	}
	if r.Error != "" {
		payload["error"] = r.Error
	}
	return LogEntry{
		Step:      LogStepPipeline,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}
}

// NewMatchScorePolicyEntry records a match score fixed by domain policy
// instead of the scoring functions.
func NewMatchScorePolicyEntry(now time.Time, domain string, score float64, source string) LogEntry {
	return LogEntry{
		Action:    LogActionMatchScoreForced,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Payload: map[string]any{
			"domain":             domain,
			"match_score":        score,
			"match_score_source": source,
		},
	}
}

// FilterByKind returns the entries whose discriminator equals kind, oldest first.
func FilterByKind(logs []LogEntry, kind string) []LogEntry {
	var out []LogEntry
	for _, e := range logs {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// LatestByKind returns the most recently appended entry of the given kind.
func LatestByKind(logs []LogEntry, kind string) (LogEntry, bool) {
	for i := len(logs) - 1; i >= 0; i-- {
		if logs[i].Kind() == kind {
			return logs[i], true
		}
	}
	return LogEntry{}, false
}

// GroupByKind buckets entries by discriminator, preserving log order.
func GroupByKind(logs []LogEntry) map[string][]LogEntry {
	out := make(map[string][]LogEntry)
	for _, e := range logs {
		out[e.Kind()] = append(out[e.Kind()], e)
	}
	return out
}
