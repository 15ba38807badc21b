package model

import (
	"time"
)

// Outcome classifies how a pipeline run ended.
type Outcome string

const (
	OutcomeFullPipeline Outcome = "full_pipeline"
	OutcomeNoDomain     Outcome = "no_domain"
	OutcomeLowScore     Outcome = "low_score"
	OutcomeFailed       Outcome = "failed"
)

// StepStatus represents the state of a single pipeline step.
type StepStatus string

const (
	StepStatusComplete StepStatus = "complete"
	StepStatusFailed   StepStatus = "failed"
	StepStatusSkipped  StepStatus = "skipped"
)

// NotificationVariant mirrors the toast styles of the dashboard.
type NotificationVariant string

const (
	VariantDefault     NotificationVariant = "default"
	VariantDestructive NotificationVariant = "destructive"
)

// Notification is a user-facing message with a title and description.
type Notification struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Variant     NotificationVariant `json:"variant"`
}

// StepResult records one executed pipeline step.
type StepResult struct {
	Key      string         `json:"key"`
	Name     string         `json:"name"`
	Critical bool           `json:"critical"`
	Status   StepStatus     `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunResult is the outcome of driving one lead through the pipeline.
type RunResult struct {
	RunID        string        `json:"run_id"`
	LeadID       string        `json:"lead_id"`
	Company      string        `json:"company"`
	Outcome      Outcome       `json:"outcome"`
	Domain       string        `json:"domain,omitempty"`
	MatchScore   *float64      `json:"match_score,omitempty"`
	Steps        []StepResult  `json:"steps"`
	Notification Notification  `json:"notification"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// Failed reports whether the run ended in the failure branch.
func (r *RunResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}
