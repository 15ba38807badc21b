package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/config"
	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/store"
	"github.com/sells-group/lead-enrichment/pkg/functions"
)

// ErrEmptyDomain is returned when validation is requested without a domain.
var ErrEmptyDomain = eris.New("pipeline: empty domain")

// ValidationInput identifies the domain to validate and the log state the
// caller last observed.
type ValidationInput struct {
	LeadID    string
	Domain    string
	SourceURL string
	// Confidence is persisted as enrichment_confidence when set, and zeroed
	// when the domain is not valid.
	Confidence *float64
	// PriorLogs is the enrichment log the caller read before validating.
	PriorLogs []model.LogEntry
}

// ValidationOutcome reports the result of a validation. Err is set when the
// remote call or the write failed; Data is set on success.
type ValidationOutcome struct {
	Success bool                        `json:"success"`
	Data    *functions.DomainValidation `json:"data,omitempty"`
	Err     error                       `json:"-"`
}

// Validator validates a candidate domain and persists the verdict on the
// lead. The orchestrator, FindDomain and the standalone validate action all
// share it so the persisted shape is identical regardless of trigger.
type Validator struct {
	cfg   config.PipelineConfig
	store store.Store
	fns   functions.Client
	now   func() time.Time
}

// NewValidator creates a Validator.
func NewValidator(cfg config.PipelineConfig, st store.Store, fns functions.Client) *Validator {
	return &Validator{cfg: cfg, store: st, fns: fns, now: time.Now}
}

// Validate never returns an error; failures are reported in the outcome.
func (v *Validator) Validate(ctx context.Context, in ValidationInput) ValidationOutcome {
	log := zap.L().With(zap.String("lead_id", in.LeadID), zap.String("domain", in.Domain))

	domain := strings.TrimSpace(in.Domain)
	if domain == "" {
		return ValidationOutcome{Err: ErrEmptyDomain}
	}

	res, err := v.fns.ValidateDomain(ctx, domain)
	if err != nil {
		log.Error("pipeline: domain validation call failed", zap.Error(err))
		return ValidationOutcome{Err: eris.Wrap(err, "pipeline: validate domain")}
	}

	entry := model.NewValidationEntry(v.now(), domain, in.SourceURL, res.IsValidDomain, res.IsParked, res.Reason, res.HTTPStatus)
	merged, err := v.store.AppendLogs(ctx, in.LeadID, entry)
	if err != nil {
		log.Error("pipeline: append validation log failed", zap.Error(err))
		return ValidationOutcome{Data: res, Err: eris.Wrap(err, "pipeline: append validation log")}
	}
	if len(merged) < len(in.PriorLogs)+1 {
		err := eris.Errorf("pipeline: enrichment log shrank from %d to %d entries", len(in.PriorLogs), len(merged))
		log.Error("pipeline: validation log check failed", zap.Error(err))
		return ValidationOutcome{Data: res, Err: err}
	}

	if err := v.store.UpdateLead(ctx, in.LeadID, v.verdictPatch(domain, in, res)); err != nil {
		log.Error("pipeline: persist validation failed", zap.Error(err))
		return ValidationOutcome{Data: res, Err: eris.Wrap(err, "pipeline: persist validation")}
	}

	log.Info("pipeline: domain validated",
		zap.Bool("valid", res.IsValidDomain),
		zap.Bool("parked", res.IsParked),
		zap.String("reason", res.Reason),
	)
	return ValidationOutcome{Success: true, Data: res}
}

// verdictPatch maps a validation result onto the lead's top-level fields.
// match_score is only a placeholder here: cleared while scoring is pending
// for a usable domain, fixed by policy otherwise.
func (v *Validator) verdictPatch(domain string, in ValidationInput, res *functions.DomainValidation) *model.LeadPatch {
	usable := res.IsValidDomain && !res.IsParked

	patch := model.NewPatch().
		Set(model.ColDomain, domain).
		Set(model.ColEmailDomainValidated, usable)
	if in.SourceURL != "" {
		patch.Set(model.ColSourceURL, in.SourceURL)
	}

	switch {
	case usable:
		patch.Set(model.ColEnrichmentStatus, model.EnrichmentStatusDomainValidated).
			Set(model.ColMatchScore, nil).
			Set(model.ColMatchScoreSource, nil)
	case res.IsParked:
		patch.Set(model.ColEnrichmentStatus, model.EnrichmentStatusDomainParked).
			Set(model.ColMatchScore, v.cfg.ParkedMatchScore).
			Set(model.ColMatchScoreSource, model.MatchScoreSourceParked)
	default:
		patch.Set(model.ColEnrichmentStatus, model.EnrichmentStatusDomainInvalid).
			Set(model.ColMatchScore, v.cfg.InvalidMatchScore).
			Set(model.ColMatchScoreSource, model.MatchScoreSourceInvalid)
	}

	if in.Confidence != nil {
		confidence := *in.Confidence
		if !res.IsValidDomain {
			confidence = 0
		}
		patch.Set(model.ColEnrichmentConfidence, confidence)
	}
	return patch
}
