package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/pkg/functions"
)

// ErrNoContactProfile is returned when a lead has no contact LinkedIn to evaluate.
var ErrNoContactProfile = eris.New("pipeline: lead has no contact linkedin")

// DomainResult is the outcome of a single-source domain search.
type DomainResult struct {
	LeadID          string                      `json:"lead_id"`
	Source          functions.DomainSource      `json:"source"`
	Domain          string                      `json:"domain,omitempty"`
	SourceURL       string                      `json:"source_url,omitempty"`
	Validation      *functions.DomainValidation `json:"validation,omitempty"`
	ValidationError string                      `json:"validation_error,omitempty"`
	Steps           []model.StepResult          `json:"steps"`
}

// FindDomain searches a single source for the lead's domain and validates
// what it finds. It is the lightweight alternative to Run and shares its
// run guard, so it cannot overlap a full pipeline run on the same lead.
func (o *Orchestrator) FindDomain(ctx context.Context, lead *model.Lead, source functions.DomainSource, obs Observer) (*DomainResult, error) {
	if lead == nil || lead.ID == "" {
		return nil, eris.New("pipeline: lead id is required")
	}
	if source == functions.SourceEmail && !lead.HasEmail() {
		return nil, eris.New("pipeline: email source requires a lead email")
	}
	if !o.guard.acquire(lead.ID) {
		return nil, ErrAlreadyRunning
	}
	defer o.guard.release(lead.ID)

	r := o.newRun(lead, obs)
	out := &DomainResult{LeadID: lead.ID, Source: source}

	resp, err := r.discover(ctx, source)
	if err != nil {
		return nil, err
	}

	var current *model.Lead
	err = r.exec(ctx, StepResolveDomain, func(ctx context.Context) (map[string]any, error) {
		l, err := r.reread(ctx, model.ColDomain, model.ColSourceURL, model.ColEnrichmentLogs)
		if err != nil {
			return nil, err
		}
		current = l
		return map[string]any{"domain": l.DomainValue()}, nil
	})
	if err != nil {
		return nil, err
	}

	// The function only persists what it found; fall back to the response
	// when the row has not caught up.
	out.Domain = current.DomainValue()
	out.SourceURL = model.Str(current.SourceURL)
	if out.Domain == "" {
		out.Domain = strings.TrimSpace(resp.Data.Domain)
		out.SourceURL = resp.Data.SourceURL
	}

	if out.Domain != "" {
		var confidence *float64
		if resp.Data.Confidence > 0 {
			confidence = model.Ptr(resp.Data.Confidence)
		}
		_ = r.exec(ctx, StepValidateDomain, func(ctx context.Context) (map[string]any, error) {
			vo := o.validator.Validate(ctx, ValidationInput{
				LeadID:     lead.ID,
				Domain:     out.Domain,
				SourceURL:  out.SourceURL,
				Confidence: confidence,
				PriorLogs:  current.EnrichmentLogs,
			})
			out.Validation = vo.Data
			if !vo.Success {
				out.ValidationError = vo.Err.Error()
				return nil, vo.Err
			}
			return nil, nil
		})
	}

	out.Steps = r.result.Steps
	r.log.Info("pipeline: find domain complete",
		zap.String("source", string(source)),
		zap.String("domain", out.Domain),
	)
	return out, nil
}

// EvaluateProfile checks whether the lead's contact LinkedIn belongs to the
// lead's person and company.
func (o *Orchestrator) EvaluateProfile(ctx context.Context, leadID string) (*functions.ProfileMatchResponse, error) {
	l, err := o.store.GetLeadColumns(ctx, leadID, model.ColFullName, model.ColCompany, model.ColContactLinkedIn)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read lead for profile evaluation")
	}
	linkedin := strings.TrimSpace(model.Str(l.ContactLinkedIn))
	if linkedin == "" {
		return nil, ErrNoContactProfile
	}

	resp, err := o.fns.EvaluateProfileMatch(ctx, functions.ProfileMatchRequest{
		LeadID:      leadID,
		LinkedInURL: linkedin,
		FullName:    l.FullName,
		Company:     l.Company,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: evaluate profile")
	}
	zap.L().Info("pipeline: profile evaluated",
		zap.String("lead_id", leadID),
		zap.Bool("match", resp.IsMatch),
		zap.Float64("confidence", resp.Confidence),
	)
	return resp, nil
}
