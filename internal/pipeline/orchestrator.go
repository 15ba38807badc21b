// Package pipeline drives leads through the enrichment functions: domain
// discovery, validation, scoring, social profiles and company research.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-enrichment/internal/config"
	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/store"
	"github.com/sells-group/lead-enrichment/pkg/functions"
)

// Notification titles.
const (
	TitleFullPipeline     = "Full Pipeline Complete"
	TitleNoDomain         = "Pipeline Complete — no domain"
	TitleLowScore         = "Pipeline Complete — domain found, low score"
	TitleFailed           = "Pipeline Failed"
	TitleDomainValidated  = "Domain Validated"
	TitleDomainRejected   = "Domain Rejected"
	TitleValidationFailed = "Domain Validation Failed"
)

// Orchestrator runs the enrichment pipeline for single leads.
type Orchestrator struct {
	cfg       config.PipelineConfig
	store     store.Store
	fns       functions.Client
	validator *Validator
	guard     *runGuard
	now       func() time.Time
}

// New creates an Orchestrator with the given store and functions client.
func New(cfg config.PipelineConfig, st store.Store, fns functions.Client) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		fns:       fns,
		validator: NewValidator(cfg, st, fns),
		guard:     newRunGuard(),
		now:       time.Now,
	}
}

// Validator returns the domain validator shared by every run.
func (o *Orchestrator) Validator() *Validator {
	return o.validator
}

// Running reports whether a run for leadID is in flight.
func (o *Orchestrator) Running(leadID string) bool {
	return o.guard.isRunning(leadID)
}

// Run drives one lead through the pipeline. A failed run still returns its
// result, with Outcome set to failed, alongside the error. A lead that
// already has a run in flight is rejected with ErrAlreadyRunning. A panic
// during the run fails it like any critical error.
func (o *Orchestrator) Run(ctx context.Context, lead *model.Lead, obs Observer) (res *model.RunResult, err error) {
	if lead == nil || lead.ID == "" {
		return nil, eris.New("pipeline: lead id is required")
	}
	if !o.guard.acquire(lead.ID) {
		return nil, ErrAlreadyRunning
	}
	defer o.guard.release(lead.ID)

	r := o.newRun(lead, obs)
	r.log.Info("pipeline: starting run", zap.String("run_id", r.result.RunID))

	var forks errgroup.Group
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		err = eris.Errorf("pipeline: panic: %v", p)
		_ = forks.Wait()
		if !r.finished {
			r.finish(ctx, model.OutcomeFailed, err)
		}
		res = r.result
	}()

	r.obs.OnStart(lead.ID, r.result.RunID)
	outcome, err := r.drive(ctx, &forks)
	if err != nil {
		_ = forks.Wait()
		r.finish(ctx, model.OutcomeFailed, err)
		return r.result, err
	}

	_ = r.exec(ctx, StepAwaitContact, func(context.Context) (map[string]any, error) {
		return nil, forks.Wait()
	})
	r.finish(ctx, outcome, nil)
	return r.result, nil
}

// run holds the state of one pipeline execution.
type run struct {
	o     *Orchestrator
	lead  *model.Lead
	obs   Observer
	log   *zap.Logger
	start time.Time

	mu       sync.Mutex
	result   *model.RunResult
	finished bool
}

func (o *Orchestrator) newRun(lead *model.Lead, obs Observer) *run {
	if obs == nil {
		obs = NopObserver{}
	}
	start := o.now()
	return &run{
		o:     o,
		lead:  lead,
		obs:   &syncObserver{obs: obs},
		log:   zap.L().With(zap.String("lead_id", lead.ID), zap.String("company", lead.Company)),
		start: start,
		result: &model.RunResult{
			RunID:     uuid.New().String(),
			LeadID:    lead.ID,
			Company:   lead.Company,
			StartedAt: start.UTC(),
			Steps:     []model.StepResult{},
		},
	}
}

// exec reports, times and records one step. Errors from critical steps are
// returned wrapped with the step key; errors from best-effort steps are
// logged and absorbed.
func (r *run) exec(ctx context.Context, step Step, fn func(ctx context.Context) (map[string]any, error)) error {
	r.obs.OnStep(r.lead.ID, step)

	start := time.Now()
	meta, err := call(ctx, fn)
	duration := time.Since(start).Milliseconds()

	sr := model.StepResult{
		Key:      step.Key,
		Name:     step.Name,
		Critical: step.Critical,
		Status:   model.StepStatusComplete,
		Duration: duration,
		Metadata: meta,
	}
	if err != nil {
		sr.Status = model.StepStatusFailed
		sr.Error = err.Error()
	}
	r.record(sr)

	switch {
	case err == nil:
		r.log.Info("pipeline: step complete",
			zap.String("step", step.Key),
			zap.Int64("duration_ms", duration),
		)
		return nil
	case step.Critical:
		r.log.Error("pipeline: step failed",
			zap.String("step", step.Key),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return eris.Wrapf(err, "pipeline: %s", step.Key)
	default:
		r.log.Warn("pipeline: best-effort step failed",
			zap.String("step", step.Key),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return nil
	}
}

// call runs fn, turning a panic into an error.
func call(ctx context.Context, fn func(ctx context.Context) (map[string]any, error)) (meta map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			meta, err = nil, eris.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

// fork starts fn on forks. Forks are best-effort: a panic is logged and
// never reaches the caller.
func (r *run) fork(forks *errgroup.Group, name string, fn func()) {
	forks.Go(func() error {
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("pipeline: fork panicked", zap.String("fork", name), zap.Any("panic", p))
			}
		}()
		fn()
		return nil
	})
}

// skip records a step that was not attempted.
func (r *run) skip(step Step, reason string) {
	r.record(model.StepResult{
		Key:      step.Key,
		Name:     step.Name,
		Critical: step.Critical,
		Status:   model.StepStatusSkipped,
		Metadata: map[string]any{"reason": reason},
	})
}

func (r *run) record(sr model.StepResult) {
	r.mu.Lock()
	r.result.Steps = append(r.result.Steps, sr)
	r.mu.Unlock()
}

func (r *run) notify(n model.Notification) {
	r.obs.OnNotify(r.lead.ID, n)
}

// reread fetches the named columns of the lead.
func (r *run) reread(ctx context.Context, cols ...string) (*model.Lead, error) {
	l, err := r.o.store.GetLeadColumns(ctx, r.lead.ID, cols...)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: re-read lead")
	}
	return l, nil
}

// drive runs both forks up to the terminal branch. Fork A is started on
// forks and left for the caller to join.
func (r *run) drive(ctx context.Context, forks *errgroup.Group) (model.Outcome, error) {
	if r.lead.HasEmail() {
		r.fork(forks, "contact", func() {
			r.enrichContact(ctx)
		})
	}

	for _, src := range r.discoverySources() {
		if _, err := r.discover(ctx, src); err != nil {
			return model.OutcomeFailed, err
		}
	}

	var current *model.Lead
	err := r.exec(ctx, StepResolveDomain, func(ctx context.Context) (map[string]any, error) {
		l, err := r.reread(ctx, model.ColDomain, model.ColSourceURL, model.ColEnrichmentLogs)
		if err != nil {
			return nil, err
		}
		current = l
		return map[string]any{"domain": l.DomainValue(), "logs": len(l.EnrichmentLogs)}, nil
	})
	if err != nil {
		return model.OutcomeFailed, err
	}

	domain := current.DomainValue()
	r.result.Domain = domain

	var score *float64
	if domain != "" {
		r.fork(forks, "clay", func() {
			_ = r.exec(ctx, StepClayCompany, func(ctx context.Context) (map[string]any, error) {
				return nil, r.o.fns.EnrichCompanyClay(ctx, domain)
			})
		})

		score, err = r.scoreDomain(ctx, domain, current)
		if err != nil {
			return model.OutcomeFailed, err
		}
	}

	if err := r.searchSocial(ctx); err != nil {
		return model.OutcomeFailed, err
	}

	switch {
	case score != nil && *score > r.o.cfg.MatchScoreThreshold:
		r.result.MatchScore = score
		return model.OutcomeFullPipeline, r.researchCompany(ctx, domain)
	case domain == "":
		return model.OutcomeNoDomain, r.diagnose(ctx)
	default:
		if score != nil {
			r.result.MatchScore = score
		}
		return model.OutcomeLowScore, nil
	}
}

func (r *run) discoverySources() []functions.DomainSource {
	sources := []functions.DomainSource{functions.SourceApollo, functions.SourceGoogle}
	if r.lead.HasEmail() {
		sources = append(sources, functions.SourceEmail)
	}
	return sources
}

// discover asks enrich-lead to search one source. The function persists any
// domain it finds.
func (r *run) discover(ctx context.Context, src functions.DomainSource) (*functions.EnrichLeadResponse, error) {
	step, ok := DiscoveryStep(src)
	if !ok {
		return nil, eris.Errorf("pipeline: unknown domain source %q", src)
	}
	var resp *functions.EnrichLeadResponse
	err := r.exec(ctx, step, func(ctx context.Context) (map[string]any, error) {
		var err error
		resp, err = r.o.fns.EnrichLead(ctx, functions.EnrichLeadRequest{
			LeadID:     r.lead.ID,
			Company:    r.lead.Company,
			City:       r.lead.City,
			State:      r.lead.State,
			MicsSector: model.Str(r.lead.MicsSector),
			Email:      r.lead.EmailValue(),
			Source:     src,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"domain": resp.Data.Domain}, nil
	})
	return resp, err
}

// enrichContact is fork A. Its failures never abort the run.
func (r *run) enrichContact(ctx context.Context) {
	var linkedin string
	_ = r.exec(ctx, StepEnrichContact, func(ctx context.Context) (map[string]any, error) {
		resp, err := r.o.fns.EnrichContact(ctx, functions.ContactRequest{
			LeadID:   r.lead.ID,
			FullName: r.lead.FullName,
			Email:    r.lead.EmailValue(),
			Domain:   r.lead.DomainValue(),
			Company:  r.lead.Company,
		})
		if err != nil {
			return nil, err
		}
		linkedin = resp.EnrichedContact.LinkedIn
		return map[string]any{"linkedin": linkedin, "steps": len(resp.Steps)}, nil
	})
	if linkedin == "" {
		return
	}
	_ = r.exec(ctx, StepSendToClay, func(ctx context.Context) (map[string]any, error) {
		return nil, r.o.fns.SendToClay(ctx, functions.ClayContactRequest{
			FullName: r.lead.FullName,
			Email:    r.lead.EmailValue(),
			LinkedIn: linkedin,
		})
	})
}

// scoreDomain validates the discovered domain and scores it. It returns the
// match score computed by the scoring functions, or nil when scoring was
// skipped or replaced by the domain policy.
func (r *run) scoreDomain(ctx context.Context, domain string, current *model.Lead) (*float64, error) {
	var outcome ValidationOutcome
	_ = r.exec(ctx, StepValidateDomain, func(ctx context.Context) (map[string]any, error) {
		outcome = r.o.validator.Validate(ctx, ValidationInput{
			LeadID:    r.lead.ID,
			Domain:    domain,
			SourceURL: model.Str(current.SourceURL),
			PriorLogs: current.EnrichmentLogs,
		})
		if !outcome.Success {
			return nil, outcome.Err
		}
		return map[string]any{
			"is_valid_domain": outcome.Data.IsValidDomain,
			"is_parked":       outcome.Data.IsParked,
			"reason":          outcome.Data.Reason,
		}, nil
	})

	if !outcome.Success {
		r.notify(model.Notification{
			Title:       TitleValidationFailed,
			Description: fmt.Sprintf("Could not validate %s: %v", domain, outcome.Err),
			Variant:     model.VariantDestructive,
		})
		for _, s := range []Step{StepCoordinates, StepDistance, StepDomainRelevance, StepMatchScore} {
			r.skip(s, "domain validation failed")
		}
		return nil, nil
	}

	v := outcome.Data
	r.notify(validationNotification(domain, v))
	if v.IsValidDomain && !v.IsParked {
		return r.scoreValidDomain(ctx, domain, model.Str(current.SourceURL))
	}
	return nil, r.applyMatchPolicy(ctx, domain, v)
}

func validationNotification(domain string, v *functions.DomainValidation) model.Notification {
	switch {
	case v.IsValidDomain && !v.IsParked:
		return model.Notification{
			Title:       TitleDomainValidated,
			Description: fmt.Sprintf("%s is a valid domain", domain),
			Variant:     model.VariantDefault,
		}
	case v.IsParked:
		return model.Notification{
			Title:       TitleDomainRejected,
			Description: fmt.Sprintf("%s is parked: %s", domain, v.Reason),
			Variant:     model.VariantDestructive,
		}
	default:
		return model.Notification{
			Title:       TitleDomainRejected,
			Description: fmt.Sprintf("%s is invalid: %s", domain, v.Reason),
			Variant:     model.VariantDestructive,
		}
	}
}

func (r *run) scoreValidDomain(ctx context.Context, domain, sourceURL string) (*float64, error) {
	var coords *model.Lead
	err := r.exec(ctx, StepCoordinates, func(ctx context.Context) (map[string]any, error) {
		if _, err := r.o.fns.FindCompanyCoordinates(ctx, functions.CoordinatesRequest{
			LeadID:    r.lead.ID,
			Domain:    domain,
			SourceURL: sourceURL,
		}); err != nil {
			return nil, err
		}
		l, err := r.reread(ctx, model.ColLatitude, model.ColLongitude)
		if err != nil {
			return nil, err
		}
		coords = l
		return map[string]any{"found": l.Latitude != nil && l.Longitude != nil}, nil
	})
	if err != nil {
		return nil, err
	}

	if coords.Latitude != nil && coords.Longitude != nil {
		err = r.exec(ctx, StepDistance, func(ctx context.Context) (map[string]any, error) {
			resp, err := r.o.fns.CalculateDistance(ctx, functions.DistanceRequest{
				LeadID:    r.lead.ID,
				City:      r.lead.City,
				State:     r.lead.State,
				Zipcode:   r.lead.Zipcode,
				Latitude:  *coords.Latitude,
				Longitude: *coords.Longitude,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"distance_miles": resp.DistanceMiles, "confidence": resp.Confidence}, nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		r.skip(StepDistance, "no coordinates")
	}

	err = r.exec(ctx, StepDomainRelevance, func(ctx context.Context) (map[string]any, error) {
		resp, err := r.o.fns.ScoreDomainRelevance(ctx, functions.DomainRelevanceRequest{
			LeadID:      r.lead.ID,
			CompanyName: r.lead.Company,
			Domain:      domain,
			City:        r.lead.City,
			State:       r.lead.State,
			DMA:         model.Str(r.lead.DMA),
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"score": resp.Score}, nil
	})
	if err != nil {
		return nil, err
	}

	return r.calculateMatchScore(ctx, StepMatchScore)
}

// calculateMatchScore asks the scoring function for a match score and reads
// back what it persisted.
func (r *run) calculateMatchScore(ctx context.Context, step Step) (*float64, error) {
	var score *float64
	err := r.exec(ctx, step, func(ctx context.Context) (map[string]any, error) {
		if _, err := r.o.fns.CalculateMatchScore(ctx, r.lead.ID); err != nil {
			return nil, err
		}
		l, err := r.reread(ctx, model.ColMatchScore, model.ColMatchScoreSource)
		if err != nil {
			return nil, err
		}
		score = l.MatchScore
		return map[string]any{"match_score": l.MatchScore, "source": model.Str(l.MatchScoreSource)}, nil
	})
	return score, err
}

// applyMatchPolicy fixes the match score of a parked or invalid domain
// without calling the scoring functions.
func (r *run) applyMatchPolicy(ctx context.Context, domain string, v *functions.DomainValidation) error {
	score, source := r.o.cfg.InvalidMatchScore, model.MatchScoreSourceInvalid
	if v.IsParked {
		score, source = r.o.cfg.ParkedMatchScore, model.MatchScoreSourceParked
	}
	for _, s := range []Step{StepCoordinates, StepDistance, StepDomainRelevance, StepMatchScore} {
		r.skip(s, source)
	}

	err := r.exec(ctx, StepMatchPolicy, func(ctx context.Context) (map[string]any, error) {
		patch := model.NewPatch().
			Set(model.ColMatchScore, score).
			Set(model.ColMatchScoreSource, source)
		if err := r.o.store.UpdateLead(ctx, r.lead.ID, patch); err != nil {
			return nil, eris.Wrap(err, "pipeline: persist match score policy")
		}
		if _, err := r.o.store.AppendLogs(ctx, r.lead.ID, model.NewMatchScorePolicyEntry(r.o.now(), domain, score, source)); err != nil {
			return nil, eris.Wrap(err, "pipeline: append match score policy log")
		}
		return map[string]any{"match_score": score, "source": source}, nil
	})
	if err != nil {
		return err
	}
	r.result.MatchScore = &score
	return nil
}

// searchSocial fans out the platform searches, ignoring individual failures,
// then scores whatever they found.
func (r *run) searchSocial(ctx context.Context) error {
	_ = r.exec(ctx, StepSocialSearch, func(ctx context.Context) (map[string]any, error) {
		found := make([]string, len(model.Platforms))
		var g errgroup.Group
		for i, p := range model.Platforms {
			g.Go(func() error {
				resp, err := r.o.fns.SearchSocial(ctx, p, functions.SocialSearchRequest{
					LeadID:  r.lead.ID,
					Company: r.lead.Company,
					City:    r.lead.City,
					State:   r.lead.State,
				})
				if err != nil {
					r.log.Warn("pipeline: social search failed", zap.String("platform", string(p)), zap.Error(err))
					return nil
				}
				found[i] = resp.URL(p)
				return nil
			})
		}
		_ = g.Wait()

		meta := make(map[string]any, len(found))
		for i, p := range model.Platforms {
			meta[string(p)] = found[i]
		}
		return meta, nil
	})

	return r.exec(ctx, StepScoreSocial, func(ctx context.Context) (map[string]any, error) {
		l, err := r.reread(ctx, model.ColFacebook, model.ColLinkedIn, model.ColInstagram, model.ColEnrichmentLogs)
		if err != nil {
			return nil, err
		}
		req := functions.SocialRelevanceRequest{
			LeadID:           r.lead.ID,
			Company:          r.lead.Company,
			City:             r.lead.City,
			State:            r.lead.State,
			MicsSector:       model.Str(r.lead.MicsSector),
			MicsSubsector:    model.Str(r.lead.MicsSubsector),
			MicsSegment:      model.Str(r.lead.MicsSegment),
			FacebookResults:  model.SocialResults(l.EnrichmentLogs, model.PlatformFacebook, model.PlatformFacebook.URL(l)),
			LinkedInResults:  model.SocialResults(l.EnrichmentLogs, model.PlatformLinkedIn, model.PlatformLinkedIn.URL(l)),
			InstagramResults: model.SocialResults(l.EnrichmentLogs, model.PlatformInstagram, model.PlatformInstagram.URL(l)),
		}
		resp, err := r.o.fns.ScoreSocialRelevance(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"facebook_validated":  resp.FacebookValidated,
			"linkedin_validated":  resp.LinkedInValidated,
			"instagram_validated": resp.InstagramValidated,
		}, nil
	})
}

// researchCompany runs the high-score branch: details, contacts, then news.
func (r *run) researchCompany(ctx context.Context, domain string) error {
	err := r.exec(ctx, StepCompanyDetails, func(ctx context.Context) (map[string]any, error) {
		l, err := r.reread(ctx, model.ColEnrichmentSource, model.ColEnrichmentLogs)
		if err != nil {
			return nil, err
		}
		resp, err := r.o.fns.EnrichCompanyDetails(ctx, functions.CompanyDetailsRequest{
			LeadID:           r.lead.ID,
			Domain:           domain,
			EnrichmentSource: model.Str(l.EnrichmentSource),
			ApolloNotFound:   apolloNotFound(l.EnrichmentLogs),
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"fields": resp.EnrichedFields, "source": resp.Source, "not_found": resp.NotFound}, nil
	})
	if err != nil {
		return err
	}

	err = r.exec(ctx, StepCompanyContacts, func(ctx context.Context) (map[string]any, error) {
		resp, err := r.o.fns.FindCompanyContacts(ctx, functions.ContactsRequest{
			LeadID:   r.lead.ID,
			Domain:   domain,
			Category: r.lead.Category,
			UserID:   r.userID(),
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"contacts_found": resp.ContactsFound}, nil
	})
	if err != nil {
		return err
	}

	return r.exec(ctx, StepCompanyNews, func(ctx context.Context) (map[string]any, error) {
		resp, err := r.o.fns.GetCompanyNews(ctx, functions.NewsRequest{
			LeadID:  r.lead.ID,
			Company: r.lead.Company,
			Domain:  domain,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"news_count": resp.NewsCount}, nil
	})
}

// diagnose runs the no-domain branch.
func (r *run) diagnose(ctx context.Context) error {
	score, err := r.calculateMatchScore(ctx, StepRecomputeMatch)
	if err != nil {
		return err
	}
	r.result.MatchScore = score

	return r.exec(ctx, StepDiagnose, func(ctx context.Context) (map[string]any, error) {
		l, err := r.reread(ctx, model.ColEnrichmentLogs)
		if err != nil {
			return nil, err
		}
		resp, err := r.o.fns.DiagnoseEnrichment(ctx, functions.DiagnosisRequest{
			LeadID: r.lead.ID,
			LeadData: functions.DiagnosisLead{
				Company:    r.lead.Company,
				City:       r.lead.City,
				State:      r.lead.State,
				Zipcode:    r.lead.Zipcode,
				Email:      r.lead.EmailValue(),
				MicsSector: model.Str(r.lead.MicsSector),
				FullName:   r.lead.FullName,
			},
			EnrichmentLogs: l.EnrichmentLogs,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"category": resp.Category}, nil
	})
}

// userID prefers the configured operator over the lead's uploader.
func (r *run) userID() string {
	if r.o.cfg.UserID != "" {
		return r.o.cfg.UserID
	}
	return model.Str(r.lead.UserID)
}

// apolloNotFound reports whether the latest Apollo search found no domain.
func apolloNotFound(logs []model.LogEntry) bool {
	e, ok := model.LatestByKind(logs, model.LogSourceApollo)
	if !ok {
		return false
	}
	return e.String("domain") == ""
}

// finish builds the terminal notification, persists the run and reports it.
func (r *run) finish(ctx context.Context, outcome model.Outcome, err error) {
	r.finished = true
	res := r.result
	res.Outcome = outcome
	res.Duration = r.o.now().Sub(r.start)
	res.Notification = r.notification(outcome, err)
	if err != nil {
		res.Error = err.Error()
	}
	r.notify(res.Notification)

	// The run is recorded even when ctx was cancelled mid-run.
	persistCtx := context.WithoutCancel(ctx)
	if saveErr := r.o.store.SaveRun(persistCtx, res); saveErr != nil {
		r.log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
	}
	if _, logErr := r.o.store.AppendLogs(persistCtx, r.lead.ID, model.NewPipelineEntry(r.o.now(), res)); logErr != nil {
		r.log.Warn("pipeline: failed to append run log", zap.Error(logErr))
	}

	fields := []zap.Field{
		zap.String("run_id", res.RunID),
		zap.String("outcome", string(outcome)),
		zap.String("domain", res.Domain),
		zap.Int("steps", len(res.Steps)),
		zap.Duration("duration", res.Duration),
	}
	if res.MatchScore != nil {
		fields = append(fields, zap.Float64("match_score", *res.MatchScore))
	}
	if err != nil {
		r.log.Error("pipeline: run failed", append(fields, zap.Error(err))...)
	} else {
		r.log.Info("pipeline: run complete", fields...)
	}

	r.obs.OnComplete(res)
}

func (r *run) notification(outcome model.Outcome, err error) model.Notification {
	company := r.lead.Company
	switch outcome {
	case model.OutcomeFullPipeline:
		return model.Notification{
			Title:       TitleFullPipeline,
			Description: fmt.Sprintf("%s enriched with match score %s", company, formatScore(r.result.MatchScore)),
			Variant:     model.VariantDefault,
		}
	case model.OutcomeNoDomain:
		return model.Notification{
			Title:       TitleNoDomain,
			Description: fmt.Sprintf("No domain found for %s; diagnosis recorded", company),
			Variant:     model.VariantDefault,
		}
	case model.OutcomeLowScore:
		return model.Notification{
			Title:       TitleLowScore,
			Description: fmt.Sprintf("%s found for %s with match score %s", r.result.Domain, company, formatScore(r.result.MatchScore)),
			Variant:     model.VariantDefault,
		}
	default:
		msg := "unknown error"
		if err != nil {
			msg = err.Error()
		}
		return model.Notification{Title: TitleFailed, Description: msg, Variant: model.VariantDestructive}
	}
}

func formatScore(score *float64) string {
	if score == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}
