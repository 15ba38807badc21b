// Package api exposes leads and pipeline controls to the dashboard over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/pipeline"
	"github.com/sells-group/lead-enrichment/internal/store"
	"github.com/sells-group/lead-enrichment/pkg/functions"
)

const maxBodySize = 1 << 20

// Deps are the collaborators of the HTTP handler.
type Deps struct {
	Store        store.Store
	Orchestrator *pipeline.Orchestrator
	Bulk         *pipeline.Bulk
	Tracker      *Tracker
	// BulkFilter is applied when a bulk request omits its own criteria.
	BulkFilter     store.LeadFilter
	AllowedOrigins []string
	// BaseContext outlives requests; background runs use it.
	BaseContext context.Context
}

// NewHandler builds the router.
func NewHandler(deps Deps) http.Handler {
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}

	r := chi.NewRouter()
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", handleHealth)

	r.Get("/leads", handleListLeads(deps))
	r.Get("/leads/{id}", handleGetLead(deps))
	r.Get("/leads/{id}/runs", handleListRuns(deps))
	r.Post("/leads/{id}/pipeline", handleRunPipeline(deps))
	r.Post("/leads/{id}/find-domain", handleFindDomain(deps))
	r.Post("/leads/{id}/validate-domain", handleValidateDomain(deps))
	r.Post("/leads/{id}/evaluate-profile", handleEvaluateProfile(deps))
	r.Get("/progress/{id}", handleProgress(deps))

	r.Get("/bulk", handleBulkStatus(deps))
	r.Post("/bulk", handleStartBulk(deps))
	r.Post("/bulk/stop", handleStopBulk(deps))

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func httpError(w http.ResponseWriter, status int, code, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": fmt.Sprintf(format, args...),
		},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close() //nolint:errcheck
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid_request", "invalid request body: %v", err)
		return false
	}
	return true
}

// loadLead writes a 404 or 500 and returns nil when the lead cannot be read.
func loadLead(w http.ResponseWriter, r *http.Request, st store.Store) *model.Lead {
	id := chi.URLParam(r, "id")
	lead, err := st.GetLead(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "lead %s not found", id)
		return nil
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "store_error", "failed to get lead: %v", err)
		return nil
	}
	return lead
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListLeads(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.LeadFilter{
			Status:        model.EnrichmentStatus(q.Get("status")),
			MissingDomain: q.Get("missing_domain") == "true",
			Company:       q.Get("company"),
		}
		var err error
		if filter.Limit, err = queryInt(r, "limit"); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "%v", err)
			return
		}
		if filter.Offset, err = queryInt(r, "offset"); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "%v", err)
			return
		}

		leads, err := deps.Store.ListLeads(r.Context(), filter)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_error", "failed to list leads: %v", err)
			return
		}
		if leads == nil {
			leads = []model.Lead{}
		}
		writeJSON(w, http.StatusOK, leads)
	}
}

func handleGetLead(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lead := loadLead(w, r, deps.Store)
		if lead == nil {
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

func handleListRuns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "%v", err)
			return
		}
		runs, err := deps.Store.ListRuns(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_error", "failed to list runs: %v", err)
			return
		}
		if runs == nil {
			runs = []model.RunResult{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func handleRunPipeline(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lead := loadLead(w, r, deps.Store)
		if lead == nil {
			return
		}
		if deps.Orchestrator.Running(lead.ID) {
			httpError(w, http.StatusConflict, "already_running", "pipeline already running for lead %s", lead.ID)
			return
		}

		go func() {
			_, err := deps.Orchestrator.Run(deps.BaseContext, lead, deps.Tracker)
			if err != nil {
				zap.L().Warn("api: pipeline run ended with error", zap.String("lead_id", lead.ID), zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "lead_id": lead.ID})
	}
}

type findDomainRequest struct {
	Source string `json:"source"`
}

func handleFindDomain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req findDomainRequest
		if !decodeBody(w, r, &req) {
			return
		}
		source, ok := functions.ParseDomainSource(req.Source)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request", "source must be one of apollo, google, email")
			return
		}
		lead := loadLead(w, r, deps.Store)
		if lead == nil {
			return
		}

		res, err := deps.Orchestrator.FindDomain(r.Context(), lead, source, deps.Tracker)
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			httpError(w, http.StatusConflict, "already_running", "pipeline already running for lead %s", lead.ID)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "function_error", "find domain failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type validateDomainRequest struct {
	Domain     string   `json:"domain"`
	SourceURL  string   `json:"source_url"`
	Confidence *float64 `json:"confidence"`
}

type validateDomainResponse struct {
	Success bool                        `json:"success"`
	Data    *functions.DomainValidation `json:"data,omitempty"`
	Error   string                      `json:"error,omitempty"`
}

func handleValidateDomain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateDomainRequest
		if !decodeBody(w, r, &req) {
			return
		}
		lead := loadLead(w, r, deps.Store)
		if lead == nil {
			return
		}
		if req.Domain == "" {
			req.Domain = lead.DomainValue()
		}
		if req.SourceURL == "" {
			req.SourceURL = model.Str(lead.SourceURL)
		}

		out := deps.Orchestrator.Validator().Validate(r.Context(), pipeline.ValidationInput{
			LeadID:     lead.ID,
			Domain:     req.Domain,
			SourceURL:  req.SourceURL,
			Confidence: req.Confidence,
			PriorLogs:  lead.EnrichmentLogs,
		})
		resp := validateDomainResponse{Success: out.Success, Data: out.Data}
		if out.Err != nil {
			resp.Error = out.Err.Error()
		}
		status := http.StatusOK
		if errors.Is(out.Err, pipeline.ErrEmptyDomain) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, resp)
	}
}

func handleEvaluateProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		resp, err := deps.Orchestrator.EvaluateProfile(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "lead %s not found", id)
		case errors.Is(err, pipeline.ErrNoContactProfile):
			httpError(w, http.StatusUnprocessableEntity, "no_contact_profile", "lead %s has no contact linkedin", id)
		case err != nil:
			httpError(w, http.StatusBadGateway, "function_error", "evaluate profile failed: %v", err)
		default:
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

func handleProgress(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		lp, ok := deps.Tracker.Lead(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "no progress recorded for lead %s", id)
			return
		}
		lp.Running = lp.Running || deps.Orchestrator.Running(id)
		writeJSON(w, http.StatusOK, lp)
	}
}

type bulkRequest struct {
	Status        string `json:"status"`
	MissingDomain bool   `json:"missing_domain"`
	Company       string `json:"company"`
	Limit         int    `json:"limit"`
}

func handleStartBulk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !deps.Bulk.TryStart() {
			httpError(w, http.StatusConflict, "bulk_running", "a bulk run is already in progress")
			return
		}

		filter := deps.BulkFilter
		if req.Status != "" {
			filter.Status = model.EnrichmentStatus(req.Status)
		}
		if req.MissingDomain {
			filter.MissingDomain = true
		}
		if req.Company != "" {
			filter.Company = req.Company
		}
		if req.Limit > 0 {
			filter.Limit = req.Limit
		}

		deps.Tracker.BulkStarted(0)
		go func() {
			res, err := deps.Bulk.RunFiltered(deps.BaseContext, deps.Store, filter, deps.Tracker.BulkProgress)
			deps.Tracker.BulkFinished(res, err)
			if err != nil {
				zap.L().Error("api: bulk run failed", zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "filter": filter})
	}
}

func handleStopBulk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !deps.Bulk.Running() {
			httpError(w, http.StatusConflict, "bulk_not_running", "no bulk run in progress")
			return
		}
		deps.Bulk.Stop()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
	}
}

func handleBulkStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, deps.Tracker.Bulk())
	}
}
