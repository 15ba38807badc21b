package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrichment/internal/config"
	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/store"
	"github.com/sells-group/lead-enrichment/pkg/functions"
)

// testEnv wires an orchestrator to a real SQLite store and mocked functions.
// Mocked functions persist their side effects into the store the same way
// the remote functions do.
type testEnv struct {
	t     *testing.T
	store store.Store
	fns   *mockFunctions
	orch  *Orchestrator
	obs   *recorder

	mu    sync.Mutex
	calls []string
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MatchScoreThreshold: 50,
		ParkedMatchScore:    25,
		InvalidMatchScore:   0,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	fns := &mockFunctions{}
	return &testEnv{
		t:     t,
		store: st,
		fns:   fns,
		orch:  New(testPipelineConfig(), st, fns),
		obs:   &recorder{},
	}
}

func (e *testEnv) seed(lead model.Lead) *model.Lead {
	e.t.Helper()
	if lead.City == "" {
		lead.City, lead.State, lead.Zipcode = "Austin", "TX", "78701"
	}
	created, err := e.store.CreateLead(context.Background(), &lead)
	require.NoError(e.t, err)
	return created
}

func (e *testEnv) reload(id string) *model.Lead {
	e.t.Helper()
	l, err := e.store.GetLead(context.Background(), id)
	require.NoError(e.t, err)
	return l
}

// call returns a mock Run hook that records name in call order.
func (e *testEnv) call(name string) func(mock.Arguments) {
	return func(mock.Arguments) {
		e.record(name)
	}
}

func (e *testEnv) record(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, name)
}

func (e *testEnv) callOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// write applies patch as a remote function would. Safe to call from mock
// hooks running on fork goroutines.
func (e *testEnv) write(id string, patch *model.LeadPatch) {
	assert.NoError(e.t, e.store.UpdateLead(context.Background(), id, patch))
}

func (e *testEnv) appendLog(id string, entry model.LogEntry) {
	_, err := e.store.AppendLogs(context.Background(), id, entry)
	assert.NoError(e.t, err)
}

func bySource(src functions.DomainSource) any {
	return mock.MatchedBy(func(r functions.EnrichLeadRequest) bool { return r.Source == src })
}

// expectDiscovery mocks one enrich-lead source. A non-empty domain is
// persisted on the lead together with its source log entry.
func (e *testEnv) expectDiscovery(leadID string, src functions.DomainSource, domain string) {
	resp := &functions.EnrichLeadResponse{Success: true}
	resp.Data.Domain = domain
	if domain != "" {
		resp.Data.SourceURL = "https://" + domain
		resp.Data.Confidence = 0.9
	}
	e.fns.On("EnrichLead", mock.Anything, bySource(src)).
		Run(func(mock.Arguments) {
			e.record("enrich-lead:" + string(src))
			e.appendLog(leadID, model.LogEntry{
				Source:    string(src),
				Timestamp: "2026-01-01T00:00:00Z",
				Payload:   map[string]any{"domain": domain},
			})
			if domain != "" {
				e.write(leadID, model.NewPatch().
					Set(model.ColDomain, domain).
					Set(model.ColSourceURL, resp.Data.SourceURL).
					Set(model.ColEnrichmentSource, string(src)))
			}
		}).
		Return(resp, nil).Once()
}

// expectSocial mocks the three platform searches. Platforms with a URL in
// found persist it along with a top3Results log entry.
func (e *testEnv) expectSocial(leadID string, found map[model.Platform]string) {
	for _, p := range model.Platforms {
		url := found[p]
		resp := &functions.SocialSearchResponse{Confidence: 0.8, StepsExecuted: 1}
		switch p {
		case model.PlatformFacebook:
			resp.Facebook = url
		case model.PlatformLinkedIn:
			resp.LinkedIn = url
		case model.PlatformInstagram:
			resp.Instagram = url
		}
		e.fns.On("SearchSocial", mock.Anything, p, mock.Anything).
			Run(func(mock.Arguments) {
				e.record("search:" + string(p))
				if url == "" {
					return
				}
				e.write(leadID, model.NewPatch().Set(string(p), url))
				e.appendLog(leadID, model.LogEntry{
					Source:    p.LogSource(),
					Timestamp: "2026-01-01T00:00:01Z",
					Payload: map[string]any{
						"top3Results": []map[string]any{
							{"title": "Acme on " + string(p), "link": url, "position": 1},
						},
					},
				})
			}).
			Return(resp, nil).Once()
	}
}

func (e *testEnv) expectScoreSocial() {
	e.fns.On("ScoreSocialRelevance", mock.Anything, mock.Anything).
		Run(e.call("score-social-relevance")).
		Return(&functions.SocialRelevanceResponse{}, nil).Once()
}

// expectScoring mocks the valid-domain scoring chain, persisting score as
// the match score.
func (e *testEnv) expectScoring(leadID string, score float64) {
	e.fns.On("FindCompanyCoordinates", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			e.record("find-company-coordinates")
			e.write(leadID, model.NewPatch().Set(model.ColLatitude, 30.27).Set(model.ColLongitude, -97.74))
		}).
		Return(&functions.CoordinatesResponse{Latitude: model.Ptr(30.27), Longitude: model.Ptr(-97.74)}, nil).Once()
	e.fns.On("CalculateDistance", mock.Anything, mock.Anything).
		Run(e.call("calculate-distance")).
		Return(&functions.DistanceResponse{DistanceMiles: model.Ptr(3.2), Confidence: "high"}, nil).Once()
	e.fns.On("ScoreDomainRelevance", mock.Anything, mock.Anything).
		Run(e.call("score-domain-relevance")).
		Return(&functions.DomainRelevanceResponse{Score: 80, Explanation: "name match"}, nil).Once()
	e.expectMatchScore(leadID, &score)
}

func (e *testEnv) expectMatchScore(leadID string, score *float64) {
	e.fns.On("CalculateMatchScore", mock.Anything, leadID).
		Run(func(mock.Arguments) {
			e.record("calculate-match-score")
			if score != nil {
				e.write(leadID, model.NewPatch().Set(model.ColMatchScore, *score).Set(model.ColMatchScoreSource, "calculated"))
			}
		}).
		Return(&functions.MatchScoreResponse{MatchScore: score, MatchScoreSource: "calculated"}, nil).Once()
}

func (e *testEnv) expectValidation(domain string, res *functions.DomainValidation, err error) {
	e.fns.On("ValidateDomain", mock.Anything, domain).
		Run(e.call("validate-domain")).
		Return(res, err).Once()
}

func (e *testEnv) expectClay(domain string) {
	e.fns.On("EnrichCompanyClay", mock.Anything, domain).
		Run(e.call("enrich-company-clay")).
		Return(nil).Once()
}
