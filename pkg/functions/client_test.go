package functions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/resilience"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "test-key", r.Header.Get("apikey"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		handler(w, r, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
		want    *DomainValidation
	}{
		{
			name:   "valid",
			status: http.StatusOK,
			body:   `{"is_valid_domain":true,"is_parked":false,"reason":"reachable","http_status":200}`,
			want:   &DomainValidation{IsValidDomain: true, Reason: "reachable", HTTPStatus: 200},
		},
		{
			name:   "parked",
			status: http.StatusOK,
			body:   `{"is_valid_domain":true,"is_parked":true,"reason":"parking page","http_status":200}`,
			want:   &DomainValidation{IsValidDomain: true, IsParked: true, Reason: "parking page", HTTPStatus: 200},
		},
		{
			name:    "server_error",
			status:  http.StatusInternalServerError,
			body:    `{"error":"dns lookup failed"}`,
			wantErr: "functions: validate-domain returned 500: dns lookup failed",
		},
		{
			name:    "malformed",
			status:  http.StatusOK,
			body:    `{not json`,
			wantErr: "unmarshal validate-domain response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
				assert.Equal(t, "/functions/v1/validate-domain", r.URL.Path)
				assert.Equal(t, "acme.com", body["domain"])
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			c := NewClient(srv.URL+"/", "test-key")
			got, err := c.ValidateDomain(context.Background(), "acme.com")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnrichLead_RequestShape(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, "/functions/v1/enrich-lead", r.URL.Path)
		assert.Equal(t, "lead-1", body["leadId"])
		assert.Equal(t, "Acme Trucking", body["company"])
		assert.Equal(t, "google", body["source"])
		_, hasEmail := body["email"]
		assert.False(t, hasEmail, "empty email is omitted")
		_, _ = w.Write([]byte(`{"success":true,"data":{"domain":"acmetrucking.com","sourceUrl":"https://acmetrucking.com"}}`))
	})

	c := NewClient(srv.URL, "test-key")
	resp, err := c.EnrichLead(context.Background(), EnrichLeadRequest{
		LeadID:  "lead-1",
		Company: "Acme Trucking",
		City:    "Austin",
		State:   "TX",
		Source:  SourceGoogle,
	})
	require.NoError(t, err)
	assert.Equal(t, "acmetrucking.com", resp.Data.Domain)
	assert.Equal(t, "https://acmetrucking.com", resp.Data.SourceURL)
}

func TestSearchSocial_PlatformRouting(t *testing.T) {
	for _, p := range model.Platforms {
		t.Run(string(p), func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
				assert.Equal(t, "/functions/v1/search-"+string(p)+"-serper", r.URL.Path)
				_, _ = w.Write([]byte(`{"` + string(p) + `":"https://example.com/acme","confidence":0.9,"stepsExecuted":2}`))
			})

			c := NewClient(srv.URL, "test-key")
			resp, err := c.SearchSocial(context.Background(), p, SocialSearchRequest{LeadID: "lead-1", Company: "Acme"})
			require.NoError(t, err)
			assert.Equal(t, "https://example.com/acme", resp.URL(p))
			assert.Equal(t, 2, resp.StepsExecuted)
		})
	}
}

func TestScoreSocialRelevance_EmptyResultsAreArrays(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, body map[string]any) {
		assert.Equal(t, []any{}, body["facebookResults"])
		assert.Len(t, body["linkedinResults"], 1)
		_, _ = w.Write([]byte(`{"facebook_validated":null,"linkedin_validated":true,"instagram_validated":false}`))
	})

	c := NewClient(srv.URL, "test-key")
	resp, err := c.ScoreSocialRelevance(context.Background(), SocialRelevanceRequest{
		LeadID:           "lead-1",
		FacebookResults:  []model.SearchResult{},
		LinkedInResults:  []model.SearchResult{{Link: "https://linkedin.com/company/acme", Position: 1}},
		InstagramResults: []model.SearchResult{},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.FacebookValidated)
	require.NotNil(t, resp.LinkedInValidated)
	assert.True(t, *resp.LinkedInValidated)
	require.NotNil(t, resp.InstagramValidated)
	assert.False(t, *resp.InstagramValidated)
}

func TestFireAndForgetCalls_IgnoreBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		switch r.URL.Path {
		case "/functions/v1/enrich-company-clay", "/functions/v1/send-to-clay":
			w.WriteHeader(http.StatusAccepted)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	c := NewClient(srv.URL, "test-key")
	require.NoError(t, c.EnrichCompanyClay(context.Background(), "acme.com"))
	require.NoError(t, c.SendToClay(context.Background(), ClayContactRequest{FullName: "Dana", LinkedIn: "https://linkedin.com/in/dana"}))
}

func TestInvoke_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"busy"}`))
	})

	c := NewClient(srv.URL, "test-key")
	_, err := c.CalculateMatchScore(context.Background(), "lead-1")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	var callErr *CallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, http.StatusServiceUnavailable, callErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvoke_RetriesTransientWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"matchScore":72,"matchScoreSource":"calculated"}`))
	})

	retry := resilience.NewRetryConfig(3)
	retry.InitialBackoff = time.Millisecond
	retry.MaxBackoff = 5 * time.Millisecond
	c := NewClient(srv.URL, "test-key", WithRetry(retry))

	resp, err := c.CalculateMatchScore(context.Background(), "lead-1")
	require.NoError(t, err)
	require.NotNil(t, resp.MatchScore)
	assert.InDelta(t, 72.0, *resp.MatchScore, 0.001)
	assert.Equal(t, int32(3), calls.Load())
}

func TestInvoke_PermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`plain text failure`))
	})

	c := NewClient(srv.URL, "test-key", WithRetry(resilience.NewRetryConfig(5)))
	_, err := c.GetCompanyNews(context.Background(), NewsRequest{LeadID: "lead-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 400: plain text failure")
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvoke_RateLimitHonorsContext(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		_, _ = w.Write([]byte(`{}`))
	})

	c := NewClient(srv.URL, "test-key", WithRateLimit(0.01))
	require.NoError(t, c.SendToClay(context.Background(), ClayContactRequest{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.SendToClay(ctx, ClayContactRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestInvoke_Timeout(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	})

	c := NewClient(srv.URL, "test-key", WithTimeout(20*time.Millisecond))
	_, err := c.DiagnoseEnrichment(context.Background(), DiagnosisRequest{LeadID: "lead-1", EnrichmentLogs: []model.LogEntry{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "functions: call diagnose-enrichment")
}

func TestParseDomainSource(t *testing.T) {
	s, ok := ParseDomainSource("apollo")
	assert.True(t, ok)
	assert.Equal(t, SourceApollo, s)

	_, ok = ParseDomainSource("bing")
	assert.False(t, ok)
}
