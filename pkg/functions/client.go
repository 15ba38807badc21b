// Package functions is a client for the remote lead-enrichment functions.
// Every function takes a JSON body, persists its own writes to the leads
// table, and returns a JSON summary.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/resilience"
)

// Client invokes the remote enrichment functions.
type Client interface {
	EnrichLead(ctx context.Context, req EnrichLeadRequest) (*EnrichLeadResponse, error)
	ValidateDomain(ctx context.Context, domain string) (*DomainValidation, error)
	FindCompanyCoordinates(ctx context.Context, req CoordinatesRequest) (*CoordinatesResponse, error)
	CalculateDistance(ctx context.Context, req DistanceRequest) (*DistanceResponse, error)
	ScoreDomainRelevance(ctx context.Context, req DomainRelevanceRequest) (*DomainRelevanceResponse, error)
	CalculateMatchScore(ctx context.Context, leadID string) (*MatchScoreResponse, error)
	SearchSocial(ctx context.Context, platform model.Platform, req SocialSearchRequest) (*SocialSearchResponse, error)
	ScoreSocialRelevance(ctx context.Context, req SocialRelevanceRequest) (*SocialRelevanceResponse, error)
	EnrichCompanyDetails(ctx context.Context, req CompanyDetailsRequest) (*CompanyDetailsResponse, error)
	EnrichCompanyClay(ctx context.Context, domain string) error
	FindCompanyContacts(ctx context.Context, req ContactsRequest) (*ContactsResponse, error)
	GetCompanyNews(ctx context.Context, req NewsRequest) (*NewsResponse, error)
	EnrichContact(ctx context.Context, req ContactRequest) (*ContactResponse, error)
	SendToClay(ctx context.Context, req ClayContactRequest) error
	EvaluateProfileMatch(ctx context.Context, req ProfileMatchRequest) (*ProfileMatchResponse, error)
	DiagnoseEnrichment(ctx context.Context, req DiagnosisRequest) (*DiagnosisResponse, error)
}

// CallError is returned when a function responds with a non-2xx status.
type CallError struct {
	Function   string
	StatusCode int
	Message    string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("functions: %s returned %d: %s", e.Function, e.StatusCode, e.Message)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing calls per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry policy applied to transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	key     string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a functions client for the project at baseURL.
func NewClient(baseURL, key string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.NoRetry(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// invoke posts body to the named function and decodes the response into out
// when out is non-nil.
func (c *httpClient) invoke(ctx context.Context, name string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrapf(err, "functions: marshal %s request", name)
	}

	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(name)
	}
	respBody, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.post(ctx, name, payload)
	})
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "functions: unmarshal %s response", name)
	}
	return nil
}

func (c *httpClient) post(ctx context.Context, name string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "functions: %s rate limit wait", name)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/functions/v1/"+name, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrapf(err, "functions: create %s request", name)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("apikey", c.key)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "functions: call %s", name)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "functions: read %s response", name)
	}

	zap.L().Debug("remote function called",
		zap.String("function", name),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		callErr := &CallError{Function: name, StatusCode: resp.StatusCode, Message: errorMessage(body)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(callErr, resp.StatusCode)
		}
		return nil, callErr
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} from a failed response, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}

func (c *httpClient) EnrichLead(ctx context.Context, req EnrichLeadRequest) (*EnrichLeadResponse, error) {
	var out EnrichLeadResponse
	if err := c.invoke(ctx, FnEnrichLead, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) ValidateDomain(ctx context.Context, domain string) (*DomainValidation, error) {
	var out DomainValidation
	if err := c.invoke(ctx, FnValidateDomain, map[string]string{"domain": domain}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) FindCompanyCoordinates(ctx context.Context, req CoordinatesRequest) (*CoordinatesResponse, error) {
	var out CoordinatesResponse
	if err := c.invoke(ctx, FnFindCompanyCoordinates, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) CalculateDistance(ctx context.Context, req DistanceRequest) (*DistanceResponse, error) {
	var out DistanceResponse
	if err := c.invoke(ctx, FnCalculateDistance, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) ScoreDomainRelevance(ctx context.Context, req DomainRelevanceRequest) (*DomainRelevanceResponse, error) {
	var out DomainRelevanceResponse
	if err := c.invoke(ctx, FnScoreDomainRelevance, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) CalculateMatchScore(ctx context.Context, leadID string) (*MatchScoreResponse, error) {
	var out MatchScoreResponse
	if err := c.invoke(ctx, FnCalculateMatchScore, MatchScoreRequest{LeadID: leadID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) SearchSocial(ctx context.Context, platform model.Platform, req SocialSearchRequest) (*SocialSearchResponse, error) {
	var out SocialSearchResponse
	if err := c.invoke(ctx, SearchFunction(platform), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) ScoreSocialRelevance(ctx context.Context, req SocialRelevanceRequest) (*SocialRelevanceResponse, error) {
	var out SocialRelevanceResponse
	if err := c.invoke(ctx, FnScoreSocialRelevance, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) EnrichCompanyDetails(ctx context.Context, req CompanyDetailsRequest) (*CompanyDetailsResponse, error) {
	var out CompanyDetailsResponse
	if err := c.invoke(ctx, FnEnrichCompanyDetails, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) EnrichCompanyClay(ctx context.Context, domain string) error {
	return c.invoke(ctx, FnEnrichCompanyClay, ClayCompanyRequest{Domain: domain}, nil)
}

func (c *httpClient) FindCompanyContacts(ctx context.Context, req ContactsRequest) (*ContactsResponse, error) {
	var out ContactsResponse
	if err := c.invoke(ctx, FnFindCompanyContacts, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) GetCompanyNews(ctx context.Context, req NewsRequest) (*NewsResponse, error) {
	var out NewsResponse
	if err := c.invoke(ctx, FnGetCompanyNews, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) EnrichContact(ctx context.Context, req ContactRequest) (*ContactResponse, error) {
	var out ContactResponse
	if err := c.invoke(ctx, FnEnrichContact, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) SendToClay(ctx context.Context, req ClayContactRequest) error {
	return c.invoke(ctx, FnSendToClay, req, nil)
}

func (c *httpClient) EvaluateProfileMatch(ctx context.Context, req ProfileMatchRequest) (*ProfileMatchResponse, error) {
	var out ProfileMatchResponse
	if err := c.invoke(ctx, FnEvaluateProfileMatch, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) DiagnoseEnrichment(ctx context.Context, req DiagnosisRequest) (*DiagnosisResponse, error) {
	var out DiagnosisResponse
	if err := c.invoke(ctx, FnDiagnoseEnrichment, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
