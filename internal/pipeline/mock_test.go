package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/pkg/functions"
)

// --- Functions Mock ---

type mockFunctions struct {
	mock.Mock
}

func (m *mockFunctions) EnrichLead(ctx context.Context, req functions.EnrichLeadRequest) (*functions.EnrichLeadResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.EnrichLeadResponse), args.Error(1)
}

func (m *mockFunctions) ValidateDomain(ctx context.Context, domain string) (*functions.DomainValidation, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.DomainValidation), args.Error(1)
}

func (m *mockFunctions) FindCompanyCoordinates(ctx context.Context, req functions.CoordinatesRequest) (*functions.CoordinatesResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.CoordinatesResponse), args.Error(1)
}

func (m *mockFunctions) CalculateDistance(ctx context.Context, req functions.DistanceRequest) (*functions.DistanceResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.DistanceResponse), args.Error(1)
}

func (m *mockFunctions) ScoreDomainRelevance(ctx context.Context, req functions.DomainRelevanceRequest) (*functions.DomainRelevanceResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.DomainRelevanceResponse), args.Error(1)
}

func (m *mockFunctions) CalculateMatchScore(ctx context.Context, leadID string) (*functions.MatchScoreResponse, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.MatchScoreResponse), args.Error(1)
}

func (m *mockFunctions) SearchSocial(ctx context.Context, platform model.Platform, req functions.SocialSearchRequest) (*functions.SocialSearchResponse, error) {
	args := m.Called(ctx, platform, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.SocialSearchResponse), args.Error(1)
}

func (m *mockFunctions) ScoreSocialRelevance(ctx context.Context, req functions.SocialRelevanceRequest) (*functions.SocialRelevanceResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.SocialRelevanceResponse), args.Error(1)
}

func (m *mockFunctions) EnrichCompanyDetails(ctx context.Context, req functions.CompanyDetailsRequest) (*functions.CompanyDetailsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.CompanyDetailsResponse), args.Error(1)
}

func (m *mockFunctions) EnrichCompanyClay(ctx context.Context, domain string) error {
	args := m.Called(ctx, domain)
	return args.Error(0)
}

func (m *mockFunctions) FindCompanyContacts(ctx context.Context, req functions.ContactsRequest) (*functions.ContactsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.ContactsResponse), args.Error(1)
}

func (m *mockFunctions) GetCompanyNews(ctx context.Context, req functions.NewsRequest) (*functions.NewsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.NewsResponse), args.Error(1)
}

func (m *mockFunctions) EnrichContact(ctx context.Context, req functions.ContactRequest) (*functions.ContactResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.ContactResponse), args.Error(1)
}

func (m *mockFunctions) SendToClay(ctx context.Context, req functions.ClayContactRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockFunctions) EvaluateProfileMatch(ctx context.Context, req functions.ProfileMatchRequest) (*functions.ProfileMatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.ProfileMatchResponse), args.Error(1)
}

func (m *mockFunctions) DiagnoseEnrichment(ctx context.Context, req functions.DiagnosisRequest) (*functions.DiagnosisResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.DiagnosisResponse), args.Error(1)
}

// --- Observer recorder ---

type recorder struct {
	mu        sync.Mutex
	starts    []string
	steps     []string
	notes     []model.Notification
	completed []*model.RunResult
}

func (r *recorder) OnStart(_, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, runID)
}

func (r *recorder) OnStep(_ string, step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step.Key)
}

func (r *recorder) OnNotify(_ string, n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) OnComplete(res *model.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, res)
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notes))
	for i, n := range r.notes {
		out[i] = n.Title
	}
	return out
}

func (r *recorder) last() model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return model.Notification{}
	}
	return r.notes[len(r.notes)-1]
}
