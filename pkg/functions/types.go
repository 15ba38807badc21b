package functions

import (
	"github.com/sells-group/lead-enrichment/internal/model"
)

// Remote function names.
const (
	FnEnrichLead             = "enrich-lead"
	FnValidateDomain         = "validate-domain"
	FnFindCompanyCoordinates = "find-company-coordinates"
	FnCalculateDistance      = "calculate-distance"
	FnScoreDomainRelevance   = "score-domain-relevance"
	FnCalculateMatchScore    = "calculate-match-score"
	FnScoreSocialRelevance   = "score-social-relevance"
	FnEnrichCompanyDetails   = "enrich-company-details"
	FnEnrichCompanyClay      = "enrich-company-clay"
	FnFindCompanyContacts    = "find-company-contacts"
	FnGetCompanyNews         = "get-company-news"
	FnEnrichContact          = "enrich-contact"
	FnSendToClay             = "send-to-clay"
	FnEvaluateProfileMatch   = "evaluate-profile-match"
	FnDiagnoseEnrichment     = "diagnose-enrichment"
)

// SearchFunction returns the social search function for platform.
func SearchFunction(p model.Platform) string {
	return "search-" + string(p) + "-serper"
}

// DomainSource selects the provider enrich-lead queries.
type DomainSource string

const (
	SourceApollo DomainSource = "apollo"
	SourceGoogle DomainSource = "google"
	SourceEmail  DomainSource = "email"
)

// ParseDomainSource validates a user-supplied source name.
func ParseDomainSource(s string) (DomainSource, bool) {
	switch DomainSource(s) {
	case SourceApollo, SourceGoogle, SourceEmail:
		return DomainSource(s), true
	}
	return "", false
}

type EnrichLeadRequest struct {
	LeadID     string       `json:"leadId"`
	Company    string       `json:"company"`
	City       string       `json:"city"`
	State      string       `json:"state"`
	MicsSector string       `json:"mics_sector,omitempty"`
	Email      string       `json:"email,omitempty"`
	Source     DomainSource `json:"source"`
}

type EnrichLeadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Domain     string  `json:"domain,omitempty"`
		SourceURL  string  `json:"sourceUrl,omitempty"`
		Confidence float64 `json:"confidence,omitempty"`
	} `json:"data"`
}

// DomainValidation is the result of validate-domain.
type DomainValidation struct {
	IsValidDomain bool   `json:"is_valid_domain"`
	IsParked      bool   `json:"is_parked"`
	Reason        string `json:"reason"`
	HTTPStatus    int    `json:"http_status"`
}

type CoordinatesRequest struct {
	LeadID    string `json:"leadId"`
	Domain    string `json:"domain"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

type CoordinatesResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type DistanceRequest struct {
	LeadID    string  `json:"leadId"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Zipcode   string  `json:"zipcode"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type DistanceResponse struct {
	DistanceMiles *float64 `json:"distance_miles"`
	Confidence    string   `json:"distance_confidence"`
}

type DomainRelevanceRequest struct {
	LeadID      string `json:"leadId"`
	CompanyName string `json:"companyName"`
	Domain      string `json:"domain"`
	City        string `json:"city"`
	State       string `json:"state"`
	DMA         string `json:"dma,omitempty"`
}

type DomainRelevanceResponse struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

type MatchScoreRequest struct {
	LeadID string `json:"leadId"`
}

type MatchScoreResponse struct {
	MatchScore       *float64 `json:"matchScore"`
	MatchScoreSource string   `json:"matchScoreSource"`
}

type SocialSearchRequest struct {
	LeadID  string `json:"leadId"`
	Company string `json:"company"`
	City    string `json:"city"`
	State   string `json:"state"`
}

// SocialSearchResponse carries the URL under a key named after the platform.
type SocialSearchResponse struct {
	Facebook      string  `json:"facebook,omitempty"`
	LinkedIn      string  `json:"linkedin,omitempty"`
	Instagram     string  `json:"instagram,omitempty"`
	Confidence    float64 `json:"confidence"`
	StepsExecuted int     `json:"stepsExecuted"`
}

// URL returns the profile URL found for p.
func (r *SocialSearchResponse) URL(p model.Platform) string {
	switch p {
	case model.PlatformFacebook:
		return r.Facebook
	case model.PlatformLinkedIn:
		return r.LinkedIn
	case model.PlatformInstagram:
		return r.Instagram
	}
	return ""
}

type SocialRelevanceRequest struct {
	LeadID           string               `json:"leadId"`
	Company          string               `json:"company"`
	City             string               `json:"city"`
	State            string               `json:"state"`
	MicsSector       string               `json:"mics_sector,omitempty"`
	MicsSubsector    string               `json:"mics_subsector,omitempty"`
	MicsSegment      string               `json:"mics_segment,omitempty"`
	FacebookResults  []model.SearchResult `json:"facebookResults"`
	LinkedInResults  []model.SearchResult `json:"linkedinResults"`
	InstagramResults []model.SearchResult `json:"instagramResults"`
}

type SocialRelevanceResponse struct {
	FacebookValidated  *bool `json:"facebook_validated"`
	LinkedInValidated  *bool `json:"linkedin_validated"`
	InstagramValidated *bool `json:"instagram_validated"`
}

type CompanyDetailsRequest struct {
	LeadID           string `json:"leadId"`
	Domain           string `json:"domain"`
	EnrichmentSource string `json:"enrichmentSource,omitempty"`
	ApolloNotFound   bool   `json:"apolloNotFound"`
}

type CompanyDetailsResponse struct {
	EnrichedFields []string `json:"enrichedFields"`
	Source         string   `json:"source"`
	NotFound       bool     `json:"notFound"`
}

type ClayCompanyRequest struct {
	Domain string `json:"domain"`
}

type ContactsRequest struct {
	LeadID   string `json:"leadId"`
	Domain   string `json:"domain"`
	Category string `json:"category"`
	UserID   string `json:"userId,omitempty"`
}

type ContactsResponse struct {
	ContactsFound int `json:"contactsFound"`
}

type NewsRequest struct {
	LeadID  string `json:"leadId"`
	Company string `json:"company"`
	Domain  string `json:"domain"`
}

type NewsResponse struct {
	NewsCount int `json:"newsCount"`
}

type ContactRequest struct {
	LeadID   string `json:"leadId"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Domain   string `json:"domain,omitempty"`
	Company  string `json:"company"`
}

// EnrichedContact holds the person-level profiles found by enrich-contact.
type EnrichedContact struct {
	LinkedIn string `json:"linkedin,omitempty"`
	Facebook string `json:"facebook,omitempty"`
	YouTube  string `json:"youtube,omitempty"`
}

type ContactResponse struct {
	Steps           []map[string]any `json:"steps"`
	EnrichedContact EnrichedContact  `json:"enrichedContact"`
}

type ClayContactRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	LinkedIn string `json:"linkedin"`
}

type ProfileMatchRequest struct {
	LeadID      string `json:"leadId"`
	LinkedInURL string `json:"linkedinUrl"`
	FullName    string `json:"full_name"`
	Company     string `json:"company"`
}

type ProfileMatchResponse struct {
	IsMatch    bool    `json:"isMatch"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// DiagnosisLead is the identity snapshot sent to diagnose-enrichment.
type DiagnosisLead struct {
	Company    string `json:"company"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zipcode    string `json:"zipcode"`
	Email      string `json:"email,omitempty"`
	MicsSector string `json:"mics_sector,omitempty"`
	FullName   string `json:"full_name"`
}

type DiagnosisRequest struct {
	LeadID         string           `json:"leadId"`
	LeadData       DiagnosisLead    `json:"leadData"`
	EnrichmentLogs []model.LogEntry `json:"enrichmentLogs"`
}

type DiagnosisResponse struct {
	Category       string  `json:"category"`
	Explanation    string  `json:"explanation"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
}
