package model

import (
	"strings"
	"time"
)

// EnrichmentStatus is the lead-level progress marker written by the pipeline
// and by the remote functions.
type EnrichmentStatus string

const (
	EnrichmentStatusPending         EnrichmentStatus = "pending"
	EnrichmentStatusDomainValidated EnrichmentStatus = "domain_validated"
	EnrichmentStatusDomainParked    EnrichmentStatus = "domain_parked"
	EnrichmentStatusDomainInvalid   EnrichmentStatus = "domain_invalid"
	EnrichmentStatusComplete        EnrichmentStatus = "completed"
	EnrichmentStatusFailed          EnrichmentStatus = "failed"
)

// Match score sources written alongside match_score.
const (
	MatchScoreSourceParked  = "parked_domain"
	MatchScoreSourceInvalid = "invalid_domain"
)

// Lead is a prospective company/contact being enriched. Input attributes are
// set once at upload; everything else is filled in progressively.
type Lead struct {
	ID string `json:"id"`

	// Input attributes.
	FullName      string  `json:"full_name"`
	Email         *string `json:"email,omitempty"`
	Company       string  `json:"company"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	Zipcode       string  `json:"zipcode"`
	Category      string  `json:"category"`
	MicsSector    *string `json:"mics_sector,omitempty"`
	MicsSubsector *string `json:"mics_subsector,omitempty"`
	MicsSegment   *string `json:"mics_segment,omitempty"`
	DMA           *string `json:"dma,omitempty"`
	UserID        *string `json:"user_id,omitempty"`

	// Domain discovery and validation.
	Domain               *string          `json:"domain,omitempty"`
	SourceURL            *string          `json:"source_url,omitempty"`
	EnrichmentSource     *string          `json:"enrichment_source,omitempty"`
	EnrichmentConfidence *float64         `json:"enrichment_confidence,omitempty"`
	EnrichmentStatus     EnrichmentStatus `json:"enrichment_status"`
	EmailDomainValidated *bool            `json:"email_domain_validated,omitempty"`

	// Scoring.
	Latitude                   *float64 `json:"latitude,omitempty"`
	Longitude                  *float64 `json:"longitude,omitempty"`
	DistanceMiles              *float64 `json:"distance_miles,omitempty"`
	DistanceConfidence         *string  `json:"distance_confidence,omitempty"`
	DomainRelevanceScore       *float64 `json:"domain_relevance_score,omitempty"`
	DomainRelevanceExplanation *string  `json:"domain_relevance_explanation,omitempty"`
	MatchScore                 *float64 `json:"match_score,omitempty"`
	MatchScoreSource           *string  `json:"match_score_source,omitempty"`

	// Social profiles; *_validated is nil until scored.
	Facebook           *string `json:"facebook,omitempty"`
	FacebookValidated  *bool   `json:"facebook_validated,omitempty"`
	LinkedIn           *string `json:"linkedin,omitempty"`
	LinkedInValidated  *bool   `json:"linkedin_validated,omitempty"`
	Instagram          *string `json:"instagram,omitempty"`
	InstagramValidated *bool   `json:"instagram_validated,omitempty"`

	// Contact enrichment.
	ContactLinkedIn *string `json:"contact_linkedin,omitempty"`
	ContactFacebook *string `json:"contact_facebook,omitempty"`
	ContactYouTube  *string `json:"contact_youtube,omitempty"`

	// Company details.
	CompanyIndustry  *string    `json:"company_industry,omitempty"`
	CompanySize      *string    `json:"company_size,omitempty"`
	CompanyRevenue   *string    `json:"company_revenue,omitempty"`
	FoundedDate      *string    `json:"founded_date,omitempty"`
	Description      *string    `json:"description,omitempty"`
	ProductsServices *string    `json:"products_services,omitempty"`
	News             []NewsItem `json:"news,omitempty"`

	// Diagnosis for leads where no domain could be found.
	DiagnosisCategory       *string  `json:"diagnosis_category,omitempty"`
	DiagnosisExplanation    *string  `json:"diagnosis_explanation,omitempty"`
	DiagnosisRecommendation *string  `json:"diagnosis_recommendation,omitempty"`
	DiagnosisConfidence     *float64 `json:"diagnosis_confidence,omitempty"`

	EnrichmentLogs  []LogEntry `json:"enrichment_logs"`
	CompanyContacts []Contact  `json:"company_contacts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contact is one person discovered at the lead's company.
type Contact struct {
	Name               string `json:"name"`
	Title              string `json:"title,omitempty"`
	Email              string `json:"email,omitempty"`
	LinkedIn           string `json:"linkedin,omitempty"`
	Facebook           string `json:"facebook,omitempty"`
	Twitter            string `json:"twitter,omitempty"`
	Source             string `json:"source,omitempty"`
	VerificationStatus string `json:"verification_status,omitempty"`
}

// NewsItem is one article returned by company news retrieval.
type NewsItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Source      string `json:"source,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	PublishedAt string `json:"date,omitempty"`
}

// EmailValue returns the trimmed email, or "" when the lead has none.
func (l *Lead) EmailValue() string {
	return trimmed(l.Email)
}

// DomainValue returns the trimmed domain, or "" when none has been found.
func (l *Lead) DomainValue() string {
	return trimmed(l.Domain)
}

// HasEmail reports whether the lead carries a usable email address.
func (l *Lead) HasEmail() bool {
	return l.EmailValue() != ""
}

// Str returns the value of an optional string column, or "".
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
