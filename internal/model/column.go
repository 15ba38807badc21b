package model

import (
	"github.com/rotisserie/eris"
)

// Column names of the leads table.
const (
	ColID                         = "id"
	ColFullName                   = "full_name"
	ColEmail                      = "email"
	ColCompany                    = "company"
	ColCity                       = "city"
	ColState                      = "state"
	ColZipcode                    = "zipcode"
	ColCategory                   = "category"
	ColMicsSector                 = "mics_sector"
	ColMicsSubsector              = "mics_subsector"
	ColMicsSegment                = "mics_segment"
	ColDMA                        = "dma"
	ColUserID                     = "user_id"
	ColDomain                     = "domain"
	ColSourceURL                  = "source_url"
	ColEnrichmentSource           = "enrichment_source"
	ColEnrichmentConfidence       = "enrichment_confidence"
	ColEnrichmentStatus           = "enrichment_status"
	ColEmailDomainValidated       = "email_domain_validated"
	ColLatitude                   = "latitude"
	ColLongitude                  = "longitude"
	ColDistanceMiles              = "distance_miles"
	ColDistanceConfidence         = "distance_confidence"
	ColDomainRelevanceScore       = "domain_relevance_score"
	ColDomainRelevanceExplanation = "domain_relevance_explanation"
	ColMatchScore                 = "match_score"
	ColMatchScoreSource           = "match_score_source"
	ColFacebook                   = "facebook"
	ColFacebookValidated          = "facebook_validated"
	ColLinkedIn                   = "linkedin"
	ColLinkedInValidated          = "linkedin_validated"
	ColInstagram                  = "instagram"
	ColInstagramValidated         = "instagram_validated"
	ColContactLinkedIn            = "contact_linkedin"
	ColContactFacebook            = "contact_facebook"
	ColContactYouTube             = "contact_youtube"
	ColCompanyIndustry            = "company_industry"
	ColCompanySize                = "company_size"
	ColCompanyRevenue             = "company_revenue"
	ColFoundedDate                = "founded_date"
	ColDescription                = "description"
	ColProductsServices           = "products_services"
	ColNews                       = "news"
	ColDiagnosisCategory          = "diagnosis_category"
	ColDiagnosisExplanation       = "diagnosis_explanation"
	ColDiagnosisRecommendation    = "diagnosis_recommendation"
	ColDiagnosisConfidence        = "diagnosis_confidence"
	ColEnrichmentLogs             = "enrichment_logs"
	ColCompanyContacts            = "company_contacts"
	ColCreatedAt                  = "created_at"
	ColUpdatedAt                  = "updated_at"
)

// ColumnKind describes how a column is stored.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindFloat
	KindBool
	KindJSON
	KindTime
)

// Column binds a leads column to its Lead field.
type Column struct {
	Name string
	Kind ColumnKind
	// Field returns a pointer to the Lead field backing the column.
	Field func(l *Lead) any
}

// Columns lists every leads column in table order.
var Columns = []Column{
	{ColID, KindText, func(l *Lead) any { return &l.ID }},
	{ColFullName, KindText, func(l *Lead) any { return &l.FullName }},
	{ColEmail, KindText, func(l *Lead) any { return &l.Email }},
	{ColCompany, KindText, func(l *Lead) any { return &l.Company }},
	{ColCity, KindText, func(l *Lead) any { return &l.City }},
	{ColState, KindText, func(l *Lead) any { return &l.State }},
	{ColZipcode, KindText, func(l *Lead) any { return &l.Zipcode }},
	{ColCategory, KindText, func(l *Lead) any { return &l.Category }},
	{ColMicsSector, KindText, func(l *Lead) any { return &l.MicsSector }},
	{ColMicsSubsector, KindText, func(l *Lead) any { return &l.MicsSubsector }},
	{ColMicsSegment, KindText, func(l *Lead) any { return &l.MicsSegment }},
	{ColDMA, KindText, func(l *Lead) any { return &l.DMA }},
	{ColUserID, KindText, func(l *Lead) any { return &l.UserID }},
	{ColDomain, KindText, func(l *Lead) any { return &l.Domain }},
	{ColSourceURL, KindText, func(l *Lead) any { return &l.SourceURL }},
	{ColEnrichmentSource, KindText, func(l *Lead) any { return &l.EnrichmentSource }},
	{ColEnrichmentConfidence, KindFloat, func(l *Lead) any { return &l.EnrichmentConfidence }},
	{ColEnrichmentStatus, KindText, func(l *Lead) any { return &l.EnrichmentStatus }},
	{ColEmailDomainValidated, KindBool, func(l *Lead) any { return &l.EmailDomainValidated }},
	{ColLatitude, KindFloat, func(l *Lead) any { return &l.Latitude }},
	{ColLongitude, KindFloat, func(l *Lead) any { return &l.Longitude }},
	{ColDistanceMiles, KindFloat, func(l *Lead) any { return &l.DistanceMiles }},
	{ColDistanceConfidence, KindText, func(l *Lead) any { return &l.DistanceConfidence }},
	{ColDomainRelevanceScore, KindFloat, func(l *Lead) any { return &l.DomainRelevanceScore }},
	{ColDomainRelevanceExplanation, KindText, func(l *Lead) any { return &l.DomainRelevanceExplanation }},
	{ColMatchScore, KindFloat, func(l *Lead) any { return &l.MatchScore }},
	{ColMatchScoreSource, KindText, func(l *Lead) any { return &l.MatchScoreSource }},
	{ColFacebook, KindText, func(l *Lead) any { return &l.Facebook }},
	{ColFacebookValidated, KindBool, func(l *Lead) any { return &l.FacebookValidated }},
	{ColLinkedIn, KindText, func(l *Lead) any { return &l.LinkedIn }},
	{ColLinkedInValidated, KindBool, func(l *Lead) any { return &l.LinkedInValidated }},
	{ColInstagram, KindText, func(l *Lead) any { return &l.Instagram }},
	{ColInstagramValidated, KindBool, func(l *Lead) any { return &l.InstagramValidated }},
	{ColContactLinkedIn, KindText, func(l *Lead) any { return &l.ContactLinkedIn }},
	{ColContactFacebook, KindText, func(l *Lead) any { return &l.ContactFacebook }},
	{ColContactYouTube, KindText, func(l *Lead) any { return &l.ContactYouTube }},
	{ColCompanyIndustry, KindText, func(l *Lead) any { return &l.CompanyIndustry }},
	{ColCompanySize, KindText, func(l *Lead) any { return &l.CompanySize }},
	{ColCompanyRevenue, KindText, func(l *Lead) any { return &l.CompanyRevenue }},
	{ColFoundedDate, KindText, func(l *Lead) any { return &l.FoundedDate }},
	{ColDescription, KindText, func(l *Lead) any { return &l.Description }},
	{ColProductsServices, KindText, func(l *Lead) any { return &l.ProductsServices }},
	{ColNews, KindJSON, func(l *Lead) any { return &l.News }},
	{ColDiagnosisCategory, KindText, func(l *Lead) any { return &l.DiagnosisCategory }},
	{ColDiagnosisExplanation, KindText, func(l *Lead) any { return &l.DiagnosisExplanation }},
	{ColDiagnosisRecommendation, KindText, func(l *Lead) any { return &l.DiagnosisRecommendation }},
	{ColDiagnosisConfidence, KindFloat, func(l *Lead) any { return &l.DiagnosisConfidence }},
	{ColEnrichmentLogs, KindJSON, func(l *Lead) any { return &l.EnrichmentLogs }},
	{ColCompanyContacts, KindJSON, func(l *Lead) any { return &l.CompanyContacts }},
	{ColCreatedAt, KindTime, func(l *Lead) any { return &l.CreatedAt }},
	{ColUpdatedAt, KindTime, func(l *Lead) any { return &l.UpdatedAt }},
}

var columnIndex = func() map[string]Column {
	idx := make(map[string]Column, len(Columns))
	for _, c := range Columns {
		idx[c.Name] = c
	}
	return idx
}()

// LookupColumn returns the column definition for name.
func LookupColumn(name string) (Column, bool) {
	c, ok := columnIndex[name]
	return c, ok
}

// ColumnNames returns the names of all leads columns in table order.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// Assignment is a single column write in a LeadPatch.
type Assignment struct {
	Column string
	Value  any
}

// LeadPatch is an ordered set of column writes applied to one lead. A nil
// value clears the column. Setting the same column twice keeps the last value.
type LeadPatch struct {
	assignments []Assignment
}

// NewPatch returns an empty patch.
func NewPatch() *LeadPatch {
	return &LeadPatch{}
}

// Set records a write of value to column.
func (p *LeadPatch) Set(column string, value any) *LeadPatch {
	for i := range p.assignments {
		if p.assignments[i].Column == column {
			p.assignments[i].Value = value
			return p
		}
	}
	p.assignments = append(p.assignments, Assignment{Column: column, Value: value})
	return p
}

// Assignments returns the recorded writes in insertion order.
func (p *LeadPatch) Assignments() []Assignment {
	if p == nil {
		return nil
	}
	return p.assignments
}

// Len returns the number of columns written by the patch.
func (p *LeadPatch) Len() int {
	if p == nil {
		return 0
	}
	return len(p.assignments)
}

// Validate rejects unknown columns and writes the store manages itself.
func (p *LeadPatch) Validate() error {
	if p.Len() == 0 {
		return eris.New("model: empty lead patch")
	}
	for _, a := range p.assignments {
		if _, ok := LookupColumn(a.Column); !ok {
			return eris.Errorf("model: unknown lead column %q", a.Column)
		}
		switch a.Column {
		case ColID, ColCreatedAt, ColUpdatedAt:
			return eris.Errorf("model: column %q is not writable", a.Column)
		case ColEnrichmentLogs:
			return eris.New("model: enrichment_logs is append-only, use AppendLogs")
		}
	}
	return nil
}
