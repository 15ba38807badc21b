package pipeline

import (
	"github.com/sells-group/lead-enrichment/pkg/functions"
)

// Step is one named unit of pipeline work. A failing critical step aborts the
// run; a failing best-effort step is logged and absorbed.
type Step struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Critical bool   `json:"critical"`
}

// Fork A: contact enrichment.
var (
	StepEnrichContact = Step{Key: "enrich_contact", Name: "Enriching contact"}
	StepSendToClay    = Step{Key: "send_to_clay", Name: "Syncing contact to Clay"}
)

// Fork B: domain discovery and scoring.
var (
	StepApollo          = Step{Key: "enrich_apollo", Name: "Searching Apollo", Critical: true}
	StepGoogle          = Step{Key: "enrich_google", Name: "Searching Google", Critical: true}
	StepEmail           = Step{Key: "enrich_email", Name: "Checking email domain", Critical: true}
	StepResolveDomain   = Step{Key: "resolve_domain", Name: "Reading discovered domain", Critical: true}
	StepClayCompany     = Step{Key: "enrich_company_clay", Name: "Enriching company via Clay"}
	StepValidateDomain  = Step{Key: "validate_domain", Name: "Validating domain"}
	StepCoordinates     = Step{Key: "find_coordinates", Name: "Finding company coordinates", Critical: true}
	StepDistance        = Step{Key: "calculate_distance", Name: "Calculating distance", Critical: true}
	StepDomainRelevance = Step{Key: "score_domain_relevance", Name: "Scoring domain relevance", Critical: true}
	StepMatchScore      = Step{Key: "calculate_match_score", Name: "Calculating match score", Critical: true}
	StepMatchPolicy     = Step{Key: "apply_match_policy", Name: "Applying domain match policy", Critical: true}
)

// Social profiles.
var (
	StepSocialSearch = Step{Key: "search_social", Name: "Searching social profiles"}
	StepScoreSocial  = Step{Key: "score_social_relevance", Name: "Scoring social profiles", Critical: true}
)

// Terminal branches.
var (
	StepCompanyDetails  = Step{Key: "enrich_company_details", Name: "Enriching company details", Critical: true}
	StepCompanyContacts = Step{Key: "find_company_contacts", Name: "Finding company contacts", Critical: true}
	StepCompanyNews     = Step{Key: "get_company_news", Name: "Retrieving company news", Critical: true}
	StepRecomputeMatch  = Step{Key: "recalculate_match_score", Name: "Recalculating match score", Critical: true}
	StepDiagnose        = Step{Key: "diagnose_enrichment", Name: "Diagnosing enrichment", Critical: true}
	StepAwaitContact    = Step{Key: "await_contact", Name: "Finishing contact enrichment"}
)

var stepDiscoveryBySource = map[functions.DomainSource]Step{
	functions.SourceApollo: StepApollo,
	functions.SourceGoogle: StepGoogle,
	functions.SourceEmail:  StepEmail,
}

// DiscoveryStep returns the domain discovery step for source.
func DiscoveryStep(source functions.DomainSource) (Step, bool) {
	s, ok := stepDiscoveryBySource[source]
	return s, ok
}
