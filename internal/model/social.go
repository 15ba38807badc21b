package model

import (
	"encoding/json"
)

// Platform is a social network searched during enrichment.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
)

// Platforms lists the searched networks in the order they are reported.
var Platforms = []Platform{PlatformFacebook, PlatformLinkedIn, PlatformInstagram}

// LogSource returns the enrichment log source written by the platform search.
func (p Platform) LogSource() string {
	switch p {
	case PlatformFacebook:
		return LogSourceFacebookSearch
	case PlatformLinkedIn:
		return LogSourceLinkedInSearch
	case PlatformInstagram:
		return LogSourceInstagramSearch
	default:
		return string(p) + "_search"
	}
}

// URL returns the lead's stored profile URL for the platform.
func (p Platform) URL(l *Lead) string {
	switch p {
	case PlatformFacebook:
		return trimmed(l.Facebook)
	case PlatformLinkedIn:
		return trimmed(l.LinkedIn)
	case PlatformInstagram:
		return trimmed(l.Instagram)
	default:
		return ""
	}
}

// SearchResult is one organic result from a social profile search.
type SearchResult struct {
	Title    string `json:"title,omitempty"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
	Position int    `json:"position,omitempty"`
}

// SocialResults returns the candidate profiles for a platform from the most
// recent search entry in logs. The current top3Results field wins, then the
// legacy searchSteps[0].organicResults field, then the stored URL as a
// single-element list. The result is never nil.
func SocialResults(logs []LogEntry, platform Platform, storedURL string) []SearchResult {
	if entry, ok := LatestByKind(logs, platform.LogSource()); ok {
		if results, ok := decodeResults(entry.Payload["top3Results"]); ok {
			return results
		}
		if results, ok := legacyOrganicResults(entry.Payload["searchSteps"]); ok {
			return results
		}
	}
	if storedURL != "" {
		return []SearchResult{{Title: "Current " + string(platform) + " URL", Link: storedURL, Position: 1}}
	}
	return []SearchResult{}
}

func legacyOrganicResults(v any) ([]SearchResult, bool) {
	steps, ok := v.([]any)
	if !ok || len(steps) == 0 {
		return nil, false
	}
	first, ok := steps[0].(map[string]any)
	if !ok {
		return nil, false
	}
	return decodeResults(first["organicResults"])
}

// decodeResults converts a generic JSON array into search results. It
// reports false when v is not an array, so callers can fall through.
func decodeResults(v any) ([]SearchResult, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, false
	}
	var results []SearchResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, true
}
