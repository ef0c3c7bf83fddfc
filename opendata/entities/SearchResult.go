package entities

// MatchType names the pipeline stage that produced a search result.
type MatchType string

const (
	MatchSubstance MatchType = "substance"
	MatchExact     MatchType = "exact"
	MatchSubstring MatchType = "substring"
	MatchFuzzy     MatchType = "fuzzy"
	MatchNone      MatchType = "none"
)

// SearchResult is a medicine augmented with its match metadata and, once
// enriched, its current price data.
type SearchResult struct {
	Medicine
	MatchScore       float64   `json:"match_score"`
	MatchType        MatchType `json:"match_type"`
	FuzzyScore       float64   `json:"fuzzy_score,omitempty"`
	HasReimbursement *bool     `json:"has_reimbursement"`
	MaxPrice         *float64  `json:"max_price"`
	PatientCopay     *float64  `json:"patient_copay"`
}

// Alternative is a ranked replacement candidate for an unavailable medicine.
type Alternative struct {
	Medicine
	RelevanceScore   float64  `json:"relevance_score"`
	MatchReason      string   `json:"match_reason"`
	HasReimbursement *bool    `json:"has_reimbursement"`
	MaxPrice         *float64 `json:"max_price"`
	PatientCopay     *float64 `json:"patient_copay"`
}
