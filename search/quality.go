package search

import (
	"strings"
	"unicode/utf8"

	"github.com/giygas/sukl-mcp/fuzzy"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

// MatchQuality scores a medicine name returned by the REST service against
// the query on a 0-100 scale and names the kind of match.
func MatchQuality(query, name string) (float64, entities.MatchType) {
	q := strings.ToLower(strings.TrimSpace(query))
	n := strings.ToLower(strings.TrimSpace(name))
	if q == "" || n == "" {
		return 0, entities.MatchNone
	}

	if q == n {
		return 100, entities.MatchExact
	}

	if strings.Contains(n, q) {
		// Longer coverage of the name ranks higher, 80-95
		ratio := float64(utf8.RuneCountInString(q)) / float64(utf8.RuneCountInString(n))
		return 80 + ratio*15, entities.MatchSubstring
	}

	if score := fuzzy.Ratio(q, n); score >= DefaultThreshold {
		return score, entities.MatchFuzzy
	}
	if score := fuzzy.PartialRatio(q, n); score >= DefaultThreshold {
		return score * 0.9, entities.MatchFuzzy
	}
	return fuzzy.TokenSortRatio(q, n) * 0.8, entities.MatchFuzzy
}
