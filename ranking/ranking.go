// Package ranking orders replacement candidates for an unavailable medicine.
//
// The relevance score (0-100) is the sum of four weighted components:
//   - form match (40): equal forms score 40, one form containing the other 20
//   - strength similarity (30)
//   - price (20): full score when the candidate is not more expensive
//   - name similarity (10)
//
// Missing fields contribute nothing to their component.
package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/giygas/sukl-mcp/fuzzy"
	"github.com/giygas/sukl-mcp/strength"
)

const (
	formWeight     = 40.0
	strengthWeight = 30.0
	priceWeight    = 20.0
	nameWeight     = 10.0
)

// Item is the part of a medicine the scorer looks at.
type Item struct {
	Name     string
	Form     string
	Strength string
	MaxPrice *float64
}

// Scored pairs an input index with its relevance score.
type Scored struct {
	Index int
	Score float64
}

// Score computes the relevance of candidate as a replacement for original,
// rounded to two decimals.
func Score(original, candidate Item) float64 {
	score := formScore(original.Form, candidate.Form) +
		strengthScore(original.Strength, candidate.Strength) +
		priceScore(original.MaxPrice, candidate.MaxPrice) +
		nameScore(original.Name, candidate.Name)

	return math.Round(score*100) / 100
}

func formScore(original, candidate string) float64 {
	o := strings.ToLower(strings.TrimSpace(original))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if o == "" || c == "" {
		return 0
	}
	if o == c {
		return formWeight
	}
	if strings.Contains(o, c) || strings.Contains(c, o) {
		return formWeight / 2
	}
	return 0
}

func strengthScore(original, candidate string) float64 {
	if original == "" || candidate == "" {
		return 0
	}
	return strength.Similarity(original, candidate) * strengthWeight
}

func priceScore(original, candidate *float64) float64 {
	if original == nil || candidate == nil {
		return 0
	}
	if *candidate <= *original {
		return priceWeight
	}
	return *original / *candidate * priceWeight
}

func nameScore(original, candidate string) float64 {
	if original == "" || candidate == "" {
		return 0
	}
	return fuzzy.Ratio(original, candidate) / 100 * nameWeight
}

// Rank scores every candidate against original and returns the indexes of
// candidates ordered by descending score. Ties keep the input order.
func Rank(original Item, candidates []Item) []Scored {
	ranked := make([]Scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = Scored{Index: i, Score: Score(original, c)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
