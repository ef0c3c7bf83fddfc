// Package fuzzy adapts the fuzzywuzzy scores of go-fuzzywuzzy to the medicine
// search: indel ratio, partial ratio, token based ratios and the weighted
// ratio that picks the best of them. All scores are float64 in the range
// 0-100 so they combine with the other search and ranking weights.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"

	fw "github.com/paul-mannino/go-fuzzywuzzy"
)

// Process lowercases s, replaces every rune that is not a letter or a digit
// with a space and trims the result. Diacritics are kept.
func Process(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// Ratio is the normalized indel similarity. Two empty strings are identical.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	return float64(fw.Ratio(a, b))
}

// PartialRatio is the best Ratio of the shorter string against the windows of
// the longer one.
func PartialRatio(a, b string) float64 {
	if a == "" || b == "" {
		if a == b {
			return 100
		}
		return 0
	}
	return float64(fw.PartialRatio(a, b))
}

// TokenSortRatio compares the strings after sorting their whitespace separated tokens.
func TokenSortRatio(a, b string) float64 {
	return float64(fw.TokenSortRatio(a, b))
}

// TokenSetRatio compares the common tokens of both strings with each side's
// remaining tokens. A string whose tokens are a subset of the other scores 100.
func TokenSetRatio(a, b string) float64 {
	return float64(fw.TokenSetRatio(a, b))
}

// WRatio weighs the ratios above by the length difference of the inputs and
// returns the best one. The Unicode variant is used so that "Č" and "C" stay
// different letters. Empty inputs score 0.
func WRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return float64(fw.UWRatio(a, b))
}

// Match is one scored choice returned by Extract.
type Match struct {
	Index  int
	Choice string
	Score  float64
}

// Scorer compares two processed strings.
type Scorer func(a, b string) float64

// Extract scores query against every choice with scorer after running both
// through Process, and returns the best limit matches ordered by descending
// score. Equal scores keep the order of choices.
func Extract(query string, choices []string, scorer Scorer, limit int) []Match {
	if limit <= 0 || len(choices) == 0 {
		return nil
	}

	processed := Process(query)
	matches := make([]Match, 0, len(choices))
	for i, choice := range choices {
		matches = append(matches, Match{
			Index:  i,
			Choice: choice,
			Score:  scorer(processed, Process(choice)),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
