// Package search implements the multi-stage medicine name matcher:
// active substance, exact name, substring and finally fuzzy matching.
package search

import (
	"sort"
	"strings"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/fuzzy"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

// Stage scores. The availability bonus is added on top.
const (
	ScoreSubstance    = 15.0
	ScoreExact        = 20.0
	ScoreSubstring    = 10.0
	AvailabilityBonus = 10.0
)

const (
	DefaultMinQueryLength = 3
	DefaultCandidateLimit = 1000
	DefaultThreshold      = 80.0
)

// Source is the read side of the data store the matcher needs.
type Source interface {
	GetMedicines() []entities.Medicine
	GetSubstances() []entities.Substance
	GetCompositionsBySubstance(substanceCode string) []entities.Composition
}

// Filter selects the medicines a search may return. A nil Filter keeps all.
type Filter func(m *entities.Medicine) bool

// Matcher runs the search pipeline over a Source.
type Matcher struct {
	source         Source
	MinQueryLength int
	CandidateLimit int
	Threshold      float64
	Scorer         fuzzy.Scorer
}

// NewMatcher creates a Matcher with the default thresholds.
func NewMatcher(source Source) *Matcher {
	return &Matcher{
		source:         source,
		MinQueryLength: DefaultMinQueryLength,
		CandidateLimit: DefaultCandidateLimit,
		Threshold:      DefaultThreshold,
		Scorer:         fuzzy.WRatio,
	}
}

// Search returns at most limit results and the stage that produced them.
func (m *Matcher) Search(query string, limit int) ([]entities.SearchResult, entities.MatchType, error) {
	return m.SearchFiltered(query, limit, nil)
}

// SearchFiltered is Search restricted to the medicines accepted by keep.
// The first stage that yields anything wins.
func (m *Matcher) SearchFiltered(query string, limit int, keep Filter) ([]entities.SearchResult, entities.MatchType, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, entities.MatchNone, err
	}
	if limit <= 0 {
		return []entities.SearchResult{}, entities.MatchNone, nil
	}

	medicines := filterMedicines(m.source.GetMedicines(), keep)
	if len(medicines) == 0 {
		return []entities.SearchResult{}, entities.MatchNone, nil
	}

	if results := m.bySubstance(medicines, query); len(results) > 0 {
		return finish(results, limit), entities.MatchSubstance, nil
	}

	if results := byName(medicines, query, entities.MatchExact, ScoreExact, func(name string) bool {
		return name == query
	}); len(results) > 0 {
		return finish(results, limit), entities.MatchExact, nil
	}

	if results := byName(medicines, query, entities.MatchSubstring, ScoreSubstring, func(name string) bool {
		return strings.Contains(name, query)
	}); len(results) > 0 {
		return finish(results, limit), entities.MatchSubstring, nil
	}

	if len([]rune(query)) >= m.MinQueryLength {
		if results := m.byFuzzy(medicines, query, limit); len(results) > 0 {
			return finish(results, limit), entities.MatchFuzzy, nil
		}
	}

	return []entities.SearchResult{}, entities.MatchNone, nil
}

// Substring is the plain name containment search without the other stages.
func (m *Matcher) Substring(query string, limit int, keep Filter) ([]entities.SearchResult, entities.MatchType, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, entities.MatchNone, err
	}

	medicines := filterMedicines(m.source.GetMedicines(), keep)
	results := make([]entities.SearchResult, 0)
	for i := range medicines {
		if len(results) >= limit {
			break
		}
		if strings.Contains(nameLower(medicines[i]), query) {
			results = append(results, entities.SearchResult{
				Medicine:   *medicines[i],
				MatchScore: ScoreSubstring,
				MatchType:  entities.MatchSubstring,
			})
		}
	}

	if len(results) == 0 {
		return results, entities.MatchNone, nil
	}
	return results, entities.MatchSubstring, nil
}

func normalizeQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errs.NewValidationError("query", "must not be empty")
	}
	return strings.ToLower(query), nil
}

func filterMedicines(all []entities.Medicine, keep Filter) []*entities.Medicine {
	out := make([]*entities.Medicine, 0, len(all))
	for i := range all {
		if keep == nil || keep(&all[i]) {
			out = append(out, &all[i])
		}
	}
	return out
}

func nameLower(m *entities.Medicine) string {
	if m.NameLower != "" {
		return m.NameLower
	}
	return strings.ToLower(m.Name)
}

func (m *Matcher) bySubstance(medicines []*entities.Medicine, query string) []entities.SearchResult {
	substances := m.source.GetSubstances()
	if len(substances) == 0 {
		return nil
	}

	codes := make(map[string]struct{})
	for _, s := range substances {
		name := s.NameLower
		if name == "" {
			name = strings.ToLower(s.Name)
		}
		if !strings.Contains(name, query) {
			continue
		}
		for _, c := range m.source.GetCompositionsBySubstance(s.Code) {
			codes[entities.NormalizeCode(c.MedicineCode)] = struct{}{}
		}
	}
	if len(codes) == 0 {
		return nil
	}

	var results []entities.SearchResult
	for _, med := range medicines {
		if _, ok := codes[med.Key()]; ok {
			results = append(results, newResult(med, entities.MatchSubstance, ScoreSubstance))
		}
	}
	return results
}

func byName(medicines []*entities.Medicine, query string, stage entities.MatchType, score float64, match func(string) bool) []entities.SearchResult {
	var results []entities.SearchResult
	for _, med := range medicines {
		if match(nameLower(med)) {
			results = append(results, newResult(med, stage, score))
		}
	}
	return results
}

func (m *Matcher) byFuzzy(medicines []*entities.Medicine, query string, limit int) []entities.SearchResult {
	candidates := medicines
	if m.CandidateLimit > 0 && len(candidates) > m.CandidateLimit {
		candidates = candidates[:m.CandidateLimit]
	}

	names := make([]string, len(candidates))
	for i, med := range candidates {
		names[i] = med.Name
	}

	var results []entities.SearchResult
	for _, match := range fuzzy.Extract(query, names, m.Scorer, limit*2) {
		if match.Score < m.Threshold {
			continue
		}
		r := newResult(candidates[match.Index], entities.MatchFuzzy, match.Score/10)
		r.FuzzyScore = match.Score
		results = append(results, r)
	}
	return results
}

func newResult(med *entities.Medicine, stage entities.MatchType, score float64) entities.SearchResult {
	if med.IsAvailable() {
		score += AvailabilityBonus
	}
	return entities.SearchResult{
		Medicine:   *med,
		MatchScore: score,
		MatchType:  stage,
	}
}

func finish(results []entities.SearchResult, limit int) []entities.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
