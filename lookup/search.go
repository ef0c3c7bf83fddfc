package lookup

import (
	"context"
	"math"
	"time"

	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
	"github.com/giygas/sukl-mcp/search"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// Search looks medicines up by name or active substance. The REST service is
// asked first; the local matcher answers when it fails or finds nothing.
func (s *Service) Search(ctx context.Context, p SearchParams) (*SearchResponse, error) {
	start := time.Now()

	query, err := s.validator.ValidateQuery(p.Query)
	if err != nil {
		return nil, err
	}
	if p.Limit == 0 {
		p.Limit = DefaultSearchLimit
	}
	if err := s.validator.ValidateLimit("limit", p.Limit, 1, MaxSearchLimit); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateLimit("offset", p.Offset, 0, math.MaxInt32); err != nil {
		return nil, err
	}

	results, matchType, err := s.searchREST(ctx, query, p)
	if err != nil || len(results) == 0 {
		logFallback("search", err)
		results, matchType, err = s.searchLocal(ctx, query, p)
		if err != nil {
			return nil, err
		}
	}

	results = s.enrichResults(ctx, results)
	if p.OnlyReimbursed {
		results = onlyReimbursed(results)
	}

	resp := &SearchResponse{
		Query:        query,
		TotalResults: len(results),
		Results:      results,
		SearchTimeMS: math.Round(float64(time.Since(start).Microseconds())/10) / 100,
		MatchType:    matchType,
	}

	logging.Debug("Medicine search",
		"query", query,
		"results", resp.TotalResults,
		"match_type", matchType,
		"duration_ms", resp.SearchTimeMS,
	)
	return resp, nil
}

func (s *Service) searchREST(ctx context.Context, query string, p SearchParams) ([]entities.SearchResult, string, error) {
	if s.api == nil {
		return nil, "", nil
	}

	medicines, err := s.api.SearchMedicines(ctx, query, p.Limit+p.Offset)
	if err != nil {
		return nil, "", err
	}

	results := make([]entities.SearchResult, 0, len(medicines))
	for _, m := range medicines {
		if p.OnlyAvailable && !m.IsAvailable() {
			continue
		}
		score, mt := search.MatchQuality(query, m.Name)
		results = append(results, entities.SearchResult{
			Medicine:   m,
			MatchScore: math.Round(score*100) / 100,
			MatchType:  mt,
		})
	}
	if len(results) == 0 {
		return nil, "", nil
	}

	recordSource("search", SourceREST)
	return page(results, p.Offset, p.Limit), SourceREST, nil
}

func (s *Service) searchLocal(ctx context.Context, query string, p SearchParams) ([]entities.SearchResult, string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, "", err
	}

	var keep search.Filter
	if p.OnlyAvailable {
		keep = func(m *entities.Medicine) bool {
			return m.IsAvailable()
		}
	}

	var (
		results []entities.SearchResult
		stage   entities.MatchType
		err     error
	)
	if p.UseFuzzy {
		results, stage, err = s.matcher.SearchFiltered(query, p.Limit+p.Offset, keep)
	} else {
		results, stage, err = s.matcher.Substring(query, p.Limit+p.Offset, keep)
	}
	if err != nil {
		return nil, "", err
	}

	recordSource("search", SourceCSV)
	return page(results, p.Offset, p.Limit), SourceCSV + "_" + string(stage), nil
}

func page(results []entities.SearchResult, offset, limit int) []entities.SearchResult {
	if offset >= len(results) {
		return []entities.SearchResult{}
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// enrichResults adds price data. REST answers can arrive before the open data
// is loaded, so the load is awaited first; without it results stay unpriced.
func (s *Service) enrichResults(ctx context.Context, results []entities.SearchResult) []entities.SearchResult {
	if err := s.ensureLoaded(ctx); err != nil {
		logging.Warn("Search results returned without price data", "error", err)
		return results
	}
	for i := range results {
		has, maxPrice, _, copay, ok := s.priceOf(results[i].Code)
		if !ok {
			continue
		}
		results[i].HasReimbursement = has
		results[i].MaxPrice = maxPrice
		results[i].PatientCopay = copay
	}
	return results
}

// onlyReimbursed keeps results whose price record shows a reimbursement.
// Results without price data are dropped.
func onlyReimbursed(results []entities.SearchResult) []entities.SearchResult {
	kept := make([]entities.SearchResult, 0, len(results))
	for _, r := range results {
		if r.HasReimbursement != nil && *r.HasReimbursement {
			kept = append(kept, r)
		}
	}
	return kept
}
