package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
	"github.com/giygas/sukl-mcp/ranking"
)

const (
	DefaultAlternativesLimit = 5
	MaxAlternativesLimit     = 10
	MaxGenericLimit          = 100
	MaxBatchSize             = 100
	batchWorkers             = 5
)

// Match reasons of alternatives.
const (
	ReasonSameSubstance = "Same active substance"
	ReasonSameATCGroup  = "Same ATC group"
)

// CheckAvailability reports whether a medicine is on the market and, when
// asked, which replacements exist.
func (s *Service) CheckAvailability(ctx context.Context, suklCode string, includeAlternatives bool, limit int) (*AvailabilityInfo, error) {
	code, err := s.validator.ValidateSUKLCode(suklCode)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = DefaultAlternativesLimit
	}
	if err := s.validator.ValidateLimit("limit", limit, 1, MaxAlternativesLimit); err != nil {
		return nil, err
	}

	m, _, err := s.medicine(ctx, "availability", code)
	if err != nil {
		return nil, err
	}

	info := &AvailabilityInfo{
		SuklCode:     code,
		Name:         m.Name,
		IsAvailable:  m.IsAvailable(),
		Status:       m.Availability,
		Alternatives: []entities.Alternative{},
		CheckedAt:    s.now(),
	}

	if includeAlternatives {
		alts, err := s.FindAlternatives(ctx, code, limit)
		if err != nil {
			logging.Warn("Alternative search failed", "sukl_code", code, "error", err)
		} else {
			info.Alternatives = alts
		}
	}
	info.AlternativesAvailable = len(info.Alternatives) > 0
	info.Recommendation = recommendation(info)

	return info, nil
}

func recommendation(info *AvailabilityInfo) string {
	switch {
	case !info.IsAvailable && len(info.Alternatives) > 0:
		best := info.Alternatives[0]
		return fmt.Sprintf("Tento přípravek není dostupný. Doporučujeme alternativu: %s (relevance: %.0f/100, důvod: %s)",
			best.Name, best.RelevanceScore, best.MatchReason)
	case len(info.Alternatives) > 0:
		best := info.Alternatives[0]
		return fmt.Sprintf("Dostupných %d alternativ. Nejlepší: %s (relevance: %.0f/100)",
			len(info.Alternatives), best.Name, best.RelevanceScore)
	case !info.IsAvailable:
		return "Tento přípravek není dostupný a nebyly nalezeny žádné alternativy."
	default:
		return ""
	}
}

// FindAlternatives ranks available replacements of an unavailable medicine:
// first medicines sharing an active substance, otherwise the same 3-character
// ATC group. Available or unknown originals yield an empty list.
func (s *Service) FindAlternatives(ctx context.Context, suklCode string, limit int) ([]entities.Alternative, error) {
	code, err := s.validator.ValidateSUKLCode(suklCode)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateLimit("limit", limit, 1, MaxGenericLimit); err != nil {
		return nil, err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	original, ok := s.store.GetMedicine(code)
	if !ok {
		logging.Debug("Original medicine not found for alternatives", "sukl_code", code)
		return []entities.Alternative{}, nil
	}
	if original.IsAvailable() {
		return []entities.Alternative{}, nil
	}

	// The ATC group is only consulted when no medicine shares a substance at
	// all, the original included. Availability is filtered afterwards, so an
	// unavailable substance family yields no alternatives.
	reason := ReasonSameSubstance
	related := s.bySharedSubstance(original)
	if len(related) == 0 {
		reason = ReasonSameATCGroup
		related = s.bySameATCGroup(original)
	}

	candidates := make([]entities.Medicine, 0, len(related))
	for _, m := range related {
		if isCandidate(original, m) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		logging.Debug("No available alternatives", "sukl_code", code, "strategy", reason, "related", len(related))
		return []entities.Alternative{}, nil
	}

	_, originalPrice, _, _, _ := s.priceOf(original.Code)
	items := make([]ranking.Item, len(candidates))
	for i, c := range candidates {
		_, price, _, _, _ := s.priceOf(c.Code)
		items[i] = ranking.Item{Name: c.Name, Form: c.Form, Strength: c.Strength, MaxPrice: price}
	}
	ranked := ranking.Rank(ranking.Item{
		Name:     original.Name,
		Form:     original.Form,
		Strength: original.Strength,
		MaxPrice: originalPrice,
	}, items)

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	alts := make([]entities.Alternative, 0, len(ranked))
	for _, r := range ranked {
		c := candidates[r.Index]
		alt := entities.Alternative{
			Medicine:       c,
			RelevanceScore: r.Score,
			MatchReason:    reason,
		}
		if has, maxPrice, _, copay, ok := s.priceOf(c.Code); ok {
			alt.HasReimbursement = has
			alt.MaxPrice = maxPrice
			alt.PatientCopay = copay
		}
		alts = append(alts, alt)
	}

	logging.Debug("Alternatives found",
		"sukl_code", code,
		"strategy", reason,
		"candidates", len(candidates),
		"returned", len(alts),
	)
	return alts, nil
}

// isCandidate filters out the original and medicines not on the market.
func isCandidate(original, m entities.Medicine) bool {
	return m.Key() != original.Key() && m.IsAvailable()
}

func (s *Service) bySharedSubstance(original entities.Medicine) []entities.Medicine {
	seenSubstance := make(map[string]struct{})
	seenMedicine := make(map[string]struct{})
	var out []entities.Medicine

	for _, comp := range s.store.GetCompositions(original.Code) {
		if comp.SubstanceCode == "" {
			continue
		}
		if _, ok := seenSubstance[comp.SubstanceCode]; ok {
			continue
		}
		seenSubstance[comp.SubstanceCode] = struct{}{}

		for _, other := range s.store.GetCompositionsBySubstance(comp.SubstanceCode) {
			key := entities.NormalizeCode(other.MedicineCode)
			if _, ok := seenMedicine[key]; ok {
				continue
			}
			seenMedicine[key] = struct{}{}

			if m, ok := s.store.GetMedicine(key); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

func (s *Service) bySameATCGroup(original entities.Medicine) []entities.Medicine {
	if len(original.ATC) < 3 {
		return nil
	}
	prefix := original.ATC[:3]

	var out []entities.Medicine
	for _, m := range s.store.GetMedicines() {
		if strings.HasPrefix(m.ATC, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// BatchCheckAvailability checks up to MaxBatchSize codes without
// alternatives. Per-code failures are reported in the matching row.
func (s *Service) BatchCheckAvailability(ctx context.Context, codes []string) (*BatchResult, error) {
	if len(codes) == 0 {
		return nil, errs.NewValidationError("sukl_codes", "must not be empty")
	}

	result := &BatchResult{}
	if len(codes) > MaxBatchSize {
		logging.Warn("Batch availability request truncated", "requested", len(codes), "max", MaxBatchSize)
		codes = codes[:MaxBatchSize]
		result.Truncated = true
	}

	items := make([]BatchItem, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWorkers)
	for i, code := range codes {
		g.Go(func() error {
			info, err := s.CheckAvailability(gctx, code, false, DefaultAlternativesLimit)
			if err != nil {
				items[i] = BatchItem{SuklCode: code, Error: batchError(err)}
				return nil
			}
			items[i] = BatchItem{SuklCode: info.SuklCode, IsAvailable: info.IsAvailable, Name: info.Name}
			return nil
		})
	}
	_ = g.Wait()

	result.Total = len(items)
	result.Results = items
	for _, item := range items {
		if item.IsAvailable {
			result.Available++
		}
	}
	result.Unavailable = result.Total - result.Available

	return result, nil
}

func batchError(err error) string {
	if errors.Is(err, errs.ErrNotFound) {
		return "not found"
	}
	return err.Error()
}

// GetReimbursement returns the price and insurer reimbursement of a medicine.
// Without a price record the medicine is reported as not reimbursed.
func (s *Service) GetReimbursement(ctx context.Context, suklCode string) (*ReimbursementInfo, error) {
	code, err := s.validator.ValidateSUKLCode(suklCode)
	if err != nil {
		return nil, err
	}

	m, _, err := s.medicine(ctx, "reimbursement", code)
	if err != nil {
		return nil, err
	}

	info := &ReimbursementInfo{
		SuklCode:     code,
		MedicineName: m.Name,
	}

	price, ok := s.store.GetPrice(code, s.now())
	if !ok {
		return info, nil
	}

	info.PriceDataAvailable = true
	info.IsReimbursed = price.IsReimbursed
	info.ReimbursementGroup = price.IndicationGroup
	info.MaxProducerPrice = price.MaxPrice
	info.MaxRetailPrice = price.MaxPrice
	info.ReimbursementAmount = price.Reimbursement
	info.PatientCopay = price.Copay
	info.HasIndicationLimit = price.IndicationGroup != ""
	info.IndicationLimitText = price.IndicationGroup
	return info, nil
}
