package lookup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

const (
	DefaultPharmacyLimit = 20
	MaxPharmacyLimit     = 100
	maxRegionPharmacies  = 50
)

// FindPharmacies filters the pharmacy list. The REST service is only asked
// when the local pharmacy table is empty.
func (s *Service) FindPharmacies(ctx context.Context, q PharmacyQuery) (*PharmacyResult, error) {
	if q.Limit == 0 {
		q.Limit = DefaultPharmacyLimit
	}
	if err := s.validator.ValidateLimit("limit", q.Limit, 1, MaxPharmacyLimit); err != nil {
		return nil, err
	}

	loadErr := s.ensureLoaded(ctx)
	if loadErr == nil {
		if local := s.store.GetPharmacies(); len(local) > 0 {
			recordSource("pharmacies", SourceCSV)
			matched := filterPharmacies(local, q)
			return &PharmacyResult{Total: len(matched), Pharmacies: matched, Source: SourceCSV}, nil
		}
	}

	if s.api == nil {
		if loadErr != nil {
			return nil, loadErr
		}
		return &PharmacyResult{Pharmacies: []entities.Pharmacy{}, Source: SourceCSV}, nil
	}

	remote, err := s.remotePharmacies(ctx, q)
	if err != nil {
		if loadErr != nil {
			return nil, fmt.Errorf("pharmacy lookup failed: open data: %v; rest api: %w", loadErr, err)
		}
		logging.Warn("REST pharmacy lookup failed", "error", err)
		return &PharmacyResult{Pharmacies: []entities.Pharmacy{}, Source: SourceCSV}, nil
	}

	recordSource("pharmacies", SourceREST)
	matched := filterPharmacies(remote, q)
	return &PharmacyResult{Total: len(matched), Pharmacies: matched, Source: SourceREST}, nil
}

func (s *Service) remotePharmacies(ctx context.Context, q PharmacyQuery) ([]entities.Pharmacy, error) {
	if q.City != "" {
		return s.api.PharmaciesByCity(ctx, q.City, MaxPharmacyLimit*5)
	}
	pharmacies, _, err := s.api.GetPharmacies(ctx, 1, MaxPharmacyLimit*5)
	return pharmacies, err
}

func filterPharmacies(all []entities.Pharmacy, q PharmacyQuery) []entities.Pharmacy {
	city := strings.ToUpper(strings.TrimSpace(q.City))
	psc := strings.ReplaceAll(q.PostalCode, " ", "")

	out := make([]entities.Pharmacy, 0, min(q.Limit, len(all)))
	for _, p := range all {
		if len(out) >= q.Limit {
			break
		}
		if city != "" && !strings.Contains(strings.ToUpper(p.City), city) {
			continue
		}
		if psc != "" && strings.ReplaceAll(p.PostalCode, " ", "") != psc {
			continue
		}
		if q.Has24hService && !p.Has24hService {
			continue
		}
		if q.HasInternetSales && !p.InternetSales {
			continue
		}
		out = append(out, p)
	}
	return out
}

// GetPharmacy returns one pharmacy by its code, REST first.
func (s *Service) GetPharmacy(ctx context.Context, id string) (*entities.Pharmacy, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errs.NewValidationError("pharmacy_id", "must not be empty")
	}

	if s.api != nil {
		p, err := s.api.GetPharmacy(ctx, id)
		if err == nil && p != nil {
			recordSource("pharmacy", SourceREST)
			return p, nil
		}
		logFallback("pharmacy", err)
	}

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	for _, p := range s.store.GetPharmacies() {
		if p.ID == id {
			recordSource("pharmacy", SourceCSV)
			return &p, nil
		}
	}
	return nil, fmt.Errorf("pharmacy %s: %w", id, errs.ErrNotFound)
}

// PharmacyRegions returns the sorted distinct regions of the pharmacy list.
func (s *Service) PharmacyRegions(ctx context.Context) ([]string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	regions := make([]string, 0)
	for _, p := range s.store.GetPharmacies() {
		if p.Region == "" {
			continue
		}
		if _, ok := seen[p.Region]; ok {
			continue
		}
		seen[p.Region] = struct{}{}
		regions = append(regions, p.Region)
	}
	sort.Strings(regions)
	return regions, nil
}

// PharmaciesByRegion returns the pharmacies whose region contains region,
// case-insensitively, capped at 50, with the number of matches.
func (s *Service) PharmaciesByRegion(ctx context.Context, region string) ([]entities.Pharmacy, int, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		return nil, 0, errs.NewValidationError("region", "must not be empty")
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, 0, err
	}

	total := 0
	out := make([]entities.Pharmacy, 0)
	for _, p := range s.store.GetPharmacies() {
		if !strings.Contains(strings.ToLower(p.Region), region) {
			continue
		}
		total++
		if len(out) < maxRegionPharmacies {
			out = append(out, p)
		}
	}
	return out, total, nil
}
