package lookup

import (
	"context"
	"time"

	"github.com/giygas/sukl-mcp/logging"
)

const dataSource = "SÚKL Open Data"

// Statistics is the summary of the loaded medicine table.
type Statistics struct {
	TotalMedicines       int    `json:"total_medicines"`
	AvailableMedicines   int    `json:"available_medicines"`
	UnavailableMedicines int    `json:"unavailable_medicines"`
	DataSource           string `json:"data_source"`
	ServerVersion        string `json:"server_version"`
}

// DetailedStatistics breaks the snapshot down per table.
type DetailedStatistics struct {
	Statistics
	Substances   int               `json:"substances"`
	Compositions int               `json:"compositions_loaded"`
	ATCLevels    map[string]int    `json:"atc_hierarchy"`
	Pharmacies   int               `json:"pharmacies"`
	PriceData    bool              `json:"price_data_available"`
	LastUpdate   time.Time         `json:"last_update"`
	UpdateDates  map[string]string `json:"rest_api_update_dates,omitempty"`
}

// Statistics counts medicines by availability.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	medicines := s.store.GetMedicines()
	stats := &Statistics{
		TotalMedicines: len(medicines),
		DataSource:     dataSource,
		ServerVersion:  s.version,
	}
	for i := range medicines {
		if medicines[i].IsAvailable() {
			stats.AvailableMedicines++
		}
	}
	stats.UnavailableMedicines = stats.TotalMedicines - stats.AvailableMedicines
	return stats, nil
}

// DetailedStatistics adds per-table counts and the REST update dates.
func (s *Service) DetailedStatistics(ctx context.Context) (*DetailedStatistics, error) {
	base, err := s.Statistics(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DetailedStatistics{
		Statistics: *base,
		Substances: len(s.store.GetSubstances()),
		ATCLevels: map[string]int{
			"level_1": 0, "level_2": 0, "level_3": 0, "level_4": 0, "level_5": 0,
		},
		Pharmacies: len(s.store.GetPharmacies()),
		PriceData:  s.store.HasPriceData(),
		LastUpdate: s.store.GetLastUpdated(),
	}

	for _, m := range s.store.GetMedicines() {
		stats.Compositions += len(s.store.GetCompositions(m.Code))
	}

	for _, g := range s.store.GetATCGroups() {
		switch len(g.Code) {
		case 1:
			stats.ATCLevels["level_1"]++
		case 3:
			stats.ATCLevels["level_2"]++
		case 4:
			stats.ATCLevels["level_3"]++
		case 5:
			stats.ATCLevels["level_4"]++
		case 7:
			stats.ATCLevels["level_5"]++
		}
	}

	if s.api != nil {
		dates, err := s.api.GetUpdateDates(ctx)
		if err != nil {
			logging.Warn("REST update dates unavailable", "error", err)
		} else {
			stats.UpdateDates = dates
		}
	}

	return stats, nil
}
