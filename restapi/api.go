package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

const (
	maxPageSize      = 1000
	cityScanPageSize = 500
)

// SearchMedicines queries POST /dlprc and keeps the medicines whose name
// contains query, at most limit of them.
func (c *Client) SearchMedicines(ctx context.Context, query string, limit int) ([]entities.Medicine, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, errs.NewValidationError("query", "must not be empty")
	}
	if limit <= 0 {
		return []entities.Medicine{}, nil
	}

	body := map[string]any{
		"nazev":   query,
		"stranka": 1,
		"pocet":   min(max(limit*5, 100), maxPageSize),
	}

	var list medicineList
	if err := c.postJSON(ctx, "/dlprc", body, &list); err != nil {
		return nil, err
	}

	results := make([]entities.Medicine, 0, min(limit, len(list.Data)))
	for _, dto := range decodeRecords[medicineDTO]("/dlprc", list.Data) {
		if dto.Code == "" || !strings.Contains(strings.ToLower(dto.Name), query) {
			continue
		}
		results = append(results, dto.toEntity())
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// GetMedicine returns the medicine with code, or nil when the service does not know it.
func (c *Client) GetMedicine(ctx context.Context, code string) (*entities.Medicine, error) {
	body := map[string]any{
		"kodSUKL": entities.PadCode(code),
		"stranka": 1,
		"pocet":   1,
	}

	var list medicineList
	if err := c.postJSON(ctx, "/dlprc", body, &list); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	want := entities.NormalizeCode(code)
	for _, dto := range decodeRecords[medicineDTO]("/dlprc", list.Data) {
		if entities.NormalizeCode(dto.Code) == want {
			m := dto.toEntity()
			return &m, nil
		}
	}
	return nil, nil
}

// GetPharmacies returns one page of GET /lekarny and the total count.
func (c *Client) GetPharmacies(ctx context.Context, page, pageSize int) ([]entities.Pharmacy, int, error) {
	if page < 1 {
		page = 1
	}
	pageSize = min(max(pageSize, 1), maxPageSize)

	params := url.Values{}
	params.Set("stranka", strconv.Itoa(page))
	params.Set("pocet", strconv.Itoa(pageSize))

	var list pharmacyList
	if err := c.getJSON(ctx, "/lekarny", params, &list); err != nil {
		return nil, 0, err
	}

	pharmacies := make([]entities.Pharmacy, 0, len(list.Data))
	for _, dto := range decodeRecords[pharmacyDTO]("/lekarny", list.Data) {
		pharmacies = append(pharmacies, dto.toEntity())
	}
	return pharmacies, list.Total, nil
}

// PharmaciesByCity pages through GET /lekarny and keeps the pharmacies whose
// city contains city, stopping once limit of them are found.
func (c *Client) PharmaciesByCity(ctx context.Context, city string, limit int) ([]entities.Pharmacy, error) {
	needle := strings.ToLower(strings.TrimSpace(city))
	results := make([]entities.Pharmacy, 0)

	for page := 1; len(results) < limit; page++ {
		batch, total, err := c.GetPharmacies(ctx, page, cityScanPageSize)
		if err != nil {
			return results, err
		}
		for _, p := range batch {
			if strings.Contains(strings.ToLower(p.City), needle) {
				results = append(results, p)
				if len(results) >= limit {
					break
				}
			}
		}
		if len(batch) == 0 || page*cityScanPageSize >= total {
			break
		}
	}
	return results, nil
}

// GetPharmacy returns the pharmacy with code, or nil when it does not exist.
func (c *Client) GetPharmacy(ctx context.Context, code string) (*entities.Pharmacy, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errs.NewValidationError("pharmacy_code", "must not be empty")
	}

	var dto pharmacyDTO
	if err := c.getJSON(ctx, "/lekarny/"+url.PathEscape(code), nil, &dto); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	p := dto.toEntity()
	return &p, nil
}

// GetCodebook returns the items of GET /ciselniky/{name}.
func (c *Client) GetCodebook(ctx context.Context, name string) ([]entities.CodebookEntry, error) {
	var entries []entities.CodebookEntry
	if err := c.getJSON(ctx, "/ciselniky/"+url.PathEscape(name), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetUpdateDates returns the dataset update dates (DLPO, DLPW, SCAU).
func (c *Client) GetUpdateDates(ctx context.Context) (map[string]string, error) {
	return c.updateDates(ctx, true)
}

func (c *Client) updateDates(ctx context.Context, useCache bool) (map[string]string, error) {
	data, err := c.request(ctx, http.MethodGet, "/datum-aktualizace", nil, nil, useCache)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid response from /datum-aktualizace: %w", err)
	}

	dates := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			dates[k] = s
		}
	}
	return dates, nil
}

// HealthCheck probes the service without the cache and reports its latency.
func (c *Client) HealthCheck(ctx context.Context) interfaces.APIHealth {
	total, valid, stale := c.CacheStats()
	health := interfaces.APIHealth{
		CacheTotal: total,
		CacheValid: valid,
		CacheStale: stale,
	}

	start := time.Now()
	dates, err := c.updateDates(ctx, false)
	if err != nil {
		health.Error = err.Error()
		return health
	}

	health.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	health.Available = len(dates) > 0
	if !health.Available {
		health.Error = "empty response"
	}
	return health
}

func isNotFound(err error) bool {
	var apiErr *errs.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
