// Package health reports whether the server can answer lookups: the age of
// the open-data snapshot and the reachability of the SÚKL REST service.
package health

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/giygas/sukl-mcp/interfaces"
)

const (
	staleAfter   = 24 * time.Hour
	expiredAfter = 48 * time.Hour
	// updateGrace is how long a running refresh may keep old data healthy
	updateGrace = 6 * time.Hour
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore    interfaces.DataStore
	api          interfaces.MedicineAPI
	refreshTimes []time.Duration // offsets from midnight, ascending
	now          func() time.Time
}

// Option configures a HealthCheckerImpl.
type Option func(*HealthCheckerImpl)

// WithAPI adds the REST service probe to the report.
func WithAPI(api interfaces.MedicineAPI) Option {
	return func(h *HealthCheckerImpl) {
		h.api = api
	}
}

// WithRefreshTimes sets the daily refresh schedule ("HH:MM" separated by ';').
func WithRefreshTimes(schedule string) Option {
	return func(h *HealthCheckerImpl) {
		h.refreshTimes = parseSchedule(schedule)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *HealthCheckerImpl) {
		h.now = now
	}
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(dataStore interfaces.DataStore, opts ...Option) interfaces.HealthChecker {
	h := &HealthCheckerImpl{
		dataStore:    dataStore,
		refreshTimes: parseSchedule("06:00"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func parseSchedule(schedule string) []time.Duration {
	var out []time.Duration
	for _, part := range strings.Split(schedule, ";") {
		t, err := time.Parse("15:04", strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HealthCheck classifies the server as healthy, degraded or unhealthy.
// Old or missing data yields 503; an unreachable REST service only degrades
// the status since local data still answers.
func (h *HealthCheckerImpl) HealthCheck(ctx context.Context) (status string, data map[string]any, httpStatus int) {
	medicines := len(h.dataStore.GetMedicines())
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()
	dataAge := h.now().Sub(lastUpdate)

	var apiHealth *interfaces.APIHealth
	if h.api != nil {
		probe := h.api.HealthCheck(ctx)
		apiHealth = &probe
	}

	switch {
	case medicines == 0:
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	case dataAge > expiredAfter:
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	case dataAge > staleAfter:
		status, httpStatus = "degraded", http.StatusServiceUnavailable
	case isUpdating && dataAge > updateGrace:
		status, httpStatus = "degraded", http.StatusServiceUnavailable
	case apiHealth != nil && !apiHealth.Available:
		status, httpStatus = "degraded", http.StatusOK
	default:
		status, httpStatus = "healthy", http.StatusOK
	}

	data = map[string]any{
		"medicines":   medicines,
		"substances":  len(h.dataStore.GetSubstances()),
		"pharmacies":  len(h.dataStore.GetPharmacies()),
		"price_data":  h.dataStore.HasPriceData(),
		"is_updating": isUpdating,
		"next_update": h.CalculateNextUpdate().Format(time.RFC3339),
	}
	if lastUpdate.IsZero() {
		data["last_update"] = nil
		data["data_age_hours"] = nil
	} else {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
		data["data_age_hours"] = math.Round(dataAge.Hours()*10) / 10
	}
	if apiHealth != nil {
		data["rest_api"] = apiHealth
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled refresh after now
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	now := h.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if len(h.refreshTimes) == 0 {
		return midnight.AddDate(0, 0, 1)
	}
	for _, offset := range h.refreshTimes {
		if at := midnight.Add(offset); now.Before(at) {
			return at
		}
	}
	return midnight.AddDate(0, 0, 1).Add(h.refreshTimes[0])
}
