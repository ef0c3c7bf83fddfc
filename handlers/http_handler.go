package handlers

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/lookup"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler interface
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	svc       *lookup.Service
	health    interfaces.HealthChecker
	validator interfaces.DataValidator
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(svc *lookup.Service, health interfaces.HealthChecker, validator interfaces.DataValidator) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		svc:       svc,
		health:    health,
		validator: validator,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// SearchMedicines handles GET /v1/medicines?q=
func (h *HTTPHandlerImpl) SearchMedicines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if err := h.validator.ValidateInput(q); err != nil {
		logging.Warn("Unusual user input", "q", q, "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := lookup.SearchParams{Query: q, UseFuzzy: true}
	var err error
	if params.Limit, err = queryInt(r, "limit"); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.Offset, err = queryInt(r, "offset"); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.OnlyAvailable, err = queryBool(r, "only_available"); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.OnlyReimbursed, err = queryBool(r, "only_reimbursed"); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.URL.Query().Has("fuzzy") {
		if params.UseFuzzy, err = queryBool(r, "fuzzy"); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp, err := h.svc.Search(r.Context(), params)
	if err != nil {
		respondWithLookupError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

// GetMedicine handles GET /v1/medicines/{code}
func (h *HTTPHandlerImpl) GetMedicine(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	detail, err := h.svc.GetMedicineDetail(r.Context(), code)
	if err != nil {
		respondWithLookupError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, detail)
}

// FindPharmacies handles GET /v1/pharmacies
func (h *HTTPHandlerImpl) FindPharmacies(w http.ResponseWriter, r *http.Request) {
	query := lookup.PharmacyQuery{
		City:       strings.TrimSpace(r.URL.Query().Get("city")),
		PostalCode: strings.TrimSpace(r.URL.Query().Get("postal_code")),
	}
	if query.City != "" {
		if err := h.validator.ValidateInput(query.City); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var err error
	if query.Has24hService, err = queryBool(r, "nonstop"); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.HasInternetSales, err = queryBool(r, "online"); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Limit, err = queryInt(r, "limit"); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.FindPharmacies(r.Context(), query)
	if err != nil {
		respondWithLookupError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

// Statistics handles GET /v1/statistics
func (h *HTTPHandlerImpl) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.DetailedStatistics(r.Context())
	if err != nil {
		respondWithLookupError(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, stats)
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, details, httpStatus := h.health.HealthCheck(r.Context())

	response := HealthResponse{
		Status:        status,
		Version:       h.svc.Version(),
		UptimeSeconds: time.Since(h.svc.Store().GetServerStartTime()).Seconds(),
		Data:          details,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	}

	RespondWithJSON(w, httpStatus, response)
}
