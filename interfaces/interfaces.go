// Package interfaces defines core abstractions for the SÚKL lookup server
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/sukl-mcp/opendata/entities"
)

// DataQualityReport provides a summary of data quality issues
type DataQualityReport struct {
	DuplicateCodes               []string
	MedicinesWithoutComposition  int
	MedicinesWithoutATC          int
	CompositionsUnknownMedicine  int // composition rows pointing to no medicine
	CompositionsUnknownSubstance int
	PricesUnknownMedicine        int
	SampleWithoutComposition     []string // first 10 codes
}

// DataStore defines the contract for data storage operations.
// It provides thread-safe access to the open-data tables
// with atomic operations for zero-downtime updates.
type DataStore interface {
	// Data retrieval methods
	GetMedicines() []entities.Medicine
	GetMedicine(code string) (entities.Medicine, bool)
	GetSubstances() []entities.Substance
	GetCompositions(medicineCode string) []entities.Composition
	GetCompositionsBySubstance(substanceCode string) []entities.Composition
	GetATCGroups() []entities.ATCGroup
	GetDocumentNames(code string) (entities.DocumentNames, bool)
	GetPrice(code string, today time.Time) (entities.PriceInfo, bool)
	HasPriceData() bool
	GetPharmacies() []entities.Pharmacy
	GetDataQualityReport() *DataQualityReport
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateData(ds *entities.Dataset, report *DataQualityReport)
	BeginUpdate() bool
	EndUpdate()
}

// Parser defines the contract for loading the open-data tables.
// It handles downloading, extracting, and transforming raw CSV files into entities.
type Parser interface {
	// Load downloads what is missing and parses all tables
	Load(ctx context.Context) (*entities.Dataset, error)
}

// APIHealth is the result of probing the upstream REST service.
type APIHealth struct {
	Available  bool    `json:"api_available"`
	LatencyMS  float64 `json:"latency_ms"`
	Error      string  `json:"error,omitempty"`
	CacheTotal int     `json:"cache_total_entries"`
	CacheValid int     `json:"cache_valid_entries"`
	CacheStale int     `json:"cache_stale_entries"`
}

// MedicineAPI defines the contract for the remote SÚKL REST service.
// Lookups return (nil, nil) when the remote answers but has no record.
type MedicineAPI interface {
	SearchMedicines(ctx context.Context, query string, limit int) ([]entities.Medicine, error)
	GetMedicine(ctx context.Context, code string) (*entities.Medicine, error)
	GetPharmacies(ctx context.Context, page, pageSize int) ([]entities.Pharmacy, int, error)
	PharmaciesByCity(ctx context.Context, city string, limit int) ([]entities.Pharmacy, error)
	GetPharmacy(ctx context.Context, code string) (*entities.Pharmacy, error)
	GetCodebook(ctx context.Context, name string) ([]entities.CodebookEntry, error)
	GetUpdateDates(ctx context.Context) (map[string]string, error)
	HealthCheck(ctx context.Context) APIHealth
}

// DocumentExtractor downloads a PIL/SPC document and returns its text.
type DocumentExtractor interface {
	Extract(ctx context.Context, url string) (*entities.Document, error)
}

// Scheduler defines the contract for job scheduling and health monitoring.
// It manages automated data updates and system health checks.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for the read-only JSON mirror endpoints.
type HTTPHandler interface {
	SearchMedicines(w http.ResponseWriter, r *http.Request)
	GetMedicine(w http.ResponseWriter, r *http.Request)
	FindPharmacies(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
// It provides system health monitoring and reporting.
type HealthChecker interface {
	// HealthCheck returns current system health status and the matching HTTP code
	HealthCheck(ctx context.Context) (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled update time
	CalculateNextUpdate() time.Time
}

// DataValidator defines the contract for data validation operations.
// It ensures data integrity and consistency.
type DataValidator interface {
	// ValidateMedicine checks if a medicine entity is valid
	ValidateMedicine(m *entities.Medicine) error

	// ReportDataQuality generates a data quality report with all issues found
	ReportDataQuality(ds *entities.Dataset) *DataQualityReport

	// ValidateInput validates free-text input of the HTTP mirror endpoints
	ValidateInput(input string) error

	// ValidateQuery validates and trims a search query
	ValidateQuery(input string) (string, error)

	// ValidateSUKLCode validates a SÚKL code and returns it in 7-digit form
	ValidateSUKLCode(input string) (string, error)

	// ValidateATCPrefix validates an ATC code or prefix and returns it upper-cased
	ValidateATCPrefix(input string) (string, error)

	// ValidateLimit checks that value lies in [minValue, maxValue]
	ValidateLimit(field string, value, minValue, maxValue int) error
}
