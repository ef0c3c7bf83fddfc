package lookup

import (
	"time"

	"github.com/giygas/sukl-mcp/opendata/entities"
)

// Provenance tags of search responses.
const (
	SourceREST = "rest_api"
	SourceCSV  = "csv"
)

// SearchParams are the inputs of Search.
type SearchParams struct {
	Query          string
	OnlyAvailable  bool
	OnlyReimbursed bool
	Limit          int
	Offset         int
	UseFuzzy       bool
}

// SearchResponse is the answer of Search. MatchType is "rest_api" for remote
// results and "csv_<stage>" for local ones.
type SearchResponse struct {
	Query        string                  `json:"query"`
	TotalResults int                     `json:"total_results"`
	Results      []entities.SearchResult `json:"results"`
	SearchTimeMS float64                 `json:"search_time_ms"`
	MatchType    string                  `json:"match_type"`
}

// MedicineDetail is the full view of one medicine.
type MedicineDetail struct {
	entities.Medicine
	ATCName             string    `json:"atc_name,omitempty"`
	IsAvailable         bool      `json:"is_available"`
	IsMarketed          bool      `json:"is_marketed"`
	HasReimbursement    *bool     `json:"has_reimbursement"`
	MaxPrice            *float64  `json:"max_price"`
	ReimbursementAmount *float64  `json:"reimbursement_amount"`
	PatientCopay        *float64  `json:"patient_copay"`
	PILAvailable        bool      `json:"pil_available"`
	SPCAvailable        bool      `json:"spc_available"`
	IsNarcotic          bool      `json:"is_narcotic"`
	IsDoping            bool      `json:"is_doping"`
	Source              string    `json:"source"`
	LastUpdated         time.Time `json:"last_updated"`
}

// DocumentContent is the text of a PIL or SPC, or a pointer to it when the
// document could not be parsed.
type DocumentContent struct {
	SuklCode       string `json:"sukl_code"`
	MedicineName   string `json:"medicine_name"`
	DocumentURL    string `json:"document_url"`
	Language       string `json:"language"`
	FullText       string `json:"full_text"`
	DocumentFormat string `json:"document_format,omitempty"`
}

// AvailabilityInfo is the market availability of a medicine with ranked
// replacements.
type AvailabilityInfo struct {
	SuklCode              string                 `json:"sukl_code"`
	Name                  string                 `json:"name"`
	IsAvailable           bool                   `json:"is_available"`
	Status                entities.Availability  `json:"status"`
	AlternativesAvailable bool                   `json:"alternatives_available"`
	Alternatives          []entities.Alternative `json:"alternatives"`
	Recommendation        string                 `json:"recommendation,omitempty"`
	CheckedAt             time.Time              `json:"checked_at"`
}

// ReimbursementInfo is the price and reimbursement view of a medicine.
type ReimbursementInfo struct {
	SuklCode            string   `json:"sukl_code"`
	MedicineName        string   `json:"medicine_name"`
	IsReimbursed        bool     `json:"is_reimbursed"`
	ReimbursementGroup  string   `json:"reimbursement_group,omitempty"`
	MaxProducerPrice    *float64 `json:"max_producer_price"`
	MaxRetailPrice      *float64 `json:"max_retail_price"`
	ReimbursementAmount *float64 `json:"reimbursement_amount"`
	PatientCopay        *float64 `json:"patient_copay"`
	HasIndicationLimit  bool     `json:"has_indication_limit"`
	IndicationLimitText string   `json:"indication_limit_text,omitempty"`
	SpecialistOnly      bool     `json:"specialist_only"`
	PriceDataAvailable  bool     `json:"price_data_available"`
}

// PharmacyQuery are the filters of FindPharmacies.
type PharmacyQuery struct {
	City             string
	PostalCode       string
	Has24hService    bool
	HasInternetSales bool
	Limit            int
}

// PharmacyResult is the answer of FindPharmacies.
type PharmacyResult struct {
	Total      int                 `json:"total"`
	Pharmacies []entities.Pharmacy `json:"pharmacies"`
	Source     string              `json:"source"`
}

// ATCChild is a descendant entry of an ATC group.
type ATCChild struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ATCInfo describes one ATC group with its descendants.
type ATCInfo struct {
	Code          string     `json:"code"`
	Name          string     `json:"name"`
	Level         int        `json:"level"`
	Children      []ATCChild `json:"children"`
	TotalChildren int        `json:"total_children"`
}

// BatchItem is the availability of one code of a batch request.
type BatchItem struct {
	SuklCode    string `json:"sukl_code"`
	IsAvailable bool   `json:"is_available"`
	Name        string `json:"name,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchResult summarizes a batch availability check.
type BatchResult struct {
	Total       int         `json:"total"`
	Available   int         `json:"available"`
	Unavailable int         `json:"unavailable"`
	Truncated   bool        `json:"truncated,omitempty"`
	Results     []BatchItem `json:"results"`
}
