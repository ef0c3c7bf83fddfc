// Package lookup orchestrates the medicine queries behind the MCP tools. The
// remote SÚKL REST service is asked first where it can answer; a failure or an
// empty answer falls through to the local open-data snapshot, which also
// supplies every price and reimbursement figure.
package lookup

import (
	"context"
	"time"

	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/metrics"
	"github.com/giygas/sukl-mcp/search"
)

// Service answers medicine, pharmacy, ATC and document queries.
type Service struct {
	store     interfaces.DataStore
	validator interfaces.DataValidator
	api       interfaces.MedicineAPI
	docs      interfaces.DocumentExtractor
	matcher   *search.Matcher
	ready     func(ctx context.Context) error
	version   string
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAPI enables the remote REST service as the first lookup source.
func WithAPI(api interfaces.MedicineAPI) Option {
	return func(s *Service) {
		s.api = api
	}
}

// WithDocuments sets the PIL/SPC extractor.
func WithDocuments(docs interfaces.DocumentExtractor) Option {
	return func(s *Service) {
		s.docs = docs
	}
}

// WithReadiness sets the function that loads the local tables on first use.
func WithReadiness(ready func(ctx context.Context) error) Option {
	return func(s *Service) {
		s.ready = ready
	}
}

// WithVersion sets the server version reported by the statistics.
func WithVersion(version string) Option {
	return func(s *Service) {
		s.version = version
	}
}

// WithClock replaces time.Now, mainly for price validity in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service over the given store.
func NewService(store interfaces.DataStore, validator interfaces.DataValidator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: validator,
		matcher:   search.NewMatcher(store),
		version:   "dev",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying data store.
func (s *Service) Store() interfaces.DataStore {
	return s.store
}

// API returns the REST client, nil when the service runs offline.
func (s *Service) API() interfaces.MedicineAPI {
	return s.api
}

// Version returns the server version.
func (s *Service) Version() string {
	return s.version
}

// ensureLoaded makes sure the local tables are available.
func (s *Service) ensureLoaded(ctx context.Context) error {
	if s.ready == nil {
		return nil
	}
	return s.ready(ctx)
}

func recordSource(operation, source string) {
	metrics.LookupSourceTotals.WithLabelValues(operation, source).Inc()
}

func logFallback(operation string, err error) {
	if err != nil {
		logging.Warn("REST lookup failed, falling back to open data", "operation", operation, "error", err)
		return
	}
	logging.Debug("REST lookup returned nothing, falling back to open data", "operation", operation)
}

// priceOf returns the current price figures of code. ok is false when the
// price list has no record for it.
func (s *Service) priceOf(code string) (hasReimbursement *bool, maxPrice, reimbursement, copay *float64, ok bool) {
	info, found := s.store.GetPrice(code, s.now())
	if !found {
		return nil, nil, nil, nil, false
	}
	reimbursed := info.IsReimbursed
	return &reimbursed, info.MaxPrice, info.Reimbursement, info.Copay, true
}
