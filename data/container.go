// Package data provides thread-safe data storage for the SÚKL open-data tables.
// It includes the DataContainer struct with atomic snapshot swaps for zero-downtime
// updates and read-only lookup indices built once per load.
package data

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
	"github.com/giygas/sukl-mcp/pricing"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

const (
	// maxLoadDuration bounds a shared first load, which no caller can cancel
	maxLoadDuration    = 30 * time.Minute
	updatePollInterval = 50 * time.Millisecond
)

// snapshot is one immutable generation of the tables and their indices.
// A published snapshot is never modified.
type snapshot struct {
	medicines     []entities.Medicine
	medicineByKey map[string]int // normalized code -> index in medicines
	substances    []entities.Substance
	compByMed     map[string][]entities.Composition
	compBySub     map[string][]entities.Composition
	atcGroups     []entities.ATCGroup
	documents     map[string]entities.DocumentNames
	prices        *pricing.Table
	pharmacies    []entities.Pharmacy
	report        *interfaces.DataQualityReport
}

func newSnapshot(ds *entities.Dataset, report *interfaces.DataQualityReport) *snapshot {
	if ds == nil {
		ds = &entities.Dataset{}
	}

	s := &snapshot{
		medicines:     ds.Medicines,
		medicineByKey: make(map[string]int, len(ds.Medicines)),
		substances:    ds.Substances,
		compByMed:     make(map[string][]entities.Composition),
		compBySub:     make(map[string][]entities.Composition),
		atcGroups:     ds.ATCGroups,
		documents:     make(map[string]entities.DocumentNames, len(ds.Documents)),
		pharmacies:    ds.Pharmacies,
		report:        report,
	}

	// First occurrence wins on duplicate codes
	for i := range ds.Medicines {
		key := ds.Medicines[i].Key()
		if _, exists := s.medicineByKey[key]; !exists {
			s.medicineByKey[key] = i
		}
	}

	for _, c := range ds.Compositions {
		key := entities.NormalizeCode(c.MedicineCode)
		s.compByMed[key] = append(s.compByMed[key], c)
		s.compBySub[c.SubstanceCode] = append(s.compBySub[c.SubstanceCode], c)
	}

	for _, d := range ds.Documents {
		s.documents[entities.NormalizeCode(d.Code)] = d
	}

	if len(ds.Prices) > 0 {
		s.prices = pricing.NewTable(ds.Prices, ds.PricesHaveValidity)
	}

	return s
}

// DataContainer holds all the data with atomic pointers for zero-downtime updates
type DataContainer struct {
	current         atomic.Pointer[snapshot]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
	loadGroup       singleflight.Group
}

// NewDataContainer creates a new DataContainer with empty data
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.current.Store(newSnapshot(nil, nil))
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{}) // Initialize with zero value
	return dc
}

func (dc *DataContainer) snap() *snapshot {
	if s := dc.current.Load(); s != nil {
		return s
	}

	logging.Warn("Data snapshot is empty or invalid")
	return newSnapshot(nil, nil)
}

// Thread-safe getters over the current snapshot

// GetMedicines returns the medicine table in file order
func (dc *DataContainer) GetMedicines() []entities.Medicine {
	return dc.snap().medicines
}

// GetMedicine returns the medicine with the given code, leading zeros ignored
func (dc *DataContainer) GetMedicine(code string) (entities.Medicine, bool) {
	s := dc.snap()
	idx, ok := s.medicineByKey[entities.NormalizeCode(code)]
	if !ok {
		return entities.Medicine{}, false
	}
	return s.medicines[idx], true
}

// GetSubstances returns the substance table
func (dc *DataContainer) GetSubstances() []entities.Substance {
	return dc.snap().substances
}

// GetCompositions returns the composition rows of a medicine
func (dc *DataContainer) GetCompositions(medicineCode string) []entities.Composition {
	return dc.snap().compByMed[entities.NormalizeCode(medicineCode)]
}

// GetCompositionsBySubstance returns the composition rows that reference a substance
func (dc *DataContainer) GetCompositionsBySubstance(substanceCode string) []entities.Composition {
	return dc.snap().compBySub[substanceCode]
}

// GetATCGroups returns the ATC table in file order
func (dc *DataContainer) GetATCGroups() []entities.ATCGroup {
	return dc.snap().atcGroups
}

// GetDocumentNames returns the PIL/SPC file names of a medicine
func (dc *DataContainer) GetDocumentNames(code string) (entities.DocumentNames, bool) {
	d, ok := dc.snap().documents[entities.NormalizeCode(code)]
	return d, ok
}

// GetPrice returns the price record of code valid on today
func (dc *DataContainer) GetPrice(code string, today time.Time) (entities.PriceInfo, bool) {
	return dc.snap().prices.Current(code, today)
}

// HasPriceData reports whether a price list was loaded at all
func (dc *DataContainer) HasPriceData() bool {
	return dc.snap().prices.Len() > 0
}

// GetPharmacies returns the pharmacy table
func (dc *DataContainer) GetPharmacies() []entities.Pharmacy {
	return dc.snap().pharmacies
}

// GetDataQualityReport returns the report computed for the current snapshot
func (dc *DataContainer) GetDataQualityReport() *interfaces.DataQualityReport {
	return dc.snap().report
}

// GetLastUpdated returns the timestamp of the last data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a data update is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData builds the indices of ds and swaps them in atomically
func (dc *DataContainer) UpdateData(ds *entities.Dataset, report *interfaces.DataQualityReport) {
	next := newSnapshot(ds, report)

	// Atomic swap (zero downtime replacement)
	dc.current.Store(next)
	dc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks the start of a data update operation
// Returns true if update can proceed, false if another update is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a data update operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}

// IsLoaded reports whether a non-empty snapshot has been published
func (dc *DataContainer) IsLoaded() bool {
	return len(dc.snap().medicines) > 0
}

// EnsureLoaded loads the tables through parser unless a snapshot is already
// published. Concurrent callers share a single load, and a caller arriving
// while another update (such as the scheduler's) runs waits for it instead of
// failing. A cancelled caller stops waiting; the shared load goes on.
func (dc *DataContainer) EnsureLoaded(ctx context.Context, parser interfaces.Parser, validator interfaces.DataValidator) error {
	if dc.IsLoaded() {
		return nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := dc.loadGroup.DoChan("load", func() (any, error) {
		lctx, cancel := context.WithTimeout(loadCtx, maxLoadDuration)
		defer cancel()
		return nil, dc.loadOnce(lctx, parser, validator)
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting for open data load: %w", ctx.Err())
	case res := <-ch:
		if res.Shared {
			logging.Debug("Joined in-flight data load")
		}
		return res.Err
	}
}

// loadOnce runs a refresh, or waits out the one already holding the update
// flag, until a snapshot is published or a refresh of its own fails.
func (dc *DataContainer) loadOnce(ctx context.Context, parser interfaces.Parser, validator interfaces.DataValidator) error {
	ticker := time.NewTicker(updatePollInterval)
	defer ticker.Stop()

	for !dc.IsLoaded() {
		if dc.IsUpdating() {
			select {
			case <-ctx.Done():
				return fmt.Errorf("waiting for running update: %w", ctx.Err())
			case <-ticker.C:
			}
			continue
		}

		ran, err := refresh(ctx, dc, parser, validator)
		if err != nil {
			return err
		}
		if ran && !dc.IsLoaded() {
			return fmt.Errorf("open data load produced no medicines")
		}
	}
	return nil
}

// Refresh loads a new dataset and publishes it. It is a no-op returning nil
// when another update is already running.
func Refresh(ctx context.Context, store interfaces.DataStore, parser interfaces.Parser, validator interfaces.DataValidator) error {
	_, err := refresh(ctx, store, parser, validator)
	return err
}

// refresh reports whether it held the update flag and ran the load.
func refresh(ctx context.Context, store interfaces.DataStore, parser interfaces.Parser, validator interfaces.DataValidator) (bool, error) {
	// Prevent concurrent updates
	if !store.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return false, nil
	}
	defer store.EndUpdate()

	logging.Info(fmt.Sprintf("Starting data update at: %s", time.Now().Format(time.RFC3339)))
	start := time.Now()

	ds, err := parser.Load(ctx)
	if err != nil {
		logging.Error("Failed to load open data", "error", err)
		return true, fmt.Errorf("failed to load open data: %w", err)
	}

	var report *interfaces.DataQualityReport
	if validator != nil {
		report = validator.ReportDataQuality(ds)
		logReport(report)
	}

	store.UpdateData(ds, report)

	logging.Info("Data update completed", "duration", time.Since(start).String(), "medicine_count", len(ds.Medicines))
	return true, nil
}

func logReport(report *interfaces.DataQualityReport) {
	if len(report.DuplicateCodes) > 0 {
		logging.Warn("Duplicate SÚKL codes detected",
			"total", len(report.DuplicateCodes),
			"code_list", report.DuplicateCodes,
		)
	}

	if report.MedicinesWithoutComposition > 0 {
		logging.Warn("Medicines without composition",
			"count", report.MedicinesWithoutComposition,
			"sample", report.SampleWithoutComposition,
		)
	}

	if report.CompositionsUnknownMedicine > 0 || report.CompositionsUnknownSubstance > 0 {
		logging.Warn("Composition rows with unresolved references",
			"unknown_medicine", report.CompositionsUnknownMedicine,
			"unknown_substance", report.CompositionsUnknownSubstance,
		)
	}

	if report.PricesUnknownMedicine > 0 {
		logging.Info("Price records without medicine", "count", report.PricesUnknownMedicine)
	}
}
