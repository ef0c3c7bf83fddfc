package opendata

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

// Table names of the open-data distribution.
const (
	TableMedicines    = "dlp_lecivepripravky"
	TableCompositions = "dlp_slozeni"
	TableSubstances   = "dlp_lecivelatky"
	TableATC          = "dlp_atc"
	TableDocuments    = "dlp_nazvydokumentu"
	TablePrices       = "dlp_cau"
	TablePharmacies   = "lekarny_seznam"
)

// Compile-time check to ensure Loader implements Parser interface
var _ interfaces.Parser = (*Loader)(nil)

// Config locates the archives and the directories they are unpacked into.
type Config struct {
	DLPURL          string
	PharmacyURL     string
	CacheDir        string
	DataDir         string
	DownloadTimeout time.Duration
	MaxArchiveSize  uint64
}

// Loader downloads, extracts and parses the open-data tables.
type Loader struct {
	cfg    Config
	client *http.Client
}

// NewLoader creates a Loader with an HTTP client bounded by cfg.DownloadTimeout.
func NewLoader(cfg Config) *Loader {
	return &Loader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.DownloadTimeout},
	}
}

func (l *Loader) archives() []archive {
	return []archive{
		{name: "DLP.zip", url: l.cfg.DLPURL, marker: TableMedicines + ".csv"},
		{name: "LEKARNY.zip", url: l.cfg.PharmacyURL, marker: TablePharmacies + ".csv", optional: true},
	}
}

// Load fetches the archives when needed and parses every table in parallel.
func (l *Loader) Load(ctx context.Context) (*entities.Dataset, error) {
	start := time.Now()

	if err := l.fetchAll(ctx); err != nil {
		return nil, err
	}

	ds, err := l.ParseDir(ctx)
	if err != nil {
		return nil, err
	}

	logging.Info("Open data loaded",
		"medicines", len(ds.Medicines),
		"compositions", len(ds.Compositions),
		"substances", len(ds.Substances),
		"atc_groups", len(ds.ATCGroups),
		"documents", len(ds.Documents),
		"prices", len(ds.Prices),
		"pharmacies", len(ds.Pharmacies),
		"duration", time.Since(start))
	return ds, nil
}

// ParseDir parses the CSV tables already present in the data dir. Missing
// optional tables leave their slice empty; the medicine and ATC tables are
// required to be non-empty.
func (l *Loader) ParseDir(ctx context.Context) (*entities.Dataset, error) {
	ds := &entities.Dataset{}
	g, _ := errgroup.WithContext(ctx)

	load := func(table string, convert func(*rawTable)) {
		g.Go(func() error {
			t, err := l.readIfPresent(table)
			if err != nil {
				return &errs.DataError{Table: table, Err: err}
			}
			if t == nil {
				logging.Warn("Table file not found", "table", table)
				return nil
			}
			convert(t)
			return nil
		})
	}

	load(TableMedicines, func(t *rawTable) { ds.Medicines = convertMedicines(t) })
	load(TableCompositions, func(t *rawTable) { ds.Compositions = convertCompositions(t) })
	load(TableSubstances, func(t *rawTable) { ds.Substances = convertSubstances(t) })
	load(TableATC, func(t *rawTable) { ds.ATCGroups = convertATC(t) })
	load(TableDocuments, func(t *rawTable) { ds.Documents = convertDocuments(t) })
	load(TablePrices, func(t *rawTable) { ds.Prices, ds.PricesHaveValidity = convertPrices(t) })
	load(TablePharmacies, func(t *rawTable) { ds.Pharmacies = convertPharmacies(t) })

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := checkCritical(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func (l *Loader) readIfPresent(table string) (*rawTable, error) {
	path := filepath.Join(l.cfg.DataDir, table+".csv")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return readTable(table, path)
}

func checkCritical(ds *entities.Dataset) error {
	if len(ds.Medicines) == 0 {
		return &errs.DataError{Table: TableMedicines, Err: fmt.Errorf("critical table is empty")}
	}
	if len(ds.ATCGroups) == 0 {
		return &errs.DataError{Table: TableATC, Err: fmt.Errorf("critical table is empty")}
	}
	return nil
}
