package data

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
	"github.com/giygas/sukl-mcp/validation"
)

func price(v float64) *float64 { return &v }

func testDataset() *entities.Dataset {
	return &entities.Dataset{
		Medicines: []entities.Medicine{
			{Code: "0012345", Name: "PARALEN 500MG", Availability: entities.AvailabilityAvailable},
			{Code: "0023456", Name: "IBUPROFEN AL 400", Availability: entities.AvailabilityUnavailable},
		},
		Substances: []entities.Substance{{Code: "100", Name: "PARACETAMOL"}},
		Compositions: []entities.Composition{
			{MedicineCode: "0012345", SubstanceCode: "100"},
		},
		ATCGroups: []entities.ATCGroup{{Code: "N", Name: "NERVOVÝ SYSTÉM"}},
		Documents: []entities.DocumentNames{{Code: "0012345", PIL: "PI1.pdf"}},
		Prices: []entities.PriceRecord{
			{Code: "12345", MaxPrice: price(100), Reimbursement: price(60)},
		},
		Pharmacies: []entities.Pharmacy{{ID: "L1", Name: "LÉKÁRNA"}},
	}
}

// mockParser counts loads and returns a fixed dataset
type mockParser struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (p *mockParser) Load(ctx context.Context) (*entities.Dataset, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return testDataset(), nil
}

func TestNewDataContainer(t *testing.T) {
	logging.InitLogger(logging.Options{})

	dc := NewDataContainer()

	if dc.IsUpdating() {
		t.Error("NewDataContainer should not be updating")
	}
	if !dc.GetLastUpdated().IsZero() {
		t.Error("NewDataContainer should have zero lastUpdated time")
	}
	if len(dc.GetMedicines()) != 0 || len(dc.GetATCGroups()) != 0 || len(dc.GetPharmacies()) != 0 {
		t.Error("NewDataContainer should have empty tables")
	}
	if dc.HasPriceData() {
		t.Error("NewDataContainer should have no price data")
	}
	if _, ok := dc.GetPrice("12345", time.Now()); ok {
		t.Error("Expected no price without data")
	}
	if dc.IsLoaded() {
		t.Error("Empty container must not report loaded")
	}
}

func TestUpdateDataBuildsIndices(t *testing.T) {
	logging.InitLogger(logging.Options{})

	dc := NewDataContainer()
	dc.UpdateData(testDataset(), nil)

	if len(dc.GetMedicines()) != 2 {
		t.Fatalf("Expected 2 medicines, got %d", len(dc.GetMedicines()))
	}

	for _, code := range []string{"0012345", "12345", " 12345"} {
		m, ok := dc.GetMedicine(code)
		if !ok || m.Name != "PARALEN 500MG" {
			t.Errorf("GetMedicine(%q) = %+v, %v", code, m, ok)
		}
	}
	if _, ok := dc.GetMedicine("999"); ok {
		t.Error("Expected unknown code to be missing")
	}

	if comps := dc.GetCompositions("12345"); len(comps) != 1 {
		t.Errorf("Expected 1 composition by medicine, got %d", len(comps))
	}
	if comps := dc.GetCompositionsBySubstance("100"); len(comps) != 1 || comps[0].MedicineCode != "0012345" {
		t.Errorf("Unexpected compositions by substance: %+v", comps)
	}

	if docs, ok := dc.GetDocumentNames("0012345"); !ok || docs.PIL != "PI1.pdf" {
		t.Errorf("Unexpected documents: %+v (%v)", docs, ok)
	}

	info, ok := dc.GetPrice("0012345", time.Now())
	if !ok || *info.Copay != 40 {
		t.Errorf("Expected derived copay 40, got %+v (%v)", info, ok)
	}
	if !dc.HasPriceData() {
		t.Error("Expected price data")
	}

	if dc.GetLastUpdated().IsZero() {
		t.Error("Expected lastUpdated to be set")
	}
	if !dc.IsLoaded() {
		t.Error("Expected container to report loaded")
	}
}

func TestUpdateDataDuplicateCodeFirstWins(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData(&entities.Dataset{Medicines: []entities.Medicine{
		{Code: "0000001", Name: "FIRST"},
		{Code: "1", Name: "SECOND"},
	}}, nil)

	m, _ := dc.GetMedicine("1")
	if m.Name != "FIRST" {
		t.Errorf("Expected first occurrence to win, got %s", m.Name)
	}
}

func TestUpdateDataWithNil(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData(nil, nil)

	if len(dc.GetMedicines()) != 0 {
		t.Error("Expected nil dataset to produce empty tables")
	}
	if dc.GetDataQualityReport() != nil {
		t.Error("Expected no report")
	}
}

func TestBeginUpdateEndUpdate(t *testing.T) {
	dc := NewDataContainer()

	if !dc.BeginUpdate() {
		t.Fatal("First BeginUpdate should succeed")
	}
	if !dc.IsUpdating() {
		t.Error("Expected container to be updating")
	}
	if dc.BeginUpdate() {
		t.Error("Second BeginUpdate should fail while updating")
	}

	dc.EndUpdate()
	if dc.IsUpdating() {
		t.Error("Expected update flag to be cleared")
	}
	if !dc.BeginUpdate() {
		t.Error("BeginUpdate should succeed after EndUpdate")
	}
}

func TestServerStartTime(t *testing.T) {
	dc := NewDataContainer()
	if !dc.GetServerStartTime().IsZero() {
		t.Error("Expected zero start time")
	}

	now := time.Now()
	dc.SetServerStartTime(now)
	if !dc.GetServerStartTime().Equal(now) {
		t.Error("Expected stored start time")
	}
}

func TestConcurrentReadsDuringUpdate(t *testing.T) {
	logging.InitLogger(logging.Options{})

	dc := NewDataContainer()
	dc.UpdateData(testDataset(), nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// A reader always sees a complete snapshot
				if n := len(dc.GetMedicines()); n != 2 {
					t.Errorf("Observed partial snapshot with %d medicines", n)
					return
				}
				if _, ok := dc.GetMedicine("12345"); !ok {
					t.Error("Medicine disappeared during update")
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		dc.UpdateData(testDataset(), nil)
	}
	close(stop)
	wg.Wait()
}

func TestEnsureLoadedSharesSingleLoad(t *testing.T) {
	logging.InitLogger(logging.Options{})

	dc := NewDataContainer()
	parser := &mockParser{delay: 50 * time.Millisecond}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dc.EnsureLoaded(context.Background(), parser, validation.NewDataValidator()); err != nil {
				t.Errorf("EnsureLoaded failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls := parser.calls.Load(); calls != 1 {
		t.Errorf("Expected exactly one load, got %d", calls)
	}
	if !dc.IsLoaded() {
		t.Fatal("Expected data to be loaded")
	}
	if dc.GetDataQualityReport() == nil {
		t.Error("Expected data quality report to be stored")
	}

	// Loaded containers never call the parser again
	if err := dc.EnsureLoaded(context.Background(), parser, nil); err != nil {
		t.Fatal(err)
	}
	if calls := parser.calls.Load(); calls != 1 {
		t.Errorf("Expected no reload, got %d calls", calls)
	}
}

func TestEnsureLoadedPropagatesError(t *testing.T) {
	logging.InitLogger(logging.Options{})

	dc := NewDataContainer()
	parser := &mockParser{err: errors.New("boom")}

	err := dc.EnsureLoaded(context.Background(), parser, nil)
	if err == nil || !errors.Is(err, parser.err) {
		t.Fatalf("Expected wrapped parser error, got %v", err)
	}
	if dc.IsUpdating() {
		t.Error("Update flag must be released after a failed load")
	}

	// A failed load is retried on the next call
	parser.err = nil
	if err := dc.EnsureLoaded(context.Background(), parser, nil); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
}

func TestEnsureLoadedWaitsForRunningRefresh(t *testing.T) {
	logging.InitLogger(logging.Options{})

	dc := NewDataContainer()
	scheduled := &mockParser{delay: 100 * time.Millisecond}
	onDemand := &mockParser{}

	done := make(chan error, 1)
	go func() {
		done <- Refresh(context.Background(), dc, scheduled, nil)
	}()

	deadline := time.Now().Add(time.Second)
	for !dc.IsUpdating() && !dc.IsLoaded() {
		if time.Now().After(deadline) {
			t.Fatal("Scheduled refresh did not start")
		}
		time.Sleep(time.Millisecond)
	}

	if err := dc.EnsureLoaded(context.Background(), onDemand, nil); err != nil {
		t.Fatalf("Expected EnsureLoaded to wait for the running refresh, got %v", err)
	}
	if !dc.IsLoaded() {
		t.Error("Expected data to be loaded")
	}
	if calls := onDemand.calls.Load(); calls != 0 {
		t.Errorf("Expected the running refresh to be reused, parser called %d times", calls)
	}
	if err := <-done; err != nil {
		t.Errorf("Scheduled refresh failed: %v", err)
	}
}

func TestEnsureLoadedCancelledCallerDoesNotFailOthers(t *testing.T) {
	logging.InitLogger(logging.Options{})

	dc := NewDataContainer()
	parser := &mockParser{delay: 100 * time.Millisecond}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		leaderErr <- dc.EnsureLoaded(leaderCtx, parser, nil)
	}()

	deadline := time.Now().Add(time.Second)
	for parser.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Shared load did not start")
		}
		time.Sleep(time.Millisecond)
	}

	followerErr := make(chan error, 1)
	go func() {
		followerErr <- dc.EnsureLoaded(context.Background(), parser, nil)
	}()
	cancel()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancelled caller to get context.Canceled, got %v", err)
	}
	if err := <-followerErr; err != nil {
		t.Fatalf("Expected follower to get the shared result, got %v", err)
	}
	if !dc.IsLoaded() {
		t.Error("Expected the shared load to finish after the leader left")
	}
	if calls := parser.calls.Load(); calls != 1 {
		t.Errorf("Expected exactly one load, got %d", calls)
	}
}

func TestEnsureLoadedEmptyDataset(t *testing.T) {
	dc := NewDataContainer()

	err := dc.EnsureLoaded(context.Background(), emptyParser{}, nil)
	if err == nil {
		t.Fatal("Expected an error when the load publishes no medicines")
	}
	if dc.IsUpdating() {
		t.Error("Update flag must be released")
	}
}

type emptyParser struct{}

func (emptyParser) Load(ctx context.Context) (*entities.Dataset, error) {
	return &entities.Dataset{}, nil
}

func TestRefreshSkipsWhenUpdating(t *testing.T) {
	dc := NewDataContainer()
	parser := &mockParser{}

	dc.BeginUpdate()
	defer dc.EndUpdate()

	if err := Refresh(context.Background(), dc, parser, nil); err != nil {
		t.Fatalf("Expected skipped refresh to return nil, got %v", err)
	}
	if parser.calls.Load() != 0 {
		t.Error("Parser must not be called while another update runs")
	}
}

func BenchmarkGetMedicine(b *testing.B) {
	dc := NewDataContainer()
	dc.UpdateData(testDataset(), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = dc.GetMedicine("12345")
	}
}
