package pricing

import (
	"testing"
	"time"

	"github.com/giygas/sukl-mcp/opendata/entities"
)

func amount(v float64) *float64 { return &v }

func date(s string) *time.Time { return ParseDate(s) }

func TestResolveColumns(t *testing.T) {
	header := []string{"kod_sukl", "MC", "UHR1", "PLATNOST_DO", "IND_SK"}
	cols := ResolveColumns(header)

	expected := map[string]int{
		ColCode:            0,
		ColMaxPrice:        1,
		ColReimbursement:   2,
		ColValidUntil:      3,
		ColIndicationGroup: 4,
	}
	for col, idx := range expected {
		if got, ok := cols[col]; !ok || got != idx {
			t.Errorf("Expected %s at %d, got %d (present=%v)", col, idx, got, ok)
		}
	}
	if _, ok := cols[ColCopay]; ok {
		t.Error("Copay column should be absent")
	}
}

func TestResolveColumnsPrefersFirstVariant(t *testing.T) {
	cols := ResolveColumns([]string{"MAX_PRICE", "MC", "KOD_SUKL"})
	if cols[ColMaxPrice] != 1 {
		t.Errorf("Expected MC to win over MAX_PRICE, got index %d", cols[ColMaxPrice])
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"123,45", amount(123.45)},
		{"1 234,5", amount(1234.5)},
		{"99.9", amount(99.9)},
		{"", nil},
		{"n/a", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseAmount(tt.raw)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseAmount(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.raw, *got, *tt.want)
			}
		})
	}
}

func TestParseDateFormats(t *testing.T) {
	want := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"31.12.2025", "2025-12-31", "31/12/2025", "2025/12/31"} {
		got := ParseDate(raw)
		if got == nil || !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", raw, got, want)
		}
	}
	if ParseDate("12-31-2025") != nil {
		t.Error("Expected unsupported format to yield nil")
	}
}

func TestCurrentSelectsLatestValid(t *testing.T) {
	today := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	records := []entities.PriceRecord{
		{Code: "12345", MaxPrice: amount(100), Reimbursement: amount(80), ValidUntil: date("2025-05-31")},
		{Code: "12345", MaxPrice: amount(110), Reimbursement: amount(90), ValidUntil: date("2025-06-01")},
		{Code: "12345", MaxPrice: amount(120), Reimbursement: amount(0), ValidUntil: date("2024-01-01")},
		{Code: "99999", MaxPrice: amount(5)},
	}
	table := NewTable(records, true)

	info, ok := table.Current("0012345", today)
	if !ok {
		t.Fatal("Expected a current price record")
	}
	if *info.MaxPrice != 110 {
		t.Errorf("Expected record valid today to win, got max price %v", *info.MaxPrice)
	}
	if info.Copay == nil || *info.Copay != 20 {
		t.Errorf("Expected derived copay 20, got %v", info.Copay)
	}
	if !info.IsReimbursed {
		t.Error("Expected record to be reimbursed")
	}
}

func TestCurrentUndatedRecordIsValid(t *testing.T) {
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	table := NewTable([]entities.PriceRecord{
		{Code: "1", MaxPrice: amount(10), ValidUntil: date("2025-01-01")},
		{Code: "1", MaxPrice: amount(20)},
	}, true)

	info, ok := table.Current("1", today)
	if !ok || *info.MaxPrice != 20 {
		t.Errorf("Expected undated record to be selected, got %+v (ok=%v)", info, ok)
	}
}

func TestCurrentAllExpired(t *testing.T) {
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	table := NewTable([]entities.PriceRecord{
		{Code: "1", MaxPrice: amount(10), ValidUntil: date("2025-01-01")},
	}, true)

	if _, ok := table.Current("1", today); ok {
		t.Error("Expected no current record when all are expired")
	}
}

func TestCurrentWithoutValidityColumnTakesLast(t *testing.T) {
	table := NewTable([]entities.PriceRecord{
		{Code: "1", MaxPrice: amount(10)},
		{Code: "1", MaxPrice: amount(30), ValidUntil: date("2000-01-01")},
	}, false)

	info, ok := table.Current("1", time.Now())
	if !ok || *info.MaxPrice != 30 {
		t.Errorf("Expected last record, got %+v", info)
	}
}

func TestDerive(t *testing.T) {
	info := Derive(entities.PriceRecord{MaxPrice: amount(50), Reimbursement: amount(80)})
	if info.Copay == nil || *info.Copay != 0 {
		t.Errorf("Expected copay clamped at 0, got %v", info.Copay)
	}

	info = Derive(entities.PriceRecord{MaxPrice: amount(50), Reimbursement: amount(20), Copay: amount(12)})
	if *info.Copay != 12 {
		t.Errorf("Expected stated copay to be kept, got %v", *info.Copay)
	}

	info = Derive(entities.PriceRecord{MaxPrice: amount(50), Reimbursement: amount(0)})
	if info.IsReimbursed {
		t.Error("Zero reimbursement must not count as reimbursed")
	}

	info = Derive(entities.PriceRecord{MaxPrice: amount(50)})
	if info.Copay != nil {
		t.Errorf("Expected no copay without reimbursement, got %v", *info.Copay)
	}
}

func TestNilTable(t *testing.T) {
	var table *Table
	if _, ok := table.Current("1", time.Now()); ok {
		t.Error("Expected nil table to have no prices")
	}
	if table.Len() != 0 {
		t.Error("Expected nil table to be empty")
	}
}
