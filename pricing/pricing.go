// Package pricing selects the current price and reimbursement record of a
// medicine from the price list and derives the patient copay.
package pricing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/sukl-mcp/opendata/entities"
)

// Canonical column names of the price table.
const (
	ColCode            = "KOD_SUKL"
	ColMaxPrice        = "MAX_PRICE"
	ColReimbursement   = "REIMBURSEMENT"
	ColCopay           = "COPAY"
	ColValidUntil      = "VALID_UNTIL"
	ColIndicationGroup = "INDICATION_GROUP"
)

// columnVariants lists, per canonical column, the header names seen in the
// published files in order of preference.
var columnVariants = map[string][]string{
	ColCode:            {"KOD_SUKL", "SUKL_CODE"},
	ColMaxPrice:        {"MC", "CENA_MAX", "MAX_CENA", "MAX_PRICE"},
	ColReimbursement:   {"UHR1", "UHRADA", "REIMBURSEMENT", "UHRADA_1"},
	ColCopay:           {"DOPLATEK", "COPAY", "DOPLATEK_PACIENTA"},
	ColValidUntil:      {"PLATNOST_DO", "DATUM_DO", "VALID_UNTIL"},
	ColIndicationGroup: {"IND_SK", "INDIKACNI_SKUPINA", "INDICATION_GROUP"},
}

var dateLayouts = []string{"02.01.2006", "2006-01-02", "02/01/2006", "2006/01/02"}

// ResolveColumns maps canonical column names to their index in header.
// Header names are compared case-insensitively. Columns without any known
// variant are absent from the result.
func ResolveColumns(header []string) map[string]int {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.ToUpper(strings.TrimSpace(name))] = i
	}

	resolved := make(map[string]int)
	for canonical, variants := range columnVariants {
		for _, variant := range variants {
			if idx, ok := positions[variant]; ok {
				resolved[canonical] = idx
				break
			}
		}
	}
	return resolved
}

// ParseAmount reads a price that may use a decimal comma and space
// thousands separators. Empty or malformed values yield nil.
func ParseAmount(raw string) *float64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseDate reads a validity date in any of the formats used by the price list.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// RecordFromRow builds a PriceRecord from a CSV row using resolved columns.
func RecordFromRow(row []string, cols map[string]int) (entities.PriceRecord, error) {
	get := func(col string) string {
		idx, ok := cols[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	code := entities.NormalizeCode(get(ColCode))
	if code == "" {
		return entities.PriceRecord{}, fmt.Errorf("price row without %s", ColCode)
	}

	return entities.PriceRecord{
		Code:            code,
		MaxPrice:        ParseAmount(get(ColMaxPrice)),
		Reimbursement:   ParseAmount(get(ColReimbursement)),
		Copay:           ParseAmount(get(ColCopay)),
		IndicationGroup: get(ColIndicationGroup),
		ValidUntil:      ParseDate(get(ColValidUntil)),
	}, nil
}

// Table holds price records grouped by normalized medicine code, in file order.
type Table struct {
	byCode      map[string][]entities.PriceRecord
	hasValidity bool
	rows        int
}

// NewTable groups records by code. hasValidity tells whether the source file
// carried a validity column at all.
func NewTable(records []entities.PriceRecord, hasValidity bool) *Table {
	t := &Table{
		byCode:      make(map[string][]entities.PriceRecord),
		hasValidity: hasValidity,
		rows:        len(records),
	}
	for _, r := range records {
		key := entities.NormalizeCode(r.Code)
		t.byCode[key] = append(t.byCode[key], r)
	}
	return t
}

// Len returns the number of price rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Current returns the price view of code valid on day today.
//
// With a validity column, records expiring before today are dropped and the
// last remaining one wins; a record without a date counts as valid. Without
// the column the last record wins.
func (t *Table) Current(code string, today time.Time) (entities.PriceInfo, bool) {
	if t == nil {
		return entities.PriceInfo{}, false
	}

	records := t.byCode[entities.NormalizeCode(code)]
	if len(records) == 0 {
		return entities.PriceInfo{}, false
	}

	var selected *entities.PriceRecord
	if t.hasValidity {
		day := truncateDay(today)
		for i := range records {
			if records[i].ValidUntil == nil || !truncateDay(*records[i].ValidUntil).Before(day) {
				selected = &records[i]
			}
		}
	} else {
		selected = &records[len(records)-1]
	}

	if selected == nil {
		return entities.PriceInfo{}, false
	}
	return Derive(*selected), true
}

// Derive computes the price view of a single record. The copay is
// max(0, max price - reimbursement) unless the record states it.
func Derive(r entities.PriceRecord) entities.PriceInfo {
	info := entities.PriceInfo{
		MaxPrice:        r.MaxPrice,
		Reimbursement:   r.Reimbursement,
		Copay:           r.Copay,
		IndicationGroup: r.IndicationGroup,
		IsReimbursed:    r.Reimbursement != nil && *r.Reimbursement > 0,
	}

	if info.Copay == nil && r.MaxPrice != nil && r.Reimbursement != nil {
		copay := max(0, *r.MaxPrice-*r.Reimbursement)
		info.Copay = &copay
	}
	return info
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
