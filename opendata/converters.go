package opendata

import (
	"strconv"
	"strings"

	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
	"github.com/giygas/sukl-mcp/pricing"
)

// skipStats counts rows dropped while converting a table.
type skipStats struct {
	emptyLines     int
	missingColumns int
	formatErrors   int
}

func (s skipStats) log(table string, total, parsed int) {
	if s.emptyLines == 0 && s.missingColumns == 0 && s.formatErrors == 0 {
		return
	}
	logging.Info(table+" skip statistics",
		"empty_lines", s.emptyLines,
		"missing_columns", s.missingColumns,
		"format_errors", s.formatErrors,
		"total_lines", total,
		"records_parsed", parsed)
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func convertMedicines(t *rawTable) []entities.Medicine {
	var stats skipStats
	medicines := make([]entities.Medicine, 0, len(t.rows))

	for _, row := range t.rows {
		if isBlank(row) {
			stats.emptyLines++
			continue
		}

		code := t.value(row, "KOD_SUKL")
		name := t.value(row, "NAZEV")
		if code == "" || name == "" {
			stats.missingColumns++
			continue
		}
		if !isDigits(code) {
			stats.formatErrors++
			continue
		}

		supply := t.value(row, "DODAVKY")
		medicines = append(medicines, entities.Medicine{
			Code:               entities.PadCode(code),
			Name:               name,
			Supplement:         t.value(row, "DOPLNEK"),
			Strength:           t.value(row, "SILA"),
			Form:               t.value(row, "FORMA"),
			Package:            t.value(row, "BALENI"),
			Route:              t.value(row, "CESTA"),
			PackageType:        t.value(row, "OBAL"),
			RegistrationNumber: t.value(row, "RC"),
			RegistrationStatus: t.value(row, "REG", "STAV_REG"),
			Holder:             t.value(row, "DRZ"),
			ATC:                t.value(row, "ATC_WHO", "ATC"),
			Dispensation:       t.value(row, "VYDEJ"),
			Supply:             supply,
			Availability:       entities.NormalizeAvailability(supply),
			Addiction:          t.value(row, "ZAV"),
			Doping:             t.value(row, "DOPING"),
			NameLower:          strings.ToLower(name),
		})
	}

	stats.log(t.name, len(t.rows), len(medicines))
	return medicines
}

func convertCompositions(t *rawTable) []entities.Composition {
	var stats skipStats
	compositions := make([]entities.Composition, 0, len(t.rows))

	for _, row := range t.rows {
		if isBlank(row) {
			stats.emptyLines++
			continue
		}

		medicine := t.value(row, "KOD_SUKL")
		substance := t.value(row, "KOD_LATKY", "KOD")
		if medicine == "" || substance == "" {
			stats.missingColumns++
			continue
		}

		compositions = append(compositions, entities.Composition{
			MedicineCode:  entities.PadCode(medicine),
			SubstanceCode: substance,
			Amount:        t.value(row, "AMNT", "MNOZSTVI"),
			Unit:          t.value(row, "UN", "JEDNOTKA"),
		})
	}

	stats.log(t.name, len(t.rows), len(compositions))
	return compositions
}

func convertSubstances(t *rawTable) []entities.Substance {
	var stats skipStats
	substances := make([]entities.Substance, 0, len(t.rows))

	for _, row := range t.rows {
		if isBlank(row) {
			stats.emptyLines++
			continue
		}

		code := t.value(row, "KOD_LATKY", "KOD")
		name := t.value(row, "NAZEV", "NAZEV_INN")
		if code == "" || name == "" {
			stats.missingColumns++
			continue
		}

		substances = append(substances, entities.Substance{
			Code:      code,
			Name:      name,
			NameEN:    t.value(row, "NAZEV_EN", "NAZEV_INN"),
			NameLower: strings.ToLower(name),
		})
	}

	stats.log(t.name, len(t.rows), len(substances))
	return substances
}

func convertATC(t *rawTable) []entities.ATCGroup {
	var stats skipStats
	groups := make([]entities.ATCGroup, 0, len(t.rows))

	for _, row := range t.rows {
		if isBlank(row) {
			stats.emptyLines++
			continue
		}

		code := strings.ToUpper(t.value(row, "ATC"))
		if code == "" {
			stats.missingColumns++
			continue
		}
		if entities.ATCLevel(code) == 0 {
			stats.formatErrors++
			continue
		}

		groups = append(groups, entities.ATCGroup{
			Code:   code,
			Name:   t.value(row, "NAZEV"),
			NameEN: t.value(row, "NAZEV_EN"),
		})
	}

	stats.log(t.name, len(t.rows), len(groups))
	return groups
}

func convertDocuments(t *rawTable) []entities.DocumentNames {
	var stats skipStats
	docs := make([]entities.DocumentNames, 0, len(t.rows))

	for _, row := range t.rows {
		if isBlank(row) {
			stats.emptyLines++
			continue
		}

		code := t.value(row, "KOD_SUKL")
		if code == "" {
			stats.missingColumns++
			continue
		}

		docs = append(docs, entities.DocumentNames{
			Code: entities.PadCode(code),
			PIL:  t.value(row, "PIL"),
			SPC:  t.value(row, "SPC"),
		})
	}

	stats.log(t.name, len(t.rows), len(docs))
	return docs
}

// convertPrices normalizes the column variants of the price list and reports
// whether a validity column was present.
func convertPrices(t *rawTable) ([]entities.PriceRecord, bool) {
	var stats skipStats
	cols := pricing.ResolveColumns(t.names)
	_, hasValidity := cols[pricing.ColValidUntil]

	if _, ok := cols[pricing.ColCode]; !ok {
		logging.Warn("Price table has no code column", "table", t.name, "columns", t.names)
		return nil, hasValidity
	}

	records := make([]entities.PriceRecord, 0, len(t.rows))
	for _, row := range t.rows {
		if isBlank(row) {
			stats.emptyLines++
			continue
		}

		record, err := pricing.RecordFromRow(row, cols)
		if err != nil {
			stats.missingColumns++
			continue
		}
		records = append(records, record)
	}

	stats.log(t.name, len(t.rows), len(records))
	return records, hasValidity
}

func convertPharmacies(t *rawTable) []entities.Pharmacy {
	var stats skipStats
	pharmacies := make([]entities.Pharmacy, 0, len(t.rows))

	for _, row := range t.rows {
		if isBlank(row) {
			stats.emptyLines++
			continue
		}

		id := t.value(row, "KOD_LEKARNY", "ID_LEKARNY", "KOD_PRACOVISTE")
		name := t.value(row, "NAZEV")
		if id == "" || name == "" {
			stats.missingColumns++
			continue
		}

		emergency := t.value(row, "POHOTOVOST")
		mailOrder := t.value(row, "ZASILKOVY_PRODEJ")
		pharmacies = append(pharmacies, entities.Pharmacy{
			ID:            id,
			Name:          name,
			Street:        t.value(row, "ULICE"),
			City:          t.value(row, "MESTO"),
			PostalCode:    strings.ReplaceAll(t.value(row, "PSC"), " ", ""),
			District:      t.value(row, "OKRES"),
			Region:        t.value(row, "KRAJ"),
			Phone:         t.value(row, "TELEFON"),
			Email:         t.value(row, "EMAIL"),
			Web:           t.value(row, "WWW", "WEB"),
			Operator:      t.value(row, "PROVOZOVATEL"),
			Emergency:     emergency,
			MailOrder:     mailOrder,
			Has24hService: emergency != "",
			InternetSales: strings.EqualFold(mailOrder, "ANO"),
			Latitude:      parseCoordinate(t.value(row, "GPS_LAT", "LAT")),
			Longitude:     parseCoordinate(t.value(row, "GPS_LON", "LON")),
		})
	}

	stats.log(t.name, len(t.rows), len(pharmacies))
	return pharmacies
}

func parseCoordinate(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}
