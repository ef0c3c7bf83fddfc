package restapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

// localizedName is the {"cs": ..., "en": ...} naming used across the API.
type localizedName map[string]string

type codedName struct {
	Code string        `json:"kod"`
	Name localizedName `json:"nazev"`
}

// medicineDTO is one item of POST /dlprc.
type medicineDTO struct {
	Code               string     `json:"kodSUKL"`
	Name               string     `json:"nazevLP"`
	Supplement         string     `json:"doplnekNazvu"`
	Strength           string     `json:"sila"`
	Form               *codedName `json:"lekovaForma"`
	Route              *codedName `json:"cestaPodani"`
	RegistrationStatus string     `json:"stavRegistrace"`
	RegistrationNumber string     `json:"registracniCislo"`
	Regulated          bool       `json:"jeRegulovany"`
	InSupply           bool       `json:"jeDodavka"`
	Reimbursement      string     `json:"uhrada"`
	Availability       string     `json:"dostupnost"`
	ATC                *codedName `json:"atc"`
	Dispensation       string     `json:"zpusobVydeje"`
}

// medicineList keeps its items raw so one malformed record cannot fail the page.
type medicineList struct {
	Data  []json.RawMessage `json:"data"`
	Total int               `json:"celkem"`
}

func (d medicineDTO) toEntity() entities.Medicine {
	m := entities.Medicine{
		Code:               entities.PadCode(d.Code),
		Name:               d.Name,
		Supplement:         d.Supplement,
		Strength:           d.Strength,
		RegistrationNumber: d.RegistrationNumber,
		RegistrationStatus: d.RegistrationStatus,
		Dispensation:       d.Dispensation,
		NameLower:          strings.ToLower(d.Name),
	}
	if d.Form != nil {
		m.Form = d.Form.Code
	}
	if d.Route != nil {
		m.Route = d.Route.Code
	}
	if d.ATC != nil {
		m.ATC = d.ATC.Code
	}

	if d.InSupply {
		m.Supply = "1"
		m.Availability = entities.AvailabilityAvailable
	} else {
		m.Supply = "0"
		m.Availability = entities.AvailabilityUnavailable
	}
	return m
}

type addressDTO struct {
	City         string `json:"obec"`
	CityPart     string `json:"castObce"`
	Street       string `json:"ulice"`
	HouseNumber  string `json:"cisloPopisne"`
	StreetNumber string `json:"cisloOrientacni"`
	PostalCode   string `json:"psc"`
	District     string `json:"nazev_okresu"`
}

type contactsDTO struct {
	Phone []string `json:"telefon"`
	Email []string `json:"email"`
	Web   []string `json:"web"`
}

type geoDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// pharmacyDTO is one item of GET /lekarny.
type pharmacyDTO struct {
	Name          string       `json:"nazev"`
	WorkplaceCode string       `json:"kodPracoviste"`
	PharmacyCode  string       `json:"kodLekarny"`
	Type          string       `json:"typLekarny"`
	Address       *addressDTO  `json:"adresa"`
	Contacts      *contactsDTO `json:"kontakty"`
	Geo           *geoDTO      `json:"geo"`
}

type pharmacyList struct {
	Data  []json.RawMessage `json:"data"`
	Total int               `json:"celkem"`
}

// decodeRecords unmarshals every item on its own. Items that do not fit T are
// logged with their code and skipped.
func decodeRecords[T any](endpoint string, items []json.RawMessage) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var rec T
		if err := json.Unmarshal(item, &rec); err != nil {
			logging.Warn("Skipping malformed SÚKL API record",
				"endpoint", endpoint,
				"sukl_code", recordCode(item),
				"error", err,
			)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// recordCode reads the identifier of an item that failed to decode.
func recordCode(item json.RawMessage) string {
	var fields map[string]any
	if json.Unmarshal(item, &fields) != nil {
		return ""
	}
	for _, key := range []string{"kodSUKL", "kodLekarny", "kodPracoviste"} {
		if v, ok := fields[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (d pharmacyDTO) toEntity() entities.Pharmacy {
	p := entities.Pharmacy{
		ID:   d.PharmacyCode,
		Name: d.Name,
	}
	if p.ID == "" {
		p.ID = d.WorkplaceCode
	}

	if a := d.Address; a != nil {
		street := a.Street
		if street == "" {
			street = a.CityPart
		}
		number := a.HouseNumber
		if a.StreetNumber != "" {
			number = strings.TrimSpace(number + "/" + a.StreetNumber)
		}
		p.Street = strings.TrimSpace(street + " " + number)
		p.City = a.City
		p.PostalCode = strings.ReplaceAll(a.PostalCode, " ", "")
		p.District = a.District
	}

	if c := d.Contacts; c != nil {
		p.Phone = first(c.Phone)
		p.Email = first(c.Email)
		p.Web = first(c.Web)
	}

	if g := d.Geo; g != nil {
		lat, lon := g.Lat, g.Lon
		p.Latitude = &lat
		p.Longitude = &lon
	}
	return p
}
