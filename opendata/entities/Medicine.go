package entities

import "strings"

// Medicine is one row of dlp_lecivepripravky in canonical form.
type Medicine struct {
	Code               string       `json:"sukl_code"`
	Name               string       `json:"name"`
	Supplement         string       `json:"supplement,omitempty"`
	Strength           string       `json:"strength,omitempty"`
	Form               string       `json:"form,omitempty"`
	Package            string       `json:"package,omitempty"`
	Route              string       `json:"route,omitempty"`
	PackageType        string       `json:"package_type,omitempty"`
	RegistrationNumber string       `json:"registration_number,omitempty"`
	RegistrationStatus string       `json:"registration_status,omitempty"`
	Holder             string       `json:"registration_holder,omitempty"`
	ATC                string       `json:"atc_code,omitempty"`
	Dispensation       string       `json:"dispensation_mode,omitempty"`
	Supply             string       `json:"-"` // raw DODAVKY value
	Availability       Availability `json:"availability"`
	Addiction          string       `json:"-"`
	Doping             string       `json:"-"`
	NameLower          string       `json:"-"` // Pre-computed: strings.ToLower(Name)
}

// Key returns the lookup key of the medicine (code without leading zeros).
func (m Medicine) Key() string {
	return NormalizeCode(m.Code)
}

// IsAvailable reports whether the supply flag marks the medicine as available.
func (m Medicine) IsAvailable() bool {
	return m.Availability == AvailabilityAvailable
}

// NormalizeCode strips leading zeros so "0012345" and "12345" compare equal.
// An all-zero code normalizes to "0".
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	trimmed := strings.TrimLeft(code, "0")
	if trimmed == "" && code != "" {
		return "0"
	}
	return trimmed
}

// PadCode renders a code in its 7-digit display form.
func PadCode(code string) string {
	code = strings.TrimSpace(code)
	if len(code) >= 7 {
		return code
	}
	return strings.Repeat("0", 7-len(code)) + code
}
