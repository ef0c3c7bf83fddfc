package entities

import "strings"

// Availability is the normalized market supply state of a medicine.
type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
	AvailabilityUnknown     Availability = "unknown"
)

// NormalizeAvailability maps the raw DODAVKY value of the open data (and the
// boolean-ish strings used elsewhere) onto an Availability.
func NormalizeAvailability(raw string) Availability {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "1", "1.0", "A", "ANO", "YES", "AVAILABLE", "TRUE":
		return AvailabilityAvailable
	case "0", "0.0", "N", "NE", "NO", "UNAVAILABLE", "FALSE":
		return AvailabilityUnavailable
	default:
		return AvailabilityUnknown
	}
}
