// Package strength parses free-text dosage strengths ("500mg", "2,5 g", "10%")
// and compares them.
package strength

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	unitPattern   = regexp.MustCompile(`(?i)(\d+[.,]?\d*)\s*([a-zA-Z%]+)`)
	numberPattern = regexp.MustCompile(`(\d+[.,]?\d*)`)
)

// Parse extracts the first number/unit pair of s.
//
// Grams are normalized to milligrams, every other unit is uppercased as is.
// A bare number yields an empty unit. When nothing numeric is found, ok is
// false and unit carries the trimmed input, so callers can tell an
// unparseable string ("" vs original) from a missing one.
func Parse(s string) (value float64, unit string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", false
	}

	if m := unitPattern.FindStringSubmatch(s); m != nil {
		v, err := parseNumber(m[1])
		if err != nil {
			return 0, s, false
		}
		unit = strings.ToUpper(m[2])
		if unit == "G" {
			return v * 1000, "MG", true
		}
		return v, unit, true
	}

	if m := numberPattern.FindStringSubmatch(s); m != nil {
		if v, err := parseNumber(m[1]); err == nil {
			return v, "", true
		}
	}

	return 0, s, false
}

func parseNumber(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
}

// Format renders a parsed strength back into text. Parse(Format(Parse(s)))
// yields the same value and unit as Parse(s).
func Format(value float64, unit string) string {
	return strconv.FormatFloat(value, 'f', -1, 64) + strings.ToLower(unit)
}

// Similarity compares two raw strengths and returns a score in [0, 1].
//
//   - either side unparseable: 0.5 when the raw strings are equal ignoring
//     case and surrounding space, else 0
//   - different units: 0.3
//   - same unit: min/max of the two values (1 when equal)
func Similarity(a, b string) float64 {
	v1, u1, ok1 := Parse(a)
	v2, u2, ok2 := Parse(b)

	if !ok1 || !ok2 {
		x := strings.ToLower(strings.TrimSpace(a))
		y := strings.ToLower(strings.TrimSpace(b))
		if x != "" && x == y {
			return 0.5
		}
		return 0
	}

	if u1 != u2 {
		return 0.3
	}

	if v1 == v2 {
		return 1
	}

	hi := math.Max(v1, v2)
	if hi == 0 {
		return 0
	}
	return math.Min(v1, v2) / hi
}
