// Package validation provides input and data validation for the SÚKL lookup server.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

// MaxQueryLength bounds the search query of the MCP tools, in characters.
const MaxQueryLength = 200

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// Input validation: alphanumeric + Czech diacritics + safe punctuation
	inputRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+',%áčďéěíňóřšťúůýžÁČĎÉĚÍŇÓŘŠŤÚŮÝŽ]+$`)

	atcRegex = regexp.MustCompile(`^[A-Z][0-9A-Z]*$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateMedicine checks if a medicine entity is valid
func (v *DataValidatorImpl) ValidateMedicine(m *entities.Medicine) error {
	if m == nil {
		return fmt.Errorf("medicine is nil")
	}

	code := strings.TrimSpace(m.Code)
	if code == "" || !isDigits(code) || len(code) > 7 {
		return fmt.Errorf("invalid SÚKL code: %q", m.Code)
	}

	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("empty name for code %s", m.Code)
	}

	if utf8.RuneCountInString(m.Name) > 200 {
		return fmt.Errorf("name too long for code %s: %d characters", m.Code, utf8.RuneCountInString(m.Name))
	}

	if m.ATC != "" && entities.ATCLevel(m.ATC) == 0 {
		return fmt.Errorf("invalid ATC code for code %s: %s", m.Code, m.ATC)
	}

	return nil
}

// ReportDataQuality generates a data quality report with all issues found
func (v *DataValidatorImpl) ReportDataQuality(ds *entities.Dataset) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		DuplicateCodes:           []string{},
		SampleWithoutComposition: []string{},
	}
	if ds == nil {
		return report
	}

	// Check 1: Duplicate codes
	seen := make(map[string]bool, len(ds.Medicines))
	for _, m := range ds.Medicines {
		key := m.Key()
		if seen[key] {
			report.DuplicateCodes = append(report.DuplicateCodes, m.Code)
		}
		seen[key] = true
	}

	// Check 2: Composition rows pointing nowhere
	substances := make(map[string]bool, len(ds.Substances))
	for _, s := range ds.Substances {
		substances[s.Code] = true
	}

	withComposition := make(map[string]bool)
	for _, c := range ds.Compositions {
		key := entities.NormalizeCode(c.MedicineCode)
		if !seen[key] {
			report.CompositionsUnknownMedicine++
		}
		if len(substances) > 0 && !substances[c.SubstanceCode] {
			report.CompositionsUnknownSubstance++
		}
		withComposition[key] = true
	}

	// Check 3: Medicines without composition or ATC (store first 10 codes)
	for _, m := range ds.Medicines {
		if !withComposition[m.Key()] {
			report.MedicinesWithoutComposition++
			if len(report.SampleWithoutComposition) < 10 {
				report.SampleWithoutComposition = append(report.SampleWithoutComposition, m.Code)
			}
		}
		if m.ATC == "" {
			report.MedicinesWithoutATC++
		}
	}

	// Check 4: Price rows for unknown medicines
	for _, p := range ds.Prices {
		if !seen[entities.NormalizeCode(p.Code)] {
			report.PricesUnknownMedicine++
		}
	}

	return report
}

// ValidateInput validates free-text input of the HTTP endpoints with enhanced security
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if utf8.RuneCountInString(input) < 3 {
		return fmt.Errorf("input too short: minimum 3 characters")
	}

	if utf8.RuneCountInString(input) > 50 {
		return fmt.Errorf("input too long: maximum 50 characters")
	}

	// Word count validation to prevent DoS attacks with many short words
	if len(strings.Fields(input)) > 6 {
		return fmt.Errorf("search query too complex: maximum 6 words allowed")
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces, hyphens, apostrophes, periods, commas, plus and percent signs are allowed")
	}

	if hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateQuery trims a search query and checks it is non-empty and bounded
func (v *DataValidatorImpl) ValidateQuery(input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", errs.NewValidationError("query", "must not be empty")
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return "", errs.NewValidationError("query", "too long: %d characters (maximum %d)", n, MaxQueryLength)
	}
	return query, nil
}

// ValidateSUKLCode checks a SÚKL code (up to 7 digits) and returns it zero-padded
func (v *DataValidatorImpl) ValidateSUKLCode(input string) (string, error) {
	code := strings.TrimSpace(input)
	if code == "" {
		return "", errs.NewValidationError("sukl_code", "must not be empty")
	}
	if !isDigits(code) {
		return "", errs.NewValidationError("sukl_code", "must be numeric (got %q)", code)
	}
	if len(code) > 7 {
		return "", errs.NewValidationError("sukl_code", "too long: %d characters (maximum 7)", len(code))
	}
	return entities.PadCode(code), nil
}

// ValidateATCPrefix checks an ATC code or prefix and returns it upper-cased
func (v *DataValidatorImpl) ValidateATCPrefix(input string) (string, error) {
	prefix := strings.ToUpper(strings.TrimSpace(input))
	if prefix == "" {
		return "", errs.NewValidationError("atc_code", "must not be empty")
	}
	if len(prefix) > 7 {
		return "", errs.NewValidationError("atc_code", "too long: %d characters (maximum 7)", len(prefix))
	}
	if !atcRegex.MatchString(prefix) {
		return "", errs.NewValidationError("atc_code", "invalid format: %q", prefix)
	}
	return prefix, nil
}

// ValidateLimit checks that value lies in [minValue, maxValue]
func (v *DataValidatorImpl) ValidateLimit(field string, value, minValue, maxValue int) error {
	if value < minValue || value > maxValue {
		return errs.NewValidationError(field, "must be between %d and %d (got %d)", minValue, maxValue, value)
	}
	return nil
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

// hasExcessiveRepetition checks for the same character repeated more than 10 times consecutively
func hasExcessiveRepetition(input string) bool {
	run := 1
	for i := 1; i < len(input); i++ {
		if input[i] == input[i-1] {
			run++
			if run > 10 {
				return true
			}
			continue
		}
		run = 1
	}
	return false
}
