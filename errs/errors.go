// Package errs defines the error taxonomy shared by the loaders, the REST client
// and the lookup layer. Callers match on these with errors.Is / errors.As.
package errs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist in any source.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed caller input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// APIError is a non-2xx answer from the upstream REST service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sukl api error: status %d, code %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("sukl api error: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request that produced e may be repeated.
// Client errors (4xx) are final, except 429.
func (e *APIError) Retryable() bool {
	if e.StatusCode == 429 {
		return true
	}
	return e.StatusCode < 400 || e.StatusCode >= 500
}

// DataError reports missing or unreadable open-data tables.
type DataError struct {
	Table string
	Err   error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error in %s: %v", e.Table, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// ZipBombError is raised when an archive expands beyond the configured limit.
// It is a hard failure and must not be degraded into a fallback.
type ZipBombError struct {
	Archive   string
	TotalSize uint64
	Limit     uint64
}

func (e *ZipBombError) Error() string {
	return fmt.Sprintf("archive %s rejected: uncompressed size %d exceeds limit %d", e.Archive, e.TotalSize, e.Limit)
}

// DocumentError reports a failed PIL/SPC download.
type DocumentError struct {
	URL string
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %v", e.URL, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// ParseError reports a document that was downloaded but could not be turned into text.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s document: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsZipBomb reports whether err is (or wraps) a ZipBombError.
func IsZipBomb(err error) bool {
	var z *ZipBombError
	return errors.As(err, &z)
}
