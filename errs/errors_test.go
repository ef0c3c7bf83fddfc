package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := &APIError{StatusCode: tt.status}
			if got := err.Retryable(); got != tt.want {
				t.Errorf("Retryable() for %d = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestWrappedErrorsAreMatched(t *testing.T) {
	wrapped := fmt.Errorf("search failed: %w", NewValidationError("query", "must not be empty"))
	if !IsValidation(wrapped) {
		t.Error("Expected wrapped validation error to be detected")
	}

	bomb := fmt.Errorf("load: %w", &ZipBombError{Archive: "dlp.zip", TotalSize: 10, Limit: 5})
	if !IsZipBomb(bomb) {
		t.Error("Expected wrapped zip bomb error to be detected")
	}
	if IsValidation(bomb) {
		t.Error("Zip bomb must not be reported as validation error")
	}

	inner := errors.New("eof")
	docErr := &DocumentError{URL: "https://example/pil.pdf", Err: inner}
	if !errors.Is(docErr, inner) {
		t.Error("DocumentError should unwrap to its cause")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("limit", "must be between %d and %d", 1, 100)
	want := "validation error: limit: must be between 1 and 100"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}
