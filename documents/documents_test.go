package documents

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Příbalová informace</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Paralen </w:t></w:r><w:r><w:t>500 mg</w:t></w:r></w:p>
    <w:p></w:p>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>Dávkování</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatalf("Failed to write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestParseDOCX(t *testing.T) {
	text, err := parseDOCX(buildDOCX(t, documentXML))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := "Příbalová informace\n\nParalen 500 mg\n\nDávkování"
	if text != want {
		t.Errorf("Expected %q, got %q", want, text)
	}
}

func TestParseDOCXErrors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"not a zip", []byte("plain text")},
		{"no document part", func() []byte {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			zw.Create("word/styles.xml")
			zw.Close()
			return buf.Bytes()
		}()},
		{"empty body", buildDOCX(t, `<w:document xmlns:w="x"><w:body><w:p></w:p></w:body></w:document>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDOCX(tt.content)
			var parseErr *errs.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("Expected ParseError, got %v", err)
			}
			if parseErr.Format != "docx" {
				t.Errorf("Expected format docx, got %s", parseErr.Format)
			}
		})
	}
}

func TestParsePDFInvalid(t *testing.T) {
	_, _, err := parsePDF([]byte("%PDF-1.4 garbage"), 10)
	var parseErr *errs.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		contentType string
		url         string
		want        entities.DocumentFormat
		wantErr     bool
	}{
		{"application/pdf", "https://x/doc", entities.FormatPDF, false},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "https://x/doc.pdf", entities.FormatDOCX, false},
		{"application/msword", "https://x/doc", entities.FormatDOCX, false},
		{"application/octet-stream", "https://x/doc.PDF", entities.FormatPDF, false},
		{"", "https://x/doc.docx", entities.FormatDOCX, false},
		{"text/html; charset=utf-8", "https://x/doc.pdf", "", true},
		{"", "https://x/doc.txt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType+"_"+tt.url, func(t *testing.T) {
			got, err := detectFormat(tt.contentType, tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestURL(t *testing.T) {
	if got := URL(KindPIL, "12345"); got != "https://prehledy.sukl.cz/pil/0012345.pdf" {
		t.Errorf("Unexpected PIL URL %s", got)
	}
	if got := URL(KindSPC, "0012345"); got != "https://prehledy.sukl.cz/spc/0012345.pdf" {
		t.Errorf("Unexpected SPC URL %s", got)
	}
}

func TestExtractCachesDocuments(t *testing.T) {
	docx := buildDOCX(t, documentXML)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Write(docx)
	}))
	defer srv.Close()

	e := NewExtractor(DefaultConfig(), srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := e.Extract(context.Background(), srv.URL+"/pil/0012345")
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if !strings.Contains(doc.Text, "Paralen 500 mg") {
				t.Errorf("Unexpected text %q", doc.Text)
			}
		}()
	}
	wg.Wait()

	if _, err := e.Extract(context.Background(), srv.URL+"/pil/0012345"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Concurrent first calls may race the cache but never the in-flight group
	if n := calls.Load(); n < 1 || n > 5 {
		t.Errorf("Expected between 1 and 5 downloads, got %d", n)
	}
	if e.CacheLen() != 1 {
		t.Errorf("Expected 1 cached document, got %d", e.CacheLen())
	}

	before := calls.Load()
	e.Extract(context.Background(), srv.URL+"/pil/0012345")
	if calls.Load() != before {
		t.Error("Expected cached document to be served without download")
	}

	e.ClearCache()
	if e.CacheLen() != 0 {
		t.Errorf("Expected empty cache, got %d", e.CacheLen())
	}
}

func TestExtractErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.pdf":
			http.NotFound(w, r)
		case "/large.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(bytes.Repeat([]byte("x"), 2048))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxFileSize = 1024
	e := NewExtractor(cfg, srv.Client())

	for _, path := range []string{"/missing.pdf", "/large.pdf", "/page.html"} {
		t.Run(path, func(t *testing.T) {
			_, err := e.Extract(context.Background(), srv.URL+path)
			var docErr *errs.DocumentError
			if !errors.As(err, &docErr) {
				t.Fatalf("Expected DocumentError, got %v", err)
			}
		})
	}

	if e.CacheLen() != 0 {
		t.Errorf("Failed documents must not be cached, got %d", e.CacheLen())
	}
}
