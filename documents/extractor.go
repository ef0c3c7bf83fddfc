// Package documents downloads SÚKL patient leaflets (PIL) and summaries of
// product characteristics (SPC) and extracts their text. Extraction runs on a
// bounded worker pool and results are kept in an expiring LRU cache.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/metrics"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

// BaseURL is the host serving PIL and SPC files.
const BaseURL = "https://prehledy.sukl.cz"

// Compile-time check to ensure Extractor implements DocumentExtractor
var _ interfaces.DocumentExtractor = (*Extractor)(nil)

// Kind selects the document type of a medicine.
type Kind string

const (
	KindPIL Kind = "pil"
	KindSPC Kind = "spc"
)

// URL returns the document address of a medicine code.
func URL(kind Kind, code string) string {
	return fmt.Sprintf("%s/%s/%s.pdf", BaseURL, kind, entities.PadCode(code))
}

// Config holds the extractor limits.
type Config struct {
	MaxFileSize     int64
	MaxPages        int
	DownloadTimeout time.Duration
	ParseTimeout    time.Duration
	Workers         int
	CacheSize       int
	CacheTTL        time.Duration
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:     50 << 20,
		MaxPages:        100,
		DownloadTimeout: 30 * time.Second,
		ParseTimeout:    30 * time.Second,
		Workers:         4,
		CacheSize:       50,
		CacheTTL:        24 * time.Hour,
	}
}

// Extractor downloads and parses documents.
type Extractor struct {
	cfg      Config
	client   *http.Client
	cache    *expirable.LRU[string, *entities.Document]
	workers  *semaphore.Weighted
	inflight singleflight.Group
}

// NewExtractor creates an Extractor. A nil client gets one with cfg.DownloadTimeout.
func NewExtractor(cfg Config, client *http.Client) *Extractor {
	defaults := DefaultConfig()
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaults.MaxFileSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaults.MaxPages
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaults.DownloadTimeout
	}
	if cfg.ParseTimeout <= 0 {
		cfg.ParseTimeout = defaults.ParseTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaults.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}

	if client == nil {
		client = &http.Client{Timeout: cfg.DownloadTimeout}
	}

	return &Extractor{
		cfg:     cfg,
		client:  client,
		cache:   expirable.NewLRU[string, *entities.Document](cfg.CacheSize, nil, cfg.CacheTTL),
		workers: semaphore.NewWeighted(int64(cfg.Workers)),
	}
}

// Extract returns the text of the document at url, from cache when possible.
// Concurrent requests for the same url share one download.
func (e *Extractor) Extract(ctx context.Context, url string) (*entities.Document, error) {
	if doc, ok := e.cache.Get(url); ok {
		metrics.DocumentCacheTotals.WithLabelValues("hit").Inc()
		return doc, nil
	}
	metrics.DocumentCacheTotals.WithLabelValues("miss").Inc()

	v, err, _ := e.inflight.Do(url, func() (any, error) {
		doc, err := e.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		e.cache.Add(url, doc)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.Document), nil
}

// ClearCache drops every cached document.
func (e *Extractor) ClearCache() {
	e.cache.Purge()
	logging.Info("Document cache cleared")
}

// CacheLen returns the number of cached documents.
func (e *Extractor) CacheLen() int {
	return e.cache.Len()
}

func (e *Extractor) fetch(ctx context.Context, url string) (*entities.Document, error) {
	start := time.Now()

	content, format, err := e.download(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := e.workers.Acquire(ctx, 1); err != nil {
		return nil, &errs.DocumentError{URL: url, Err: err}
	}

	type parsed struct {
		text  string
		pages int
		err   error
	}
	done := make(chan parsed, 1)
	go func() {
		defer e.workers.Release(1)
		var p parsed
		switch format {
		case entities.FormatPDF:
			p.text, p.pages, p.err = parsePDF(content, e.cfg.MaxPages)
		case entities.FormatDOCX:
			p.text, p.err = parseDOCX(content)
		}
		done <- p
	}()

	timer := time.NewTimer(e.cfg.ParseTimeout)
	defer timer.Stop()

	select {
	case p := <-done:
		if p.err != nil {
			return nil, p.err
		}
		logging.Info("Document parsed",
			"url", url,
			"format", format,
			"chars", len(p.text),
			"pages", p.pages,
			"duration", time.Since(start).String(),
		)
		return &entities.Document{URL: url, Format: format, Text: p.text, Pages: p.pages}, nil
	case <-timer.C:
		return nil, &errs.ParseError{Format: string(format), Err: fmt.Errorf("parse timed out after %s", e.cfg.ParseTimeout)}
	case <-ctx.Done():
		return nil, &errs.DocumentError{URL: url, Err: ctx.Err()}
	}
}

func (e *Extractor) download(ctx context.Context, url string) ([]byte, entities.DocumentFormat, error) {
	logging.Debug("Downloading document", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &errs.DocumentError{URL: url, Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", &errs.DocumentError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &errs.DocumentError{URL: url, Err: fmt.Errorf("bad status: %s", resp.Status)}
	}

	if resp.ContentLength > e.cfg.MaxFileSize {
		return nil, "", &errs.DocumentError{URL: url, Err: fmt.Errorf("document too large: %d bytes (max %d)", resp.ContentLength, e.cfg.MaxFileSize)}
	}

	format, err := detectFormat(resp.Header.Get("Content-Type"), url)
	if err != nil {
		return nil, "", &errs.DocumentError{URL: url, Err: err}
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxFileSize+1))
	if err != nil {
		return nil, "", &errs.DocumentError{URL: url, Err: err}
	}
	if int64(len(content)) > e.cfg.MaxFileSize {
		return nil, "", &errs.DocumentError{URL: url, Err: fmt.Errorf("document too large: more than %d bytes", e.cfg.MaxFileSize)}
	}

	return content, format, nil
}

var errUnsupportedFormat = errors.New("unsupported document format")

// detectFormat prefers the Content-Type and falls back to the URL extension
// when the header is missing or generic.
func detectFormat(contentType, url string) (entities.DocumentFormat, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	mediaType = strings.ToLower(mediaType)

	if mediaType != "" && mediaType != "application/octet-stream" {
		switch {
		case strings.Contains(mediaType, "pdf"):
			return entities.FormatPDF, nil
		case strings.Contains(mediaType, "word"), strings.Contains(mediaType, "docx"):
			return entities.FormatDOCX, nil
		default:
			return "", fmt.Errorf("%w: %s", errUnsupportedFormat, mediaType)
		}
	}

	switch strings.ToLower(path.Ext(url)) {
	case ".pdf":
		return entities.FormatPDF, nil
	case ".docx":
		return entities.FormatDOCX, nil
	default:
		return "", fmt.Errorf("%w: unknown extension", errUnsupportedFormat)
	}
}
