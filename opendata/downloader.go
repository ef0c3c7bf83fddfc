// Package opendata downloads the SÚKL open-data archives and turns their CSV
// tables into canonical entities.
package opendata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/logging"
)

// archive is one distribution ZIP and the CSV whose presence marks it as extracted.
type archive struct {
	name     string
	url      string
	marker   string
	optional bool
}

func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	response, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: status %d", url, response.StatusCode)
	}

	// Write next to the target and rename, so an interrupted download never
	// looks like a cached archive.
	tmp := dest + ".part"
	outFile, err := os.Create(filepath.Clean(tmp))
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", tmp, err)
	}

	written, err := io.Copy(outFile, response.Body)
	if closeErr := outFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", dest, err)
	}

	logging.Info("Archive downloaded", "url", url, "path", dest, "size_mb", float64(written)/1024/1024)
	return nil
}

// fetchArchive makes sure the archive is in the cache dir and extracted into
// the data dir. Both steps are skipped when their result already exists.
func (l *Loader) fetchArchive(ctx context.Context, a archive) error {
	zipPath := filepath.Join(l.cfg.CacheDir, a.name)

	if _, err := os.Stat(zipPath); os.IsNotExist(err) {
		if err := downloadFile(ctx, l.client, a.url, zipPath); err != nil {
			return err
		}
	}

	if _, err := os.Stat(filepath.Join(l.cfg.DataDir, a.marker)); err == nil {
		logging.Debug("Archive already extracted", "archive", a.name)
		return nil
	}

	return extractArchive(zipPath, l.cfg.DataDir, l.cfg.MaxArchiveSize)
}

// fetchAll fetches every archive concurrently. Failures of optional archives
// are logged and do not fail the load.
func (l *Loader) fetchAll(ctx context.Context) error {
	for _, dir := range []string{l.cfg.CacheDir, l.cfg.DataDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errors []error

	for _, a := range l.archives() {
		wg.Add(1)

		go func(a archive) {
			defer wg.Done()
			if err := l.fetchArchive(ctx, a); err != nil {
				if a.optional && !errs.IsZipBomb(err) {
					logging.Warn("Optional archive unavailable", "archive", a.name, "error", err)
					return
				}
				mu.Lock()
				errors = append(errors, err)
				mu.Unlock()
			}
		}(a)
	}
	wg.Wait()

	if len(errors) > 0 {
		logging.Error("Download errors occurred", "errors", errors)
		// A rejected archive is reported as such, not as a generic download failure.
		for _, err := range errors {
			if errs.IsZipBomb(err) {
				return err
			}
		}
		return fmt.Errorf("download errors: %v", errors)
	}

	return nil
}
