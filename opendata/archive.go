package opendata

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/logging"
)

// extractArchive unpacks zipPath into destDir. The summed uncompressed size of
// all entries is checked against limit before anything is written.
func extractArchive(zipPath, destDir string, limit uint64) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logging.Warn("Failed to close archive", "archive", zipPath, "error", err)
		}
	}()

	var total uint64
	for _, f := range reader.File {
		total += f.UncompressedSize64
	}
	if limit > 0 && total > limit {
		return &errs.ZipBombError{Archive: filepath.Base(zipPath), TotalSize: total, Limit: limit}
	}

	cleanDest := filepath.Clean(destDir) + string(os.PathSeparator)
	extracted := 0

	for _, f := range reader.File {
		target := filepath.Join(destDir, f.Name) // #nosec G305 -- checked against cleanDest below
		if !strings.HasPrefix(target, cleanDest) {
			return fmt.Errorf("invalid filepath in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
		extracted++
	}

	logging.Info("Archive extracted", "archive", zipPath, "files", extracted, "dest", destDir)
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}

	// The declared size was already checked; do not trust it beyond that.
	_, err = io.Copy(dst, io.LimitReader(src, int64(f.UncompressedSize64)+1))
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}
