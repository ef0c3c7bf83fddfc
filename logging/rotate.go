package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// filePrefix names the log files sukl-mcp-<year>-W<week>[_NN].log.
const filePrefix = "sukl-mcp-"

var numberedFileRe = regexp.MustCompile(`^` + filePrefix + `\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingLogger is an io.Writer over weekly log files. A file that reaches
// the size limit is continued in a numbered sibling. Files older than the
// retention period are removed daily.
type RotatingLogger struct {
	logDir      string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	currentFile *os.File
	currentWeek string
	currentSize atomic.Int64

	stop        context.CancelFunc
	cleanupDone chan struct{}
}

// NewRotatingLogger creates a logger writing into logDir. A maxFileSize of 0
// disables size rotation.
func NewRotatingLogger(logDir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		stop:        func() {},
	}
}

// getWeekKey returns the ISO week of t as YYYY-Www.
func getWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// startCleanup removes expired files once a day until Close.
func (rl *RotatingLogger) startCleanup() {
	ctx, cancel := context.WithCancel(context.Background())
	rl.stop = cancel
	rl.cleanupDone = make(chan struct{})

	go func() {
		defer close(rl.cleanupDone)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rl.cleanupOldLogs(); err != nil {
					fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
				}
			}
		}
	}()
}

// doRotate opens the file for week (caller must hold mu).
func (rl *RotatingLogger) doRotate(week string) error {
	if rl.currentFile != nil {
		_ = rl.currentFile.Close()
		rl.currentFile = nil
	}

	full := rl.maxFileSize > 0 && rl.currentSize.Load() >= rl.maxFileSize
	name, fresh := rl.pickFile(week, full)

	path := filepath.Join(rl.logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rl.currentFile = file
	rl.currentWeek = week

	size := int64(0)
	if !fresh {
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
	}
	rl.currentSize.Store(size)
	return nil
}

// pickFile returns the file name to write to for week and whether it is a
// new numbered file. After a size rotation the next numbered file is always
// started; otherwise the latest file of the week is continued while below
// the limit.
func (rl *RotatingLogger) pickFile(week string, full bool) (string, bool) {
	base := filePrefix + week + ".log"
	highest, lastName, lastSize := rl.lastNumberedFile(week)
	next := fmt.Sprintf("%s%s_%02d.log", filePrefix, week, highest+1)

	if full {
		return next, true
	}
	if lastName != "" {
		if lastSize < rl.maxFileSize {
			return lastName, false
		}
		return next, true
	}

	info, err := os.Stat(filepath.Join(rl.logDir, base))
	if err != nil || rl.maxFileSize == 0 || info.Size() < rl.maxFileSize {
		return base, false
	}
	return next, true
}

func (rl *RotatingLogger) lastNumberedFile(week string) (highest int, name string, size int64) {
	matches, _ := filepath.Glob(filepath.Join(rl.logDir, filePrefix+week+"_??.log"))
	for _, match := range matches {
		m := numberedFileRe.FindStringSubmatch(filepath.Base(match))
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		if num <= highest {
			continue
		}
		highest, name, size = num, filepath.Base(match), 0
		if info, err := os.Stat(match); err == nil {
			size = info.Size()
		}
	}
	return highest, name, size
}

// Write appends p to the current file, rotating first when the week changed
// or p would overflow the size limit.
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := getWeekKey(time.Now())
	rotate := rl.currentFile == nil || rl.currentWeek != week
	if !rotate && rl.maxFileSize > 0 && rl.currentSize.Load()+int64(len(p)) > rl.maxFileSize {
		rl.currentSize.Store(rl.maxFileSize)
		rotate = true
	}

	if rotate {
		if err := rl.doRotate(week); err != nil {
			return 0, err
		}
	}

	n, err := rl.currentFile.Write(p)
	rl.currentSize.Add(int64(n))
	return n, err
}

// cleanupOldLogs removes log files last modified before the retention period.
func (rl *RotatingLogger) cleanupOldLogs() error {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rl.retention)
	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(rl.logDir, name)) == nil {
			deleted++
		}
	}

	// Written to stderr directly: logging here would recurse into Write
	if deleted > 0 {
		fmt.Fprintf(os.Stderr, "Cleaned up %d old log files\n", deleted)
	}
	return nil
}

// Close stops the cleanup goroutine and closes the current file.
func (rl *RotatingLogger) Close() error {
	rl.stop()
	if rl.cleanupDone != nil {
		select {
		case <-rl.cleanupDone:
		case <-time.After(5 * time.Second):
			fmt.Fprintln(os.Stderr, "log cleanup goroutine did not stop in time")
		}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.currentFile == nil {
		return nil
	}
	err := rl.currentFile.Close()
	rl.currentFile = nil
	return err
}
