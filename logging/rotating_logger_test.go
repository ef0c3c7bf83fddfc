package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGetWeekKey(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC), "2025-W41"},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "2026-W01"},
		// ISO weeks: 2024-12-30 belongs to the first week of 2025
		{time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), "2025-W01"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := getWeekKey(tt.date); got != tt.want {
				t.Errorf("getWeekKey(%v) = %s, want %s", tt.date, got, tt.want)
			}
		})
	}
}

func TestRotatingLoggerWrite(t *testing.T) {
	dir := t.TempDir()
	rl := NewRotatingLogger(dir, 1, 0)

	if _, err := rl.Write([]byte("first line\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := rl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := filepath.Join(dir, filePrefix+getWeekKey(time.Now())+".log")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file %s: %v", path, err)
	}
	if string(content) != "first line\n" {
		t.Errorf("Unexpected content %q", content)
	}
}

func TestRotatingLoggerWeeks(t *testing.T) {
	dir := t.TempDir()
	rl := NewRotatingLogger(dir, 1, 0)
	defer func() { _ = rl.Close() }()

	for _, week := range []string{"2025-W40", "2025-W41"} {
		rl.mu.Lock()
		err := rl.doRotate(week)
		rl.mu.Unlock()
		if err != nil {
			t.Fatalf("Failed to rotate to %s: %v", week, err)
		}
		if _, err := os.Stat(filepath.Join(dir, filePrefix+week+".log")); err != nil {
			t.Errorf("Expected log file for %s: %v", week, err)
		}
	}
}

func TestRotatingLoggerSizeLimit(t *testing.T) {
	dir := t.TempDir()
	rl := NewRotatingLogger(dir, 1, 100)

	line := []byte(strings.Repeat("x", 40) + "\n")
	for range 6 {
		if _, err := rl.Write(line); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	_ = rl.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 files of two lines each, got %d", len(entries))
	}

	week := getWeekKey(time.Now())
	for _, name := range []string{filePrefix + week + ".log", filePrefix + week + "_01.log", filePrefix + week + "_02.log"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("Expected %s: %v", name, err)
			continue
		}
		if info.Size() > 100 {
			t.Errorf("%s exceeds the size limit: %d bytes", name, info.Size())
		}
	}
}

func TestRotatingLoggerExistingFiles(t *testing.T) {
	week := getWeekKey(time.Now())

	tests := []struct {
		name     string
		existing int
		wantFile string
		wantSize int64
	}{
		{"below limit is continued", 512, filePrefix + week + ".log", 512},
		{"at limit starts numbered file", 2048, filePrefix + week + "_01.log", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			base := filepath.Join(dir, filePrefix+week+".log")
			if err := os.WriteFile(base, []byte(strings.Repeat("x", tt.existing)), 0o644); err != nil {
				t.Fatalf("Failed to create log file: %v", err)
			}

			rl := NewRotatingLogger(dir, 1, 1024)
			defer func() { _ = rl.Close() }()

			rl.mu.Lock()
			err := rl.doRotate(week)
			rl.mu.Unlock()
			if err != nil {
				t.Fatalf("Failed to rotate: %v", err)
			}

			if got := filepath.Base(rl.currentFile.Name()); got != tt.wantFile {
				t.Errorf("Expected %s, got %s", tt.wantFile, got)
			}
			if got := rl.currentSize.Load(); got != tt.wantSize {
				t.Errorf("Expected size %d, got %d", tt.wantSize, got)
			}
		})
	}
}

func TestRotatingLoggerInvalidDirectory(t *testing.T) {
	rl := NewRotatingLogger(filepath.Join(t.TempDir(), "missing", "dir"), 1, 0)

	if _, err := rl.Write([]byte("test")); err == nil {
		t.Error("Expected error when writing into a missing directory")
	}
	if err := rl.Close(); err != nil {
		t.Errorf("Close should succeed without an open file: %v", err)
	}
}

func TestRotatingLoggerConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	rl := NewRotatingLogger(dir, 1, 0)

	const goroutines, writes = 10, 20
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range writes {
				if _, err := fmt.Fprintf(rl, "goroutine %d write %d\n", id, j); err != nil {
					t.Errorf("Concurrent write failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()
	_ = rl.Close()

	content, err := os.ReadFile(filepath.Join(dir, filePrefix+getWeekKey(time.Now())+".log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if lines := strings.Count(string(content), "\n"); lines != goroutines*writes {
		t.Errorf("Expected %d lines, got %d", goroutines*writes, lines)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldFile := filepath.Join(dir, filePrefix+"2025-W30.log")
	newFile := filepath.Join(dir, filePrefix+getWeekKey(time.Now())+".log")
	otherFile := filepath.Join(dir, "notes.txt")

	for _, path := range []string{oldFile, newFile, otherFile} {
		if err := os.WriteFile(path, []byte("log"), 0o644); err != nil {
			t.Fatalf("Failed to create %s: %v", path, err)
		}
	}
	old := time.Now().Add(-30 * 24 * time.Hour)
	for _, path := range []string{oldFile, otherFile} {
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("Failed to age %s: %v", path, err)
		}
	}

	rl := NewRotatingLogger(dir, 1, 0)
	if err := rl.cleanupOldLogs(); err != nil {
		t.Fatalf("cleanupOldLogs failed: %v", err)
	}

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("Expected old log file to be removed")
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Error("Expected current log file to be kept")
	}
	if _, err := os.Stat(otherFile); err != nil {
		t.Error("Expected unrelated file to be kept")
	}
}
