package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/giygas/sukl-mcp/config"
)

// ResetForTest installs a global logger for the duration of t.
func ResetForTest(t testing.TB, opts Options) {
	t.Helper()
	InitLogger(opts)
	t.Cleanup(func() {
		_ = Close()
		mu.Lock()
		DefaultLoggingService = nil
		mu.Unlock()
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLogLevel(tt.input)
			if got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetConsoleLogLevel(t *testing.T) {
	tests := []struct {
		name        string
		env         config.Environment
		logLevelStr string
		verbose     bool
		expected    slog.Level
	}{
		{"dev defaults to info", config.EnvDevelopment, "", false, slog.LevelInfo},
		{"test quiet defaults to error", config.EnvTest, "", false, slog.LevelError},
		{"test verbose defaults to info", config.EnvTest, "", true, slog.LevelInfo},
		{"prod defaults to warn", config.EnvProduction, "", false, slog.LevelWarn},
		{"staging defaults to warn", config.EnvStaging, "", false, slog.LevelWarn},
		{"prod with debug override", config.EnvProduction, "debug", false, slog.LevelDebug},
		{"dev with error override", config.EnvDevelopment, "error", false, slog.LevelError},
		{"test with debug override (ignored)", config.EnvTest, "debug", false, slog.LevelError},
		{"test with debug override (ignored) verbose", config.EnvTest, "debug", true, slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetConsoleLogLevel(tt.env, tt.logLevelStr, tt.verbose)
			if got != tt.expected {
				t.Errorf("GetConsoleLogLevel(%v, %q, %v) = %v, want %v", tt.env, tt.logLevelStr, tt.verbose, got, tt.expected)
			}
		})
	}
}

func TestGetFileLogLevel(t *testing.T) {
	got := GetFileLogLevel()
	if got != slog.LevelDebug {
		t.Errorf("GetFileLogLevel() = %v, want %v", got, slog.LevelDebug)
	}
}

func TestGlobalLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	ResetForTest(t, Options{Dir: dir, RetentionWeeks: 2, MaxFileSize: 100 * 1024 * 1024, Env: config.EnvTest})

	Info("Info message", "sukl_code", "0000001")
	Warn("Warning message")
	Error("Error message")
	Debug("Debug message")

	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := filepath.Join(dir, filePrefix+getWeekKey(time.Now())+".log")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file %s: %v", path, err)
	}

	// The file handler records debug and above even when the console is quiet
	for _, msg := range []string{"Info message", "Warning message", "Error message", "Debug message", `"sukl_code":"0000001"`} {
		if !strings.Contains(string(content), msg) {
			t.Errorf("log file should contain %s, got: %s", msg, content)
		}
	}
}

func TestGlobalLoggerWithoutDir(t *testing.T) {
	ResetForTest(t, Options{Env: config.EnvTest})

	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		t.Fatal("InitLogger did not initialize DefaultLoggingService")
	}
	if DefaultLoggingService.file != nil {
		t.Error("Expected console-only logger when no directory is set")
	}
	Info("console only")
}

func TestFallbackBeforeInit(t *testing.T) {
	mu.Lock()
	saved := DefaultLoggingService
	DefaultLoggingService = nil
	mu.Unlock()
	defer func() {
		mu.Lock()
		DefaultLoggingService = saved
		mu.Unlock()
	}()

	// Must not panic
	Info("uninitialised info")
	Error("uninitialised error")
}

func TestMultiHandlerMethods(t *testing.T) {
	var first, second strings.Builder
	multi := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&first, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&second, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	logger := slog.New(multi).With("component", "test").WithGroup("req")
	logger.Info("only the second", "id", 1)
	logger.Warn("both")

	if strings.Contains(first.String(), "only the second") {
		t.Errorf("warn handler should skip info records, got: %s", first.String())
	}
	if !strings.Contains(first.String(), "both") || !strings.Contains(first.String(), "component=test") {
		t.Errorf("warn handler missing record or attrs: %s", first.String())
	}
	if !strings.Contains(second.String(), `"req":{"id":1}`) {
		t.Errorf("json handler should group attrs, got: %s", second.String())
	}
}
