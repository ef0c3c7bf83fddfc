// Package logging provides the process-wide structured logger and the HTTP
// request logging middleware.
package logging

import (
	"log/slog"
	"os"
	"sync"
)

type LoggingService struct {
	Logger *slog.Logger
	file   *RotatingLogger
}

var (
	DefaultLoggingService *LoggingService
	mu                    sync.Mutex
)

// InitLogger replaces the global logger. A previous file logger is closed.
func InitLogger(opts Options) {
	logger, file := newLogger(opts)

	mu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger, file: file}
	mu.Unlock()

	slog.SetDefault(logger)
	if previous != nil && previous.file != nil {
		_ = previous.file.Close()
	}
}

// Close flushes and closes the log file of the global logger.
func Close() error {
	mu.Lock()
	svc := DefaultLoggingService
	mu.Unlock()

	if svc == nil || svc.file == nil {
		return nil
	}
	return svc.file.Close()
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return nil
	}
	return DefaultLoggingService.Logger
}

// Logger returns the global logger, or slog.Default before InitLogger ran.
func Logger() *slog.Logger {
	if l := current(); l != nil {
		return l
	}
	return slog.Default()
}

// fallback logs to stderr before InitLogger ran.
func fallback(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if l := current(); l != nil {
		l.Info(msg, args...)
		return
	}
	fallback(slog.LevelInfo).Info(msg, args...)
}

func Error(msg string, args ...any) {
	if l := current(); l != nil {
		l.Error(msg, args...)
		return
	}
	fallback(slog.LevelError).Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if l := current(); l != nil {
		l.Warn(msg, args...)
		return
	}
	fallback(slog.LevelWarn).Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if l := current(); l != nil {
		l.Debug(msg, args...)
		return
	}
	fallback(slog.LevelDebug).Debug(msg, args...)
}
