// Package scheduler refreshes the open-data snapshot at fixed times of day
// and warns when the data has gone stale.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/sukl-mcp/data"
	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/metrics"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

const (
	DefaultSchedule      = "06:00"
	defaultCheckInterval = time.Hour
	defaultStaleAfter    = 25 * time.Hour
	defaultRefreshLimit  = 30 * time.Minute
)

// Config controls when refreshes run.
type Config struct {
	Schedule      string        // "HH:MM" separated by ';'
	InitialLoad   bool          // load once in the background on Start
	CheckInterval time.Duration // staleness check period
	StaleAfter    time.Duration
	RefreshLimit  time.Duration // upper bound of one refresh
}

// Scheduler handles data updates and health monitoring using dependency injection
type Scheduler struct {
	cfg       Config
	dataStore interfaces.DataStore
	parser    interfaces.Parser
	validator interfaces.DataValidator
	scheduler *gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(cfg Config, dataStore interfaces.DataStore, parser interfaces.Parser, validator interfaces.DataValidator) *Scheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.RefreshLimit <= 0 {
		cfg.RefreshLimit = defaultRefreshLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:       cfg,
		dataStore: dataStore,
		parser:    parser,
		validator: validator,
		scheduler: gocron.NewScheduler(time.Local),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the daily refreshes and the staleness monitor. The
// initial load, when enabled, runs in the background so a slow download does
// not delay the MCP handshake.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Days().At(s.cfg.Schedule).Do(func() {
		if err := s.updateData(); err != nil {
			logging.Error("Failed to update data", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule updates", "schedule", s.cfg.Schedule, "error", err)
		return fmt.Errorf("failed to schedule updates: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Data refresh scheduled", "schedule", s.cfg.Schedule)

	if s.cfg.InitialLoad {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.initialLoad(); err != nil {
				logging.Error("Failed to perform initial data load", "error", err)
			}
		}()
	}

	s.startHealthMonitoring()
	return nil
}

// Stop stops the scheduled jobs and waits for background work to end
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.cancel()
	s.wg.Wait()
}

// initialLoader is a store whose first load is shared with the readers
// waiting on it.
type initialLoader interface {
	EnsureLoaded(ctx context.Context, parser interfaces.Parser, validator interfaces.DataValidator) error
}

// initialLoad joins the on-demand first load so a tool call arriving during
// startup waits for this load instead of starting or skipping its own.
func (s *Scheduler) initialLoad() error {
	loader, ok := s.dataStore.(initialLoader)
	if !ok {
		return s.updateData()
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RefreshLimit)
	defer cancel()

	if err := loader.EnsureLoaded(ctx, s.parser, s.validator); err != nil {
		metrics.DataRefreshTotals.WithLabelValues("failure").Inc()
		return err
	}
	s.recordSuccess()
	return nil
}

// updateData publishes a fresh snapshot unless an update is already running
func (s *Scheduler) updateData() error {
	if s.dataStore.IsUpdating() {
		logging.Info("Update already in progress, skipping...")
		metrics.DataRefreshTotals.WithLabelValues("skipped").Inc()
		return nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RefreshLimit)
	defer cancel()

	if err := data.Refresh(ctx, s.dataStore, s.parser, s.validator); err != nil {
		metrics.DataRefreshTotals.WithLabelValues("failure").Inc()
		return err
	}

	s.recordSuccess()
	return nil
}

func (s *Scheduler) recordSuccess() {
	metrics.DataRefreshTotals.WithLabelValues("success").Inc()
	if last := s.dataStore.GetLastUpdated(); !last.IsZero() {
		metrics.DataLastRefresh.Set(float64(last.Unix()))
	}
}

// startHealthMonitoring warns periodically while the data is stale
func (s *Scheduler) startHealthMonitoring() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.CheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.checkStaleness()
			}
		}
	}()
}

// checkStaleness reports whether the snapshot is older than StaleAfter
func (s *Scheduler) checkStaleness() bool {
	lastUpdate := s.dataStore.GetLastUpdated()
	if lastUpdate.IsZero() {
		logging.Warn("Open data has not been loaded yet")
		return true
	}
	if age := time.Since(lastUpdate); age > s.cfg.StaleAfter {
		logging.Warn("Open data is stale",
			"last_update", lastUpdate.Format(time.RFC3339),
			"age_hours", int(age.Hours()),
		)
		return true
	}
	return false
}
