package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// errorBackoff is how long the scheduler waits after a transient failure
// before resuming its loop.
const errorBackoff = time.Minute

// RetentionScheduler deletes old recordings once daily at a fixed time. It
// runs concurrently with the capture loop and shares nothing with it except
// the cancellation context, which it observes at each wake point.
type RetentionScheduler struct {
	dir     string
	days    int
	runHour int
	bus     Publisher

	now    func() time.Time
	logger *slog.Logger
}

// NewRetentionScheduler creates a scheduler that prunes recordings in dir
// older than days, waking daily at runHour local time.
func NewRetentionScheduler(dir string, days, runHour int, bus Publisher) *RetentionScheduler {
	return &RetentionScheduler{
		dir:     dir,
		days:    days,
		runHour: runHour,
		bus:     bus,
		now:     time.Now,
		logger:  slog.Default().With("component", "retention"),
	}
}

// Run loops forever until the context is cancelled
func (s *RetentionScheduler) Run(ctx context.Context) {
	s.logger.Info("Retention scheduler started", "days", s.days, "run_hour", s.runHour)

	for {
		now := s.now()
		next := s.NextRun(now)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Retention scheduler stopped")
			return
		case <-timer.C:
		}

		// Re-check after the sleep so a shutdown mid-wake never
		// deletes files.
		if ctx.Err() != nil {
			s.logger.Info("Retention scheduler stopped")
			return
		}

		if _, err := s.RunCleanup(ctx); err != nil {
			s.logger.Error("Cleanup failed, backing off", "error", err)
			backoff := time.NewTimer(errorBackoff)
			select {
			case <-ctx.Done():
				backoff.Stop()
				return
			case <-backoff.C:
			}
		}
	}
}

// NextRun computes the next occurrence of the daily run time. Invoked
// exactly at or after today's target, it rolls forward by one day.
func (s *RetentionScheduler) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.runHour, 0, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunCleanup scans the working directory and deletes recordings older than
// the retention window. Per-file failures are logged and do not abort the
// scan. The filesystem is the only index; no state survives between runs.
func (s *RetentionScheduler) RunCleanup(ctx context.Context) (*CleanupEvent, error) {
	now := s.now()
	cutoff := now.Add(-time.Duration(s.days) * 24 * time.Hour)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recordings directory: %w", err)
	}

	stats := &CleanupEvent{Timestamp: now}
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "recording_") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Error("Failed to remove old recording", "path", path, "error", err)
			continue
		}

		stats.FilesDeleted++
		stats.BytesFreed += info.Size()
		s.logger.Info("Removed old recording", "path", path, "age_days", int(now.Sub(info.ModTime()).Hours()/24))
	}

	s.logger.Info("Retention cleanup completed",
		"files_deleted", stats.FilesDeleted,
		"bytes_freed", stats.BytesFreed,
	)

	if s.bus != nil {
		if err := s.bus.Publish(SubjectCleanupDone, stats); err != nil {
			s.logger.Warn("Failed to publish cleanup event", "error", err)
		}
	}

	return stats, nil
}
