package core

// scheduler.go runs audit log retention in the background.
//
// The job deletes audit entries older than the retention window. It runs once
// on start and then every CheckInterval until the context is canceled. A
// failed run is logged and retried on the next tick.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the audit retention job.
type RetentionConfig struct {
	RetentionDays int           // Days to keep audit entries (default: 90)
	CheckInterval time.Duration // How often to purge (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 90
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartAuditRetention purges old audit entries until ctx is canceled. It
// blocks; run it in its own goroutine. It returns immediately when no audit
// log is configured.
func (s *Service) StartAuditRetention(ctx context.Context, cfg RetentionConfig) {
	if s.opts.Audit == nil {
		return
	}
	cfg = cfg.withDefaults()

	slog.Info("audit retention started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval,
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit retention stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -cfg.RetentionDays)

	purged, err := s.PurgeAuditLog(ctx, cutoff)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("audit purge failed", "error", err)
		}
		return
	}

	slog.Info("purged audit entries",
		"entries_purged", purged,
		"cutoff", cutoff.UTC().Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// PurgeAuditLog deletes audit entries created before cutoff and returns how
// many were removed.
func (s *Service) PurgeAuditLog(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.opts.Audit == nil {
		return 0, nil
	}
	return s.opts.Audit.PurgeAuditEntries(ctx, cutoff)
}
