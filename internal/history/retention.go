package history

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls background pruning of old runs. Zero values
// get defaults.
type RetentionConfig struct {
	MaxAge        time.Duration // how far back runs are kept (default: 180 days)
	CheckInterval time.Duration // how often pruning runs (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.MaxAge <= 0 {
		c.MaxAge = 180 * 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionScheduler prunes old runs once immediately, then every
// CheckInterval until the context is cancelled. It blocks; run it in a
// goroutine. Individual prune failures are logged and do not stop the
// scheduler.
func (s *Store) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("history retention scheduler started",
		"max_age", cfg.MaxAge.String(),
		"check_interval", cfg.CheckInterval.String(),
	)

	s.runRetention(cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetention(cfg)
		}
	}
}

func (s *Store) runRetention(cfg RetentionConfig) {
	start := time.Now()
	pruned, err := s.PruneRunsBefore(time.Now().Add(-cfg.MaxAge))
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned run history",
		"runs_pruned", pruned,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
