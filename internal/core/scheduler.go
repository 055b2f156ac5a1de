package core

// scheduler.go provides background maintenance for open controls.
//
// Hosts that disappear without closing their control (a closed browser tab,
// a crashed client) would otherwise keep its ChangeSet in memory forever.
// The reaper periodically closes controls that have been idle for longer
// than IdleTimeout. A control with a save in flight is never reaped; its
// pending edits are logged and discarded with it.

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig holds configuration for the idle-control reaper.
// All fields have defaults if zero values are provided.
type ReaperConfig struct {
	IdleTimeout   time.Duration // Close controls unused for this long (default: 30m)
	CheckInterval time.Duration // How often to scan (default: 1m)
}

func (c ReaperConfig) withDefaults() ReaperConfig {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Minute
	}
	return c
}

// StartControlReaper runs the reaper until ctx is cancelled.
// Call it in its own goroutine.
func (s *Service) StartControlReaper(ctx context.Context, cfg ReaperConfig) {
	cfg = cfg.withDefaults()
	slog.Info("control reaper started",
		"idle_timeout", cfg.IdleTimeout.String(),
		"check_interval", cfg.CheckInterval.String(),
	)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("control reaper stopped")
			return
		case now := <-ticker.C:
			s.reapIdleControls(now, cfg.IdleTimeout)
		}
	}
}

// reapIdleControls closes every control idle since before now-idle and
// returns how many were closed.
func (s *Service) reapIdleControls(now time.Time, idle time.Duration) int {
	cutoff := now.Add(-idle)

	s.mu.Lock()
	var reaped []*session
	for id, sess := range s.controls {
		c := sess.control
		if c.Saving() || !c.LastUsed().Before(cutoff) {
			continue
		}
		delete(s.controls, id)
		reaped = append(reaped, sess)
	}
	s.mu.Unlock()

	for _, sess := range reaped {
		c := sess.control
		if c.HasPendingChanges() {
			slog.Warn("reaping idle control with pending edits",
				"control_id", c.ID(),
				"entity", c.Entity(),
				"records", c.PendingChangeCount(),
				"idle_ms", now.Sub(c.LastUsed()).Milliseconds(),
			)
		}
		s.closeSession(context.Background(), sess, "idle")
	}

	if len(reaped) > 0 {
		slog.Info("idle controls reaped", "count", len(reaped))
	}
	return len(reaped)
}
