// Package retention removes stale uploads that were left behind by
// interrupted requests or by UPLOAD_DELETE_AFTER_RESPONSE=false.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper deletes regular files in a directory once they are older than maxAge.
type Sweeper struct {
	dir      string
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	log      *zap.Logger
}

// New creates a Sweeper. schedule accepts the standard cron spec and the
// "@every <duration>" descriptors.
func New(dir string, maxAge time.Duration, schedule string, log *zap.Logger) (*Sweeper, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention: max age must be positive, got %s", maxAge)
	}
	s := &Sweeper{
		dir:      dir,
		maxAge:   maxAge,
		schedule: schedule,
		cron:     cron.New(),
		log:      log,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.SweepOnce(time.Now()) }); err != nil {
		return nil, fmt.Errorf("retention: parse schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info("retention.started", zap.String("dir", s.dir), zap.String("schedule", s.schedule), zap.Duration("max_age", s.maxAge))
}

// Stop halts the schedule and waits for a running sweep until ctx is done.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("retention.stop_timeout", zap.Error(ctx.Err()))
	}
}

// SweepOnce removes files last modified before now-maxAge and returns how many were removed.
func (s *Sweeper) SweepOnce(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error("retention.read_dir_failed", zap.String("dir", s.dir), zap.Error(err))
		}
		return 0
	}

	cutoff := now.Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		if err := os.Remove(p); err != nil {
			s.log.Warn("retention.remove_failed", zap.String("path", p), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("retention.swept", zap.String("dir", s.dir), zap.Int("removed", removed))
	}
	return removed
}
