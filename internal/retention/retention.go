// Package retention sweeps the on-disk asset cache, deleting files that
// match a configured glob and have aged past a configured threshold, so
// a long-lived device does not accumulate every model version it has
// ever downloaded.
//
// Grounded on internal/reaper's ticker-driven sweep loop and logging
// style, adapted from "requeue abandoned jobs" to "delete stale cached
// assets", and scheduled with robfig/cron rather than a plain ticker so
// the sweep cadence can be configured as a cron expression.
package retention

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Rule is one retention policy: files under Root matching Glob are
// deleted once they are older than MaxAge.
type Rule struct {
	Root   string
	Glob   string
	MaxAge time.Duration
}

// Sweeper periodically deletes files matching its rules.
type Sweeper struct {
	rules []Rule
	log   *zap.Logger
	clock func() time.Time

	deleted  int64
	lastSwept time.Time
}

// New builds a Sweeper for the given rules.
func New(rules []Rule, log *zap.Logger) *Sweeper {
	return &Sweeper{rules: rules, log: log, clock: time.Now}
}

// Run registers s.SweepOnce against cronExpr on c and starts c. Run does
// not block; call c.Stop to halt the schedule.
func (s *Sweeper) Run(ctx context.Context, c *cron.Cron, cronExpr string) (cron.EntryID, error) {
	id, err := c.AddFunc(cronExpr, func() {
		s.SweepOnce(ctx)
	})
	if err != nil {
		return 0, err
	}
	c.Start()
	return id, nil
}

// SweepOnce runs every rule exactly once, synchronously.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := s.clock()
	for _, r := range s.rules {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.sweepRule(r, now)
	}
	s.lastSwept = now
}

func (s *Sweeper) sweepRule(r Rule, now time.Time) {
	err := filepath.WalkDir(r.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort: skip files we can't stat
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.Root, path)
		if err != nil {
			return nil
		}
		matched, err := doublestar.Match(r.Glob, rel)
		if err != nil || !matched {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) < r.MaxAge {
			return nil
		}
		if err := os.Remove(path); err != nil {
			if s.log != nil {
				s.log.Warn("retention: delete failed", zap.String("path", path), zap.Error(err))
			}
			return nil
		}
		s.deleted++
		if s.log != nil {
			s.log.Info("retention: deleted stale asset",
				zap.String("path", path),
				zap.Duration("age", now.Sub(info.ModTime())))
		}
		return nil
	})
	if err != nil && s.log != nil {
		s.log.Warn("retention: walk failed", zap.String("root", r.Root), zap.Error(err))
	}
}

// DeletedCount returns how many files have been deleted across every
// SweepOnce call so far.
func (s *Sweeper) DeletedCount() int64 {
	return s.deleted
}

// LastSwept returns the timestamp of the most recently completed sweep.
func (s *Sweeper) LastSwept() time.Time {
	return s.lastSwept
}
