// Package sweep reclaims job directories whose name starts with a unix
// timestamp older than the retention threshold.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docmerge/constants"
)

// DefaultMaxAge is the retention threshold when none is configured.
const DefaultMaxAge = 24 * time.Hour

// Cleanup deletes every immediate subdirectory of root named
// "<unix seconds>_<suffix>" whose timestamp is older than maxAge. It reports
// false only when root itself cannot be listed; per-entry problems are logged
// and skipped.
func Cleanup(root string, maxAge time.Duration) bool {
	s := &Sweeper{MaxAge: maxAge}
	_, err := s.sweepRoot(root)
	return err == nil
}

// Sweeper runs Cleanup over several roots on a schedule.
type Sweeper struct {
	Roots    []string
	MaxAge   time.Duration // <= 0 means DefaultMaxAge
	Interval time.Duration // <= 0 means hourly
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Sweeper) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Sweeper) maxAge() time.Duration {
	if s.MaxAge <= 0 {
		return DefaultMaxAge
	}
	return s.MaxAge
}

// Sweep cleans all roots concurrently and returns the number of removed
// directories. Missing roots are not an error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	var removed atomic.Int64
	g, _ := errgroup.WithContext(ctx)
	for _, root := range s.Roots {
		g.Go(func() error {
			n, err := s.sweepRoot(root)
			removed.Add(int64(n))
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		})
	}
	err := g.Wait()
	return int(removed.Load()), err
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	s.logger().Info("sweeper started", "roots", s.Roots, "max_age", s.maxAge(), "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := s.Sweep(ctx); err != nil {
			s.logger().Error("sweep failed", "error", err)
		} else if n > 0 {
			s.logger().Info("sweep removed directories", "count", n)
		}
		select {
		case <-ctx.Done():
			s.logger().Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweepRoot(root string) (int, error) {
	logger := s.logger()
	entries, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Error("sweep.root.unreadable", "root", root, "error", err)
		}
		return 0, fmt.Errorf("read %s: %w", root, err)
	}

	now := s.now()
	cutoff := now.Add(-s.maxAge())
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		stamp, ok := Timestamp(e.Name())
		if !ok || !stamp.Before(cutoff) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if active(dir, now, s.maxAge()) {
			logger.Info("sweep.skip.active", "dir", dir)
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("sweep.remove.failed", "dir", dir, "error", err)
			continue
		}
		removed++
		logger.Info("sweep.removed", "dir", dir, "age", now.Sub(stamp).Round(time.Second))
	}
	return removed, nil
}

// Timestamp parses the leading "<digits>_" token of a directory name.
func Timestamp(name string) (time.Time, bool) {
	head, _, found := strings.Cut(name, "_")
	if !found || head == "" {
		return time.Time{}, false
	}
	for _, r := range head {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}
	sec, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

// active reports whether a running job has touched its heartbeat marker
// within the retention window.
func active(dir string, now time.Time, maxAge time.Duration) bool {
	fi, err := os.Stat(filepath.Join(dir, constants.ActiveMarkerName))
	if err != nil {
		return false
	}
	return now.Sub(fi.ModTime()) < maxAge
}
