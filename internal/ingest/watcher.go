package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/docmerge/constants"
)

// SubmittedDirName holds inbox archives that were already submitted.
const SubmittedDirName = ".submitted"

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive, hidden dirs skipped)
	InitialScan bool          // if true, walk roots and emit existing archives
	Debounce    time.Duration // coalesce rapid create/write bursts
}

// StartWatcher emits the paths of archives that appeared or changed under the
// roots, once no event touched them for cfg.Debounce.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		slog.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != root && IsHidden(path) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && constants.IsArchive(path) && !IsHidden(path) {
				initial = append(initial, path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			slog.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				slog.Warn("failed to close watcher", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		timer := time.NewTimer(time.Hour)
		timer.Stop()
		defer timer.Stop()
		pending := map[string]struct{}{}

		flush := func() bool {
			for p := range pending {
				delete(pending, p)
				if info, err := os.Stat(p); err != nil || info.IsDir() {
					continue
				}
				if !emit(p) {
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() && !IsHidden(e.Name) {
						if err := w.Add(e.Name); err != nil {
							slog.Warn("failed to add new directory to watcher", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !constants.IsArchive(e.Name) || IsHidden(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce > 0 {
					timer.Reset(cfg.Debounce)
				} else if !flush() {
					return
				}
			case <-timer.C:
				if !flush() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// Watch submits every archive that lands in the roots and moves it into the
// root's .submitted folder afterwards. It returns when ctx ends.
func Watch(ctx context.Context, cfg WatchConfig, ing Ingestor, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	paths, errs, err := StartWatcher(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("inbox watcher started", "roots", cfg.Roots, "debounce", cfg.Debounce)

	for {
		select {
		case p, ok := <-paths:
			if !ok {
				logger.Info("inbox watcher stopped")
				return nil
			}
			t, err := ing.SubmitArchive(ctx, p, "")
			if err != nil {
				logger.Error("inbox submit failed", "path", p, "error", err)
				continue
			}
			logger.Info("inbox archive submitted", "path", p, "job_id", t.JobID)
			if err := moveSubmitted(p); err != nil {
				logger.Warn("failed to move submitted archive", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("inbox watcher error", "error", err)
		}
	}
}

func moveSubmitted(path string) error {
	dir := filepath.Join(filepath.Dir(path), SubmittedDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dir, filepath.Base(path)))
}
