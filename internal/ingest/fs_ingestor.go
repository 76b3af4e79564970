package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/async"
	"github.com/joseph-ayodele/docmerge/internal/common"
	"github.com/joseph-ayodele/docmerge/internal/pipeline"
	"github.com/joseph-ayodele/docmerge/internal/progress"
	"github.com/joseph-ayodele/docmerge/internal/repository"
)

// JobRecorder is the ledger surface used at submit time. nil disables it.
type JobRecorder interface {
	Create(ctx context.Context, job repository.Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status constants.JobStatus, fileCount int, processingTime float64) error
}

// FSIngestor copies archives from the local filesystem into job directories.
type FSIngestor struct {
	Storage common.StorageConfig
	Queue   async.Queue
	Jobs    JobRecorder
	Logger  *slog.Logger

	now func() time.Time
}

func NewFSIngestor(storage common.StorageConfig, queue async.Queue, jobs JobRecorder, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		Storage: storage,
		Queue:   queue,
		Jobs:    jobs,
		Logger:  logger,
		now:     time.Now,
	}
}

func (i *FSIngestor) SubmitArchive(ctx context.Context, path, originalFilename string) (Ticket, error) {
	var out Ticket

	v := common.NewValidator().
		Field("archive_path", path, common.Required, common.ZipPath).
		Field("original_filename", originalFilename, common.MaxLength(255))
	if err := v.Error(); err != nil {
		return out, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return out, fmt.Errorf("archive %s: %w", path, common.ErrNotFound)
	}
	if err != nil {
		return out, err
	}
	if info.IsDir() {
		return out, fmt.Errorf("%w: %s is a directory", common.ErrInvalidInput, path)
	}

	if originalFilename == "" {
		originalFilename = filepath.Base(abs)
	}
	name := SafeFilename(originalFilename)
	now := i.now()
	jobID := pipeline.NewJobID(now)
	layout := pipeline.NewLayout(i.Storage.UploadDir, i.Storage.OutputDir, i.Storage.StatusDir, jobID)
	logger := i.Logger.With("job_id", jobID)

	for _, dir := range []string{layout.UploadDir, layout.OutputDir, layout.StatusDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create job directory", "dir", dir, "error", err)
			return out, fmt.Errorf("create job dir: %w", err)
		}
	}

	dst := filepath.Join(layout.UploadDir, name)
	sum, size, err := copyAndHash(abs, dst)
	if err != nil {
		logger.Error("failed to copy archive", "src", abs, "dst", dst, "error", err)
		return out, err
	}

	out = Ticket{
		JobID:            jobID,
		ArchivePath:      dst,
		SourcePath:       abs,
		OriginalFilename: name,
		UploadDir:        layout.UploadDir,
		OutputDir:        layout.OutputDir,
		StatusDir:        layout.StatusDir,
		HashHex:          sum,
		Size:             size,
		SubmittedAt:      now,
	}

	reporter := progress.NewFileReporter(layout.StatusDir, logger)
	rec := progress.Step(constants.StepExtract, 0, "Upload received, waiting for a worker")
	rec.StartTime = now.Unix()
	reporter.Report(ctx, rec)

	if i.Jobs != nil {
		if err := i.Jobs.Create(ctx, repository.Job{ID: jobID, OriginalFilename: name, CreatedAt: now}); err != nil {
			logger.Warn("ledger create failed", "error", err)
		}
	}

	err = i.Queue.Submit(ctx, async.Job{
		Job: pipeline.Job{
			ID:               jobID,
			ArchivePath:      dst,
			OutputDir:        layout.OutputDir,
			StatusDir:        layout.StatusDir,
			OriginalFilename: name,
		},
		SubmittedAt: now,
	})
	if err != nil {
		reporter.Report(ctx, progress.Failure(err))
		if i.Jobs != nil {
			if lerr := i.Jobs.UpdateJobStatus(ctx, jobID, constants.JobStatusError, 0, 0); lerr != nil {
				logger.Warn("ledger update failed", "error", lerr)
			}
		}
		out.Err = err.Error()
		return out, fmt.Errorf("enqueue %s: %w", jobID, err)
	}

	logger.Info("archive submitted", "src", abs, "bytes", size, "sha256", sum)
	return out, nil
}

// SubmitDirectory walks root, skips hidden entries if requested, and submits
// each archive. Returns per-archive tickets + aggregate stats.
func (i *FSIngestor) SubmitDirectory(ctx context.Context, root string, skipHidden bool) ([]Ticket, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("%w: root is required", common.ErrInvalidInput)
	}

	var (
		results []Ticket
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Ticket{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.IsArchive(path) {
			return nil
		}
		stats.Matched++

		t, err := i.SubmitArchive(ctx, path, "")
		if err != nil {
			results = append(results, Ticket{SourcePath: path, JobID: t.JobID, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, t)
		stats.Submitted++
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// SafeFilename strips directories and anything outside [A-Za-z0-9._-] from
// name, keeping a .zip extension.
func SafeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), "._")
	if out == "" || strings.EqualFold(out, "zip") {
		out = "upload.zip"
	}
	if !constants.IsArchive(out) {
		out += ".zip"
	}
	return out
}

func copyAndHash(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, err
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", 0, fmt.Errorf("copy archive: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
