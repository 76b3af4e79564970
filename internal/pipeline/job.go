package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/progress"
)

// Job is one archive run. OutputDir is the job working directory; it is
// created if missing.
type Job struct {
	ID               string
	ArchivePath      string
	OutputDir        string
	StatusDir        string
	OriginalFilename string

	// Reporter overrides the status file writer. nil writes <StatusDir>/status.json.
	Reporter progress.Reporter
}

// Result is the terminal success summary of a run.
type Result struct {
	JobID      string
	FileCount  int
	Docx       string
	PDF        string
	PDFTier    string
	PDFPages   int
	Skipped    []string // extracted files that no strategy could convert
	MergeFails int
	Start      time.Time
	End        time.Time
}

// Elapsed is the wall time of the run.
func (r *Result) Elapsed() time.Duration { return r.End.Sub(r.Start) }

// Ledger receives best-effort bookkeeping calls. Errors are logged only.
type Ledger interface {
	UpdateJobStatus(ctx context.Context, jobID string, status constants.JobStatus, fileCount int, processingTime float64) error
	IncrementUsage(ctx context.Context, day time.Time, files int, processingTime float64) error
}

// NewJobID returns "<unix seconds>_<8 hex chars>".
func NewJobID(now time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("%d_%s", now.Unix(), hex.EncodeToString(u[:4]))
}

// Layout is the directory triple of a job under the configured roots.
type Layout struct {
	UploadDir string
	OutputDir string
	StatusDir string
}

// NewLayout places a job under the upload, output and status roots. Every
// directory is named after the job id so the sweeper can age it.
func NewLayout(uploadRoot, outputRoot, statusRoot, jobID string) Layout {
	return Layout{
		UploadDir: filepath.Join(uploadRoot, jobID),
		OutputDir: filepath.Join(outputRoot, jobID),
		StatusDir: filepath.Join(statusRoot, jobID),
	}
}

// JobIDFromDir recovers the job id from a job directory path.
func JobIDFromDir(dir string) string {
	base := filepath.Base(dir)
	if i := strings.IndexByte(base, '_'); i <= 0 {
		return ""
	}
	return base
}
