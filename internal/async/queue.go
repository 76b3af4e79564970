// Package async runs pipeline jobs on a fixed pool of background workers.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/docmerge/internal/pipeline"
)

// ErrQueueClosed is returned by Submit after Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is a queued pipeline run.
type Job struct {
	pipeline.Job
	SubmittedAt time.Time
	TraceID     string
}

// Queue accepts jobs and returns immediately; results are only observable
// through each job's progress record.
type Queue interface {
	Submit(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Runner executes one job. *pipeline.Processor satisfies it.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error)
}

// Process hands one archive run to q and returns as soon as it is queued.
// The outcome is only observable through <statusDir>/status.json.
func Process(ctx context.Context, q Queue, archivePath, outputDir, statusDir, jobID string) error {
	return q.Submit(ctx, Job{Job: pipeline.Job{
		ID:          jobID,
		ArchivePath: archivePath,
		OutputDir:   outputDir,
		StatusDir:   statusDir,
	}})
}
