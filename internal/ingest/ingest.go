// Package ingest turns uploaded archives into queued pipeline jobs.
package ingest

import (
	"context"
	"time"
)

// Ticket is what a submitter gets back for one accepted archive.
type Ticket struct {
	JobID            string
	ArchivePath      string // copy inside the job upload directory
	SourcePath       string
	OriginalFilename string
	UploadDir        string
	OutputDir        string
	StatusDir        string
	HashHex          string
	Size             int64
	SubmittedAt      time.Time
	Err              string
}

// DirStats summarizes a directory submit.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Submitted uint32
	Failed    uint32
}

// Ingestor is the behavior the job service and the inbox watcher depend on.
type Ingestor interface {
	// SubmitArchive copies one archive into a new job and queues it.
	SubmitArchive(ctx context.Context, path, originalFilename string) (Ticket, error)
	// SubmitDirectory submits every archive under root.
	SubmitDirectory(ctx context.Context, root string, skipHidden bool) ([]Ticket, DirStats, error)
}
