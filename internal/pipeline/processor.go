// Package pipeline sequences one archive run: extract, normalize each file,
// merge, render, and publish progress between phases.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/archive"
	"github.com/joseph-ayodele/docmerge/internal/common"
	"github.com/joseph-ayodele/docmerge/internal/merge"
	"github.com/joseph-ayodele/docmerge/internal/normalize"
	"github.com/joseph-ayodele/docmerge/internal/progress"
	"github.com/joseph-ayodele/docmerge/internal/render"
)

// Processor coordinates extraction, normalization, merge and rendering.
type Processor struct {
	logger     *slog.Logger
	normalizer *normalize.Normalizer
	merger     *merge.Merger
	renderer   *render.Renderer
	ledger     Ledger
	now        func() time.Time
}

type Option func(*Processor)

// WithLedger wires job bookkeeping. Without it ledger calls are skipped.
func WithLedger(l Ledger) Option {
	return func(p *Processor) { p.ledger = l }
}

// WithClock replaces the time source used for start/end timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProcessor(logger *slog.Logger, normalizer *normalize.Normalizer, merger *merge.Merger, renderer *render.Renderer, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:     logger,
		normalizer: normalizer,
		merger:     merger,
		renderer:   renderer,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes the job to completion. The returned error is also written to
// the progress record; callers running in the background may ignore it.
func (p *Processor) Run(ctx context.Context, job Job) (res *Result, err error) {
	ctx = common.WithJobID(ctx, job.ID)
	logger := common.LoggerFromContext(ctx, p.logger)
	rep := job.Reporter
	if rep == nil {
		rep = progress.NewFileReporter(job.StatusDir, logger)
	}
	start := p.now()

	fail := func(cause error) (*Result, error) {
		rep.Report(ctx, progress.Failure(cause))
		p.recordStatus(ctx, logger, job.ID, constants.JobStatusError, 0, p.now().Sub(start).Seconds())
		logger.Error("pipeline.failed", "error", cause, "duration_ms", p.now().Sub(start).Milliseconds())
		return nil, cause
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline.panic", "panic", r, "stack", string(debug.Stack()))
			res, err = fail(fmt.Errorf("%w: panic: %v", common.ErrInternal, r))
		}
	}()

	p.recordStatus(ctx, logger, job.ID, constants.JobStatusProcessing, 0, 0)

	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return fail(fmt.Errorf("create working directory: %w", err))
	}
	marker := filepath.Join(job.OutputDir, constants.ActiveMarkerName)
	touch(marker)
	defer os.Remove(marker)

	// extract
	rep.Report(ctx, progress.Step(constants.StepExtract, constants.PercentExtract, "Extracting files from ZIP archive..."))
	extractDir := filepath.Join(job.OutputDir, constants.ExtractedDirName)
	files, err := archive.Extract(ctx, job.ArchivePath, extractDir, logger)
	if err != nil {
		return fail(err)
	}
	if len(files) == 0 {
		return fail(common.ErrNoDocuments)
	}
	logger.Info("pipeline.extract.ok", "files", len(files))
	touch(marker)

	// convert; outputs get their own directory so a.doc cannot replace an extracted a.docx
	convertDir := filepath.Join(job.OutputDir, constants.ConvertedDirName)
	if err := os.MkdirAll(convertDir, 0o755); err != nil {
		return fail(fmt.Errorf("create working directory: %w", err))
	}
	total := len(files)
	rep.Report(ctx, progress.Record{
		CurrentStep: constants.StepConvert,
		Percent:     constants.PercentConvert,
		StatusText:  fmt.Sprintf("Converting %d documents...", total),
		FileCount:   total,
		Total:       total,
	})
	var converted, skipped []string
	for i, f := range files {
		out, err := p.normalizer.Normalize(ctx, f, convertDir)
		if err != nil {
			logger.Warn("pipeline.convert.skipped", "path", f, "error", err)
			skipped = append(skipped, f)
		} else {
			converted = append(converted, out.Path)
		}
		done := i + 1
		if total > constants.ConvertProgressEvery && done%constants.ConvertProgressEvery == 0 {
			rep.Report(ctx, progress.Record{
				CurrentStep: constants.StepConvert,
				Percent:     constants.Interpolate(constants.PercentConvert, constants.PercentConvertEnd, done, total),
				StatusText:  fmt.Sprintf("Converted %d/%d documents...", done, total),
				FileCount:   total,
				Processed:   done,
				Total:       total,
			})
			touch(marker)
		}
	}
	if len(converted) == 0 {
		return fail(common.ErrNothingConverted)
	}
	logger.Info("pipeline.convert.ok", "converted", len(converted), "skipped", len(skipped))
	touch(marker)

	// merge
	docxPath := filepath.Join(job.OutputDir, constants.MergedDocxName)
	merged, err := p.merger.Merge(ctx, converted, docxPath, rep)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", common.ErrMergeFailed, err))
	}
	touch(marker)

	// render
	pdfPath := filepath.Join(job.OutputDir, constants.MergedPDFName)
	rendered, err := p.renderer.Render(ctx, docxPath, pdfPath, rep)
	if err != nil {
		// not fatal: the merged docx is the primary artifact
		logger.Error("pipeline.render.failed", "error", fmt.Errorf("%w: %v", common.ErrRenderFailed, err))
		rep.Report(ctx, progress.Step(constants.StepPDFConversionComplete, constants.PercentPDFComplete,
			"PDF could not be produced, please use the DOCX file"))
		pdfPath = ""
	}

	end := p.now()
	res = &Result{
		JobID:      job.ID,
		FileCount:  total, // extracted, skipped files included
		Docx:       docxPath,
		PDF:        pdfPath,
		PDFTier:    rendered.Tier,
		PDFPages:   rendered.Pages,
		Skipped:    skipped,
		MergeFails: len(merged.Failed),
		Start:      start,
		End:        end,
	}
	rep.Report(ctx, progress.Done(res.FileCount, docxPath, pdfPath, start, end))

	elapsed := res.Elapsed().Seconds()
	p.recordStatus(ctx, logger, job.ID, constants.JobStatusCompleted, res.FileCount, elapsed)
	if p.ledger != nil {
		if err := p.ledger.IncrementUsage(ctx, end, res.FileCount, elapsed); err != nil {
			logger.Error("pipeline.ledger.usage.failed", "error", err)
		}
	}
	logger.Info("pipeline.complete",
		"files", res.FileCount,
		"skipped", len(skipped),
		"merge_failures", res.MergeFails,
		"pdf_tier", rendered.Tier,
		"pdf_pages", rendered.Pages,
		"duration_ms", res.Elapsed().Milliseconds(),
	)
	return res, nil
}

func (p *Processor) recordStatus(ctx context.Context, logger *slog.Logger, jobID string, status constants.JobStatus, files int, seconds float64) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.UpdateJobStatus(ctx, jobID, status, files, seconds); err != nil {
		logger.Error("pipeline.ledger.status.failed", "status", status, "error", err)
	}
}

// touch creates the heartbeat marker or bumps its mtime.
func touch(p string) {
	now := time.Now()
	if err := os.Chtimes(p, now, now); err == nil {
		return
	}
	if f, err := os.Create(p); err == nil {
		_ = f.Close()
	}
}
