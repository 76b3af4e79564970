// Package merge concatenates normalized documents into one package, each
// source introduced by a separator heading.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/docx"
	"github.com/joseph-ayodele/docmerge/internal/progress"
)

// SeparatorDots is the number of dots appended to the file name in a separator.
const SeparatorDots = 100

// ErrorColor is the run color of inline per-source failure messages.
const ErrorColor = "FF0000"

// SourceError records a source that could not be copied into the merge.
type SourceError struct {
	Path string
	Err  error
}

type Result struct {
	Path    string
	Sources int
	Failed  []SourceError
}

type Merger struct {
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration
	open     func(string) (*docx.Document, error)
}

type Option func(*Merger)

// WithClock injects the time source used for progress throttling.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) {
		if now != nil {
			m.now = now
		}
	}
}

// WithProgressInterval sets the minimum spacing between in-loop progress writes.
func WithProgressInterval(d time.Duration) Option {
	return func(m *Merger) {
		if d >= 0 {
			m.interval = d
		}
	}
}

// WithOpener replaces the document reader (tests).
func WithOpener(open func(string) (*docx.Document, error)) Option {
	return func(m *Merger) {
		if open != nil {
			m.open = open
		}
	}
}

func New(logger *slog.Logger, opts ...Option) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Merger{logger: logger, now: time.Now, interval: time.Second, open: docx.Open}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Separator returns the text of the heading that introduces a source.
func Separator(path string) string {
	return filepath.Base(path) + strings.Repeat(".", SeparatorDots)
}

// Merge appends every source to a fresh document saved at outPath. A source
// that cannot be read yields an inline error paragraph; only failing to save
// the result is fatal.
func (m *Merger) Merge(ctx context.Context, paths []string, outPath string, rep progress.Reporter) (Result, error) {
	if rep == nil {
		rep = progress.Nop{}
	}
	total := len(paths)
	res := Result{Path: outPath, Sources: total}

	rep.Report(ctx, progress.Record{
		CurrentStep: constants.StepMerge,
		Percent:     constants.PercentMerge,
		StatusText:  "Merging documents...",
		FileCount:   total,
		Total:       total,
	})

	master := docx.New()
	throttle := progress.NewThrottle(m.interval, m.now)
	for i, p := range paths {
		processed := i + 1
		if throttle.Allow() {
			rep.Report(ctx, progress.Record{
				CurrentStep: constants.StepMerge,
				Percent:     constants.Interpolate(constants.PercentMerge, constants.PercentMergeEnd, processed, total),
				StatusText:  fmt.Sprintf("Merging document %d/%d...", processed, total),
				FileCount:   total,
				Processed:   processed,
				Total:       total,
			})
		}

		master.Add(&docx.Paragraph{Style: docx.StyleHeading2, Runs: []docx.Run{{Text: Separator(p)}}})

		src, err := m.open(p)
		if err != nil {
			name := filepath.Base(p)
			master.AddRuns(docx.Run{
				Text:  fmt.Sprintf("Error merging document %s: %v", name, err),
				Bold:  true,
				Color: ErrorColor,
			})
			res.Failed = append(res.Failed, SourceError{Path: p, Err: err})
			m.logger.Warn("merge.source.failed", "path", p, "error", err)
			continue
		}
		appendBody(master, src)
	}

	if err := master.Save(outPath); err != nil {
		m.logger.Error("merge.save.failed", "path", outPath, "error", err)
		return res, fmt.Errorf("save merged document: %w", err)
	}

	rep.Report(ctx, progress.Record{
		CurrentStep: constants.StepMergingComplete,
		Percent:     constants.PercentMergingComplete,
		StatusText:  "Merge complete. Converting to PDF...",
		FileCount:   total,
	})
	m.logger.Info("merge.ok", "path", outPath, "sources", total, "failed", len(res.Failed))
	return res, nil
}

// appendBody copies paragraphs run by run (bold/italic/underline only) and
// tables cell by cell into dst.
func appendBody(dst, src *docx.Document) {
	for _, b := range src.Blocks {
		switch v := b.(type) {
		case *docx.Paragraph:
			runs := make([]docx.Run, 0, len(v.Runs))
			for _, r := range v.Runs {
				runs = append(runs, docx.Run{Text: r.Text, Bold: r.Bold, Italic: r.Italic, Underline: r.Underline})
			}
			dst.AddRuns(runs...)
		case *docx.Table:
			rows, cols := len(v.Rows), v.Cols()
			if rows == 0 || cols == 0 {
				continue
			}
			grid := make([][]string, rows)
			for i := range grid {
				grid[i] = make([]string, cols)
				for j := 0; j < cols; j++ {
					grid[i][j] = v.Cell(i, j)
				}
			}
			dst.AddTable(grid, docx.StyleTableGrid)
		}
	}
}
