// Package render produces the PDF rendition of the merged document through an
// ordered cascade of tiers. The tail of the cascade never depends on external
// tools, so a file always appears at the requested path.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/office"
	"github.com/joseph-ayodele/docmerge/internal/progress"
)

// Tier writes pdfPath from docxPath or returns an error.
type Tier interface {
	Name() string
	Render(ctx context.Context, docxPath, pdfPath string) error
}

// TierError is recorded for every tier that did not produce output.
type TierError struct {
	Tier string
	Err  error
}

func (e *TierError) Error() string { return fmt.Sprintf("%s: %v", e.Tier, e.Err) }
func (e *TierError) Unwrap() error { return e.Err }

type Result struct {
	Path     string
	Tier     string
	Pages    int // 0 when the output is not a readable PDF
	Attempts []*TierError
}

// Degraded reports whether the output is a notice rather than a rendition.
func (r Result) Degraded() bool {
	return r.Tier == NoticeTierName || r.Tier == LastResortTierName
}

// Texts announced with the pdf_conversion_complete record, per winning tier.
var statusTexts = map[string]string{
	NoticeTierName:     "PDF conversion finished with an information page. Finalizing...",
	LastResortTierName: "PDF conversion failed. A text notice was written instead. Finalizing...",
}

const defaultStatusText = "PDF conversion complete. Finalizing..."

// ErrNoOutput means every tier failed, including the last resort.
var ErrNoOutput = errors.New("no pdf output could be written")

type Renderer struct {
	tiers  []Tier
	logger *slog.Logger
}

func New(tiers []Tier, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{tiers: tiers, logger: logger}
}

// Options configures DefaultTiers.
type Options struct {
	Suite     *office.Suite
	Timeout   time.Duration // office tier, default 120s
	Converter Converter     // optional library tier; nil means not present
}

// DefaultTiers is the standard cascade: office suite, conversion library,
// text canvas, information page, last-resort notice.
func DefaultTiers(o Options) []Tier {
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	return []Tier{
		&OfficeTier{Suite: o.Suite, Timeout: o.Timeout},
		&LibraryTier{Converter: o.Converter},
		&CanvasTier{},
		&NoticeTier{},
		&LastResortTier{},
	}
}

// Tiers returns the cascade names in order.
func (r *Renderer) Tiers() []string {
	out := make([]string, 0, len(r.tiers))
	for _, t := range r.tiers {
		out = append(out, t.Name())
	}
	return out
}

// Render walks the cascade until a tier leaves a non-empty file at pdfPath.
func (r *Renderer) Render(ctx context.Context, docxPath, pdfPath string, rep progress.Reporter) (Result, error) {
	if rep == nil {
		rep = progress.Nop{}
	}
	rep.Report(ctx, progress.Step(constants.StepConvertingToPDF, constants.PercentConvertingToPDF, "Converting to PDF..."))

	var res Result
	for _, t := range r.tiers {
		start := time.Now()
		err := t.Render(ctx, docxPath, pdfPath)
		if err == nil {
			err = nonEmpty(pdfPath)
		}
		if err != nil {
			res.Attempts = append(res.Attempts, &TierError{Tier: t.Name(), Err: err})
			r.logger.Warn("render.tier.failed", "tier", t.Name(), "docx", docxPath, "error", err)
			continue
		}
		res.Path = pdfPath
		res.Tier = t.Name()
		res.Pages = PageCount(pdfPath)
		r.logger.Info("render.ok", "tier", t.Name(), "pdf", pdfPath, "pages", res.Pages,
			"duration_ms", time.Since(start).Milliseconds())

		text, ok := statusTexts[t.Name()]
		if !ok {
			text = defaultStatusText
		}
		rep.Report(ctx, progress.Step(constants.StepPDFConversionComplete, constants.PercentPDFComplete, text))
		return res, nil
	}

	r.logger.Error("render.failed", "docx", docxPath, "attempts", len(res.Attempts))
	return res, fmt.Errorf("%w: %s", ErrNoOutput, pdfPath)
}

func nonEmpty(p string) error {
	fi, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if fi.Size() == 0 {
		return errors.New("output is empty")
	}
	return nil
}

// PageCount returns the number of pages of a PDF, or 0 when it cannot be read.
func PageCount(p string) int {
	f, err := os.Open(p)
	if err != nil {
		return 0
	}
	defer f.Close()
	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0
	}
	return ctx.PageCount
}
