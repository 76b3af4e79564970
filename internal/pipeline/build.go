package pipeline

import (
	"log/slog"

	"github.com/joseph-ayodele/docmerge/internal/common"
	"github.com/joseph-ayodele/docmerge/internal/merge"
	"github.com/joseph-ayodele/docmerge/internal/normalize"
	"github.com/joseph-ayodele/docmerge/internal/office"
	"github.com/joseph-ayodele/docmerge/internal/render"
)

// NewFromConfig assembles the default cascades around one office suite.
// ledger may be nil.
func NewFromConfig(cfg *common.Config, ledger Ledger, logger *slog.Logger, opts ...office.Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	suite := office.NewSuite(office.Config{
		SuitePath: cfg.Office.SuitePath,
		Antiword:  cfg.Office.Antiword,
		Catdoc:    cfg.Office.Catdoc,
		Docx2PDF:  cfg.Office.Docx2PDF,
	}, logger, opts...)

	normalizer := normalize.New(normalize.DefaultStrategies(suite, normalize.Timeouts{
		Office: cfg.Office.NormalizeTimeout,
		Text:   cfg.Office.TextTimeout,
	}), logger)

	renderer := render.New(render.DefaultTiers(render.Options{
		Suite:     suite,
		Timeout:   cfg.Office.RenderTimeout,
		Converter: &render.Docx2PDF{Suite: suite, Timeout: cfg.Office.RenderTimeout},
	}), logger)

	var popts []Option
	if ledger != nil {
		popts = append(popts, WithLedger(ledger))
	}
	return NewProcessor(logger, normalizer, merge.New(logger), renderer, popts...)
}
