// Package normalize turns every extracted document into a .docx. Legacy .doc
// files go through an ordered cascade of conversion strategies; the last one
// never fails, so a broken input degrades into a placeholder document rather
// than aborting the job.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/docx"
)

// Strategy converts one legacy document into <destDir>/<stem>.docx.
type Strategy interface {
	Name() string
	Convert(ctx context.Context, src, destDir string) (string, error)
}

// Attempt records one failed tier.
type Attempt struct {
	Strategy string
	Err      error
	Duration time.Duration
}

// TierError is returned when a strategy output fails verification or the strategy errors.
type TierError struct {
	Strategy string
	Err      error
}

func (e *TierError) Error() string { return fmt.Sprintf("%s: %v", e.Strategy, e.Err) }
func (e *TierError) Unwrap() error { return e.Err }

// Result describes the outcome for one input file.
type Result struct {
	Source   string
	Path     string
	Strategy string // winning strategy, or "passthrough" for .docx inputs
	Attempts []Attempt
}

// Passthrough names the pseudo-strategy used for inputs that are already .docx.
const Passthrough = "passthrough"

// ErrAllStrategiesFailed means even the terminal strategy could not write its output.
var ErrAllStrategiesFailed = errors.New("all conversion strategies failed")

type Normalizer struct {
	strategies []Strategy
	logger     *slog.Logger
}

func New(strategies []Strategy, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{strategies: strategies, logger: logger}
}

// Strategies returns the cascade in evaluation order.
func (n *Normalizer) Strategies() []string {
	out := make([]string, 0, len(n.strategies))
	for _, s := range n.strategies {
		out = append(out, s.Name())
	}
	return out
}

// Normalize returns a .docx path for src. .docx inputs are returned unchanged;
// anything else walks the cascade until one strategy yields a verified package.
func (n *Normalizer) Normalize(ctx context.Context, src, destDir string) (Result, error) {
	res := Result{Source: src}
	if constants.IsDocx(src) {
		res.Path = src
		res.Strategy = Passthrough
		return res, nil
	}

	for _, s := range n.strategies {
		start := time.Now()
		out, err := s.Convert(ctx, src, destDir)
		if err == nil {
			err = verify(out)
		}
		if err != nil {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name(), Err: err, Duration: time.Since(start)})
			n.logger.Warn("normalize.strategy.failed", "path", src, "strategy", s.Name(), "error", err)
			continue
		}
		res.Path = out
		res.Strategy = s.Name()
		n.logger.Info("normalize.ok", "path", src, "strategy", s.Name(), "out", out,
			"failed_attempts", len(res.Attempts), "duration_ms", time.Since(start).Milliseconds())
		return res, nil
	}

	n.logger.Error("normalize.failed", "path", src, "attempts", len(res.Attempts))
	return res, fmt.Errorf("%w for %s", ErrAllStrategiesFailed, src)
}

// verify accepts an output only if it exists, is non-empty and parses as a package.
func verify(p string) error {
	if p == "" {
		return errors.New("no output path")
	}
	fi, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if fi.Size() == 0 {
		return errors.New("output is empty")
	}
	if _, err := docx.Open(p); err != nil {
		return fmt.Errorf("output unreadable: %w", err)
	}
	return nil
}
