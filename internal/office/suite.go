// Package office wraps the external converters the pipeline shells out to:
// the office suite (headless format conversion) and the legacy .doc text
// extractors.
package office

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docmerge/constants"
)

// ErrSuiteNotFound is returned when no office suite executable can be located.
var ErrSuiteNotFound = errors.New("office suite not found")

// SuiteCandidates is the probe order used when no explicit path is configured.
var SuiteCandidates = []string{
	"libreoffice",
	"soffice",
	"/usr/bin/libreoffice",
	"/usr/local/bin/libreoffice",
	"/opt/libreoffice/program/soffice",
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
}

type Config struct {
	SuitePath string // binary name or absolute path; empty -> probe SuiteCandidates
	Antiword  string // if empty -> "antiword"
	Catdoc    string // if empty -> "catdoc"
	Docx2PDF  string // if empty -> "docx2pdf"
}

// Suite drives headless conversions through the office suite.
type Suite struct {
	cfg      Config
	runner   Runner
	logger   *slog.Logger
	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
}

type Option func(*Suite)

// WithRunner swaps the process runner (tests).
func WithRunner(r Runner) Option {
	return func(s *Suite) {
		if r != nil {
			s.runner = r
		}
	}
}

// WithLookPath swaps PATH resolution (tests).
func WithLookPath(fn func(string) (string, error)) Option {
	return func(s *Suite) {
		if fn != nil {
			s.lookPath = fn
		}
	}
}

// WithStat swaps absolute-path probing (tests).
func WithStat(fn func(string) (os.FileInfo, error)) Option {
	return func(s *Suite) {
		if fn != nil {
			s.stat = fn
		}
	}
}

func NewSuite(cfg Config, logger *slog.Logger, opts ...Option) *Suite {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Antiword == "" {
		cfg.Antiword = "antiword"
	}
	if cfg.Catdoc == "" {
		cfg.Catdoc = "catdoc"
	}
	if cfg.Docx2PDF == "" {
		cfg.Docx2PDF = "docx2pdf"
	}
	s := &Suite{
		cfg:      cfg,
		runner:   ExecRunner{Logger: logger},
		logger:   logger,
		lookPath: exec.LookPath,
		stat:     os.Stat,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Suite) Config() Config { return s.cfg }

// Runner exposes the process runner so sibling tools share it.
func (s *Suite) Runner() Runner { return s.runner }

// Locate returns the first usable office suite executable.
func (s *Suite) Locate() (string, error) {
	candidates := SuiteCandidates
	if s.cfg.SuitePath != "" {
		candidates = append([]string{s.cfg.SuitePath}, SuiteCandidates...)
	}
	for _, c := range candidates {
		if p, ok := s.resolve(c); ok {
			return p, nil
		}
	}
	return "", ErrSuiteNotFound
}

// Has reports whether bin resolves to an executable.
func (s *Suite) Has(bin string) (string, bool) {
	return s.resolve(bin)
}

func (s *Suite) resolve(bin string) (string, bool) {
	if bin == "" {
		return "", false
	}
	if filepath.IsAbs(bin) {
		fi, err := s.stat(bin)
		if err != nil || fi.IsDir() {
			return "", false
		}
		return bin, true
	}
	p, err := s.lookPath(bin)
	if err != nil {
		return "", false
	}
	return p, true
}

// Convert runs `<suite> --headless --convert-to <format> --outdir <outDir> <src>`
// under timeout and returns <outDir>/<stem>.<format>, which must exist afterwards.
func (s *Suite) Convert(ctx context.Context, src, format, outDir string, timeout time.Duration) (string, error) {
	bin, err := s.Locate()
	if err != nil {
		return "", err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if _, stderr, err := s.runner.Run(ctx, bin, "--headless", "--convert-to", format, "--outdir", outDir, src); err != nil {
		return "", fmt.Errorf("%s convert-to %s: %w (%s)", filepath.Base(bin), format, err, strings.TrimSpace(truncate(string(stderr), 512)))
	}
	out := filepath.Join(outDir, constants.Stem(src)+"."+format)
	fi, err := s.stat(out)
	if err != nil {
		return "", fmt.Errorf("expected output %s missing: %w", out, err)
	}
	if fi.Size() == 0 {
		return "", fmt.Errorf("expected output %s is empty", out)
	}
	s.logger.Debug("office.convert.ok", "src", src, "format", format, "out", out)
	return out, nil
}
