package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docmerge/internal/docx"
	"github.com/joseph-ayodele/docmerge/internal/office"
)

const (
	OfficeTierName     = "office"
	LibraryTierName    = "library"
	CanvasTierName     = "canvas"
	NoticeTierName     = "notice"
	LastResortTierName = "last_resort"
)

// OfficeTier converts with the headless office suite and moves the result
// to the requested name when the suite picked a different one.
type OfficeTier struct {
	Suite   *office.Suite
	Timeout time.Duration
}

func (*OfficeTier) Name() string { return OfficeTierName }

func (t *OfficeTier) Render(ctx context.Context, docxPath, pdfPath string) error {
	if t.Suite == nil {
		return office.ErrSuiteNotFound
	}
	out, err := t.Suite.Convert(ctx, docxPath, "pdf", filepath.Dir(pdfPath), t.Timeout)
	if err != nil {
		return err
	}
	if out != pdfPath {
		if err := os.Rename(out, pdfPath); err != nil {
			return fmt.Errorf("rename %s: %w", out, err)
		}
	}
	return nil
}

// Converter is an optional in-process or helper-binary conversion library.
type Converter interface {
	Convert(ctx context.Context, docxPath, pdfPath string) error
}

// ErrConverterAbsent is returned by LibraryTier when no converter is wired.
var ErrConverterAbsent = errors.New("conversion library not present")

type LibraryTier struct {
	Converter Converter
}

func (*LibraryTier) Name() string { return LibraryTierName }

func (t *LibraryTier) Render(ctx context.Context, docxPath, pdfPath string) error {
	if t.Converter == nil {
		return ErrConverterAbsent
	}
	return t.Converter.Convert(ctx, docxPath, pdfPath)
}

// Docx2PDF runs the docx2pdf helper found through the office suite's PATH lookup.
type Docx2PDF struct {
	Suite   *office.Suite
	Timeout time.Duration
}

func (c *Docx2PDF) Convert(ctx context.Context, docxPath, pdfPath string) error {
	bin, ok := c.Suite.Has(c.Suite.Config().Docx2PDF)
	if !ok {
		return ErrConverterAbsent
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	if _, stderr, err := c.Suite.Runner().Run(ctx, bin, docxPath, pdfPath); err != nil {
		return fmt.Errorf("docx2pdf: %w (%s)", err, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// CanvasTier draws the document's text, one line per paragraph, onto Letter pages.
type CanvasTier struct{}

func (*CanvasTier) Name() string { return CanvasTierName }

func (*CanvasTier) Render(_ context.Context, docxPath, pdfPath string) error {
	doc, err := docx.Open(docxPath)
	if err != nil {
		return err
	}
	return drawLines(pdfPath, documentLines(doc), canvasLayout)
}

// documentLines flattens paragraphs and table rows into printable lines.
func documentLines(doc *docx.Document) []string {
	var lines []string
	for _, b := range doc.Blocks {
		switch v := b.(type) {
		case *docx.Paragraph:
			lines = append(lines, strings.Split(v.Text(), "\n")...)
		case *docx.Table:
			for _, row := range v.Rows {
				lines = append(lines, strings.Join(row, " | "))
			}
		}
	}
	return lines
}

// NoticeLines is the fixed content of the information page.
var NoticeLines = []string{
	"Automatic DOCX to PDF conversion",
	"Automatic conversion could not be performed.",
	"Please use the provided DOCX file.",
}

// NoticeTier writes a single information page.
type NoticeTier struct{}

func (*NoticeTier) Name() string { return NoticeTierName }

func (*NoticeTier) Render(_ context.Context, _, pdfPath string) error {
	return drawLines(pdfPath, NoticeLines, noticeLayout)
}

// LastResortText is written to <stem>.txt when every other tier failed.
const LastResortText = "PDF CONVERSION ERROR\n\n" +
	"Automatic conversion of the DOCX document to PDF could not be performed.\n" +
	"Please use the provided DOCX file or install the required tools (LibreOffice or docx2pdf)."

// LastResortTier writes a text notice and tries to draw it as a PDF. When
// drawing fails the text bytes are copied to pdfPath as-is, so in that one
// case the file is plain text despite its extension.
type LastResortTier struct {
	// Draw overrides the drawing step (tests). nil uses the built-in canvas.
	Draw func(lines []string, pdfPath string) error
}

func (*LastResortTier) Name() string { return LastResortTierName }

func (t *LastResortTier) Render(_ context.Context, _, pdfPath string) error {
	txtPath := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".txt"
	if err := os.WriteFile(txtPath, []byte(LastResortText), 0o644); err != nil {
		return fmt.Errorf("write notice: %w", err)
	}
	draw := t.Draw
	if draw == nil {
		draw = func(lines []string, p string) error { return drawLines(p, lines, lastResortLayout) }
	}
	if err := draw(strings.Split(LastResortText, "\n"), pdfPath); err == nil {
		_ = os.Remove(txtPath)
		return nil
	}
	b, err := os.ReadFile(txtPath)
	if err != nil {
		return err
	}
	return os.WriteFile(pdfPath, b, 0o644)
}
