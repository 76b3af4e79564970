package normalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/h2non/filetype"
	nguyendocx "github.com/nguyenthenguyen/docx"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/docx"
	"github.com/joseph-ayodele/docmerge/internal/office"
)

const (
	mimeMSWord = "application/msword"
	mimeDocx   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Timeouts bounds each external tool invocation.
type Timeouts struct {
	Office time.Duration // default 60s
	Text   time.Duration // default 30s, per extractor
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Office <= 0 {
		t.Office = 60 * time.Second
	}
	if t.Text <= 0 {
		t.Text = 30 * time.Second
	}
	return t
}

// DefaultStrategies is the standard cascade: office suite, direct reopen,
// text extraction, placeholder.
func DefaultStrategies(suite *office.Suite, t Timeouts) []Strategy {
	t = t.withDefaults()
	return []Strategy{
		&OfficeStrategy{Suite: suite, Timeout: t.Office},
		&ReopenStrategy{},
		&TextStrategy{Suite: suite, Timeout: t.Text, Tools: DefaultTextTools()},
		&PlaceholderStrategy{},
	}
}

func outputPath(src, destDir string) string {
	return filepath.Join(destDir, constants.Stem(src)+".docx")
}

// OfficeStrategy converts with the headless office suite.
type OfficeStrategy struct {
	Suite   *office.Suite
	Timeout time.Duration
}

func (*OfficeStrategy) Name() string { return "office" }

func (s *OfficeStrategy) Convert(ctx context.Context, src, destDir string) (string, error) {
	if s.Suite == nil {
		return "", office.ErrSuiteNotFound
	}
	return s.Suite.Convert(ctx, src, "docx", destDir, s.Timeout)
}

// ReopenStrategy handles inputs whose content is already a word-processing
// package despite the legacy extension: it sniffs the content type, opens the
// package and re-saves it under the .docx name.
type ReopenStrategy struct{}

func (*ReopenStrategy) Name() string { return "reopen" }

func (*ReopenStrategy) Convert(_ context.Context, src, destDir string) (string, error) {
	mime, err := sniff(src)
	if err != nil {
		return "", err
	}
	if mime != mimeMSWord && mime != mimeDocx && !docx.IsDocx(src) {
		return "", fmt.Errorf("content type %q is not a word document", mime)
	}
	r, err := nguyendocx.ReadDocxFile(src)
	if err != nil {
		return "", fmt.Errorf("open as docx: %w", err)
	}
	defer r.Close()

	out := outputPath(src, destDir)
	if err := r.Editable().WriteToFile(out); err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("save docx: %w", err)
	}
	return out, nil
}

func sniff(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 8192)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	kind, err := filetype.Match(head[:n])
	if err != nil {
		return "", fmt.Errorf("sniff content type: %w", err)
	}
	return kind.MIME.Value, nil
}

// TextTool pairs an extractor with the row heuristic suited to its output.
type TextTool struct {
	Tool office.TextTool
	Rows RowSplitter
}

// DefaultTextTools tries antiword (box-drawn tables) then catdoc (column gaps).
func DefaultTextTools() []TextTool {
	return []TextTool{
		{Tool: office.Antiword, Rows: PipeRows},
		{Tool: office.Catdoc, Rows: GapRows},
	}
}

// TextStrategy rebuilds a document from plain text extracted by legacy tools.
type TextStrategy struct {
	Suite   *office.Suite
	Timeout time.Duration
	Tools   []TextTool
}

func (*TextStrategy) Name() string { return "text" }

func (s *TextStrategy) Convert(ctx context.Context, src, destDir string) (string, error) {
	if s.Suite == nil {
		return "", errors.New("no text extractors configured")
	}
	var errs []error
	for _, tool := range s.Tools {
		text, err := s.Suite.ExtractText(ctx, tool.Tool, src, s.Timeout)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out := outputPath(src, destDir)
		if err := TextDocument(filepath.Base(src), text, tool.Rows).Save(out); err != nil {
			errs = append(errs, fmt.Errorf("%s: save: %w", tool.Tool, err))
			continue
		}
		return out, nil
	}
	if len(errs) == 0 {
		return "", errors.New("no text extractors configured")
	}
	return "", errors.Join(errs...)
}

// PlaceholderStrategy always succeeds with a short explanatory document.
type PlaceholderStrategy struct{}

func (*PlaceholderStrategy) Name() string { return "placeholder" }

func (*PlaceholderStrategy) Convert(_ context.Context, src, destDir string) (string, error) {
	out := outputPath(src, destDir)
	if err := Placeholder(filepath.Base(src)).Save(out); err != nil {
		return "", err
	}
	return out, nil
}

// Placeholder builds the document used when no strategy could read the input.
func Placeholder(filename string) *docx.Document {
	doc := docx.New()
	doc.AddHeading("Document: "+filename, 1)
	doc.AddParagraph("This document could not be converted correctly.")
	doc.AddParagraph("Original filename: " + filename)
	doc.AddParagraph("Please try opening this file directly with your word processor.")
	return doc
}
