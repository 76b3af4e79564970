package office

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// TextTool identifies one of the legacy plain-text extractors.
type TextTool string

const (
	Antiword TextTool = "antiword"
	Catdoc   TextTool = "catdoc"
)

func (s *Suite) binFor(tool TextTool) string {
	switch tool {
	case Antiword:
		return s.cfg.Antiword
	case Catdoc:
		return s.cfg.Catdoc
	}
	return string(tool)
}

// ExtractText runs the tool on src and returns its decoded stdout.
// Empty output is reported as an error.
func (s *Suite) ExtractText(ctx context.Context, tool TextTool, src string, timeout time.Duration) (string, error) {
	bin, ok := s.Has(s.binFor(tool))
	if !ok {
		return "", fmt.Errorf("%s not installed", tool)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	stdout, stderr, err := s.runner.Run(ctx, bin, src)
	if err != nil {
		return "", fmt.Errorf("%s: %w (%s)", tool, err, strings.TrimSpace(truncate(string(stderr), 512)))
	}
	text := DecodeText(stdout)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s produced no text", tool)
	}
	return text, nil
}

// DecodeText returns b as a string, reinterpreting it as Windows-1252 when it
// is not valid UTF-8. Extractors fall back to the document's 8-bit code page.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	r := transform.NewReader(bytes.NewReader(b), charmap.Windows1252.NewDecoder())
	out, err := io.ReadAll(r)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}
