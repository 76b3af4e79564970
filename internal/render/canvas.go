package render

import (
	"strings"

	"github.com/go-pdf/fpdf"
)

// Letter page in points. Layout y values are measured from the bottom edge.
const (
	pageHeight = 792.0
	pageWidth  = 612.0
)

type layout struct {
	x, startY, step, bottom float64
	wrap                    bool
}

var (
	canvasLayout     = layout{x: 50, startY: 750, step: 14, bottom: 50, wrap: true}
	noticeLayout     = layout{x: 100, startY: 700, step: 20, bottom: 50}
	lastResortLayout = layout{x: 100, startY: 700, step: 20, bottom: 50}
)

// drawLines writes lines in Helvetica 12, opening a new page when the cursor
// drops below the bottom margin.
func drawLines(pdfPath string, lines []string, l layout) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("docmerge", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	newPage := func() {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 12)
	}
	newPage()

	y := l.startY
	for _, line := range lines {
		segments := []string{line}
		if l.wrap && line != "" {
			segments = wrapLine(pdf, tr(line), pageWidth-2*l.x)
		} else {
			segments[0] = tr(strings.TrimSpace(line))
		}
		for _, seg := range segments {
			if y < l.bottom {
				newPage()
				y = l.startY
			}
			if seg != "" {
				pdf.Text(l.x, pageHeight-y, seg)
			}
			y -= l.step
		}
	}
	return pdf.OutputFileAndClose(pdfPath)
}

// wrapLine breaks an already code-page translated line on spaces so that each
// piece fits width. A single word wider than the page is kept whole.
func wrapLine(pdf *fpdf.Fpdf, s string, width float64) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	cur := words[0]
	for _, w := range words[1:] {
		next := cur + " " + w
		if pdf.GetStringWidth(next) > width {
			out = append(out, cur)
			cur = w
			continue
		}
		cur = next
	}
	return append(out, cur)
}
