package normalize

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/docmerge/internal/docx"
)

// RowSplitter decides whether a trimmed line belongs to a text table and, if
// so, returns its cells.
type RowSplitter func(line string) (cells []string, ok bool)

// PipeRows recognizes box-drawn rows: more than two '|' or '+' characters.
// '+' is treated as a column separator as well.
func PipeRows(line string) ([]string, bool) {
	if !strings.ContainsAny(line, "|+") {
		return nil, false
	}
	if strings.Count(line, "|") <= 2 && strings.Count(line, "+") <= 2 {
		return nil, false
	}
	return splitCells(strings.Split(strings.ReplaceAll(line, "+", "|"), "|")), true
}

var gapRe = regexp.MustCompile(`  +|\t+`)

// GapRows recognizes column-aligned rows: at least three double-space runs or three tabs.
func GapRows(line string) ([]string, bool) {
	if !strings.Contains(line, "  ") && !strings.Contains(line, "\t") {
		return nil, false
	}
	if strings.Count(line, "  ") < 3 && strings.Count(line, "\t") < 3 {
		return nil, false
	}
	return splitCells(gapRe.Split(line, -1)), true
}

func splitCells(parts []string) []string {
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

// TextDocument rebuilds a document from extracted plain text. Contiguous
// table rows become one TableGrid table sized rows x widest row; every other
// non-blank line becomes a paragraph.
func TextDocument(filename, text string, rows RowSplitter) *docx.Document {
	doc := docx.New()
	doc.AddHeading("Document: "+filename, 1)

	var table [][]string
	inTable := false
	flush := func() {
		if inTable && len(table) > 0 {
			doc.AddTable(table, docx.StyleTableGrid)
		}
		inTable = false
		table = nil
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line != "" {
			if cells, ok := rows(line); ok {
				inTable = true
				if len(cells) > 0 {
					table = append(table, cells)
				}
				continue
			}
		}
		flush()
		if line != "" {
			doc.AddParagraph(line)
		}
	}
	flush()
	return doc
}
