// Package docx reads and writes the subset of WordprocessingML the pipeline
// cares about: body paragraphs made of formatted runs, and tables of text cells.
package docx

import (
	"fmt"
	"strings"
)

// Style ids emitted by the writer.
const (
	StyleNormal    = "Normal"
	StyleHeading1  = "Heading1"
	StyleHeading2  = "Heading2"
	StyleTableGrid = "TableGrid"
)

// Block is a top-level body element: *Paragraph or *Table.
type Block interface {
	block()
}

type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
	Color     string // hex RRGGBB, empty for automatic
}

type Paragraph struct {
	Style string
	Runs  []Run
}

func (*Paragraph) block() {}

// Text concatenates the run texts.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Table holds cell text row by row. Rows may be ragged.
type Table struct {
	Style string
	Rows  [][]string
}

func (*Table) block() {}

// Cols is the widest row.
func (t *Table) Cols() int {
	n := 0
	for _, r := range t.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// Cell returns the text at (r, c), or "" outside a ragged row.
func (t *Table) Cell(r, c int) string {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return ""
	}
	return t.Rows[r][c]
}

// Document is an ordered list of body blocks.
type Document struct {
	Blocks []Block
}

func New() *Document { return &Document{} }

// Add appends a block.
func (d *Document) Add(b Block) {
	d.Blocks = append(d.Blocks, b)
}

// AddHeading appends a single-run paragraph using Heading<level>.
func (d *Document) AddHeading(text string, level int) *Paragraph {
	if level < 1 {
		level = 1
	}
	p := &Paragraph{Style: fmt.Sprintf("Heading%d", level), Runs: []Run{{Text: text}}}
	d.Add(p)
	return p
}

// AddParagraph appends a plain single-run paragraph.
func (d *Document) AddParagraph(text string) *Paragraph {
	p := &Paragraph{Runs: []Run{{Text: text}}}
	d.Add(p)
	return p
}

// AddRuns appends a paragraph built from runs.
func (d *Document) AddRuns(runs ...Run) *Paragraph {
	p := &Paragraph{Runs: runs}
	d.Add(p)
	return p
}

// AddTable appends a rows x cols grid; shorter rows are padded with empty cells.
func (d *Document) AddTable(rows [][]string, style string) *Table {
	t := &Table{Style: style, Rows: rows}
	d.Add(t)
	return t
}

// Paragraphs returns the top-level paragraphs in order.
func (d *Document) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, b := range d.Blocks {
		if p, ok := b.(*Paragraph); ok {
			out = append(out, p)
		}
	}
	return out
}

// Tables returns the top-level tables in order.
func (d *Document) Tables() []*Table {
	var out []*Table
	for _, b := range d.Blocks {
		if t, ok := b.(*Table); ok {
			out = append(out, t)
		}
	}
	return out
}

// Lines returns one entry per top-level paragraph, in order.
func (d *Document) Lines() []string {
	ps := d.Paragraphs()
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Text())
	}
	return out
}
