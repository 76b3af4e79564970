package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

const (
	mainDocumentPart = "word/document.xml"
	relsPart         = "_rels/.rels"
	officeDocRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
)

// ErrNotDocx is returned when the package has no main document part.
var ErrNotDocx = errors.New("not a docx package")

// Open reads the body of the .docx file at path.
func Open(p string) (*Document, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Read(f, fi.Size())
}

// OpenBytes parses an in-memory package.
func OpenBytes(b []byte) (*Document, error) {
	return Read(bytes.NewReader(b), int64(len(b)))
}

// Read parses a package from r.
func Read(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}
	part := mainPartName(zr)
	for _, f := range zr.File {
		if f.Name != part {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return parseDocument(rc)
	}
	return nil, fmt.Errorf("%w: %s missing", ErrNotDocx, part)
}

// IsDocx reports whether the zip at path carries a main document part.
func IsDocx(p string) bool {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return false
	}
	defer zr.Close()
	part := mainPartName(&zr.Reader)
	for _, f := range zr.File {
		if f.Name == part {
			return true
		}
	}
	return false
}

// mainPartName resolves the officeDocument relationship, defaulting to word/document.xml.
func mainPartName(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != relsPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			break
		}
		var rels struct {
			Items []struct {
				Type   string `xml:"Type,attr"`
				Target string `xml:"Target,attr"`
			} `xml:"Relationship"`
		}
		err = xml.NewDecoder(rc).Decode(&rels)
		_ = rc.Close()
		if err != nil {
			break
		}
		for _, it := range rels.Items {
			if it.Type == officeDocRelType && it.Target != "" {
				return strings.TrimPrefix(path.Clean("/"+it.Target), "/")
			}
		}
	}
	return mainDocumentPart
}

func parseDocument(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	doc := New()
	inBody := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				if t.Name.Local == "body" {
					inBody = true
				}
				continue
			}
			switch t.Name.Local {
			case "p":
				p, err := parseParagraph(dec)
				if err != nil {
					return nil, err
				}
				doc.Add(p)
			case "tbl":
				tb, err := parseTable(dec)
				if err != nil {
					return nil, err
				}
				doc.Add(tb)
			case "sectPr":
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
			// other wrappers (sdt, sdtContent, customXml) are descended into
		case xml.EndElement:
			if t.Name.Local == "body" {
				return doc, nil
			}
		}
	}
	if !inBody {
		return nil, fmt.Errorf("%w: no body element", ErrNotDocx)
	}
	return doc, nil
}

// parseParagraph consumes tokens up to the matching </w:p>. Runs found inside
// text boxes are appended after the run that anchors them.
func parseParagraph(dec *xml.Decoder) (*Paragraph, error) {
	p := &Paragraph{}
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode paragraph: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pStyle":
				p.Style = attr(t, "val")
				depth++
			case "r":
				r, boxed, err := parseRun(dec)
				if err != nil {
					return nil, err
				}
				if r.Text != "" {
					p.Runs = append(p.Runs, r)
				}
				p.Runs = append(p.Runs, boxed...)
			case "del", "rPr":
				// deleted revisions and paragraph-mark properties carry no text
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			default:
				depth++
			}
		case xml.EndElement:
			if depth == 0 && t.Name.Local == "p" {
				return p, nil
			}
			depth--
		}
	}
}

// parseRun consumes tokens up to the matching </w:r>. The second result holds
// the runs of any text box drawn inside the run.
func parseRun(dec *xml.Decoder) (Run, []Run, error) {
	var (
		r     Run
		boxed []Run
		sb    strings.Builder
	)
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return r, nil, fmt.Errorf("decode run: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return r, nil, err
				}
				sb.WriteString(s)
				continue
			case "txbxContent":
				runs, err := parseTextBox(dec)
				if err != nil {
					return r, nil, err
				}
				boxed = append(boxed, runs...)
				continue
			case "delText", "instrText", "Fallback":
				// Fallback repeats the Choice content for older readers
				if err := dec.Skip(); err != nil {
					return r, nil, err
				}
				continue
			case "b":
				r.Bold = toggle(t)
			case "i":
				r.Italic = toggle(t)
			case "u":
				v := attr(t, "val")
				r.Underline = v != "none" && v != "0" && v != "false"
			case "color":
				if v := attr(t, "val"); v != "auto" {
					r.Color = v
				}
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
			depth++
		case xml.EndElement:
			if depth == 0 && t.Name.Local == "r" {
				r.Text = sb.String()
				return r, boxed, nil
			}
			depth--
		}
	}
}

// parseTextBox flattens the paragraphs of a w:txbxContent into runs, one
// line break between paragraphs.
func parseTextBox(dec *xml.Decoder) ([]Run, error) {
	var runs []Run
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode text box: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "p" {
				depth++
				continue
			}
			p, err := parseParagraph(dec)
			if err != nil {
				return nil, err
			}
			if len(runs) > 0 && len(p.Runs) > 0 {
				runs = append(runs, Run{Text: "\n"})
			}
			runs = append(runs, p.Runs...)
		case xml.EndElement:
			if depth == 0 && t.Name.Local == "txbxContent" {
				return runs, nil
			}
			depth--
		}
	}
}

func parseTable(dec *xml.Decoder) (*Table, error) {
	t := &Table{}
	var row []string
	inRow := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode table: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tblStyle":
				t.Style = attr(el, "val")
			case "tr":
				row = nil
				inRow = true
			case "tc":
				text, err := parseCell(dec)
				if err != nil {
					return nil, err
				}
				if inRow {
					row = append(row, text)
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "tr":
				t.Rows = append(t.Rows, row)
				inRow = false
			case "tbl":
				return t, nil
			}
		}
	}
}

// parseCell flattens every paragraph of a cell (nested tables included) into
// newline-separated text.
func parseCell(dec *xml.Decoder) (string, error) {
	var lines []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("decode cell: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				p, err := parseParagraph(dec)
				if err != nil {
					return "", err
				}
				lines = append(lines, p.Text())
			case "tbl":
				nested, err := parseTable(dec)
				if err != nil {
					return "", err
				}
				for _, r := range nested.Rows {
					lines = append(lines, strings.Join(r, "\t"))
				}
			}
		case xml.EndElement:
			if el.Name.Local == "tc" {
				return strings.Join(lines, "\n"), nil
			}
		}
	}
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// toggle reads an on/off property such as <w:b/> or <w:b w:val="0"/>.
func toggle(se xml.StartElement) bool {
	switch strings.ToLower(attr(se, "val")) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}
