package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const wNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="` + wNS + `">
<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:cs="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault>
<w:pPrDefault><w:pPr><w:spacing w:after="120"/></w:pPr></w:pPrDefault></w:docDefaults>
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>
<w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>
<w:pPr><w:keepNext/><w:spacing w:before="200" w:after="80"/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>
<w:style w:type="table" w:default="1" w:styleId="TableNormal"><w:name w:val="Normal Table"/><w:tblPr><w:tblCellMar><w:left w:w="108" w:type="dxa"/><w:right w:w="108" w:type="dxa"/></w:tblCellMar></w:tblPr></w:style>
<w:style w:type="table" w:styleId="TableGrid"><w:name w:val="Table Grid"/><w:basedOn w:val="TableNormal"/>
<w:tblPr><w:tblBorders><w:top w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:left w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:bottom w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:right w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:insideH w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:insideV w:val="single" w:sz="4" w:space="0" w:color="auto"/></w:tblBorders></w:tblPr></w:style>
</w:styles>`

// Save writes the document as a complete .docx package.
func (d *Document) Save(p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := d.WriteTo(f); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return err
	}
	return f.Close()
}

// Bytes renders the package in memory.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo streams the zip package to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", contentTypesXML}, // must stay first for content sniffers
		{"_rels/.rels", packageRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{mainDocumentPart, d.documentXML()},
	}
	for _, part := range parts {
		pw, err := zw.Create(part.name)
		if err != nil {
			return cw.n, fmt.Errorf("create %s: %w", part.name, err)
		}
		if _, err := io.WriteString(pw, part.body); err != nil {
			return cw.n, fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

func (d *Document) documentXML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:document xmlns:w="` + wNS + `"><w:body>`)
	for _, b := range d.Blocks {
		switch v := b.(type) {
		case *Paragraph:
			writeParagraph(&sb, v)
		case *Table:
			writeTable(&sb, v)
		}
	}
	sb.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>`)
	sb.WriteString(`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`)
	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}

func writeParagraph(sb *strings.Builder, p *Paragraph) {
	sb.WriteString("<w:p>")
	if p.Style != "" {
		sb.WriteString(`<w:pPr><w:pStyle w:val="`)
		escape(sb, p.Style)
		sb.WriteString(`"/></w:pPr>`)
	}
	for _, r := range p.Runs {
		writeRun(sb, r)
	}
	sb.WriteString("</w:p>")
}

func writeRun(sb *strings.Builder, r Run) {
	sb.WriteString("<w:r>")
	if r.Bold || r.Italic || r.Underline || r.Color != "" {
		sb.WriteString("<w:rPr>")
		if r.Bold {
			sb.WriteString("<w:b/>")
		}
		if r.Italic {
			sb.WriteString("<w:i/>")
		}
		if r.Color != "" {
			sb.WriteString(`<w:color w:val="`)
			escape(sb, r.Color)
			sb.WriteString(`"/>`)
		}
		if r.Underline {
			sb.WriteString(`<w:u w:val="single"/>`)
		}
		sb.WriteString("</w:rPr>")
	}
	for i, line := range strings.Split(r.Text, "\n") {
		if i > 0 {
			sb.WriteString("<w:br/>")
		}
		for j, seg := range strings.Split(line, "\t") {
			if j > 0 {
				sb.WriteString("<w:tab/>")
			}
			if seg == "" {
				continue
			}
			sb.WriteString(`<w:t xml:space="preserve">`)
			escape(sb, seg)
			sb.WriteString("</w:t>")
		}
	}
	sb.WriteString("</w:r>")
}

func writeTable(sb *strings.Builder, t *Table) {
	cols := t.Cols()
	if len(t.Rows) == 0 || cols == 0 {
		return
	}
	style := t.Style
	if style == "" {
		style = StyleTableGrid
	}
	sb.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="`)
	escape(sb, style)
	sb.WriteString(`"/><w:tblW w:w="0" w:type="auto"/><w:tblLook w:val="04A0"/></w:tblPr><w:tblGrid>`)
	width := 9360 / cols
	for c := 0; c < cols; c++ {
		fmt.Fprintf(sb, `<w:gridCol w:w="%d"/>`, width)
	}
	sb.WriteString("</w:tblGrid>")
	for r := range t.Rows {
		sb.WriteString("<w:tr>")
		for c := 0; c < cols; c++ {
			fmt.Fprintf(sb, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/></w:tcPr>`, width)
			for _, line := range strings.Split(t.Cell(r, c), "\n") {
				writeParagraph(sb, &Paragraph{Runs: []Run{{Text: line}}})
			}
			sb.WriteString("</w:tc>")
		}
		sb.WriteString("</w:tr>")
	}
	sb.WriteString("</w:tbl>")
}

func escape(sb *strings.Builder, s string) {
	_ = xml.EscapeText(sb, []byte(stripInvalidXML(s)))
}

// stripInvalidXML drops characters XML 1.0 cannot carry (legacy extractors emit form feeds and NULs).
func stripInvalidXML(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		}
		return r
	}, s)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
