package docx

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRaw creates a minimal package around a hand-written body.
func buildRaw(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadRunsAndStyles(t *testing.T) {
	raw := buildRaw(t, `
<w:p><w:pPr><w:pStyle w:val="Heading1"/><w:rPr><w:b/></w:rPr></w:pPr><w:r><w:t>Title</w:t></w:r></w:p>
<w:p>
  <w:r><w:rPr><w:b/></w:rPr><w:t>bold</w:t></w:r>
  <w:r><w:rPr><w:i/><w:u w:val="single"/></w:rPr><w:t xml:space="preserve"> it</w:t></w:r>
  <w:r><w:rPr><w:b w:val="0"/><w:u w:val="none"/></w:rPr><w:t>plain</w:t><w:tab/><w:t>x</w:t></w:r>
  <w:hyperlink><w:r><w:t>link</w:t></w:r></w:hyperlink>
  <w:del><w:r><w:delText>gone</w:delText></w:r></w:del>
</w:p>
<w:sectPr/>`)

	doc, err := OpenBytes(raw)
	require.NoError(t, err)
	ps := doc.Paragraphs()
	require.Len(t, ps, 2)

	assert.Equal(t, "Heading1", ps[0].Style)
	assert.Equal(t, "Title", ps[0].Text())

	runs := ps[1].Runs
	require.Len(t, runs, 4)
	assert.Equal(t, Run{Text: "bold", Bold: true}, runs[0])
	assert.Equal(t, Run{Text: " it", Italic: true, Underline: true}, runs[1])
	assert.Equal(t, Run{Text: "plain\tx"}, runs[2])
	assert.Equal(t, "link", runs[3].Text)
	assert.Equal(t, "bold itplain\txlink", ps[1].Text())
}

func TestReadTextBoxInsideParagraph(t *testing.T) {
	raw := buildRaw(t, `
<w:p>
  <w:r><w:t xml:space="preserve">before </w:t></w:r>
  <w:r><mc:AlternateContent xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006">
    <mc:Choice Requires="wps"><w:drawing><wp:anchor><a:graphic><a:graphicData><wps:wsp><wps:txbx>
      <w:txbxContent>
        <w:p><w:pPr><w:pStyle w:val="Caption"/></w:pPr><w:r><w:rPr><w:b/></w:rPr><w:t>boxA</w:t></w:r></w:p>
        <w:p><w:r><w:t>boxB</w:t></w:r></w:p>
      </w:txbxContent>
    </wps:txbx></wps:wsp></a:graphicData></a:graphic></wp:anchor></w:drawing></mc:Choice>
    <mc:Fallback><w:pict><v:shape><v:textbox><w:txbxContent><w:p><w:r><w:t>boxA</w:t></w:r></w:p></w:txbxContent></v:textbox></v:shape></w:pict></mc:Fallback>
  </mc:AlternateContent></w:r>
  <w:r><w:t xml:space="preserve"> after</w:t></w:r>
</w:p>
<w:p><w:r><w:t>next paragraph</w:t></w:r></w:p>`)

	doc, err := OpenBytes(raw)
	require.NoError(t, err)
	ps := doc.Paragraphs()
	require.Len(t, ps, 2)
	assert.Equal(t, "before boxA\nboxB after", ps[0].Text())
	assert.Empty(t, ps[0].Style)
	assert.Equal(t, Run{Text: "boxA", Bold: true}, ps[0].Runs[1])
	assert.Equal(t, "next paragraph", ps[1].Text())
}

func TestReadRaggedTable(t *testing.T) {
	raw := buildRaw(t, `
<w:tbl><w:tblPr><w:tblStyle w:val="Custom"/></w:tblPr>
<w:tr><w:tc><w:p><w:r><w:t>a</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>b</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>c</w:t></w:r></w:p><w:p><w:r><w:t>d</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>`)

	doc, err := OpenBytes(raw)
	require.NoError(t, err)
	tables := doc.Tables()
	require.Len(t, tables, 1)
	tb := tables[0]
	assert.Equal(t, "Custom", tb.Style)
	assert.Equal(t, [][]string{{"a", "b"}, {"c\nd"}}, tb.Rows)
	assert.Equal(t, 2, tb.Cols())
	assert.Equal(t, "", tb.Cell(1, 1))
}

func TestRoundTrip(t *testing.T) {
	doc := New()
	doc.AddHeading("Document: a.doc", 1)
	doc.AddRuns(Run{Text: "B", Bold: true}, Run{Text: "I & <U>", Italic: true, Underline: true})
	doc.AddRuns(Run{Text: "Error merging document x", Bold: true, Color: "FF0000"})
	doc.AddParagraph("line1\nline2\tcol")
	doc.AddTable([][]string{{"h1", "h2", "h3"}, {"v1"}}, StyleTableGrid)
	doc.AddTable(nil, StyleTableGrid)

	p := filepath.Join(t.TempDir(), "out", "merged.docx")
	require.NoError(t, doc.Save(p))
	assert.True(t, IsDocx(p))

	back, err := Open(p)
	require.NoError(t, err)
	require.Len(t, back.Blocks, 5)

	ps := back.Paragraphs()
	assert.Equal(t, StyleHeading1, ps[0].Style)
	assert.Equal(t, []Run{{Text: "B", Bold: true}, {Text: "I & <U>", Italic: true, Underline: true}}, ps[1].Runs)
	assert.Equal(t, "FF0000", ps[2].Runs[0].Color)
	assert.Equal(t, "line1\nline2\tcol", ps[3].Text())

	tb := back.Tables()[0]
	assert.Equal(t, StyleTableGrid, tb.Style)
	assert.Equal(t, [][]string{{"h1", "h2", "h3"}, {"v1", "", ""}}, tb.Rows)
}

func TestSaveWritesContentTypesFirst(t *testing.T) {
	b, err := New().Bytes()
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	assert.Equal(t, "[Content_Types].xml", zr.File[0].Name)
}

func TestOpenRejectsNonDocx(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "a.docx")
	require.NoError(t, os.WriteFile(txt, []byte("plain text"), 0o644))
	_, err := Open(txt)
	assert.ErrorIs(t, err, ErrNotDocx)
	assert.False(t, IsDocx(txt))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("other.xml")
	require.NoError(t, zw.Close())
	_, err = OpenBytes(buf.Bytes())
	assert.ErrorIs(t, err, ErrNotDocx)
}

func TestStripsControlCharacters(t *testing.T) {
	doc := New()
	doc.AddParagraph("form\ffeed\x00")
	b, err := doc.Bytes()
	require.NoError(t, err)
	back, err := OpenBytes(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"formfeed"}, back.Lines())
}
