package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docmerge/internal/common"
)

type entry struct {
	name string
	body string
}

func writeZip(t *testing.T, entries []entry) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		if e.body != "" {
			_, err = w.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestExtractSelectsAndFlattens(t *testing.T) {
	zp := writeZip(t, []entry{
		{"a.docx", "A"},
		{"nested/deep/b.DOCX", "B"},
		{"c.doc", "C"},
		{"readme.txt", "ignored"},
		{"folder/", ""},
		{"folder/d.docx", "D"},
	})
	dest := filepath.Join(t.TempDir(), "extracted")

	paths, err := Extract(context.Background(), zp, dest, nil)
	require.NoError(t, err)

	want := []string{
		filepath.Join(dest, "a.docx"),
		filepath.Join(dest, "b.DOCX"),
		filepath.Join(dest, "c.doc"),
		filepath.Join(dest, "d.docx"),
	}
	assert.Equal(t, want, paths)

	b, err := os.ReadFile(filepath.Join(dest, "b.DOCX"))
	require.NoError(t, err)
	assert.Equal(t, "B", string(b))
	assert.NoFileExists(t, filepath.Join(dest, "readme.txt"))
}

func TestExtractCollisionOverwrites(t *testing.T) {
	zp := writeZip(t, []entry{
		{"one/x.docx", "first"},
		{"two/x.docx", "second"},
	})
	dest := t.TempDir()

	paths, err := Extract(context.Background(), zp, dest, nil)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	b, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))
}

func TestExtractEmptyArchive(t *testing.T) {
	zp := writeZip(t, []entry{{"notes.txt", "x"}})
	paths, err := Extract(context.Background(), zp, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestExtractBadArchive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(p, []byte("not a zip"), 0o644))

	_, err := Extract(context.Background(), p, t.TempDir(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrArchiveOpen)
}

func TestExtractWindowsSeparators(t *testing.T) {
	zp := writeZip(t, []entry{{`dir\sub\w.doc`, "W"}})
	dest := t.TempDir()
	paths, err := Extract(context.Background(), zp, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "w.doc")}, paths)
}
