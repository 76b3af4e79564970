package constants

import (
	"path/filepath"
	"strings"
)

// AllowedExtensions holds the document extensions picked out of an uploaded archive.
var AllowedExtensions = map[string]struct{}{
	"doc":  {},
	"docx": {},
}

// ArchiveExtensions are accepted as pipeline input.
var ArchiveExtensions = map[string]struct{}{
	"zip": {},
}

const (
	MergedDocxName   = "merged.docx"
	MergedPDFName    = "merged.pdf"
	StatusFileName   = "status.json"
	ExtractedDirName = "extracted"
	ConvertedDirName = "converted"
	ActiveMarkerName = ".active"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsDocument reports whether name carries a .doc or .docx extension (case-insensitive).
func IsDocument(name string) bool {
	_, ok := AllowedExtensions[NormalizeExt(filepath.Ext(name))]
	return ok
}

// IsLegacyDoc reports whether name is a binary .doc file.
func IsLegacyDoc(name string) bool {
	return NormalizeExt(filepath.Ext(name)) == "doc"
}

// IsDocx reports whether name is already in the modern format.
func IsDocx(name string) bool {
	return NormalizeExt(filepath.Ext(name)) == "docx"
}

// IsArchive reports whether name looks like an accepted upload archive.
func IsArchive(name string) bool {
	_, ok := ArchiveExtensions[NormalizeExt(filepath.Ext(name))]
	return ok
}

// Stem returns the base name without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
