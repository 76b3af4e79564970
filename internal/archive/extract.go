// Package archive flattens the word-processor documents of an uploaded ZIP
// into a single working directory.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/common"
)

// Extract writes every .doc/.docx entry of zipPath into destDir, discarding
// directory components, and returns the written paths in archive order.
// Later entries with the same base name overwrite earlier ones and the path is
// listed once, at its first position.
// The only fatal condition is an archive that cannot be opened.
func Extract(ctx context.Context, zipPath, destDir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	zr, err := zip.OpenReader(zipPath)
	if errors.Is(err, zip.ErrInsecurePath) && zr != nil {
		// names are flattened below, so traversal components never reach the disk
		err = nil
	}
	if err != nil {
		logger.Error("archive.open.failed", "path", zipPath, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrArchiveOpen, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", destDir, err)
	}

	var out []string
	seen := make(map[string]struct{})
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		name, ok := FlatName(f)
		if !ok {
			continue
		}
		target := filepath.Join(destDir, name)
		if err := writeEntry(f, target); err != nil {
			logger.Warn("archive.entry.skipped", "entry", f.Name, "error", err)
			continue
		}
		if _, dup := seen[target]; dup {
			logger.Warn("archive.entry.overwritten", "entry", f.Name, "path", target)
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	logger.Info("archive.extract.ok", "path", zipPath, "files", len(out))
	return out, nil
}

// FlatName returns the flattened file name for a relevant entry.
func FlatName(f *zip.File) (string, bool) {
	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return "", false
	}
	base := path.Base(strings.ReplaceAll(f.Name, `\`, "/"))
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", false
	}
	if !constants.IsDocument(base) {
		return "", false
	}
	return base, true
}

func writeEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, rc); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
