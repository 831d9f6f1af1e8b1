// Package source discovers the PDF files of an input directory.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pdfrag/internal/contextutil"
)

// ScannedFile represents a PDF file found during scanning.
type ScannedFile struct {
	DocumentID string // RelPath with "/" replaced by "_" (e.g., "guides_asthma.pdf")
	RelPath    string // Relative path from the input root (e.g., "guides/asthma.pdf")
	Category   string // Folder path of RelPath, empty at the root (e.g., "guides")
	AbsPath    string // Path passed to the extractor
}

// DocumentID derives a stable document id from a slash-separated relative path.
func DocumentID(relPath string) string {
	return strings.ReplaceAll(relPath, "/", "_")
}

// Scan walks root recursively and returns every file with a .pdf extension
// (case-insensitive), sorted by relative path. Hidden directories are skipped.
// Unreadable entries below root are logged and skipped; a missing or
// unreadable root is an error.
func Scan(ctx context.Context, root string) ([]ScannedFile, error) {
	logger := contextutil.LoggerFromContext(ctx)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access input directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", root)
	}

	var files []ScannedFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logger.WarnContext(ctx, "skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		// Normalize relative path (use forward slashes for consistency)
		relPath = filepath.ToSlash(relPath)

		category := filepath.ToSlash(filepath.Dir(relPath))
		if category == "." {
			category = ""
		}

		files = append(files, ScannedFile{
			DocumentID: DocumentID(relPath),
			RelPath:    relPath,
			Category:   category,
			AbsPath:    path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})
	return files, nil
}
