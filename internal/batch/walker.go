package batch

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spherical/scan-router/internal/domain"
	"github.com/spherical/scan-router/internal/observability"
)

// FindDocuments returns the documents under root whose extension matches ext,
// ignoring case, in lexical order. Directories listed in skip are not entered.
// Unreadable subdirectories are logged and skipped.
func FindDocuments(root, ext string, skip []string, logger *observability.Logger) ([]domain.Document, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			skipped[abs] = true
		}
	}

	var docs []domain.Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn().Str("path", path).Err(err).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root {
				if abs, err := filepath.Abs(path); err == nil && skipped[abs] {
					logger.Debug().Str("path", path).Msg("skipping output folder")
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		docs = append(docs, domain.NewDocument(root, path))
		return nil
	})
	if err != nil {
		return nil, domain.IOError("walk source folder "+root, err)
	}
	return docs, nil
}
