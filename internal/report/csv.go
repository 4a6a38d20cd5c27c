// Package report persists the per-page decode log.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spherical/scan-router/internal/domain"
)

// BatchReportName is the report name used when one CSV covers a whole run.
const BatchReportName = "decodedQRCodes"

// CSVWriter writes reports as <dir>/<name>.csv with the standard header.
// Fields containing commas, quotes or newlines are quoted.
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates a CSV report writer rooted at dir.
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{dir: dir}
}

// WriteReport writes rows to <dir>/<name>.csv, replacing any previous file.
func (w *CSVWriter) WriteReport(name string, rows []domain.LogRow) (string, error) {
	if name == "" {
		return "", domain.WriteError("report name cannot be empty", nil)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", domain.WriteError(fmt.Sprintf("create report folder %s", w.dir), err)
	}

	path := filepath.Join(w.dir, name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", domain.WriteError(fmt.Sprintf("create report %s", path), err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(domain.ReportHeader); err != nil {
		f.Close()
		return "", domain.WriteError("write report header", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			f.Close()
			return "", domain.WriteError(fmt.Sprintf("write report row %s/%d", row.Document, row.Page), err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return "", domain.WriteError("flush report", err)
	}
	if err := f.Close(); err != nil {
		return "", domain.WriteError(fmt.Sprintf("close report %s", path), err)
	}
	return path, nil
}
