package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/scan-router/internal/domain"
	"github.com/spherical/scan-router/internal/observability"
)

// Extension is the file extension of source documents
const Extension = ".pdf"

const largeFileSize = 100 * 1024 * 1024 // 100MB

// Validator provides input validation for PDF files
type Validator struct {
	logger *observability.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger *observability.Logger) *Validator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Validator{logger: logger}
}

// IsPDF reports whether the file name carries the PDF extension, ignoring case
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), Extension)
}

// ValidatePDFPath validates that a file path is valid and points to a PDF
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	if !IsPDF(path) {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", filepath.Ext(path)), nil)
	}

	// Large scans are allowed, just slow
	if info.Size() > largeFileSize {
		v.logger.Warn().Str("path", path).Int64("size_mb", info.Size()/(1024*1024)).Msg("PDF file is very large, processing may take a while")
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// ValidateDirectory checks that path exists and is a directory
func (v *Validator) ValidateDirectory(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("directory path cannot be empty", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot access directory: %s", path), err)
	}
	if !info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("not a directory: %s", path), nil)
	}
	return nil
}
