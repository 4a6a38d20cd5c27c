package pdf

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/spherical/scan-router/internal/domain"
)

// Page output formats
const (
	FormatPDF = "pdf"
	FormatPNG = "png"
)

// NewPageWriter returns the page writer for an output format
func NewPageWriter(format string) (domain.PageWriter, error) {
	switch format {
	case FormatPDF, "":
		return NewPDFPageWriter(), nil
	case FormatPNG:
		return NewPNGPageWriter(), nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown page format %q", format), nil)
	}
}

// PDFPageWriter copies the routed page out of its source into a single-page PDF
type PDFPageWriter struct {
	conf *model.Configuration
}

// NewPDFPageWriter creates a writer that extracts pages with pdfcpu
func NewPDFPageWriter() *PDFPageWriter {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFPageWriter{conf: conf}
}

func (w *PDFPageWriter) Extension() string { return FormatPDF }

// WritePage trims the source document down to the requested page
func (w *PDFPageWriter) WritePage(ctx context.Context, req domain.PageWriteRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.SourcePath == "" {
		return "", domain.WriteError("no source document for page", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
		return "", domain.WriteError(fmt.Sprintf("create folder for %s", req.Path), err)
	}
	pages := []string{strconv.Itoa(req.Page.Index)}
	if err := api.TrimFile(req.SourcePath, req.Path, pages, w.conf); err != nil {
		return "", domain.WriteError(fmt.Sprintf("extract page %d of %s", req.Page.Index, req.SourcePath), err)
	}
	return req.Path, nil
}

// PNGPageWriter stores the native page raster as a PNG image
type PNGPageWriter struct {
	encoder png.Encoder
}

// NewPNGPageWriter creates a PNG page writer
func NewPNGPageWriter() *PNGPageWriter {
	return &PNGPageWriter{encoder: png.Encoder{CompressionLevel: png.BestSpeed}}
}

func (w *PNGPageWriter) Extension() string { return FormatPNG }

// WritePage encodes the native raster of the page
func (w *PNGPageWriter) WritePage(ctx context.Context, req domain.PageWriteRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Image == nil {
		return "", domain.WriteError(fmt.Sprintf("no raster for page %d", req.Page.Index), nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
		return "", domain.WriteError(fmt.Sprintf("create folder for %s", req.Path), err)
	}

	f, err := os.Create(req.Path)
	if err != nil {
		return "", domain.WriteError(fmt.Sprintf("create %s", req.Path), err)
	}
	if err := w.encoder.Encode(f, req.Image); err != nil {
		f.Close()
		return "", domain.WriteError(fmt.Sprintf("encode %s", req.Path), err)
	}
	if err := f.Close(); err != nil {
		return "", domain.WriteError(fmt.Sprintf("close %s", req.Path), err)
	}
	return req.Path, nil
}
