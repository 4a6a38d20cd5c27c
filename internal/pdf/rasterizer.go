package pdf

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/scan-router/internal/domain"
	"github.com/spherical/scan-router/internal/observability"
)

// Rasterizer opens PDF documents with go-fitz (MuPDF)
type Rasterizer struct {
	validator *Validator
}

// NewRasterizer creates a new PDF rasterizer
func NewRasterizer(logger *observability.Logger) *Rasterizer {
	return &Rasterizer{validator: NewValidator(logger)}
}

// Open validates and opens the PDF at path
func (r *Rasterizer) Open(path string) (domain.PageSource, error) {
	if err := r.validator.ValidatePDFPath(path); err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.RenderError("Failed to open PDF", err)
	}

	if doc.NumPage() == 0 {
		doc.Close()
		return nil, domain.ValidationError("PDF has no pages", nil)
	}

	return &document{doc: doc, path: path}, nil
}

// document is an open go-fitz document
type document struct {
	doc  *fitz.Document
	path string
}

func (d *document) NumPages() int {
	return d.doc.NumPage()
}

// Render rasterizes the 1-based page at dpi
func (d *document) Render(page int, dpi float64) (image.Image, error) {
	if page < 1 || page > d.doc.NumPage() {
		return nil, domain.ValidationError(fmt.Sprintf("page %d out of range 1-%d", page, d.doc.NumPage()), nil)
	}
	if dpi <= 0 {
		return nil, domain.ValidationError(fmt.Sprintf("invalid dpi %v", dpi), nil)
	}

	img, err := d.doc.ImageDPI(page-1, dpi)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("Failed to render page %d of %s", page, d.path), err)
	}
	return img, nil
}

func (d *document) Close() error {
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
