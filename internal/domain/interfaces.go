package domain

import (
	"context"
	"image"
)

// Rasterizer opens source documents for page rendering
type Rasterizer interface {
	// Open loads the document at path. The caller must Close it.
	Open(path string) (PageSource, error)
}

// PageSource is an open, multi-page source document
type PageSource interface {
	// NumPages returns the number of pages in the document
	NumPages() int

	// Render rasterizes the 1-based page at the given resolution in dots per inch
	Render(page int, dpi float64) (image.Image, error)

	// Close releases the underlying document handle
	Close() error
}

// SymbolDecoder finds and decodes QR symbols in a raster image.
// It returns ErrNotFound when the image holds no readable symbol.
type SymbolDecoder interface {
	Decode(img image.Image) ([]string, error)
}

// PageWriter persists one routed page under the output root
type PageWriter interface {
	// Extension is the file extension, without the dot, of written pages
	Extension() string

	// WritePage writes the page described by req and returns the written path
	WritePage(ctx context.Context, req PageWriteRequest) (string, error)
}

// ReportWriter persists the tabular decode log
type ReportWriter interface {
	// WriteReport writes rows under the given report name and returns the written path
	WriteReport(name string, rows []LogRow) (string, error)
}
