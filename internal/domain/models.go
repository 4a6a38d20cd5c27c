package domain

import (
	"image"
	"path/filepath"
	"strconv"
	"strings"
)

// ReportHeader is the column header of every decode report
var ReportHeader = []string{"PDF_Name", "Page_Number", "Decoded_ID"}

// PayloadSeparator joins several payloads decoded from one page into a single log value
const PayloadSeparator = ";"

// Document represents a source PDF found under the source root
type Document struct {
	Path   string // Absolute or root-joined path to the file
	Name   string // File name without extension
	RelDir string // Directory relative to the source root ("." for the root itself)
}

// NewDocument builds a Document for path found beneath root
func NewDocument(root, path string) Document {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		rel = "."
	}
	base := filepath.Base(path)
	return Document{
		Path:   path,
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		RelDir: rel,
	}
}

// RelPath returns the document's path relative to the source root, with forward slashes
func (d Document) RelPath() string {
	return filepath.ToSlash(filepath.Join(d.RelDir, filepath.Base(d.Path)))
}

// PageRef identifies a single page of a document
type PageRef struct {
	Document string // Document name
	Index    int    // 1-based page index
}

// RoutingDecision says where one decoded payload (or an undecoded page) is written
type RoutingDecision struct {
	Payload   string // Empty for the no-code fallback
	Folder    string // Bin selected by the rules
	Subfolder string // Optional grouping folder below the bin
	FileName  string // File name without extension
	Unrouted  bool   // True when no rule matched and the default bin was used
}

// RelativePath returns the decision's output path below the output root
func (d RoutingDecision) RelativePath(ext string) string {
	name := d.FileName
	if ext != "" {
		name += "." + ext
	}
	if d.Subfolder == "" {
		return filepath.Join(d.Folder, name)
	}
	return filepath.Join(d.Folder, d.Subfolder, name)
}

// PageWriteRequest carries everything a PageWriter needs for one page
type PageWriteRequest struct {
	SourcePath string      // Source PDF the page belongs to
	Page       PageRef     // Page identity
	Image      image.Image // Native raster, else the decoding raster, nil when neither was rendered
	Path       string      // Absolute destination path including extension
}

// LogRow is one line of the decode report
type LogRow struct {
	Document string
	Page     int
	Decoded  string
}

// NewLogRow builds the single log row for a page from all of its payloads
func NewLogRow(page PageRef, payloads []string) LogRow {
	return LogRow{
		Document: page.Document,
		Page:     page.Index,
		Decoded:  strings.Join(payloads, PayloadSeparator),
	}
}

// Record returns the row as CSV fields
func (r LogRow) Record() []string {
	return []string{r.Document, strconv.Itoa(r.Page), r.Decoded}
}
