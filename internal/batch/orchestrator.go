package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spherical/scan-router/internal/cascade"
	"github.com/spherical/scan-router/internal/domain"
	"github.com/spherical/scan-router/internal/observability"
	"github.com/spherical/scan-router/internal/pdf"
	"github.com/spherical/scan-router/internal/report"
	"github.com/spherical/scan-router/internal/routing"
)

// Report modes
const (
	ReportPerDocument = "per_document"
	ReportPerBatch    = "per_batch"
)

// Journal receives every processed page of a run.
type Journal interface {
	StartRun(ctx context.Context, runID, sourceRoot, outputRoot string, started time.Time) error
	RecordPages(ctx context.Context, runID string, entries []report.Entry) error
	FinishRun(ctx context.Context, runID string, pages int64, finished time.Time) error
}

// Options control the output layout and parallelism.
type Options struct {
	Workers      int
	Extension    string // Source document extension
	ReportMode   string
	ReportName   string // Batch report name in per-batch mode
	CSVDir       string // Report folder below the output root
	ProcessedDir string // Archive folder below the output root
	KeepSources  bool   // Copy sources into the archive instead of moving them
}

// DefaultOptions returns the sequential, per-document layout.
func DefaultOptions() Options {
	return Options{
		Workers:      1,
		Extension:    ".pdf",
		ReportMode:   ReportPerDocument,
		ReportName:   report.BatchReportName,
		CSVDir:       "CSV",
		ProcessedDir: "PROCESSED",
	}
}

// Orchestrator processes a source tree into routed pages, reports and an archive.
type Orchestrator struct {
	rasterizer domain.Rasterizer
	cascade    *cascade.Cascade
	router     *routing.Router
	pages      domain.PageWriter
	journal    Journal
	opts       Options
	logger     *observability.Logger
	events     chan<- Event
	retry      RetryConfig
	validator  *pdf.Validator
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithJournal records every page in j.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// WithEvents sends progress events to ch. The caller owns ch and must keep
// draining it until Process returns.
func WithEvents(ch chan<- Event) Option {
	return func(o *Orchestrator) { o.events = ch }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator wires the processing pipeline. Zero-valued options fall back to DefaultOptions.
func NewOrchestrator(r domain.Rasterizer, c *cascade.Cascade, router *routing.Router, pages domain.PageWriter, opts Options, options ...Option) (*Orchestrator, error) {
	if r == nil || c == nil || router == nil || pages == nil {
		return nil, domain.ConfigError("orchestrator needs a rasterizer, cascade, router and page writer", nil)
	}
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Extension == "" {
		opts.Extension = def.Extension
	}
	if opts.ReportMode == "" {
		opts.ReportMode = def.ReportMode
	}
	if opts.ReportMode != ReportPerDocument && opts.ReportMode != ReportPerBatch {
		return nil, domain.ConfigError(fmt.Sprintf("unknown report mode %q", opts.ReportMode), nil)
	}
	if opts.ReportName == "" {
		opts.ReportName = def.ReportName
	}
	if opts.CSVDir == "" {
		opts.CSVDir = def.CSVDir
	}
	if opts.ProcessedDir == "" {
		opts.ProcessedDir = def.ProcessedDir
	}

	o := &Orchestrator{
		rasterizer: r,
		cascade:    c,
		router:     router,
		pages:      pages,
		opts:       opts,
		logger:     observability.Nop(),
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range options {
		opt(o)
	}
	if o.logger == nil {
		o.logger = observability.Nop()
	}
	o.validator = pdf.NewValidator(o.logger)
	return o, nil
}

// docResult is what one document contributes to the run.
type docResult struct {
	rows    []domain.LogRow
	entries []report.Entry
	report  string
}

// Process routes every page of every document under sourceRoot into
// outputRoot. Per-page and per-document failures are logged and counted;
// only invalid arguments and cancellation are returned as errors.
func (o *Orchestrator) Process(ctx context.Context, sourceRoot, outputRoot string) (*Summary, error) {
	if err := o.checkRoots(sourceRoot, outputRoot); err != nil {
		return nil, err
	}

	run := NewRun(sourceRoot, outputRoot, o.logger)
	log := run.Logger.WithOperation("batch")

	docs, err := FindDocuments(sourceRoot, o.opts.Extension, []string{outputRoot}, log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", sourceRoot).Str("output", outputRoot).Int("documents", len(docs)).Msg("starting run")
	o.emit(ctx, Event{Type: EventStart, Total: len(docs), Payload: run.ID})

	if o.journal != nil {
		if err := o.journal.StartRun(ctx, run.ID, sourceRoot, outputRoot, run.StartedAt); err != nil {
			log.Error().Err(err).Msg("could not start journal run")
			run.Counters.WriteFailures.Add(1)
		}
	}

	reports := report.NewCSVWriter(filepath.Join(outputRoot, o.opts.CSVDir))
	archiver := NewArchiver(filepath.Join(outputRoot, o.opts.ProcessedDir), !o.opts.KeepSources)

	results := make([]*docResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := o.processDocument(gctx, run, doc, reports, archiver)
			results[i] = res
			return err
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	summary := &Summary{RunID: run.ID, Documents: len(docs)}
	for _, res := range results {
		if res != nil && res.report != "" {
			summary.Reports = append(summary.Reports, res.report)
		}
	}

	if o.opts.ReportMode == ReportPerBatch {
		var rows []domain.LogRow
		for _, res := range results {
			if res != nil {
				rows = append(rows, res.rows...)
			}
		}
		path, err := reports.WriteReport(o.opts.ReportName, rows)
		if err != nil {
			log.Error().Err(err).Msg("could not write batch report")
			run.Counters.WriteFailures.Add(1)
		} else {
			summary.Reports = append(summary.Reports, path)
		}
	}

	summary.Counts = run.Counters.Snapshot()
	summary.Elapsed = time.Since(run.StartedAt)

	if o.journal != nil {
		if err := o.journal.FinishRun(context.WithoutCancel(ctx), run.ID, summary.Counts.Pages, time.Now()); err != nil {
			log.Error().Err(err).Msg("could not finish journal run")
		}
	}

	o.emit(ctx, Event{
		Type:    EventComplete,
		Payload: fmt.Sprintf("Processed %d pages in %.2f seconds", summary.Counts.Pages, summary.Elapsed.Seconds()),
	})
	log.Info().
		Int64("pages", summary.Counts.Pages).
		Int64("documents", summary.Counts.Documents).
		Int64("documents_failed", summary.Counts.DocumentsFailed).
		Int64("decoded", summary.Counts.Decoded).
		Int64("undecoded", summary.Counts.Undecoded).
		Int64("unrouted", summary.Counts.Unrouted).
		Int64("write_failures", summary.Counts.WriteFailures).
		Dur("elapsed", summary.Elapsed).
		Msg("run complete")

	if runErr != nil {
		return summary, fmt.Errorf("run %s interrupted: %w", run.ID, runErr)
	}
	return summary, nil
}

func (o *Orchestrator) checkRoots(sourceRoot, outputRoot string) error {
	if strings.TrimSpace(sourceRoot) == "" || strings.TrimSpace(outputRoot) == "" {
		return domain.ValidationError("source and output folders are required", nil)
	}
	if err := o.validator.ValidateDirectory(sourceRoot); err != nil {
		return err
	}
	src, err := filepath.Abs(sourceRoot)
	if err != nil {
		return domain.ValidationError("resolve source folder", err)
	}
	out, err := filepath.Abs(outputRoot)
	if err != nil {
		return domain.ValidationError("resolve output folder", err)
	}
	if src == out {
		return domain.ValidationError("output folder must differ from the source folder", nil)
	}
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return domain.IOError(fmt.Sprintf("create output folder %s", outputRoot), err)
	}
	return nil
}

// processDocument decodes, reports and archives one document. The returned
// error is non-nil only on cancellation.
func (o *Orchestrator) processDocument(ctx context.Context, run *Run, doc domain.Document, reports domain.ReportWriter, archiver *Archiver) (*docResult, error) {
	log := run.Logger.WithDocument(doc.Name)

	res, err := o.decodeDocument(ctx, run, doc, log)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Error().Str("path", doc.Path).Err(err).Msg("cannot read document, skipping")
		run.Counters.DocumentsFailed.Add(1)
		o.emit(ctx, Event{Type: EventError, Document: doc.Name, Payload: err.Error()})
		o.emit(ctx, Event{Type: EventDocumentComplete, Document: doc.Name})
		return nil, nil
	}

	if o.opts.ReportMode == ReportPerDocument {
		path, err := reports.WriteReport(doc.Name, res.rows)
		if err != nil {
			log.Error().Err(err).Msg("could not write document report")
			run.Counters.WriteFailures.Add(1)
		} else {
			res.report = path
		}
	}

	if o.journal != nil {
		if err := o.journal.RecordPages(ctx, run.ID, res.entries); err != nil {
			log.Error().Err(err).Msg("could not journal pages")
			run.Counters.WriteFailures.Add(1)
		}
	}

	var dest string
	err = retryWithBackoff(ctx, o.retry, log, func() error {
		var err error
		dest, err = archiver.Archive(doc)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("could not archive document")
		run.Counters.WriteFailures.Add(1)
	} else {
		log.Debug().Str("archived", dest).Msg("document archived")
	}

	o.emit(ctx, Event{Type: EventDocumentComplete, Document: doc.Name, Total: len(res.rows)})
	return res, nil
}

// decodeDocument runs every page through the cascade and the router. The
// document handle is released before the source is archived.
func (o *Orchestrator) decodeDocument(ctx context.Context, run *Run, doc domain.Document, log *observability.Logger) (*docResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := o.rasterizer.Open(doc.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close document")
		}
	}()
	run.Counters.Documents.Add(1)

	n := src.NumPages()
	log.Info().Int("pages", n).Msg("processing document")
	o.emit(ctx, Event{Type: EventDocumentStart, Document: doc.Name, Total: n})

	res := &docResult{
		rows:    make([]domain.LogRow, 0, n),
		entries: make([]report.Entry, 0, n),
	}
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref := domain.PageRef{Document: doc.Name, Index: i}

		decoded := o.cascade.Decode(ctx, src, ref)
		if decoded.Err != nil {
			return nil, decoded.Err
		}
		run.Counters.AttemptFailures.Add(int64(decoded.Failures()))

		folders := o.writePage(ctx, run, doc, ref, decoded, log)

		if decoded.Found() {
			run.Counters.Decoded.Add(1)
		} else {
			run.Counters.Undecoded.Add(1)
		}
		row := domain.NewLogRow(ref, decoded.Payloads)
		res.rows = append(res.rows, row)
		res.entries = append(res.entries, report.Entry{
			Source:   doc.RelPath(),
			Row:      row,
			Strategy: decoded.Strategy,
			Folders:  strings.Join(folders, ","),
			Attempts: len(decoded.Attempts),
		})
		run.Counters.Pages.Add(1)

		log.Debug().Int("page", i).Str("decoded", row.Decoded).Str("strategy", decoded.Strategy).Msg("page routed")
		o.emit(ctx, Event{Type: EventPageComplete, Document: doc.Name, Page: i, Payload: row.Decoded})
	}
	return res, nil
}

// writePage writes one copy of the page per routing decision and returns the
// distinct bins used.
func (o *Orchestrator) writePage(ctx context.Context, run *Run, doc domain.Document, ref domain.PageRef, decoded cascade.Result, log *observability.Logger) []string {
	decisions := o.router.Route(ref, decoded.Payloads)
	seen := make(map[string]bool, len(decisions))
	var folders []string
	for _, d := range decisions {
		if d.Unrouted {
			run.Counters.Unrouted.Add(1)
			err := domain.RoutingError(fmt.Sprintf("no rule matches %q", d.Payload), nil)
			log.Warn().Int("page", ref.Index).Str("folder", d.Folder).Err(err).Msg("page left unrouted")
		}
		req := domain.PageWriteRequest{
			SourcePath: doc.Path,
			Page:       ref,
			Image:      decoded.Raster(),
			Path:       filepath.Join(run.OutputRoot, d.RelativePath(o.pages.Extension())),
		}
		if _, err := o.pages.WritePage(ctx, req); err != nil {
			run.Counters.WriteFailures.Add(1)
			log.Error().Int("page", ref.Index).Str("path", req.Path).Err(err).Msg("could not write page")
		}
		if !seen[d.Folder] {
			seen[d.Folder] = true
			folders = append(folders, d.Folder)
		}
	}
	sort.Strings(folders)
	return folders
}

func (o *Orchestrator) emit(ctx context.Context, ev Event) {
	if o.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case o.events <- ev:
	case <-ctx.Done():
	}
}
