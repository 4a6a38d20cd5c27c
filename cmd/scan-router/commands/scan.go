package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spherical/scan-router/internal/batch"
	"github.com/spherical/scan-router/internal/cascade"
	"github.com/spherical/scan-router/internal/config"
	"github.com/spherical/scan-router/internal/observability"
	"github.com/spherical/scan-router/internal/pdf"
	"github.com/spherical/scan-router/internal/qr"
	"github.com/spherical/scan-router/internal/report"
	"github.com/spherical/scan-router/internal/routing"
	"github.com/spherical/scan-router/internal/ui"
)

func runScan(cmd *cobra.Command, args []string) error {
	// Arguments are valid from here on, later failures are not usage errors
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 3 {
		cfg.Routing.RulesPath = args[2]
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ui.Init(noColor)
	logger := newLogger(cfg)

	rules, err := routing.LoadRules(cfg.Routing.RulesPath)
	if err != nil {
		return err
	}
	router, err := routing.NewRouter(rules, routing.Options{
		CompositePattern: cfg.Routing.CompositePattern,
		SubfolderLength:  cfg.Routing.SubfolderLength,
		NoCodeFolder:     cfg.Routing.NoCodeFolder,
		UnroutedFolder:   cfg.Routing.UnroutedFolder,
	})
	if err != nil {
		return err
	}

	decodeCascade, err := cascade.New(cfg.Cascade.Strategies, cfg.Cascade.NativeDPI, qr.NewDecoder(), logger)
	if err != nil {
		return err
	}
	ruleCount, strategies := describePipeline(router, decodeCascade)
	logger.Info().
		Int("rules", ruleCount).
		Strs("strategies", strategies).
		Msg("pipeline ready")

	pages, err := pdf.NewPageWriter(cfg.Output.PageFormat)
	if err != nil {
		return err
	}

	events := make(chan batch.Event, 64)
	options := []batch.Option{batch.WithLogger(logger), batch.WithEvents(events)}
	if cfg.Journal.Enabled {
		journal, err := report.OpenJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journal.Close()
		options = append(options, batch.WithJournal(journal))
	}

	orch, err := batch.NewOrchestrator(pdf.NewRasterizer(logger), decodeCascade, router, pages, batch.Options{
		Workers:      cfg.Batch.Workers,
		Extension:    cfg.Batch.Extension,
		ReportMode:   cfg.Output.ReportMode,
		ReportName:   cfg.Output.ReportName,
		CSVDir:       cfg.Output.CSVDir,
		ProcessedDir: cfg.Output.ProcessedDir,
		KeepSources:  !cfg.Output.MoveSources,
	}, options...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		showProgress(events, !noProgress && ui.IsTerminal())
		close(done)
	}()

	summary, err := orch.Process(ctx, args[0], args[1])
	close(events)
	<-done

	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return err
	}
	return nil
}

// loadConfig reads .env, the config file and the command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("page-format") {
		cfg.Output.PageFormat, _ = flags.GetString("page-format")
	}
	if flags.Changed("report-mode") {
		cfg.Output.ReportMode, _ = flags.GetString("report-mode")
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("keep-sources") {
		keep, _ := flags.GetBool("keep-sources")
		cfg.Output.MoveSources = !keep
	}
	if journalPath != "" {
		cfg.Journal.Enabled = true
		cfg.Journal.Path = journalPath
	}
	if logFormat != "" {
		cfg.Observability.LogFormat = logFormat
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "scan-router",
	})
}

// showProgress drives a spinner while the source tree is scanned and a
// progress bar over documents afterwards. It returns when events is closed.
func showProgress(events <-chan batch.Event, enabled bool) {
	var spin *ui.Spinner
	var bar *ui.ProgressBar
	if enabled {
		spin = ui.NewSpinner("Scanning source folder...")
		spin.Start()
	}

	for ev := range events {
		if !enabled {
			continue
		}
		switch ev.Type {
		case batch.EventStart:
			spin.Stop()
			bar = ui.NewProgressBar(int64(ev.Total), "Routing pages")
		case batch.EventDocumentStart:
			if bar != nil {
				bar.Describe(ev.Document)
			}
		case batch.EventDocumentComplete:
			if bar != nil {
				bar.Add(1)
			}
		case batch.EventComplete:
			if bar != nil {
				bar.Finish()
			}
		}
	}

	if enabled && bar == nil {
		spin.Stop()
	}
}

func printSummary(s *batch.Summary) {
	ui.Summary([]ui.Stat{
		{Label: "Documents found", Value: int64(s.Documents)},
		{Label: "Documents processed", Value: s.Counts.Documents},
		{Label: "Unreadable documents", Value: s.Counts.DocumentsFailed, Bad: true},
		{Label: "Pages", Value: s.Counts.Pages},
		{Label: "Pages decoded", Value: s.Counts.Decoded},
		{Label: "Pages without code", Value: s.Counts.Undecoded},
		{Label: "Unrouted codes", Value: s.Counts.Unrouted, Bad: true},
		{Label: "Failed attempts", Value: s.Counts.AttemptFailures},
		{Label: "Write failures", Value: s.Counts.WriteFailures, Bad: true},
	}, s.Elapsed)
	ui.Info("Run %s", s.RunID)
	for _, r := range s.Reports {
		ui.Info("Report %s", r)
	}
}

// describePipeline returns the number of routing rules and the cascade
// strategy names in evaluation order.
func describePipeline(router *routing.Router, c *cascade.Cascade) (int, []string) {
	strategies := c.Strategies()
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name)
	}
	return len(router.Rules()), names
}
