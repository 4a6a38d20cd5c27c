package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/scan-router/internal/config"
	"github.com/spherical/scan-router/internal/domain"
	"github.com/spherical/scan-router/internal/report"
	"github.com/spherical/scan-router/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List journaled runs, or the pages of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ui.Init(noColor)

		path := journalPath
		if path == "" {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			path = cfg.Journal.Path
		}

		journal, err := report.OpenJournal(path)
		if err != nil {
			return err
		}
		defer journal.Close()

		if len(args) == 1 {
			return showRun(cmd, journal, args[0])
		}
		return listRuns(cmd, journal)
	},
}

func listRuns(cmd *cobra.Command, journal *report.Journal) error {
	runs, err := journal.Runs(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "interrupted"
		if r.FinishedAt.Valid {
			finished = r.FinishedAt.Time.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			strconv.FormatInt(r.Pages, 10),
			finished,
			r.SourceRoot,
		})
	}
	ui.Table([]string{"Run", "Started", "Pages", "Duration", "Source"}, rows)
	return nil
}

func showRun(cmd *cobra.Command, journal *report.Journal, runID string) error {
	pages, err := journal.Rows(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("no pages recorded for run %s", runID)
	}

	rows := make([][]string, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, p.Record())
	}
	ui.Table(domain.ReportHeader, rows)
	return nil
}
