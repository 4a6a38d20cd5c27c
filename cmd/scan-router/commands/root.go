package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	verbose     bool
	noColor     bool
	noProgress  bool
	journalPath string
	logFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "scan-router [flags] <source> <output> [rules]",
	Short: "Route scanned PDF pages into folders by their QR codes",
	Long: `scan-router walks a folder of scanned PDFs, decodes the QR codes on every
page and writes each page into the folder chosen by an ordered list of
pattern=folder rules. Every page gets one row in a CSV report and every
processed source is moved into PROCESSED/ below the output folder.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runScan,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "", "record every page in this SQLite journal")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json")

	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	rootCmd.Flags().String("page-format", "", "routed page format: pdf or png")
	rootCmd.Flags().String("report-mode", "", "CSV report mode: per_document or per_batch")
	rootCmd.Flags().Int("workers", 0, "documents processed in parallel")
	rootCmd.Flags().Bool("keep-sources", false, "copy sources into PROCESSED instead of moving them")

	rootCmd.AddCommand(historyCmd)
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}
