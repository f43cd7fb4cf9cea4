package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/pkg/report"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Analyze a local aggregate-report CSV",
	Long: `Analyze a load-test aggregate report: success and failure counts,
latency statistics, classified error groups, and where in the run the
first failure appeared.

Example:
  lakebench aggregate --input AggregateReport.csv`,
	RunE: runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().StringP("input", "i", "", "aggregate report CSV (required)")
	aggregateCmd.Flags().StringP("output", "o", "", "Markdown report file (defaults to stdout)")
}

func runAggregate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)

	inputPath := viper.GetString("input")
	if inputPath == "" {
		return fmt.Errorf("--input is required")
	}
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", inputPath, err)
	}
	defer in.Close()

	samples, err := report.ParseAggregateCSV(in)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples in %s", inputPath)
	}
	analysis := report.AnalyzeAggregate(samples)
	logger.Info().Int("requests", analysis.TotalRequests).Int("failed", analysis.Failed).
		Msg("Aggregate report analyzed")

	out, closeOut, err := openOutput(viper.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()
	return report.WriteAggregateMarkdown(out, filepath.Base(inputPath), analysis)
}
