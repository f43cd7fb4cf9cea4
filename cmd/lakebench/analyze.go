package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/pkg/models"
	"github.com/lakebench/lakebench/pkg/report"
	"github.com/lakebench/lakebench/pkg/storage"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Render a Markdown report for one stored run",
	Long: `Fetch one run's statistics from the results store, latest or by
--run-id, and render a Markdown report.

Example:
  lakebench analyze --bucket bench-results \
    --path engine=trino/cluster_size=M/benchmark=tpcds/run_type=concurrency_4
  lakebench analyze --bucket bench-results --path engine=trino/... --run-id 20250314-092653`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("path", "p", "", "run-type partition path (required)")
	analyzeCmd.Flags().String("run-id", "", "run to analyze (defaults to the latest)")
	analyzeCmd.Flags().StringP("output", "o", "", "output file (defaults to stdout)")
	addStoreFlags(analyzeCmd)
}

// addStoreFlags registers the shared results-store flags.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("bucket", "", "results bucket")
	cmd.Flags().String("region", "", "results bucket region")
	cmd.Flags().String("endpoint", "", "custom S3 endpoint")
	cmd.Flags().Bool("path-style", false, "use path-style S3 addressing")
	cmd.Flags().String("local-dir", "", "local store root when no bucket is set")
	cmd.Flags().String("results-prefix", "jmeter-results/", "results key prefix")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)

	runTypePath := viper.GetString("path")
	if runTypePath == "" {
		return fmt.Errorf("--path is required")
	}
	rp, err := models.ParseRunPath(runTypePath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	prefix := cfg.Storage.ResultsPrefix + strings.Trim(runTypePath, "/")
	runID := viper.GetString("run-id")
	if runID == "" {
		runID, err = storage.LatestRunID(ctx, store, prefix)
		if err != nil {
			return err
		}
		logger.Info().Str("run_id", runID).Msg("Using latest run")
	}

	statistics, err := storage.LoadRunStatistics(ctx, store, prefix, runID)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(viper.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	meta := report.RunMeta{
		Engine:      rp.Engine,
		ClusterSize: rp.ClusterSize,
		Benchmark:   rp.Benchmark,
		RunType:     rp.RunType,
		RunID:       runID,
		Concurrency: rp.Concurrency(),
		Cores:       rp.Cores(),
	}
	return report.WriteSingleRunMarkdown(out, statistics, meta)
}
