package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/pkg/storage"
)

var regressCmd = &cobra.Command{
	Use:   "regress",
	Short: "Compare the two most recent runs of each level",
	Long: `Compare the two most recent runs, or two specific run IDs, for every
concurrency level under an engine base path. The older run is the
baseline; a positive diff means the newer run got faster.

Example:
  lakebench regress --bucket bench-results \
    --path engine=trino/cluster_size=M/benchmark=tpcds
  lakebench regress --bucket bench-results --path engine=trino/... \
    --run-id1 20250310-120000 --run-id2 20250314-092653`,
	RunE: runRegress,
}

func init() {
	rootCmd.AddCommand(regressCmd)

	regressCmd.Flags().StringP("path", "p", "", "engine base partition path (required)")
	regressCmd.Flags().String("run-id1", "", "baseline run (defaults to the second newest)")
	regressCmd.Flags().String("run-id2", "", "candidate run (defaults to the newest)")
	regressCmd.Flags().StringP("output-dir", "o", ".", "directory for comparison files")
	addStoreFlags(regressCmd)
}

func runRegress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)

	basePath := viper.GetString("path")
	if basePath == "" {
		return fmt.Errorf("--path is required")
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	outputDir := viper.GetString("output-dir")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outputDir, err)
	}

	basePrefix := cfg.Storage.ResultsPrefix + strings.Trim(basePath, "/")
	segments, err := storage.DiscoverRunTypes(ctx, store, basePrefix)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("no concurrency levels under %s", basePath)
	}

	baselineID := viper.GetString("run-id1")
	candidateID := viper.GetString("run-id2")

	compared := 0
	for _, seg := range segments {
		name := strings.TrimPrefix(seg, "run_type=")
		levelPath := strings.Trim(basePath, "/") + "/" + seg
		oldID, newID := baselineID, candidateID
		if oldID == "" || newID == "" {
			ids, err := storage.ListRunIDs(ctx, store, cfg.Storage.ResultsPrefix+levelPath)
			if err != nil {
				return err
			}
			if len(ids) < 2 {
				logger.Warn().Str("run_type", name).Int("runs", len(ids)).
					Msg("Skipping level with fewer than two runs")
				continue
			}
			// IDs come back newest first.
			newID, oldID = ids[0], ids[1]
		}

		oldStats, _, err := loadRunForCompare(ctx, store, cfg, levelPath, oldID)
		if err != nil {
			logger.Warn().Err(err).Str("run_type", name).Msg("Skipping level")
			continue
		}
		newStats, _, err := loadRunForCompare(ctx, store, cfg, levelPath, newID)
		if err != nil {
			logger.Warn().Err(err).Str("run_type", name).Msg("Skipping level")
			continue
		}

		logger.Info().Str("run_type", name).Str("baseline", oldID).Str("candidate", newID).
			Msg("Checking for regressions")
		suffix := "_" + name
		if err := writeComparison(outputDir, suffix, "baseline_"+oldID, "latest_"+newID, oldStats, newStats, logger); err != nil {
			return err
		}
		compared++
	}
	if compared == 0 {
		return fmt.Errorf("no level under %s had two runs to compare", basePath)
	}
	return nil
}
