package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/cmd/lakebench/config"
	"github.com/lakebench/lakebench/pkg/models"
	"github.com/lakebench/lakebench/pkg/report"
	"github.com/lakebench/lakebench/pkg/stats"
	"github.com/lakebench/lakebench/pkg/storage"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two stored runs query by query",
	Long: `Compare two runs from the results store into a CSV and a Markdown
summary. With --all-concurrency the two paths are treated as engine
base paths and every concurrency level present under both is compared.

Example:
  lakebench compare --bucket bench-results \
    --path1 engine=trino/cluster_size=M/benchmark=tpcds/run_type=concurrency_4 \
    --path2 engine=athena/cluster_size=M/benchmark=tpcds/run_type=concurrency_4
  lakebench compare --bucket bench-results --all-concurrency \
    --path1 engine=trino/cluster_size=M/benchmark=tpcds \
    --path2 engine=athena/cluster_size=M/benchmark=tpcds`,
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().String("path1", "", "first run-type partition path (required)")
	compareCmd.Flags().String("path2", "", "second run-type partition path (required)")
	compareCmd.Flags().String("run-id1", "", "run for the first path (defaults to the latest)")
	compareCmd.Flags().String("run-id2", "", "run for the second path (defaults to the latest)")
	compareCmd.Flags().String("name1", "", "display name for the first side")
	compareCmd.Flags().String("name2", "", "display name for the second side")
	compareCmd.Flags().Bool("all-concurrency", false, "compare every level under two base paths")
	compareCmd.Flags().StringP("output-dir", "o", ".", "directory for comparison files")
	addStoreFlags(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)

	path1 := viper.GetString("path1")
	path2 := viper.GetString("path2")
	if path1 == "" || path2 == "" {
		return fmt.Errorf("--path1 and --path2 are required")
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

	name1 := defaultName(viper.GetString("name1"), path1)
	name2 := defaultName(viper.GetString("name2"), path2)

	if !viper.GetBool("all-concurrency") {
		stats1, id1, err := loadRunForCompare(ctx, store, cfg, path1, viper.GetString("run-id1"))
		if err != nil {
			return err
		}
		stats2, id2, err := loadRunForCompare(ctx, store, cfg, path2, viper.GetString("run-id2"))
		if err != nil {
			return err
		}
		logger.Info().Str("run_id1", id1).Str("run_id2", id2).Msg("Comparing runs")
		return writeComparison(outputDir, "", name1, name2, stats1, stats2, logger)
	}

	return compareAllLevels(ctx, store, cfg, path1, path2, name1, name2, outputDir, logger)
}

// compareAllLevels compares the latest run of every concurrency level
// present under both base paths.
func compareAllLevels(ctx context.Context, store storage.ObjectStore, cfg *config.Config, base1, base2, name1, name2, outputDir string, logger zerolog.Logger) error {
	types1, err := storage.DiscoverRunTypes(ctx, store, cfg.Storage.ResultsPrefix+strings.Trim(base1, "/"))
	if err != nil {
		return err
	}
	types2, err := storage.DiscoverRunTypes(ctx, store, cfg.Storage.ResultsPrefix+strings.Trim(base2, "/"))
	if err != nil {
		return err
	}

	// Run-type segments may carry the run_type= prefix or not; match on
	// the bare name.
	present := make(map[string]string, len(types2))
	for _, seg := range types2 {
		present[strings.TrimPrefix(seg, "run_type=")] = seg
	}

	compared := 0
	for _, seg1 := range types1 {
		name := strings.TrimPrefix(seg1, "run_type=")
		seg2, ok := present[name]
		if !ok {
			continue
		}
		stats1, _, err := loadRunForCompare(ctx, store, cfg, strings.Trim(base1, "/")+"/"+seg1, "")
		if err != nil {
			logger.Warn().Err(err).Str("run_type", name).Msg("Skipping level on first path")
			continue
		}
		stats2, _, err := loadRunForCompare(ctx, store, cfg, strings.Trim(base2, "/")+"/"+seg2, "")
		if err != nil {
			logger.Warn().Err(err).Str("run_type", name).Msg("Skipping level on second path")
			continue
		}
		if err := writeComparison(outputDir, "_"+name, name1, name2, stats1, stats2, logger); err != nil {
			return err
		}
		compared++
	}
	if compared == 0 {
		return fmt.Errorf("no common concurrency levels under %s and %s", base1, base2)
	}
	logger.Info().Int("levels", compared).Msg("Comparison complete")
	return nil
}

// loadRunForCompare fetches the statistics of a run under a run-type
// path, latest when runID is empty.
func loadRunForCompare(ctx context.Context, store storage.ObjectStore, cfg *config.Config, runTypePath, runID string) (models.Statistics, string, error) {
	prefix := cfg.Storage.ResultsPrefix + strings.Trim(runTypePath, "/")
	if runID == "" {
		latest, err := storage.LatestRunID(ctx, store, prefix)
		if err != nil {
			return nil, "", err
		}
		runID = latest
	}
	statistics, err := storage.LoadRunStatistics(ctx, store, prefix, runID)
	if err != nil {
		return nil, "", err
	}
	return statistics, runID, nil
}

func writeComparison(outputDir, suffix, name1, name2 string, stats1, stats2 models.Statistics, logger zerolog.Logger) error {
	pairs := stats.MatchQueries(stats1.QueryLabels(), stats2.QueryLabels())
	if len(pairs) == 0 {
		return fmt.Errorf("no matching queries between %s and %s", name1, name2)
	}

	base := fmt.Sprintf("comparison_%s_vs_%s%s", name1, name2, suffix)
	csvPath := filepath.Join(outputDir, base+".csv")
	mdPath := filepath.Join(outputDir, base+".md")

	csvFile, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer csvFile.Close()
	if err := report.WriteComparisonCSV(csvFile, name1, name2, stats1, stats2, pairs); err != nil {
		return err
	}

	mdFile, err := os.Create(mdPath)
	if err != nil {
		return err
	}
	defer mdFile.Close()
	if err := report.WriteComparisonMarkdown(mdFile, name1, name2, stats1, stats2, pairs); err != nil {
		return err
	}

	logger.Info().Str("csv", csvPath).Str("markdown", mdPath).Int("queries", len(pairs)).
		Msg("Comparison written")
	return nil
}

// defaultName derives a display name from a partition path when none
// was given, preferring the engine segment.
func defaultName(name, partitionPath string) string {
	if name != "" {
		return name
	}
	if rp, err := models.ParseRunPath(partitionPath); err == nil && rp.Engine != "" {
		return rp.Engine
	}
	return strings.ReplaceAll(strings.Trim(partitionPath, "/"), "/", "_")
}
