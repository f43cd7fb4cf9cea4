package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/pkg/models"
	"github.com/lakebench/lakebench/pkg/report"
	"github.com/lakebench/lakebench/pkg/storage"
)

var scalingCmd = &cobra.Command{
	Use:   "scaling",
	Short: "Concurrency scaling analysis for one engine",
	Long: `Analyze how one engine's latency scales across the concurrency levels
stored under a base path. Each level contributes its latest run; the
lowest level is the efficiency baseline.

Example:
  lakebench scaling --bucket bench-results \
    --path engine=trino/cluster_size=M/benchmark=tpcds`,
	RunE: runScaling,
}

func init() {
	rootCmd.AddCommand(scalingCmd)

	scalingCmd.Flags().StringP("path", "p", "", "engine base partition path (required)")
	scalingCmd.Flags().StringP("output-dir", "o", ".", "directory for scaling report files")
	addStoreFlags(scalingCmd)
}

func runScaling(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)

	basePath := viper.GetString("path")
	if basePath == "" {
		return fmt.Errorf("--path is required")
	}
	rp, err := models.ParseRunPath(basePath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	basePrefix := cfg.Storage.ResultsPrefix + strings.Trim(basePath, "/")
	segments, err := storage.DiscoverRunTypes(ctx, store, basePrefix)
	if err != nil {
		return err
	}

	var levels []report.ScalingLevel
	for _, seg := range segments {
		name := strings.TrimPrefix(seg, "run_type=")
		statistics, runID, err := loadRunForCompare(ctx, store, cfg, strings.Trim(basePath, "/")+"/"+seg, "")
		if err != nil {
			logger.Warn().Err(err).Str("run_type", name).Msg("Skipping level")
			continue
		}
		levels = append(levels, report.ScalingLevel{
			Concurrency: models.ConcurrencyFromRunType(name),
			RunID:       runID,
			Stats:       statistics,
		})
	}
	if len(levels) < 2 {
		return fmt.Errorf("need at least two concurrency levels under %s, found %d", basePath, len(levels))
	}
	report.SortLevels(levels)

	outputDir := viper.GetString("output-dir")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outputDir, err)
	}
	base := "scaling_" + defaultName("", basePath)
	csvPath := filepath.Join(outputDir, base+".csv")
	mdPath := filepath.Join(outputDir, base+".md")

	csvFile, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer csvFile.Close()
	if err := report.WriteScalingCSV(csvFile, levels); err != nil {
		return err
	}

	mdFile, err := os.Create(mdPath)
	if err != nil {
		return err
	}
	defer mdFile.Close()
	meta := report.RunMeta{
		Engine:      rp.Engine,
		ClusterSize: rp.ClusterSize,
		Benchmark:   rp.Benchmark,
		Cores:       rp.Cores(),
	}
	if err := report.WriteScalingMarkdown(mdFile, meta, levels); err != nil {
		return err
	}

	logger.Info().Str("csv", csvPath).Str("markdown", mdPath).Int("levels", len(levels)).
		Msg("Scaling analysis written")
	return nil
}
