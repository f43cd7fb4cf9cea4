package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/cmd/lakebench/config"
	"github.com/lakebench/lakebench/pkg/engine"
	"github.com/lakebench/lakebench/pkg/metrics"
	"github.com/lakebench/lakebench/pkg/models"
	"github.com/lakebench/lakebench/pkg/queryset"
	"github.com/lakebench/lakebench/pkg/report"
	"github.com/lakebench/lakebench/pkg/runner"
	"github.com/lakebench/lakebench/pkg/stats"
	"github.com/lakebench/lakebench/pkg/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a CSV query workload against an engine",
	Long: `Execute a CSV query workload against an engine, sequentially or in
staggered concurrent batches, and write per-query records, a summary,
and a timestamped CSV report.

Example:
  lakebench run --engine duckdb --queries workload.csv
  lakebench run --engine athena --queries tpcds.csv --athena-database tpcds_1tb \
    --athena-bucket query-staging --mode CONCURRENT --concurrency 8 \
    --upload --bucket bench-results --cluster-size M --run-type concurrency_8`,
	RunE: runWorkload,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("engine", "duckdb", "engine to drive (athena, trino, duckdb)")
	runCmd.Flags().StringP("queries", "q", "", "workload CSV file (required)")
	runCmd.Flags().String("query-column", "", "header of the query text column")
	runCmd.Flags().String("database", "", "database assigned to queries without one")
	runCmd.Flags().String("mode", runner.ModeSequential, "querying mode (SEQUENTIAL, CONCURRENT)")
	runCmd.Flags().Int("concurrency", 5, "batch size in concurrent mode")
	runCmd.Flags().Duration("interval", time.Minute, "stagger between concurrent batch launches")
	runCmd.Flags().Bool("shuffle", false, "randomize query order")
	runCmd.Flags().Int64("seed", 0, "shuffle seed (0 uses the current time)")
	runCmd.Flags().String("dataset", "", "dataset name recorded in the summary")
	runCmd.Flags().StringP("output-dir", "o", "results", "local directory for run artifacts")
	runCmd.Flags().Duration("query-timeout", 0, "per-query timeout for SQL drivers")

	runCmd.Flags().String("athena-region", "", "AWS region for the managed query service")
	runCmd.Flags().String("athena-database", "", "database to query")
	runCmd.Flags().String("athena-bucket", "", "staging bucket for query results")
	runCmd.Flags().String("athena-workgroup", "", "workgroup")
	runCmd.Flags().String("athena-role", "", "IAM role ARN to assume")
	runCmd.Flags().Duration("athena-poll-interval", time.Second, "query state poll interval")

	runCmd.Flags().String("trino-host", "", "coordinator host")
	runCmd.Flags().Int("trino-port", 8080, "coordinator port")
	runCmd.Flags().String("trino-user", "", "session user")
	runCmd.Flags().String("trino-catalog", "", "session catalog")
	runCmd.Flags().String("trino-schema", "", "session schema")

	runCmd.Flags().String("duckdb-path", "", "database file (empty for in-memory)")

	runCmd.Flags().Bool("upload", false, "upload run artifacts to the results store")
	addStoreFlags(runCmd)
	runCmd.Flags().String("cluster-size", "", "cluster size partition value")
	runCmd.Flags().String("benchmark", "tpcds", "benchmark partition value")
	runCmd.Flags().String("run-type", "", "run type partition value (defaults from mode)")

	runCmd.Flags().Bool("metrics", false, "expose Prometheus metrics during the run")
	runCmd.Flags().String("metrics-address", ":9090", "metrics server address")
}

func runWorkload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)

	queriesFile := viper.GetString("queries")
	if queriesFile == "" {
		return fmt.Errorf("--queries is required")
	}

	ctx, cancel := signalContext()
	defer cancel()

	collector := metrics.NewNoOpCollector()
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector()
		srv := metrics.NewMetricsServer(cfg.Metrics.Address)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
		defer srv.Stop()
		logger.Info().Str("address", cfg.Metrics.Address).Msg("Metrics server started")
	}

	eng, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	opts := queryset.LoadOptions{
		QueryColumn: cfg.Workload.QueryColumn,
		Database:    viper.GetString("database"),
	}
	if cfg.Workload.Shuffle {
		seed := cfg.Workload.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		opts.Shuffle = rand.New(rand.NewSource(seed))
	}
	specs, err := queryset.LoadFile(queriesFile, opts)
	if err != nil {
		return err
	}
	logger.Info().Int("queries", len(specs)).Str("file", queriesFile).Msg("Workload loaded")

	r, err := runner.New(eng, runner.Config{
		Mode:        cfg.Workload.Mode,
		Concurrency: cfg.Workload.Concurrency,
		Interval:    cfg.Workload.Interval,
		Dataset:     cfg.Workload.Dataset,
	}, logger, collector)
	if err != nil {
		return err
	}

	sampleCtx, stopSampling := context.WithCancel(ctx)
	runner.NewResourceSampler(0, logger, collector).Start(sampleCtx)

	started := time.Now()
	records, summary, err := r.Run(ctx, specs)
	stopSampling()
	if err != nil {
		return err
	}

	runID := models.NewRunID(started)
	artifacts, csvName, err := buildRunArtifacts(records, summary, started)
	if err != nil {
		return err
	}

	outputDir := viper.GetString("output-dir")
	runDir := filepath.Join(outputDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", runDir, err)
	}
	for name, data := range artifacts {
		if err := os.WriteFile(filepath.Join(runDir, name), data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	logger.Info().Str("dir", runDir).Str("report", csvName).Msg("Run artifacts written")

	if viper.GetBool("upload") {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		rp := models.RunPath{
			Engine:      strings.ToLower(eng.Name()),
			ClusterSize: viper.GetString("cluster-size"),
			Benchmark:   viper.GetString("benchmark"),
			RunType:     runTypeFor(cfg),
			RunID:       runID,
		}
		if rp.ClusterSize == "" {
			return fmt.Errorf("--cluster-size is required with --upload")
		}
		if err := storage.UploadRunArtifacts(ctx, store, cfg.Storage.ResultsPrefix, rp, artifacts); err != nil {
			return err
		}
		logger.Info().Str("prefix", cfg.Storage.ResultsPrefix+rp.Prefix()).Msg("Run uploaded")
	}

	if summary.Failed > 0 {
		logger.Warn().Int("failed", summary.Failed).Strs("aliases", summary.FailedAliases).
			Msg("Run completed with failures")
		return fmt.Errorf("%d of %d queries failed", summary.Failed, summary.TotalQueries)
	}
	return nil
}

func buildEngine(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (engine.Engine, error) {
	switch cfg.Engine {
	case config.EngineAthena:
		return engine.NewAthenaEngine(ctx, engine.AthenaConfig{
			Region:        cfg.Athena.Region,
			Database:      cfg.Athena.Database,
			Bucket:        cfg.Athena.Bucket,
			WorkGroup:     cfg.Athena.WorkGroup,
			AssumeRoleARN: cfg.Athena.AssumeRoleARN,
			PollInterval:  cfg.Athena.PollInterval,
		}, logger)
	case config.EngineTrino:
		return engine.NewTrinoEngine(engine.TrinoConfig{
			Host:         cfg.Trino.Host,
			Port:         cfg.Trino.Port,
			User:         cfg.Trino.User,
			Catalog:      cfg.Trino.Catalog,
			Schema:       cfg.Trino.Schema,
			QueryTimeout: cfg.Trino.QueryTimeout,
		}, logger)
	case config.EngineDuckDB, "":
		return engine.NewDuckDBEngine(engine.DuckDBConfig{
			Path:         cfg.DuckDB.Path,
			QueryTimeout: cfg.DuckDB.QueryTimeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown engine %q (expected athena, trino, or duckdb)", cfg.Engine)
	}
}

// buildRunArtifacts renders the per-run files: the timestamped CSV
// report, the raw records, the summary, and a statistics document in
// the load-test layout so stored runs stay analyzable.
func buildRunArtifacts(records []models.QueryRecord, summary models.RunSummary, started time.Time) (map[string][]byte, string, error) {
	var csvBuf bytes.Buffer
	if err := report.WriteRunCSV(&csvBuf, records); err != nil {
		return nil, "", err
	}
	var recordsBuf, summaryBuf bytes.Buffer
	if err := report.WriteRecordsJSON(&recordsBuf, records); err != nil {
		return nil, "", err
	}
	if err := report.WriteSummaryJSON(&summaryBuf, summary); err != nil {
		return nil, "", err
	}
	statsDoc, err := json.MarshalIndent(stats.FromRecords(records), "", "  ")
	if err != nil {
		return nil, "", err
	}
	testResult, err := json.MarshalIndent(testResultFor(summary), "", "  ")
	if err != nil {
		return nil, "", err
	}

	csvName := report.RunCSVFileName(strings.ToLower(summary.Engine), started)
	return map[string][]byte{
		csvName:                csvBuf.Bytes(),
		"records.json":         recordsBuf.Bytes(),
		"summary.json":         summaryBuf.Bytes(),
		storage.StatisticsFile: statsDoc,
		storage.TestResultFile: testResult,
	}, csvName, nil
}

func testResultFor(summary models.RunSummary) models.TestResult {
	return models.TestResult{
		RunInfo: map[string]interface{}{
			"engine":          summary.Engine,
			"dataset":         summary.Dataset,
			"test_start_time": summary.RunDate.UTC().Format("2006-01-02T15:04:05"),
			"test_end_time":   summary.RunDate.Add(summary.WallTime).UTC().Format("2006-01-02T15:04:05"),
		},
		OverallStatistics: models.OverallStatistics{
			ActualTestDurationSec:  summary.WallTime.Seconds(),
			QueriesPerMinuteActual: queriesPerMinute(summary),
		},
	}
}

func queriesPerMinute(summary models.RunSummary) float64 {
	minutes := summary.WallTime.Minutes()
	if minutes <= 0 {
		return 0
	}
	return float64(summary.TotalQueries) / minutes
}

func runTypeFor(cfg *config.Config) string {
	if rt := viper.GetString("run-type"); rt != "" {
		return rt
	}
	if strings.EqualFold(cfg.Workload.Mode, runner.ModeConcurrent) {
		return fmt.Sprintf("concurrency_%d", cfg.Workload.Concurrency)
	}
	return "sequential"
}
