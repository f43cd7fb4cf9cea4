package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/pkg/catalog"
	"github.com/lakebench/lakebench/pkg/index"
	"github.com/lakebench/lakebench/pkg/models"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and publish runs-index documents",
}

var indexGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build a runs-index document for one run-type path",
	Long: `Scan the run_ids under a run-type path, merge each run's test result
and statistics into a runs-index document, save it locally, and
optionally upload it next to the runs it describes.

Example:
  lakebench index generate --bucket bench-results \
    --path engine=trino/cluster_size=M/benchmark=tpcds/run_type=concurrency_4 \
    --upload`,
	RunE: runIndexGenerate,
}

var indexUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Flatten a runs-index document into catalog JSONL",
	Long: `Flatten a runs-index document into one JSONL row per run and upload
it under the catalog base prefix, partitioned for the catalog table.

Example:
  lakebench index upload --bucket bench-results --input runs_index.json \
    --catalog-base jmeter-results-index`,
	RunE: runIndexUpload,
}

var indexSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Publish indexes for runs missing from the catalog",
	Long: `Discover every complete run in the results store, ask the catalog
which run_ids it already knows, and republish the index of each
run type that has unindexed runs.

Example:
  lakebench index sync --bucket bench-results --output-location s3://bench-athena-staging/ \
    --catalog-base jmeter-results-index --engine trino --dry-run`,
	RunE: runIndexSync,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexGenerateCmd, indexUploadCmd, indexSyncCmd)

	indexGenerateCmd.Flags().StringP("path", "p", "", "run-type partition path (required)")
	indexGenerateCmd.Flags().String("base-uri", "", "fully qualified URI of the run-type path")
	indexGenerateCmd.Flags().StringP("output", "o", "runs_index.json", "local file for the index document")
	indexGenerateCmd.Flags().Bool("upload", false, "also upload the document next to the runs")
	addStoreFlags(indexGenerateCmd)

	indexUploadCmd.Flags().StringP("input", "i", "runs_index.json", "runs-index document to flatten")
	indexUploadCmd.Flags().String("catalog-base", "jmeter-results-index", "catalog objects base prefix")
	addStoreFlags(indexUploadCmd)

	indexSyncCmd.Flags().String("engine", "", "restrict the sync to one engine")
	indexSyncCmd.Flags().String("cluster-size", "", "restrict the sync to one cluster size")
	indexSyncCmd.Flags().Bool("force", false, "republish even when every run is indexed")
	indexSyncCmd.Flags().Bool("dry-run", false, "report what would be published without writing")
	indexSyncCmd.Flags().String("catalog-base", "jmeter-results-index", "catalog objects base prefix")
	indexSyncCmd.Flags().String("catalog-database", "jmeter_analysis", "catalog database")
	indexSyncCmd.Flags().String("catalog-table", "jmeter_runs_index", "catalog table")
	indexSyncCmd.Flags().String("output-location", "", "staging URI for catalog queries")
	indexSyncCmd.Flags().Duration("poll-interval", 0, "catalog query poll interval")
	indexSyncCmd.Flags().Int("max-polls", 0, "catalog query poll limit")
	addStoreFlags(indexSyncCmd)
}

func runIndexGenerate(cmd *cobra.Command, args []string) error {
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

	baseURI := viper.GetString("base-uri")
	if baseURI == "" {
		if cfg.Storage.ResultsURI == "" {
			return fmt.Errorf("--base-uri or --bucket is required")
		}
		baseURI = cfg.Storage.ResultsURI + "/" + strings.Trim(runTypePath, "/")
	}

	gen := index.NewGenerator(store, cfg.Storage.ResultsPrefix, logger)
	idx, err := gen.Generate(ctx, rp, baseURI)
	if err != nil {
		return err
	}

	doc, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	outputPath := viper.GetString("output")
	if err := os.WriteFile(outputPath, doc, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	logger.Info().Str("file", outputPath).Int("runs", idx.Info.TotalRuns).Msg("Index written")

	if viper.GetBool("upload") {
		key := cfg.Storage.ResultsPrefix + rp.Join("runs_index.json")
		if err := store.Put(ctx, key, doc); err != nil {
			return err
		}
		logger.Info().Str("key", key).Msg("Index uploaded")
	}
	return nil
}

func runIndexUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)

	inputPath := viper.GetString("input")
	doc, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", inputPath, err)
	}
	var idx models.RunsIndex
	if err := json.Unmarshal(doc, &idx); err != nil {
		return fmt.Errorf("malformed runs index %s: %w", inputPath, err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	rows, err := index.EncodeJSONL(&idx)
	if err != nil {
		return err
	}
	key := index.CatalogDataPath(viper.GetString("catalog-base"), idx.Metadata)
	if err := store.Put(ctx, key, rows); err != nil {
		return err
	}
	logger.Info().Str("key", key).Int("runs", len(idx.Runs)).Msg("Catalog rows uploaded")
	return nil
}

func runIndexSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	catalogClient, err := catalog.NewClient(ctx, catalog.Config{
		Region:         cfg.Catalog.Region,
		Database:       cfg.Catalog.Database,
		Table:          cfg.Catalog.Table,
		OutputLocation: cfg.Catalog.OutputLocation,
		PollInterval:   cfg.Catalog.PollInterval,
		MaxPolls:       cfg.Catalog.MaxPolls,
	}, logger)
	if err != nil {
		return err
	}

	syncer := index.NewSyncer(store, catalogClient,
		cfg.Storage.ResultsPrefix, cfg.Storage.ResultsURI,
		viper.GetString("catalog-base"), logger)

	result, err := syncer.Sync(ctx, index.SyncOptions{
		Engine:      viper.GetString("engine"),
		ClusterSize: viper.GetString("cluster-size"),
		Force:       viper.GetBool("force"),
		DryRun:      viper.GetBool("dry-run"),
	})
	if err != nil {
		return err
	}

	logger.Info().
		Int("discovered", result.Discovered).
		Int("already_indexed", result.AlreadyIndexed).
		Int("missing", len(result.Missing)).
		Int("published", result.Published).
		Int("failed", result.Failed).
		Msg("Sync complete")
	if result.Failed > 0 {
		return fmt.Errorf("%d run type(s) failed to publish", result.Failed)
	}
	return nil
}
