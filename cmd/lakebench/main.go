// Package main provides the entry point for the lakebench CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/cmd/lakebench/config"
	"github.com/lakebench/lakebench/pkg/storage"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "lakebench",
	Short: "Lakebench SQL benchmarking toolkit",
	Long: `A benchmarking and reporting toolkit for SQL analytic engines.

Lakebench executes CSV query workloads against an engine, analyzes run
statistics stored in S3, maintains a queryable runs catalog, and renders
comparison, scaling, and regression reports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}
		if configFile := viper.GetString("config"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(fmt.Errorf("failed to bind flags: %w", err))
	}
	viper.SetEnvPrefix("LAKEBENCH")
	viper.AutomaticEnv()

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Lakebench SQL Benchmarking Toolkit\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func loadConfig() (*config.Config, error) {
	cfg := &config.Config{
		Engine:   viper.GetString("engine"),
		LogLevel: viper.GetString("log-level"),
		Workload: config.WorkloadConfig{
			Mode:        viper.GetString("mode"),
			Concurrency: viper.GetInt("concurrency"),
			Interval:    viper.GetDuration("interval"),
			Dataset:     viper.GetString("dataset"),
			QueryColumn: viper.GetString("query-column"),
			Shuffle:     viper.GetBool("shuffle"),
			Seed:        viper.GetInt64("seed"),
		},
		Athena: config.AthenaConfig{
			Region:        viper.GetString("athena-region"),
			Database:      viper.GetString("athena-database"),
			Bucket:        viper.GetString("athena-bucket"),
			WorkGroup:     viper.GetString("athena-workgroup"),
			AssumeRoleARN: viper.GetString("athena-role"),
			PollInterval:  viper.GetDuration("athena-poll-interval"),
		},
		Trino: config.TrinoConfig{
			Host:         viper.GetString("trino-host"),
			Port:         viper.GetInt("trino-port"),
			User:         viper.GetString("trino-user"),
			Catalog:      viper.GetString("trino-catalog"),
			Schema:       viper.GetString("trino-schema"),
			QueryTimeout: viper.GetDuration("query-timeout"),
		},
		DuckDB: config.DuckDBConfig{
			Path:         viper.GetString("duckdb-path"),
			QueryTimeout: viper.GetDuration("query-timeout"),
		},
		Storage: config.StorageConfig{
			Bucket:        viper.GetString("bucket"),
			Region:        viper.GetString("region"),
			Endpoint:      viper.GetString("endpoint"),
			PathStyle:     viper.GetBool("path-style"),
			LocalDir:      viper.GetString("local-dir"),
			ResultsPrefix: viper.GetString("results-prefix"),
			ResultsURI:    viper.GetString("results-uri"),
			CatalogBase:   viper.GetString("catalog-base"),
		},
		Catalog: config.CatalogConfig{
			Region:         viper.GetString("region"),
			Database:       viper.GetString("catalog-database"),
			Table:          viper.GetString("catalog-table"),
			OutputLocation: viper.GetString("output-location"),
			PollInterval:   viper.GetDuration("poll-interval"),
			MaxPolls:       viper.GetInt("max-polls"),
		},
		History: config.HistoryConfig{
			Host:        viper.GetString("host"),
			Token:       viper.GetString("token"),
			WarehouseID: viper.GetString("warehouse-id"),
			MaxResults:  viper.GetInt("max-results"),
			Lookback:    viper.GetDuration("lookback"),
		},
		Metrics: config.MetricsConfig{
			Enabled: viper.GetBool("metrics"),
			Address: viper.GetString("metrics-address"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			short := file
			for i := len(file) - 1; i > 0; i-- {
				if file[i] == '/' {
					short = file[i+1:]
					break
				}
			}
			return fmt.Sprintf("%s:%d", short, line)
		}
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "lakebench")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}

// openStore builds the results object store: S3 when a bucket is
// configured, a local directory otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.Storage.Bucket != "" {
		return storage.NewS3Store(ctx, cfg.Storage.Bucket, storage.S3Config{
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.PathStyle,
		})
	}
	dir := cfg.Storage.LocalDir
	if dir == "" {
		dir = "."
	}
	return storage.NewLocalStore(dir)
}

// openOutput creates the file, or returns stdout for "-".
func openOutput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
