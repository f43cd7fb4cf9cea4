package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/pkg/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [report]",
	Short: "Run canned analytical reports against the runs catalog",
	Long: `Run a canned report, or raw SQL with --query, against the runs
catalog and render the result as a table or CSV.

Reports: all-runs, instances, clusters, engines, concurrency, scaling,
variance, outliers, best, slowest.

Example:
  lakebench catalog all-runs --output-location s3://bench-athena-staging/ --engine trino
  lakebench catalog variance --output-location s3://bench-athena-staging/ --format csv
  lakebench catalog --query "SELECT COUNT(*) FROM jmeter_analysis.jmeter_runs_index" \
    --output-location s3://bench-athena-staging/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)

	catalogCmd.Flags().String("query", "", "raw SQL instead of a canned report")
	catalogCmd.Flags().String("engine", "", "filter by engine")
	catalogCmd.Flags().String("cluster-size", "", "filter by cluster size")
	catalogCmd.Flags().String("run-type", "", "filter by run type")
	catalogCmd.Flags().String("instance-type", "", "filter by instance type")
	catalogCmd.Flags().StringP("format", "f", "table", "output format (table, csv)")
	catalogCmd.Flags().String("results-uri", "", "results base URI used by path-building reports")
	catalogCmd.Flags().String("region", "", "catalog AWS region")
	catalogCmd.Flags().String("catalog-database", "jmeter_analysis", "catalog database")
	catalogCmd.Flags().String("catalog-table", "jmeter_runs_index", "catalog table")
	catalogCmd.Flags().String("output-location", "", "staging URI for catalog queries (required)")
	catalogCmd.Flags().Duration("poll-interval", 0, "catalog query poll interval")
	catalogCmd.Flags().Int("max-polls", 0, "catalog query poll limit")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)

	ctx, cancel := signalContext()
	defer cancel()

	client, err := catalog.NewClient(ctx, catalog.Config{
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

	sql := viper.GetString("query")
	title := "Query Results"
	if sql == "" {
		reportName := "all-runs"
		if len(args) == 1 {
			reportName = args[0]
		}
		sql, title, err = reportSQL(client, reportName)
		if err != nil {
			return err
		}
	} else if len(args) == 1 {
		return fmt.Errorf("give either a report name or --query, not both")
	}

	rows, err := client.Query(ctx, sql)
	if err != nil {
		return err
	}

	if viper.GetString("format") == "csv" {
		return catalog.RenderCSV(os.Stdout, rows)
	}
	return catalog.RenderTable(os.Stdout, rows, title)
}

func reportSQL(client *catalog.Client, name string) (sql, title string, err error) {
	reports := catalog.NewReports(client.QualifiedTable(), viper.GetString("results-uri"))
	filters := catalog.RunFilters{
		Engine:       viper.GetString("engine"),
		ClusterSize:  viper.GetString("cluster-size"),
		RunType:      viper.GetString("run-type"),
		InstanceType: viper.GetString("instance-type"),
	}

	switch name {
	case "all-runs":
		return reports.AllRuns(filters), "All Benchmark Runs", nil
	case "instances":
		return reports.CompareInstances(), "Instance Type Comparison", nil
	case "clusters":
		return reports.CompareClusters(), "Cluster Size Comparison", nil
	case "engines":
		return reports.CompareEngines(filters), "Engine Comparison", nil
	case "concurrency":
		return reports.CompareConcurrency(filters.InstanceType), "Concurrency Comparison", nil
	case "scaling":
		return reports.ScalingAnalysis(), "Scaling Analysis", nil
	case "variance":
		return reports.VarianceAnalysis(), "Run Variance Analysis", nil
	case "outliers":
		return reports.OutlierDetection(), "Outlier Detection", nil
	case "best":
		return reports.BestRuns(), "Best Run Per Configuration", nil
	case "slowest":
		return reports.SlowestQueries(filters.Engine), "Slowest Queries", nil
	default:
		return "", "", fmt.Errorf("unknown report %q", name)
	}
}
