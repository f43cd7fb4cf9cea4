package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Export warehouse query history for a time window",
	Long: `Fetch query history from the warehouse REST endpoint and export it
as CSV. The window comes from --start/--end, from a test-result file's
recorded start and end times, or from the last --lookback hours.

Example:
  lakebench history --host dbc-abc.cloud.example.com --token $TOKEN \
    --jdbc "jdbc:databricks://dbc-abc.cloud.example.com:443;httpPath=/sql/1.0/warehouses/abc123"
  lakebench history --host ... --token ... --warehouse-id abc123 \
    --start "2025-03-14 09:00:00" --end "2025-03-14 10:00:00"`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("host", "", "workspace hostname")
	historyCmd.Flags().String("token", "", "API token")
	historyCmd.Flags().String("warehouse-id", "", "warehouse to filter by")
	historyCmd.Flags().String("jdbc", "", "JDBC connection string to derive host and warehouse from")
	historyCmd.Flags().String("start", "", `window start ("2006-01-02 15:04:05")`)
	historyCmd.Flags().String("end", "", `window end ("2006-01-02 15:04:05")`)
	historyCmd.Flags().String("test-result", "", "test-result file providing the window")
	historyCmd.Flags().Duration("lookback", history.DefaultLookback, "window length when no bounds are given")
	historyCmd.Flags().Int("max-results", 0, "page size for history requests")
	historyCmd.Flags().StringP("output", "o", "", "CSV file (defaults to a timestamped name)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)

	host := cfg.History.Host
	warehouseID := cfg.History.WarehouseID
	if jdbc := viper.GetString("jdbc"); jdbc != "" {
		if host == "" {
			host = history.ExtractHost(jdbc)
		}
		if warehouseID == "" {
			warehouseID = history.ExtractWarehouseID(jdbc)
		}
	}

	client, err := history.NewClient(history.Config{
		Host:        host,
		Token:       cfg.History.Token,
		WarehouseID: warehouseID,
		MaxResults:  cfg.History.MaxResults,
	}, logger)
	if err != nil {
		return err
	}

	opts := history.WindowOptions{
		Start:    viper.GetString("start"),
		End:      viper.GetString("end"),
		Lookback: cfg.History.Lookback,
	}
	if trPath := viper.GetString("test-result"); trPath != "" {
		doc, err := os.ReadFile(trPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", trPath, err)
		}
		opts.TestResult = doc
	}
	start, end, err := history.ResolveWindow(opts, time.Now())
	if err != nil {
		return err
	}
	logger.Info().Time("start", start).Time("end", end).Str("warehouse_id", warehouseID).
		Msg("Fetching query history")

	ctx, cancel := signalContext()
	defer cancel()

	entries, err := client.Fetch(ctx, start, end)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		logger.Warn().Msg("No queries in the window")
	}

	outputPath := viper.GetString("output")
	if outputPath == "" {
		outputPath = history.CSVFileName(time.Now())
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outputPath, err)
	}
	defer out.Close()
	if err := history.WriteCSV(out, entries); err != nil {
		return err
	}
	logger.Info().Str("file", outputPath).Int("queries", len(entries)).Msg("History exported")
	return nil
}
