package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakebench/lakebench/pkg/queryset"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Clean a SQL workload CSV for HTTP/JSON execution",
	Long: `Rewrite each query in a workload CSV for the HTTP/JSON execution
path: collapse whitespace, repair CTE AS clauses, turn backticks into
double quotes, and quote reserved keywords and the global/default
schema names. Optimizer hints can be stripped with --remove-hints.

Example:
  lakebench convert --input queries.csv --output queries_clean.csv --remove-hints`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("input", "i", "", "workload CSV to convert (required)")
	convertCmd.Flags().StringP("output", "o", "", "converted CSV (defaults to stdout)")
	convertCmd.Flags().Bool("remove-hints", false, "strip /*+ ... */ optimizer hints")
	convertCmd.Flags().Bool("escape-quotes", false, "escape double quotes for JSON embedding")
}

func runConvert(cmd *cobra.Command, args []string) error {
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

	out, closeOut, err := openOutput(viper.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	n, err := queryset.ConvertCSV(in, out, queryset.ConvertOptions{
		RemoveHints:  viper.GetBool("remove-hints"),
		EscapeQuotes: viper.GetBool("escape-quotes"),
	})
	if err != nil {
		return err
	}
	logger.Info().Int("queries", n).Str("file", inputPath).Msg("Workload converted")
	return nil
}
