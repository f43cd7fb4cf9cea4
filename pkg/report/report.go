// Package report renders run results as CSV, Markdown, and JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/models"
)

// runCSVColumns is the fixed column order of the per-run CSV report.
var runCSVColumns = []string{
	"db_name",
	"query_alias_name",
	"query_text",
	"query_id",
	"query_status",
	"execution_time",
	"client_perceived_time",
	"row_count",
	"bytes_scanned_in_GB",
	"err_msg",
	"start_time",
	"end_time",
}

// ReadableName turns a snake_case column key into its report header
// form: underscores to spaces, first letter capitalized.
func ReadableName(key string) string {
	s := strings.ToLower(strings.ReplaceAll(key, "_", " "))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// RunCSVFileName builds the timestamped report file name for a run.
func RunCSVFileName(engine string, t time.Time) string {
	return fmt.Sprintf("%s_results_%s.csv", strings.ToLower(engine), t.Format("2006-01-02_15_04_05"))
}

// WriteRunCSV writes the per-query result records as a CSV report with
// readable column headers.
func WriteRunCSV(w io.Writer, records []models.QueryRecord) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := make([]string, len(runCSVColumns))
	for i, col := range runCSVColumns {
		header[i] = ReadableName(col)
	}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, errors.CodeReportFailed, "write csv header")
	}

	for _, rec := range records {
		row := []string{
			rec.Database,
			rec.Alias,
			rec.Query,
			rec.QueryID,
			rec.Status,
			formatSeconds(rec.EngineTime),
			formatSeconds(rec.ClientTime),
			strconv.FormatInt(rec.Rows, 10),
			strconv.FormatFloat(rec.ScannedGB, 'f', 3, 64),
			rec.Error,
			formatTime(rec.StartedAt),
			formatTime(rec.FinishedAt),
		}
		if err := writer.Write(row); err != nil {
			return errors.Wrap(err, errors.CodeReportFailed, "write csv row")
		}
	}
	return writer.Error()
}

// WriteSummaryJSON writes the run summary as indented JSON.
func WriteSummaryJSON(w io.Writer, summary models.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// WriteRecordsJSON writes the per-query records as indented JSON.
func WriteRecordsJSON(w io.Writer, records []models.QueryRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func formatSeconds(d time.Duration) string {
	if d == 0 {
		return "0"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05.000")
}
