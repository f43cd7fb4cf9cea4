package history

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lakebench/lakebench/pkg/errors"
)

// historyCSVColumns is the fixed export column order.
var historyCSVColumns = []string{
	"query_id",
	"query_text",
	"status",
	"duration_ms",
	"start_time",
	"end_time",
	"user",
	"warehouse_id",
	"rows_produced",
	"error_message",
}

// CSVFileName builds the timestamped export file name.
func CSVFileName(t time.Time) string {
	return "dbr_query_history_" + t.Format("20060102_150405") + ".csv"
}

// WriteCSV exports query history entries. Query text is flattened to a
// single line.
func WriteCSV(w io.Writer, entries []QueryEntry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(historyCSVColumns); err != nil {
		return errors.Wrap(err, errors.CodeReportFailed, "write history header")
	}
	for _, entry := range entries {
		text := strings.NewReplacer("\n", " ", "\r", " ").Replace(entry.QueryText)
		row := []string{
			entry.QueryID,
			text,
			entry.Status,
			strconv.FormatInt(entry.DurationMS, 10),
			formatMillis(entry.StartTimeMS),
			formatMillis(entry.EndTimeMS),
			entry.UserName,
			entry.WarehouseID,
			strconv.FormatInt(entry.RowsProduced, 10),
			entry.ErrorMessage,
		}
		if err := writer.Write(row); err != nil {
			return errors.Wrap(err, errors.CodeReportFailed, "write history row")
		}
	}
	return writer.Error()
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
