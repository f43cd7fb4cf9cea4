package stats

import (
	"time"

	"github.com/lakebench/lakebench/pkg/models"
)

// FromRecords builds a statistics document from executed query records,
// grouped by alias, with the synthetic Total row across all records.
// Latencies are recorded in milliseconds to match documents produced by
// load-test tooling.
func FromRecords(records []models.QueryRecord) models.Statistics {
	doc := make(models.Statistics)
	if len(records) == 0 {
		return doc
	}

	groups := make(map[string][]models.QueryRecord)
	for _, rec := range records {
		label := rec.Alias
		if label == "" {
			label = "query"
		}
		groups[label] = append(groups[label], rec)
	}

	for label, group := range groups {
		doc[label] = rowFor(label, group)
	}
	doc[models.TotalLabel] = rowFor(models.TotalLabel, records)
	return doc
}

func rowFor(label string, records []models.QueryRecord) models.QueryStats {
	latencies := make([]float64, 0, len(records))
	errorCount := 0
	var first, last time.Time
	for i, rec := range records {
		latencies = append(latencies, float64(rec.ClientTime)/float64(time.Millisecond))
		if rec.Failed() {
			errorCount++
		}
		if i == 0 || rec.StartedAt.Before(first) {
			first = rec.StartedAt
		}
		if rec.FinishedAt.After(last) {
			last = rec.FinishedAt
		}
	}

	s := Summarize(latencies)
	row := models.QueryStats{
		TransactionName: label,
		SampleCount:     s.Count,
		ErrorCount:      errorCount,
		MeanResTime:     s.Mean,
		MedianResTime:   s.Median,
		MinResTime:      s.Min,
		MaxResTime:      s.Max,
		Pct1ResTime:     s.P90,
		Pct2ResTime:     s.P95,
		Pct3ResTime:     s.P99,
	}
	if s.Count > 0 {
		row.ErrorPct = float64(errorCount) / float64(s.Count) * 100
	}
	if span := last.Sub(first).Seconds(); span > 0 {
		row.Throughput = float64(s.Count) / span
	}
	return row
}
