package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/models"
	"github.com/lakebench/lakebench/pkg/stats"
)

// comparedMetrics is the metric order shared by the comparison CSV and
// Markdown summary.
var comparedMetrics = []string{"Avg", "Median", "p90", "p95", "p99", "Min", "Max"}

func metricValue(m stats.Metrics, name string) float64 {
	switch name {
	case "Avg":
		return m.Mean
	case "Median":
		return m.Median
	case "p90":
		return m.P90
	case "p95":
		return m.P95
	case "p99":
		return m.P99
	case "Min":
		return m.Min
	case "Max":
		return m.Max
	}
	return 0
}

// WriteComparisonCSV writes the query-by-query comparison of two runs.
// Positive diff percentages mean the first side is faster.
func WriteComparisonCSV(w io.Writer, name1, name2 string, stats1, stats2 models.Statistics, pairs []stats.QueryPair) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"Query"}
	for _, side := range []string{name1, name2} {
		for _, metric := range comparedMetrics {
			header = append(header, fmt.Sprintf("%s_%s(s)", side, metric))
		}
	}
	for _, metric := range comparedMetrics {
		header = append(header, fmt.Sprintf("Diff_%s(%%)", metric))
	}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, errors.CodeReportFailed, "write comparison header")
	}

	for _, pair := range pairs {
		m1 := stats.ExtractMetrics(stats1[pair.Label1])
		m2 := stats.ExtractMetrics(stats2[pair.Label2])

		row := []string{pair.Name}
		for _, m := range []stats.Metrics{m1, m2} {
			for _, metric := range comparedMetrics {
				row = append(row, fmt.Sprintf("%.2f", metricValue(m, metric)))
			}
		}
		for _, metric := range comparedMetrics {
			diff := stats.PercentDiff(metricValue(m1, metric), metricValue(m2, metric))
			row = append(row, fmt.Sprintf("%.1f", diff))
		}
		if err := writer.Write(row); err != nil {
			return errors.Wrap(err, errors.CodeReportFailed, "write comparison row")
		}
	}

	// Summary block: per-metric averages across all matched queries.
	if err := writer.Write([]string{}); err != nil {
		return err
	}
	if err := writer.Write([]string{"SUMMARY STATISTICS"}); err != nil {
		return err
	}
	for _, metric := range []string{"Avg", "Median", "p90", "p95", "p99"} {
		var sum1, sum2 float64
		for _, pair := range pairs {
			sum1 += metricValue(stats.ExtractMetrics(stats1[pair.Label1]), metric)
			sum2 += metricValue(stats.ExtractMetrics(stats2[pair.Label2]), metric)
		}
		if len(pairs) == 0 {
			continue
		}
		avg1 := sum1 / float64(len(pairs))
		avg2 := sum2 / float64(len(pairs))
		row := []string{
			metric,
			fmt.Sprintf("%.2f", avg1), "", "", "", "", "", "",
			fmt.Sprintf("%.2f", avg2), "", "", "", "", "", "",
			fmt.Sprintf("%.1f", stats.PercentDiff(avg1, avg2)),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return writer.Error()
}

// WriteComparisonMarkdown renders the executive summary of a two-run
// comparison: overall verdict plus biggest wins and regressions.
func WriteComparisonMarkdown(w io.Writer, name1, name2 string, stats1, stats2 models.Statistics, pairs []stats.QueryPair) error {
	var b mdBuilder

	b.linef("# Run Comparison: %s vs %s", name1, name2)
	b.line("")
	b.linef("Matched queries: %d", len(pairs))
	b.line("")

	if len(pairs) == 0 {
		b.line("No overlapping queries between the two runs.")
		_, err := io.WriteString(w, b.String())
		return err
	}

	var sum1, sum2 float64
	type diffEntry struct {
		name string
		diff float64
	}
	diffs := make([]diffEntry, 0, len(pairs))
	for _, pair := range pairs {
		m1 := stats.ExtractMetrics(stats1[pair.Label1])
		m2 := stats.ExtractMetrics(stats2[pair.Label2])
		sum1 += m1.Mean
		sum2 += m2.Mean
		diffs = append(diffs, diffEntry{pair.Name, stats.PercentDiff(m1.Mean, m2.Mean)})
	}
	avg1 := sum1 / float64(len(pairs))
	avg2 := sum2 / float64(len(pairs))
	overall := stats.PercentDiff(avg1, avg2)

	b.line("## Overall")
	b.line("")
	b.linef("| Side | Avg latency (s) |")
	b.linef("|------|-----------------|")
	b.linef("| %s | %.2f |", name1, avg1)
	b.linef("| %s | %.2f |", name2, avg2)
	b.line("")
	switch {
	case overall > 0:
		b.linef("**%s is %.1f%% faster on average.**", name1, overall)
	case overall < 0:
		b.linef("**%s is %.1f%% faster on average.**", name2, -overall)
	default:
		b.line("**The two runs perform equally on average.**")
	}
	b.line("")

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].diff > diffs[j].diff })

	b.linef("## Biggest Wins for %s", name1)
	b.line("")
	for i := 0; i < len(diffs) && i < 5; i++ {
		if diffs[i].diff <= 0 {
			break
		}
		b.linef("%d. **%s**: %.1f%% faster", i+1, diffs[i].name, diffs[i].diff)
	}
	b.line("")
	b.linef("## Biggest Regressions for %s", name1)
	b.line("")
	for i := 0; i < len(diffs) && i < 5; i++ {
		d := diffs[len(diffs)-1-i]
		if d.diff >= 0 {
			break
		}
		b.linef("%d. **%s**: %.1f%% slower", i+1, d.name, -d.diff)
	}
	b.line("")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Wrap(err, errors.CodeReportFailed, "write comparison markdown")
	}
	return nil
}
