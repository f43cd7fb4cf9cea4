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

// ScalingLevel holds the statistics for one concurrency level of a
// scaling sweep.
type ScalingLevel struct {
	Concurrency int
	RunID       string
	Stats       models.Statistics
}

// SortLevels orders levels by concurrency ascending, so the lowest
// level becomes the efficiency baseline.
func SortLevels(levels []ScalingLevel) {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Concurrency < levels[j].Concurrency })
}

// commonLabels returns query labels present at every concurrency level,
// keyed by normalized name.
func commonLabels(levels []ScalingLevel) []string {
	if len(levels) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, level := range levels {
		for _, label := range level.Stats.QueryLabels() {
			counts[stats.NormalizeQueryName(label)]++
		}
	}
	var names []string
	for name, n := range counts {
		if n == len(levels) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// labelFor finds the raw label at a level whose normalized form matches name.
func labelFor(level ScalingLevel, name string) (string, bool) {
	for _, label := range level.Stats.QueryLabels() {
		if stats.NormalizeQueryName(label) == name {
			return label, true
		}
	}
	return "", false
}

// WriteScalingCSV writes a per-query matrix of latency metrics across
// concurrency levels, followed by a summary block averaged over all queries.
func WriteScalingCSV(w io.Writer, levels []ScalingLevel) error {
	SortLevels(levels)
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"Query"}
	for _, level := range levels {
		c := level.Concurrency
		header = append(header,
			fmt.Sprintf("C%d_Avg(s)", c),
			fmt.Sprintf("C%d_Median(s)", c),
			fmt.Sprintf("C%d_p90(s)", c),
			fmt.Sprintf("C%d_p99(s)", c),
			fmt.Sprintf("C%d_Samples", c),
		)
	}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, errors.CodeReportFailed, "write scaling header")
	}

	for _, name := range commonLabels(levels) {
		row := []string{name}
		for _, level := range levels {
			label, _ := labelFor(level, name)
			m := stats.ExtractMetrics(level.Stats[label])
			row = append(row,
				fmt.Sprintf("%.2f", m.Mean),
				fmt.Sprintf("%.2f", m.Median),
				fmt.Sprintf("%.2f", m.P90),
				fmt.Sprintf("%.2f", m.P99),
				fmt.Sprintf("%d", level.Stats[label].SampleCount),
			)
		}
		if err := writer.Write(row); err != nil {
			return errors.Wrap(err, errors.CodeReportFailed, "write scaling row")
		}
	}

	if err := writer.Write([]string{}); err != nil {
		return err
	}
	if err := writer.Write([]string{"SUMMARY ACROSS ALL QUERIES"}); err != nil {
		return err
	}
	row := []string{"Average"}
	for _, level := range levels {
		avg := levelAverage(level)
		row = append(row, fmt.Sprintf("%.2f", avg.Mean), fmt.Sprintf("%.2f", avg.Median),
			fmt.Sprintf("%.2f", avg.P90), fmt.Sprintf("%.2f", avg.P99), "")
	}
	if err := writer.Write(row); err != nil {
		return err
	}
	return writer.Error()
}

// levelAverage averages each metric across all query labels at a level.
func levelAverage(level ScalingLevel) stats.Metrics {
	labels := level.Stats.QueryLabels()
	var out stats.Metrics
	if len(labels) == 0 {
		return out
	}
	for _, label := range labels {
		m := stats.ExtractMetrics(level.Stats[label])
		out.Mean += m.Mean
		out.Median += m.Median
		out.P90 += m.P90
		out.P95 += m.P95
		out.P99 += m.P99
	}
	n := float64(len(labels))
	out.Mean /= n
	out.Median /= n
	out.P90 /= n
	out.P95 /= n
	out.P99 /= n
	return out
}

// WriteScalingMarkdown renders the concurrency scaling summary. The
// lowest concurrency level is the baseline at 100% efficiency.
func WriteScalingMarkdown(w io.Writer, meta RunMeta, levels []ScalingLevel) error {
	SortLevels(levels)
	var b mdBuilder

	b.linef("# Concurrency Scaling Analysis: %s", meta.Engine)
	b.line("")
	if meta.ClusterSize != "" {
		b.linef("- **Cluster Size:** %s", meta.ClusterSize)
	}
	if meta.Benchmark != "" {
		b.linef("- **Benchmark:** %s", meta.Benchmark)
	}
	b.linef("- **Concurrency Levels:** %d", len(levels))
	b.line("")

	if len(levels) == 0 {
		b.line("No runs found for scaling analysis.")
		_, err := io.WriteString(w, b.String())
		return err
	}

	base := levels[0]
	baseAvg := levelAverage(base)

	b.line("## Scaling Summary")
	b.line("")
	b.line("| Concurrency | Run ID | Avg Latency (s) | p99 Latency (s) | Degradation vs Baseline | Efficiency |")
	b.line("|-------------|--------|-----------------|-----------------|-------------------------|------------|")
	for _, level := range levels {
		avg := levelAverage(level)
		if level.Concurrency == base.Concurrency {
			b.linef("| %d | %s | %.2f | %.2f | baseline | 100%% |",
				level.Concurrency, level.RunID, avg.Mean, avg.P99)
			continue
		}
		degradation := 0.0
		if baseAvg.Mean > 0 {
			degradation = (avg.Mean - baseAvg.Mean) / baseAvg.Mean * 100
		}
		eff := stats.ScalingEfficiency(level.Concurrency, base.Concurrency, avg.Mean, baseAvg.Mean)
		b.linef("| %d | %s | %.2f | %.2f | %+.1f%% | %.0f%% |",
			level.Concurrency, level.RunID, avg.Mean, avg.P99, degradation, eff*100)
	}
	b.line("")

	b.line("## Interpretation")
	b.line("")
	b.line("Efficiency is the throughput gained per unit of added latency:")
	b.line("100% means latency grew no faster than concurrency, below 100%")
	b.line("means queries slow down more than the added parallelism is worth.")
	b.line("")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Wrap(err, errors.CodeReportFailed, "write scaling markdown")
	}
	return nil
}
