package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/models"
	"github.com/lakebench/lakebench/pkg/stats"
)

// RunMeta identifies the run a single-run report describes.
type RunMeta struct {
	Engine      string
	ClusterSize string
	Benchmark   string
	RunType     string
	RunID       string
	Concurrency int
	Cores       int
}

// Consistency ratings by p99 spread over the median.
func consistencyRating(p99Spread float64) string {
	switch {
	case p99Spread < 50:
		return "**Excellent** - Very consistent performance"
	case p99Spread < 100:
		return "**Good** - Reasonably consistent performance"
	case p99Spread < 200:
		return "**Moderate** - Some variability in performance"
	default:
		return "**Poor** - High performance variability"
	}
}

// latencyThresholds returns the good/acceptable average-latency bounds
// for a concurrency level.
func latencyThresholds(concurrency int) (good, acceptable float64) {
	switch {
	case concurrency <= 4:
		return 5.0, 10.0
	case concurrency <= 8:
		return 8.0, 15.0
	default:
		return 12.0, 20.0
	}
}

func performanceAssessment(avgLatency float64, concurrency int) string {
	good, acceptable := latencyThresholds(concurrency)
	switch {
	case avgLatency <= good:
		return fmt.Sprintf("**Excellent** - Average latency of %.2fs is well within acceptable range for C=%d", avgLatency, concurrency)
	case avgLatency <= acceptable:
		return fmt.Sprintf("**Good** - Average latency of %.2fs is acceptable for C=%d", avgLatency, concurrency)
	default:
		return fmt.Sprintf("**Needs Attention** - Average latency of %.2fs may be high for C=%d", avgLatency, concurrency)
	}
}

// WriteSingleRunMarkdown renders the single-run analysis report:
// overall table, per-query table, fastest/slowest lists, percentile
// spread, and consistency and performance assessments.
func WriteSingleRunMarkdown(w io.Writer, statistics models.Statistics, meta RunMeta) error {
	var b mdBuilder

	runTimestamp := meta.RunID
	if ts, err := time.Parse(models.RunIDFormat, meta.RunID); err == nil {
		runTimestamp = ts.Format("January 2, 2006 at 15:04:05")
	}

	b.linef("# Single Run Analysis: %s", meta.Engine)
	b.line("")
	b.linef("**Run Date**: %s", runTimestamp)
	b.linef("**Run ID**: `%s`", meta.RunID)
	b.linef("**Engine**: %s", meta.Engine)
	b.linef("**Cluster Size**: %s (%d cores)", meta.ClusterSize, meta.Cores)
	b.linef("**Benchmark**: %s", meta.Benchmark)
	b.linef("**Concurrency Level**: C=%d", meta.Concurrency)
	b.line("")
	b.line("---")
	b.line("")

	total, hasTotal := statistics.Total()
	if hasTotal {
		m := stats.ExtractMetrics(total)
		b.line("## Overall Performance")
		b.line("")
		b.line("| Metric | Value |")
		b.line("|--------|-------|")
		b.linef("| **Average Latency** | %.2f sec |", m.Mean)
		b.linef("| **Median (p50)** | %.2f sec |", m.Median)
		b.linef("| **p90** | %.2f sec |", m.P90)
		b.linef("| **p95** | %.2f sec |", m.P95)
		b.linef("| **p99** | %.2f sec |", m.P99)
		b.linef("| **Min** | %.2f sec |", m.Min)
		b.linef("| **Max** | %.2f sec |", m.Max)
		b.linef("| **Error Rate** | %.2f%% |", m.ErrorPct)
		b.linef("| **Total Queries** | %d |", m.SampleCount)
		b.line("")
		b.line("---")
		b.line("")
	}

	labels := statistics.QueryLabels()
	if len(labels) > 0 {
		b.line("## Query-by-Query Performance")
		b.line("")
		b.line("| Query | Avg (s) | Median (s) | p90 (s) | p95 (s) | p99 (s) | Min (s) | Max (s) | Samples |")
		b.line("|-------|---------|------------|---------|---------|---------|---------|---------|---------|")
		for _, label := range labels {
			m := stats.ExtractMetrics(statistics[label])
			b.linef("| %s | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %d |",
				label, m.Mean, m.Median, m.P90, m.P95, m.P99, m.Min, m.Max, m.SampleCount)
		}
		b.line("")
		b.line("---")
		b.line("")

		type queryAvg struct {
			label string
			avg   float64
		}
		byAvg := make([]queryAvg, 0, len(labels))
		for _, label := range labels {
			byAvg = append(byAvg, queryAvg{label, stats.ExtractMetrics(statistics[label]).Mean})
		}
		sort.Slice(byAvg, func(i, j int) bool { return byAvg[i].avg < byAvg[j].avg })

		b.line("## Performance Distribution")
		b.line("")
		b.line("**Fastest Queries** (by average latency):")
		b.line("")
		for i := 0; i < len(byAvg) && i < 5; i++ {
			b.linef("%d. **%s**: %.2f sec", i+1, byAvg[i].label, byAvg[i].avg)
		}
		b.line("")
		b.line("**Slowest Queries** (by average latency):")
		b.line("")
		for i := 0; i < len(byAvg) && i < 5; i++ {
			q := byAvg[len(byAvg)-1-i]
			b.linef("%d. **%s**: %.2f sec", i+1, q.label, q.avg)
		}
		b.line("")
		b.line("---")
		b.line("")
	}

	if hasTotal {
		m := stats.ExtractMetrics(total)
		p90Spread, p99Spread := 0.0, 0.0
		if m.Median > 0 {
			p90Spread = (m.P90 - m.Median) / m.Median * 100
			p99Spread = (m.P99 - m.Median) / m.Median * 100
		}

		b.line("## Latency Analysis")
		b.line("")
		b.line("**Latency Distribution**:")
		b.line("")
		b.linef("- **90%% of queries** completed in <= %.2f sec (+%.1f%% from median)", m.P90, p90Spread)
		b.linef("- **99%% of queries** completed in <= %.2f sec (+%.1f%% from median)", m.P99, p99Spread)
		b.line("")
		b.linef("**Performance Consistency**: %s", consistencyRating(p99Spread))
		b.line("")
		b.linef("**Performance Assessment**: %s", performanceAssessment(m.Mean, meta.Concurrency))
		b.line("")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Wrap(err, errors.CodeReportFailed, "write markdown report")
	}
	return nil
}
