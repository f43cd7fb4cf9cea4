package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/stats"
)

// AggregateSample is one row of a load driver result CSV.
type AggregateSample struct {
	Timestamp       int64
	ElapsedMS       int64
	Label           string
	ResponseCode    string
	ResponseMessage string
	Success         bool
}

// ErrorGroup counts one classified error type across failed samples.
type ErrorGroup struct {
	Type        string
	Description string
	Count       int
}

// AggregateAnalysis is the outcome of analyzing a result CSV.
type AggregateAnalysis struct {
	TotalRequests int
	Succeeded     int
	Failed        int
	DurationSec   float64
	Throughput    float64
	Latency       stats.Summary
	ErrorGroups   []ErrorGroup
	// FirstErrorLabel and FirstErrorPosition locate where failures began,
	// position is 1-based over all samples.
	FirstErrorLabel        string
	FirstErrorPosition     int
	LastSuccessBeforeError string
}

var (
	httpCodePattern = regexp.MustCompile(`HTTP Response code: (\d+)`)
	sqlStatePattern = regexp.MustCompile(`\[(\d+)\]`)
)

// ClassifyError buckets a failure message into a stable error type plus
// a human description.
func ClassifyError(msg string) (string, string) {
	switch {
	case strings.Contains(msg, "HTTP Response code: 403"):
		return "HTTP_403", "Authentication/Authorization Failed"
	case strings.Contains(msg, "HTTP Response code: 500"):
		return "HTTP_500", "Internal Server Error"
	case strings.Contains(msg, "HTTP Response code:"):
		if m := httpCodePattern.FindStringSubmatch(msg); m != nil {
			return "HTTP_" + m[1], "HTTP Error"
		}
		return "UNKNOWN", "Unknown error"
	case strings.Contains(msg, "SCALAR_SUBQUERY_TOO_MANY_ROWS"):
		return "SCALAR_SUBQUERY_ERROR", "Scalar subquery returned multiple rows"
	case strings.Contains(msg, "Multiple failures in stage materialization"):
		return "STAGE_MATERIALIZATION_ERROR", "Spark stage materialization failed"
	case strings.Contains(strings.ToLower(msg), "timeout"):
		return "TIMEOUT", "Query timeout"
	case strings.Contains(msg, "java.sql.SQLException"):
		if m := sqlStatePattern.FindStringSubmatch(msg); m != nil {
			return "SQL_ERROR_" + m[1], "SQL Exception"
		}
		return "SQL_ERROR", "SQL Exception"
	}
	return "UNKNOWN", "Unknown error"
}

// ParseAggregateCSV reads a result CSV, skipping the header and any
// malformed rows.
func ParseAggregateCSV(r io.Reader) ([]AggregateSample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeReportFailed, "read aggregate report")
	}
	var samples []AggregateSample
	for i, row := range rows {
		if i == 0 || len(row) < 8 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		elapsed, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			continue
		}
		samples = append(samples, AggregateSample{
			Timestamp:       ts,
			ElapsedMS:       elapsed,
			Label:           row[2],
			ResponseCode:    row[3],
			ResponseMessage: row[4],
			Success:         strings.EqualFold(row[7], "true"),
		})
	}
	return samples, nil
}

// AnalyzeAggregate computes the full analysis over parsed samples.
// Latency statistics cover successful samples only.
func AnalyzeAggregate(samples []AggregateSample) AggregateAnalysis {
	out := AggregateAnalysis{TotalRequests: len(samples)}
	if len(samples) == 0 {
		return out
	}

	var elapsed []float64
	counts := make(map[string]int)
	descs := make(map[string]string)
	for i, s := range samples {
		if s.Success {
			out.Succeeded++
			elapsed = append(elapsed, float64(s.ElapsedMS))
			continue
		}
		out.Failed++
		typ, desc := ClassifyError(s.ResponseMessage)
		counts[typ]++
		descs[typ] = desc
		if out.FirstErrorPosition == 0 {
			out.FirstErrorLabel = s.Label
			out.FirstErrorPosition = i + 1
			for j := i - 1; j >= 0; j-- {
				if samples[j].Success {
					out.LastSuccessBeforeError = samples[j].Label
					break
				}
			}
		}
	}

	for typ, n := range counts {
		out.ErrorGroups = append(out.ErrorGroups, ErrorGroup{Type: typ, Description: descs[typ], Count: n})
	}
	sort.Slice(out.ErrorGroups, func(i, j int) bool {
		if out.ErrorGroups[i].Count != out.ErrorGroups[j].Count {
			return out.ErrorGroups[i].Count > out.ErrorGroups[j].Count
		}
		return out.ErrorGroups[i].Type < out.ErrorGroups[j].Type
	})

	out.DurationSec = float64(samples[len(samples)-1].Timestamp-samples[0].Timestamp) / 1000
	if out.DurationSec > 0 {
		out.Throughput = float64(out.TotalRequests) / out.DurationSec
	}
	out.Latency = stats.Summarize(elapsed)
	return out
}

// WriteAggregateMarkdown renders the aggregate report analysis.
func WriteAggregateMarkdown(w io.Writer, source string, a AggregateAnalysis) error {
	var b mdBuilder

	b.line("# Aggregate Report Analysis")
	b.line("")
	b.linef("- **Source:** %s", source)
	b.linef("- **Total Requests:** %d", a.TotalRequests)
	if a.TotalRequests > 0 {
		b.linef("- **Successful:** %d (%.1f%%)", a.Succeeded, float64(a.Succeeded)/float64(a.TotalRequests)*100)
		b.linef("- **Failed:** %d (%.1f%%)", a.Failed, float64(a.Failed)/float64(a.TotalRequests)*100)
	}
	b.linef("- **Duration:** %s", formatDuration(a.DurationSec))
	if a.Throughput > 0 {
		b.linef("- **Throughput:** %.2f requests/sec", a.Throughput)
	}
	b.line("")

	if a.Failed > 0 {
		b.line("## Error Analysis")
		b.line("")
		b.line("| Error Type | Description | Count | % of Failures |")
		b.line("|------------|-------------|-------|---------------|")
		for _, g := range a.ErrorGroups {
			b.linef("| %s | %s | %d | %.1f%% |", g.Type, g.Description, g.Count,
				float64(g.Count)/float64(a.Failed)*100)
		}
		b.line("")
		b.linef("First error at **%s** (position %d).", a.FirstErrorLabel, a.FirstErrorPosition)
		if a.LastSuccessBeforeError != "" {
			b.linef("Last success before errors: **%s**.", a.LastSuccessBeforeError)
		}
		b.line("")
	}

	if a.Latency.Count > 0 {
		b.line("## Performance Metrics (successful requests)")
		b.line("")
		b.line("| Metric | Value (ms) |")
		b.line("|--------|------------|")
		b.linef("| Min | %.0f |", a.Latency.Min)
		b.linef("| Max | %.0f |", a.Latency.Max)
		b.linef("| Mean | %.0f |", a.Latency.Mean)
		b.linef("| Median | %.0f |", a.Latency.Median)
		b.linef("| P90 | %.0f |", a.Latency.P90)
		b.linef("| P95 | %.0f |", a.Latency.P95)
		b.linef("| P99 | %.0f |", a.Latency.P99)
		b.linef("| Std Dev | %.0f |", a.Latency.StdDev)
		b.line("")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Wrap(err, errors.CodeReportFailed, "write aggregate markdown")
	}
	return nil
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}
