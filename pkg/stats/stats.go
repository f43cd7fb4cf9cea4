// Package stats computes latency aggregates and run comparisons.
package stats

import (
	mstats "github.com/montanaflynn/stats"

	"github.com/lakebench/lakebench/pkg/models"
)

// Summary holds the standard latency aggregates over a sample, in the
// unit of the input values.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	P90    float64
	P95    float64
	P99    float64
	Min    float64
	Max    float64
	StdDev float64
	CV     float64
}

// Summarize computes a Summary over a sample. An empty sample yields a
// zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	data := mstats.Float64Data(values)
	mean, _ := mstats.Mean(data)
	median, _ := mstats.Median(data)
	p90, _ := mstats.Percentile(data, 90)
	p95, _ := mstats.Percentile(data, 95)
	p99, _ := mstats.Percentile(data, 99)
	minV, _ := mstats.Min(data)
	maxV, _ := mstats.Max(data)
	stdDev, _ := mstats.StandardDeviationSample(data)
	if len(values) == 1 {
		stdDev = 0
	}
	cv := 0.0
	if mean != 0 {
		cv = stdDev / mean * 100
	}
	return Summary{
		Count:  len(values),
		Mean:   mean,
		Median: median,
		P90:    p90,
		P95:    p95,
		P99:    p99,
		Min:    minV,
		Max:    maxV,
		StdDev: stdDev,
		CV:     cv,
	}
}

// Metrics is a statistics.json row converted to seconds.
type Metrics struct {
	Mean        float64
	Median      float64
	P90         float64
	P95         float64
	P99         float64
	Min         float64
	Max         float64
	ErrorPct    float64
	SampleCount int
}

// ExtractMetrics converts a statistics row from milliseconds to seconds.
func ExtractMetrics(qs models.QueryStats) Metrics {
	const msPerSec = 1000.0
	return Metrics{
		Mean:        qs.MeanResTime / msPerSec,
		Median:      qs.MedianResTime / msPerSec,
		P90:         qs.Pct1ResTime / msPerSec,
		P95:         qs.Pct2ResTime / msPerSec,
		P99:         qs.Pct3ResTime / msPerSec,
		Min:         qs.MinResTime / msPerSec,
		Max:         qs.MaxResTime / msPerSec,
		ErrorPct:    qs.ErrorPct,
		SampleCount: qs.SampleCount,
	}
}

// PercentDiff returns (v2-v1)/v2*100. Positive means the first value is
// smaller (faster, for latencies). A zero divisor yields 0.
func PercentDiff(v1, v2 float64) float64 {
	if v2 == 0 {
		return 0
	}
	return (v2 - v1) / v2 * 100
}

// ScalingEfficiency relates throughput gain to latency cost when moving
// from a base concurrency level to a higher one. 1.0 is linear scaling.
func ScalingEfficiency(concurrency, baseConcurrency int, latency, baseLatency float64) float64 {
	if baseConcurrency == 0 || baseLatency == 0 || latency == 0 {
		return 0
	}
	concRatio := float64(concurrency) / float64(baseConcurrency)
	latRatio := latency / baseLatency
	return concRatio / latRatio
}
