package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/pkg/models"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	assert.Equal(t, 10, s.Count)
	assert.InDelta(t, 5.5, s.Mean, 0.001)
	assert.InDelta(t, 5.5, s.Median, 0.001)
	assert.InDelta(t, 1.0, s.Min, 0.001)
	assert.InDelta(t, 10.0, s.Max, 0.001)
	assert.Greater(t, s.P99, s.P90)
	assert.Greater(t, s.StdDev, 0.0)
	assert.Greater(t, s.CV, 0.0)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, Summary{}, s)
}

func TestSummarizeSingleValue(t *testing.T) {
	s := Summarize([]float64{4.2})
	assert.Equal(t, 1, s.Count)
	assert.InDelta(t, 4.2, s.Mean, 0.001)
	assert.Zero(t, s.StdDev)
	assert.Zero(t, s.CV)
}

func TestExtractMetrics(t *testing.T) {
	m := ExtractMetrics(models.QueryStats{
		MeanResTime:   1500,
		MedianResTime: 1200,
		Pct1ResTime:   2000,
		Pct2ResTime:   2500,
		Pct3ResTime:   5000,
		MinResTime:    800,
		MaxResTime:    6000,
		ErrorPct:      2.5,
		SampleCount:   40,
	})
	assert.InDelta(t, 1.5, m.Mean, 0.001)
	assert.InDelta(t, 1.2, m.Median, 0.001)
	assert.InDelta(t, 2.0, m.P90, 0.001)
	assert.InDelta(t, 2.5, m.P95, 0.001)
	assert.InDelta(t, 5.0, m.P99, 0.001)
	assert.InDelta(t, 0.8, m.Min, 0.001)
	assert.InDelta(t, 6.0, m.Max, 0.001)
	assert.InDelta(t, 2.5, m.ErrorPct, 0.001)
	assert.Equal(t, 40, m.SampleCount)
}

func TestPercentDiff(t *testing.T) {
	tests := []struct {
		name     string
		v1, v2   float64
		expected float64
	}{
		{"first faster", 5, 10, 50},
		{"first slower", 10, 5, -100},
		{"equal", 4, 4, 0},
		{"zero divisor", 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, PercentDiff(tt.v1, tt.v2), 0.001)
		})
	}
}

func TestScalingEfficiency(t *testing.T) {
	// doubling concurrency with unchanged latency is perfect scaling
	assert.InDelta(t, 2.0, ScalingEfficiency(2, 1, 1.0, 1.0), 0.001)
	// doubling concurrency with doubled latency is no gain
	assert.InDelta(t, 1.0, ScalingEfficiency(2, 1, 2.0, 1.0), 0.001)
	// guards
	assert.Zero(t, ScalingEfficiency(2, 0, 1.0, 1.0))
	assert.Zero(t, ScalingEfficiency(2, 1, 0, 1.0))
	assert.Zero(t, ScalingEfficiency(2, 1, 1.0, 0))
}

func TestNormalizeQueryName(t *testing.T) {
	assert.Equal(t, "TPCDS-7", NormalizeQueryName("query-3-TPCDS-7"))
	assert.Equal(t, "TPCDS-7", NormalizeQueryName("TPCDS-7"))
	assert.Equal(t, "BOOTSTRAP", NormalizeQueryName("BOOTSTRAP"))
	assert.Equal(t, "q1", NormalizeQueryName("query-12-q1"))
}

func TestMatchQueries(t *testing.T) {
	pairs := MatchQueries(
		[]string{"query-1-TPCDS-3", "query-2-TPCDS-7", "query-9-ONLY-LEFT"},
		[]string{"TPCDS-7", "TPCDS-3", "ONLY-RIGHT"},
	)
	require.Len(t, pairs, 2)
	assert.Equal(t, "TPCDS-3", pairs[0].Name)
	assert.Equal(t, "query-1-TPCDS-3", pairs[0].Label1)
	assert.Equal(t, "TPCDS-3", pairs[0].Label2)
	assert.Equal(t, "TPCDS-7", pairs[1].Name)
}

func TestFromRecords(t *testing.T) {
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	records := []models.QueryRecord{
		{Alias: "q01", ClientTime: 1 * time.Second, Status: models.StatusSuccess, StartedAt: base, FinishedAt: base.Add(time.Second)},
		{Alias: "q01", ClientTime: 3 * time.Second, Status: models.StatusFailure, StartedAt: base.Add(time.Second), FinishedAt: base.Add(4 * time.Second)},
		{Alias: "q02", ClientTime: 2 * time.Second, Status: models.StatusSuccess, StartedAt: base.Add(4 * time.Second), FinishedAt: base.Add(6 * time.Second)},
	}

	doc := FromRecords(records)
	require.Len(t, doc, 3)

	q01 := doc["q01"]
	assert.Equal(t, 2, q01.SampleCount)
	assert.Equal(t, 1, q01.ErrorCount)
	assert.InDelta(t, 50.0, q01.ErrorPct, 0.001)
	assert.InDelta(t, 2000.0, q01.MeanResTime, 0.001)
	assert.InDelta(t, 1000.0, q01.MinResTime, 0.001)
	assert.InDelta(t, 3000.0, q01.MaxResTime, 0.001)

	total, ok := doc.Total()
	require.True(t, ok)
	assert.Equal(t, 3, total.SampleCount)
	assert.Equal(t, 1, total.ErrorCount)
	assert.InDelta(t, 0.5, total.Throughput, 0.001)
}

func TestFromRecordsEmpty(t *testing.T) {
	assert.Empty(t, FromRecords(nil))
}
