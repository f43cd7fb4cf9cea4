// Package index builds and publishes the consolidated runs index that
// the catalog tables are loaded from.
package index

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/models"
	"github.com/lakebench/lakebench/pkg/storage"
)

// Labels matching these substrings are harness bookkeeping, not
// benchmark queries, and are excluded from query counts.
var excludedLabelMarkers = []string{"BOOTSTRAP", "JSR"}

func excludedLabel(label string) bool {
	for _, marker := range excludedLabelMarkers {
		if strings.Contains(label, marker) {
			return true
		}
	}
	return false
}

// Generator scans run directories and assembles runs-index documents.
type Generator struct {
	store  storage.ObjectStore
	root   string
	logger zerolog.Logger
	now    func() time.Time
}

// NewGenerator creates a Generator over the given store. root is the
// object prefix the partitioned run directories live under, empty for
// the store root.
func NewGenerator(store storage.ObjectStore, root string, logger zerolog.Logger) *Generator {
	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return &Generator{
		store:  store,
		root:   root,
		logger: logger.With().Str("component", "index").Logger(),
		now:    time.Now,
	}
}

// Generate builds the index for one run-type path. Runs missing either
// their test result or statistics document are skipped, not fatal.
// baseURI is the fully qualified location of the run-type directory,
// recorded verbatim in the index for consumers outside this tool.
func (g *Generator) Generate(ctx context.Context, rp models.RunPath, baseURI string) (*models.RunsIndex, error) {
	if rp.Engine == "" || rp.ClusterSize == "" || rp.Benchmark == "" || rp.RunType == "" {
		return nil, errors.New(errors.CodeIndexFailed, "run path must name engine, cluster_size, benchmark and run_type")
	}

	prefix := g.root + rp.Prefix()
	runIDs, err := storage.ListRunIDs(ctx, g.store, prefix)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIndexFailed, "list runs")
	}
	if len(runIDs) == 0 {
		return nil, errors.Newf(errors.CodeNotFound, "no runs under %s", prefix)
	}

	baseURI = strings.TrimSuffix(baseURI, "/")
	idx := &models.RunsIndex{
		Metadata: models.IndexMetadata{
			Engine:      rp.Engine,
			ClusterSize: rp.ClusterSize,
			Benchmark:   rp.Benchmark,
			RunType:     rp.RunType,
			S3BasePath:  baseURI,
		},
		Info: models.IndexInfo{
			TotalRuns:   len(runIDs),
			LastUpdated: g.now().UTC().Format("2006-01-02T15:04:05Z"),
			OldestRun:   runIDs[len(runIDs)-1],
			NewestRun:   runIDs[0],
		},
	}

	for _, runID := range runIDs {
		testResult, err := storage.LoadTestResult(ctx, g.store, prefix, runID)
		if err != nil {
			g.logger.Warn().Str("run_id", runID).Err(err).Msg("skipping run without test result")
			continue
		}
		stats, err := storage.LoadRunStatistics(ctx, g.store, prefix, runID)
		if err != nil {
			g.logger.Warn().Str("run_id", runID).Err(err).Msg("skipping run without statistics")
			continue
		}
		idx.Runs = append(idx.Runs, buildRunEntry(testResult, stats, baseURI, runID, rp))
	}

	g.logger.Info().
		Str("run_type", rp.RunType).
		Int("runs_found", len(runIDs)).
		Int("runs_indexed", len(idx.Runs)).
		Msg("runs index generated")
	return idx, nil
}

// buildRunEntry merges one run's test result and statistics into an
// index entry.
func buildRunEntry(tr *models.TestResult, stats models.Statistics, baseURI, runID string, rp models.RunPath) models.RunEntry {
	clusterConfig := tr.DecodeClusterConfig()
	total, _ := stats.Total()

	var considered, excluded int
	var slowest []models.SlowQuery
	for _, label := range stats.QueryLabels() {
		if excludedLabel(label) {
			excluded++
			continue
		}
		considered++
		slowest = append(slowest, models.SlowQuery{
			Query:  label,
			AvgSec: round2(stats[label].MeanResTime / 1000.0),
		})
	}
	sort.Slice(slowest, func(i, j int) bool { return slowest[i].AvgSec > slowest[j].AvgSec })
	if len(slowest) > 3 {
		slowest = slowest[:3]
	}

	overall := tr.OverallStatistics
	return models.RunEntry{
		RunID:   runID,
		RunDate: runDate(runID),
		S3Path:  baseURI + "/run_id=" + runID + "/",
		ClusterInfo: models.ClusterInfo{
			ClusterSize:      defaultStr(clusterConfig.ClusterSize, "unknown"),
			EstimatedCores:   clusterConfig.EstimatedCores,
			InstanceType:     defaultStr(clusterConfig.InstanceType, "unknown"),
			Executors:        clusterConfig.Executors,
			CoresPerExecutor: clusterConfig.CoresPerExecutor,
			Serverless:       clusterConfig.IsServerless(),
			ClusterHostname:  defaultStr(tr.TestConfiguration.ConnectionHostname, "unknown"),
		},
		TestConfig: models.RunTestConfig{
			TestPlanFile:      defaultStr(tr.TestConfiguration.TestPlanFile, "unknown"),
			ConcurrentThreads: models.ConcurrencyFromRunType(rp.RunType),
			Benchmark:         rp.Benchmark,
			TotalQueryCount:   len(stats.QueryLabels()),
			HoldPeriodMin:     tr.TestConfiguration.HoldPeriod,
			RampUpTimeSec:     tr.TestConfiguration.RampUpTime,
			QueryTimeoutSec:   tr.TestConfiguration.QueryTimeout,
			RandomOrder:       tr.TestConfiguration.RandomOrder,
		},
		ResultsSummary: models.IndexResultsSummary{
			TotalSamples:            total.SampleCount,
			ActualConsideredQueries: considered,
			ExcludedQueries:         excluded,
			TotalSuccess:            total.SampleCount - total.ErrorCount,
			TotalFailed:             total.ErrorCount,
			ErrorRatePct:            round2(total.ErrorPct),
			TotalTimeTakenSec:       round2(overall.ActualTestDurationSec),
			LatencyStats: models.LatencyStats{
				Avg:    round2(total.MeanResTime / 1000.0),
				Median: round2(total.MedianResTime / 1000.0),
				Min:    round2(total.MinResTime / 1000.0),
				Max:    round2(total.MaxResTime / 1000.0),
				P50:    round2(total.MedianResTime / 1000.0),
				P90:    round2(total.Pct1ResTime / 1000.0),
				P95:    round2(total.Pct2ResTime / 1000.0),
				P99:    round2(total.Pct3ResTime / 1000.0),
			},
			Throughput: models.Throughput{
				QueriesPerMinute: round2(overall.QueriesPerMinuteActual),
				QueriesPerSecond: round2(overall.QueriesPerMinuteActual / 60.0),
				AvgThroughputQPM: round2(overall.QueriesPerMinuteActual),
			},
			PerformanceRating: defaultStr(overall.PerformanceAssessment, "Unknown"),
			ConsistencyRating: defaultStr(overall.PerformanceConsistency, "Unknown"),
		},
		DataTransfer: models.DataTransfer{
			BytesReceivedTotal: int64(overall.BytesReceivedTotal),
			BytesSentTotal:     int64(overall.BytesSentTotal),
			AvgBytesPerQuery:   int64(overall.BytesReceivedAvg),
		},
		TopSlowestQueries: slowest,
		Status:            "completed",
		Files: models.RunFiles{
			StatisticsJSON:     storage.StatisticsFile,
			TestResultJSON:     storage.TestResultFile,
			AggregateReportCSV: storage.AggregateReportFile,
			JMeterResultCSV:    "JmeterResultFile.csv",
		},
	}
}

// runDate renders a run ID as a readable timestamp, or echoes the ID if
// it does not parse.
func runDate(runID string) string {
	ts, err := time.Parse(models.RunIDFormat, runID)
	if err != nil {
		return runID
	}
	return ts.Format("2006-01-02 15:04:05")
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
