package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/pkg/models"
	"github.com/lakebench/lakebench/pkg/storage"
)

func newTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

const testResultDoc = `{
  "run_info": {"engine": "trino"},
  "cluster_config": {"cluster_size": "M", "estimated_cores": 120, "instance_type": "r5.4xlarge", "serverless": "N"},
  "test_configuration": {"test_plan_file": "tpcds.jmx", "connection_hostname": "trino.internal", "hold_period": 10, "ramp_up_time": 5, "query_timeout": 300, "random_order": true},
  "overall_statistics": {"actual_test_duration_sec": 600.5, "queries_per_minute_actual": 12.0, "bytes_received_total": 1048576, "bytes_sent_total": 2048, "bytes_received_avg": 8192, "performance_assessment": "Good", "performance_consistency": "Excellent"}
}`

const statisticsDoc = `{
  "Total": {"sampleCount": 60, "errorCount": 2, "errorPct": 3.333, "meanResTime": 3000, "medianResTime": 2500, "minResTime": 1000, "maxResTime": 9000, "pct1ResTime": 4000, "pct2ResTime": 4500, "pct3ResTime": 5000},
  "query-1-q01": {"sampleCount": 20, "meanResTime": 1000},
  "query-2-q02": {"sampleCount": 20, "meanResTime": 5000},
  "query-3-q03": {"sampleCount": 20, "meanResTime": 3000},
  "BOOTSTRAP warmup": {"sampleCount": 1, "meanResTime": 100},
  "JSR223 Sampler": {"sampleCount": 1, "meanResTime": 50}
}`

func seedRun(t *testing.T, store storage.ObjectStore, prefix, runID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, prefix+"run_id="+runID+"/test_result.json", []byte(testResultDoc)))
	require.NoError(t, store.Put(ctx, prefix+"run_id="+runID+"/statistics.json", []byte(statisticsDoc)))
}

func testRunPath() models.RunPath {
	return models.RunPath{
		Engine:      "trino",
		ClusterSize: "M",
		Benchmark:   "tpcds",
		RunType:     "concurrency_4",
	}
}

func TestGenerate(t *testing.T) {
	store := newTestStore(t)
	rp := testRunPath()
	seedRun(t, store, rp.Prefix(), "20250110-120000")
	seedRun(t, store, rp.Prefix(), "20250111-120000")

	gen := NewGenerator(store, "", zerolog.Nop())
	gen.now = func() time.Time { return time.Date(2025, 1, 12, 8, 0, 0, 0, time.UTC) }

	idx, err := gen.Generate(context.Background(), rp, "s3://bench/results/"+rp.Prefix())
	require.NoError(t, err)

	assert.Equal(t, "trino", idx.Metadata.Engine)
	assert.Equal(t, "concurrency_4", idx.Metadata.RunType)
	assert.Equal(t, 2, idx.Info.TotalRuns)
	assert.Equal(t, "20250110-120000", idx.Info.OldestRun)
	assert.Equal(t, "20250111-120000", idx.Info.NewestRun)
	assert.Equal(t, "2025-01-12T08:00:00Z", idx.Info.LastUpdated)
	require.Len(t, idx.Runs, 2)

	// Newest first.
	run := idx.Runs[0]
	assert.Equal(t, "20250111-120000", run.RunID)
	assert.Equal(t, "2025-01-11 12:00:00", run.RunDate)
	assert.True(t, strings.HasSuffix(run.S3Path, "run_id=20250111-120000/"))

	assert.Equal(t, "M", run.ClusterInfo.ClusterSize)
	assert.Equal(t, 120, run.ClusterInfo.EstimatedCores)
	assert.False(t, run.ClusterInfo.Serverless)
	assert.Equal(t, "trino.internal", run.ClusterInfo.ClusterHostname)

	assert.Equal(t, 4, run.TestConfig.ConcurrentThreads)
	assert.Equal(t, "tpcds", run.TestConfig.Benchmark)
	assert.Equal(t, 5, run.TestConfig.TotalQueryCount)

	rs := run.ResultsSummary
	assert.Equal(t, 60, rs.TotalSamples)
	assert.Equal(t, 3, rs.ActualConsideredQueries)
	assert.Equal(t, 2, rs.ExcludedQueries)
	assert.Equal(t, 58, rs.TotalSuccess)
	assert.Equal(t, 2, rs.TotalFailed)
	assert.InDelta(t, 3.33, rs.ErrorRatePct, 0.001)
	assert.InDelta(t, 3.0, rs.LatencyStats.Avg, 0.001)
	assert.InDelta(t, 4.0, rs.LatencyStats.P90, 0.001)
	assert.InDelta(t, 0.2, rs.Throughput.QueriesPerSecond, 0.001)
	assert.Equal(t, "Good", rs.PerformanceRating)

	assert.Equal(t, int64(1048576), run.DataTransfer.BytesReceivedTotal)

	require.Len(t, run.TopSlowestQueries, 3)
	assert.Equal(t, "query-2-q02", run.TopSlowestQueries[0].Query)
	assert.InDelta(t, 5.0, run.TopSlowestQueries[0].AvgSec, 0.001)
}

func TestGenerateSkipsIncompleteRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rp := testRunPath()
	seedRun(t, store, rp.Prefix(), "20250110-120000")
	// statistics without a test result
	require.NoError(t, store.Put(ctx, rp.Prefix()+"run_id=20250111-120000/statistics.json", []byte(statisticsDoc)))

	gen := NewGenerator(store, "", zerolog.Nop())
	idx, err := gen.Generate(ctx, rp, "s3://bench/results/"+rp.Prefix())
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Info.TotalRuns)
	require.Len(t, idx.Runs, 1)
	assert.Equal(t, "20250110-120000", idx.Runs[0].RunID)
}

func TestGenerateRequiresFullPath(t *testing.T) {
	gen := NewGenerator(newTestStore(t), "", zerolog.Nop())
	_, err := gen.Generate(context.Background(), models.RunPath{Engine: "trino"}, "s3://bench/")
	assert.Error(t, err)
}

func TestFlattenAndEncodeJSONL(t *testing.T) {
	store := newTestStore(t)
	rp := testRunPath()
	seedRun(t, store, rp.Prefix(), "20250110-120000")

	gen := NewGenerator(store, "", zerolog.Nop())
	idx, err := gen.Generate(context.Background(), rp, "s3://bench/results/"+rp.Prefix())
	require.NoError(t, err)

	data, err := EncodeJSONL(idx)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var row map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &row))
	assert.Equal(t, "20250110-120000", row["run_id"])
	assert.Equal(t, "trino", row["engine"])
	assert.Equal(t, "M", row["cluster_size_partition"])
	assert.Equal(t, "tpcds", row["benchmark_partition"])
	assert.Equal(t, "concurrency_4", row["run_type"])
	assert.Equal(t, float64(4), row["concurrent_threads"])
	assert.Equal(t, 3.0, row["avg_latency_sec"])
}

func TestCatalogDataPath(t *testing.T) {
	meta := models.IndexMetadata{Engine: "trino", ClusterSize: "M", Benchmark: "tpcds", RunType: "concurrency_4"}
	assert.Equal(t,
		"results-index/runs/engine=trino/cluster_size=M/benchmark=tpcds/run_type=concurrency_4/data.jsonl",
		CatalogDataPath("results-index", meta))
}

func TestPublish(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rp := testRunPath()
	seedRun(t, store, rp.Prefix(), "20250110-120000")

	gen := NewGenerator(store, "", zerolog.Nop())
	idx, err := gen.Generate(ctx, rp, "s3://bench/results/"+rp.Prefix())
	require.NoError(t, err)

	require.NoError(t, Publish(ctx, store, "", "results-index", idx))

	doc, err := store.Get(ctx, rp.Prefix()+"runs_index.json")
	require.NoError(t, err)
	var roundTrip models.RunsIndex
	require.NoError(t, json.Unmarshal(doc, &roundTrip))
	assert.Equal(t, idx.Metadata, roundTrip.Metadata)

	rows, err := store.Get(ctx, CatalogDataPath("results-index", idx.Metadata))
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(bytes.TrimSpace(rows), []byte("\n"))+1)
}

func TestDiscoverCompleteRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rp := testRunPath()
	seedRun(t, store, "results/"+rp.Prefix(), "20250110-120000")
	// test result only, no statistics: not a complete run
	require.NoError(t, store.Put(ctx, "results/engine=athena/cluster_size=XS/benchmark=tpcds/run_type=sequential/run_id=20250109-090000/test_result.json", []byte(testResultDoc)))

	runs, err := DiscoverCompleteRuns(ctx, store, "results/")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "trino", runs[0].Engine)
	assert.Equal(t, "20250110-120000", runs[0].RunID)
}

type fakeIndexedSource struct {
	runIDs map[string]bool
	err    error
	calls  int
}

func (f *fakeIndexedSource) IndexedRunIDs(context.Context) (map[string]bool, error) {
	f.calls++
	return f.runIDs, f.err
}

func TestSync(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rp := testRunPath()
	seedRun(t, store, "results/"+rp.Prefix(), "20250110-120000")
	seedRun(t, store, "results/"+rp.Prefix(), "20250111-120000")

	source := &fakeIndexedSource{runIDs: map[string]bool{"20250110-120000": true}}
	syncer := NewSyncer(store, source, "results/", "s3://bench/results", "results-index", zerolog.Nop())

	result, err := syncer.Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Discovered)
	assert.Equal(t, 1, result.AlreadyIndexed)
	require.Len(t, result.Missing, 1)
	assert.Equal(t, "20250111-120000", result.Missing[0].RunID)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 0, result.Failed)

	// Published index covers the whole run type, both runs included.
	rows, err := store.Get(ctx, CatalogDataPath("results-index", models.IndexMetadata{
		Engine: "trino", ClusterSize: "M", Benchmark: "tpcds", RunType: "concurrency_4",
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, len(bytes.Split(bytes.TrimSpace(rows), []byte("\n"))))
}

func TestSyncDryRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rp := testRunPath()
	seedRun(t, store, "results/"+rp.Prefix(), "20250110-120000")

	source := &fakeIndexedSource{runIDs: map[string]bool{}}
	syncer := NewSyncer(store, source, "results/", "s3://bench/results", "results-index", zerolog.Nop())

	result, err := syncer.Sync(ctx, SyncOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Published)
	require.Len(t, result.Missing, 1)

	exists, err := store.Exists(ctx, CatalogDataPath("results-index", models.IndexMetadata{
		Engine: "trino", ClusterSize: "M", Benchmark: "tpcds", RunType: "concurrency_4",
	}))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSyncForceSkipsCatalogLookup(t *testing.T) {
	store := newTestStore(t)
	rp := testRunPath()
	seedRun(t, store, "results/"+rp.Prefix(), "20250110-120000")

	source := &fakeIndexedSource{err: fmt.Errorf("catalog down")}
	syncer := NewSyncer(store, source, "results/", "s3://bench/results", "results-index", zerolog.Nop())

	result, err := syncer.Sync(context.Background(), SyncOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 0, source.calls)
	assert.Equal(t, 1, result.Published)
}

func TestSyncEngineFilter(t *testing.T) {
	store := newTestStore(t)
	rp := testRunPath()
	seedRun(t, store, "results/"+rp.Prefix(), "20250110-120000")

	source := &fakeIndexedSource{runIDs: map[string]bool{}}
	syncer := NewSyncer(store, source, "results/", "s3://bench/results", "results-index", zerolog.Nop())

	_, err := syncer.Sync(context.Background(), SyncOptions{Engine: "athena"})
	assert.Error(t, err)
}
