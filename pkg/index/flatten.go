package index

import (
	"bytes"
	"context"
	"encoding/json"
	"path"

	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/models"
	"github.com/lakebench/lakebench/pkg/storage"
)

// CatalogDataFile is the object name of each partition's JSONL payload.
const CatalogDataFile = "data.jsonl"

// FlattenRun collapses a nested index entry into the single-level row
// the catalog table is defined over, appending partition columns from
// the index metadata.
func FlattenRun(run models.RunEntry, meta models.IndexMetadata) models.CatalogRow {
	return models.CatalogRow{
		RunID:   run.RunID,
		RunDate: run.RunDate,
		S3Path:  run.S3Path,
		Status:  run.Status,

		ClusterSize:      run.ClusterInfo.ClusterSize,
		EstimatedCores:   run.ClusterInfo.EstimatedCores,
		InstanceType:     run.ClusterInfo.InstanceType,
		Executors:        run.ClusterInfo.Executors,
		CoresPerExecutor: run.ClusterInfo.CoresPerExecutor,
		Serverless:       run.ClusterInfo.Serverless,
		ClusterHostname:  run.ClusterInfo.ClusterHostname,

		TestPlanFile:      run.TestConfig.TestPlanFile,
		ConcurrentThreads: run.TestConfig.ConcurrentThreads,
		Benchmark:         run.TestConfig.Benchmark,
		TotalQueryCount:   run.TestConfig.TotalQueryCount,
		HoldPeriodMin:     run.TestConfig.HoldPeriodMin,
		RampUpTimeSec:     run.TestConfig.RampUpTimeSec,
		QueryTimeoutSec:   run.TestConfig.QueryTimeoutSec,
		RandomOrder:       run.TestConfig.RandomOrder,

		TotalSamples:            run.ResultsSummary.TotalSamples,
		ActualConsideredQueries: run.ResultsSummary.ActualConsideredQueries,
		ExcludedQueries:         run.ResultsSummary.ExcludedQueries,
		TotalSuccess:            run.ResultsSummary.TotalSuccess,
		TotalFailed:             run.ResultsSummary.TotalFailed,
		ErrorRatePct:            run.ResultsSummary.ErrorRatePct,
		TotalTimeTakenSec:       run.ResultsSummary.TotalTimeTakenSec,

		AvgLatencySec:    run.ResultsSummary.LatencyStats.Avg,
		MedianLatencySec: run.ResultsSummary.LatencyStats.Median,
		MinLatencySec:    run.ResultsSummary.LatencyStats.Min,
		MaxLatencySec:    run.ResultsSummary.LatencyStats.Max,
		P50LatencySec:    run.ResultsSummary.LatencyStats.P50,
		P90LatencySec:    run.ResultsSummary.LatencyStats.P90,
		P95LatencySec:    run.ResultsSummary.LatencyStats.P95,
		P99LatencySec:    run.ResultsSummary.LatencyStats.P99,

		QueriesPerMinute: run.ResultsSummary.Throughput.QueriesPerMinute,
		QueriesPerSecond: run.ResultsSummary.Throughput.QueriesPerSecond,
		AvgThroughputQPM: run.ResultsSummary.Throughput.AvgThroughputQPM,

		PerformanceRating: run.ResultsSummary.PerformanceRating,
		ConsistencyRating: run.ResultsSummary.ConsistencyRating,

		BytesReceivedTotal: run.DataTransfer.BytesReceivedTotal,
		BytesSentTotal:     run.DataTransfer.BytesSentTotal,
		AvgBytesPerQuery:   run.DataTransfer.AvgBytesPerQuery,

		TopSlowestQueries: run.TopSlowestQueries,

		Engine:               meta.Engine,
		ClusterSizePartition: meta.ClusterSize,
		BenchmarkPartition:   meta.Benchmark,
		RunType:              meta.RunType,
	}
}

// EncodeJSONL renders the index's runs as newline-delimited JSON, one
// flattened row per line.
func EncodeJSONL(idx *models.RunsIndex) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, run := range idx.Runs {
		if err := enc.Encode(FlattenRun(run, idx.Metadata)); err != nil {
			return nil, errors.Wrap(err, errors.CodeIndexFailed, "encode catalog row")
		}
	}
	return buf.Bytes(), nil
}

// CatalogDataPath builds the partitioned object key the catalog table
// reads a run-type's rows from.
func CatalogDataPath(basePrefix string, meta models.IndexMetadata) string {
	return path.Join(basePrefix, "runs",
		"engine="+meta.Engine,
		"cluster_size="+meta.ClusterSize,
		"benchmark="+meta.Benchmark,
		"run_type="+meta.RunType,
		CatalogDataFile)
}

// Publish writes the index document next to the runs it describes and
// the flattened JSONL payload under the catalog base prefix.
// resultsRoot is the object prefix the run directories live under.
func Publish(ctx context.Context, store storage.ObjectStore, resultsRoot, catalogBase string, idx *models.RunsIndex) error {
	doc, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeIndexFailed, "encode runs index")
	}
	rp := models.RunPath{
		Engine:      idx.Metadata.Engine,
		ClusterSize: idx.Metadata.ClusterSize,
		Benchmark:   idx.Metadata.Benchmark,
		RunType:     idx.Metadata.RunType,
	}
	if err := store.Put(ctx, path.Join(resultsRoot, rp.Join("runs_index.json")), doc); err != nil {
		return errors.Wrap(err, errors.CodeIndexFailed, "upload runs index")
	}

	rows, err := EncodeJSONL(idx)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, CatalogDataPath(catalogBase, idx.Metadata), rows); err != nil {
		return errors.Wrap(err, errors.CodeIndexFailed, "upload catalog rows")
	}
	return nil
}
