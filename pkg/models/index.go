package models

// IndexMetadata identifies the run-type path an index was built from.
type IndexMetadata struct {
	Engine      string `json:"engine"`
	ClusterSize string `json:"cluster_size"`
	Benchmark   string `json:"benchmark"`
	RunType     string `json:"run_type"`
	S3BasePath  string `json:"s3_base_path"`
}

// IndexInfo summarizes the index document itself.
type IndexInfo struct {
	TotalRuns   int    `json:"total_runs"`
	LastUpdated string `json:"last_updated"`
	OldestRun   string `json:"oldest_run,omitempty"`
	NewestRun   string `json:"newest_run,omitempty"`
}

// ClusterInfo is the cluster a run executed against, merged from the
// run's cluster_config and test_configuration.
type ClusterInfo struct {
	ClusterSize      string `json:"cluster_size"`
	EstimatedCores   int    `json:"estimated_cores"`
	InstanceType     string `json:"instance_type"`
	Executors        int    `json:"executors"`
	CoresPerExecutor int    `json:"cores_per_executor"`
	Serverless       bool   `json:"serverless"`
	ClusterHostname  string `json:"cluster_hostname"`
}

// RunTestConfig is the execution configuration recorded with a run.
type RunTestConfig struct {
	TestPlanFile      string  `json:"test_plan_file"`
	ConcurrentThreads int     `json:"concurrent_threads"`
	Benchmark         string  `json:"benchmark"`
	TotalQueryCount   int     `json:"total_query_count"`
	HoldPeriodMin     float64 `json:"hold_period_min"`
	RampUpTimeSec     float64 `json:"ramp_up_time_sec"`
	QueryTimeoutSec   float64 `json:"query_timeout_sec"`
	RandomOrder       bool    `json:"random_order"`
}

// LatencyStats holds latency aggregates in seconds.
type LatencyStats struct {
	Avg    float64 `json:"avg_latency_sec"`
	Median float64 `json:"median_latency_sec"`
	Min    float64 `json:"min_latency_sec"`
	Max    float64 `json:"max_latency_sec"`
	P50    float64 `json:"p50_latency_sec"`
	P90    float64 `json:"p90_latency_sec"`
	P95    float64 `json:"p95_latency_sec"`
	P99    float64 `json:"p99_latency_sec"`
}

// Throughput carries the run's measured query rates.
type Throughput struct {
	QueriesPerMinute float64 `json:"queries_per_minute"`
	QueriesPerSecond float64 `json:"queries_per_second"`
	AvgThroughputQPM float64 `json:"avg_throughput_qpm"`
}

// IndexResultsSummary aggregates a run's outcomes for the index.
type IndexResultsSummary struct {
	TotalSamples            int          `json:"total_samples"`
	ActualConsideredQueries int          `json:"actual_considered_queries"`
	ExcludedQueries         int          `json:"excluded_queries"`
	TotalSuccess            int          `json:"total_success"`
	TotalFailed             int          `json:"total_failed"`
	ErrorRatePct            float64      `json:"error_rate_pct"`
	TotalTimeTakenSec       float64      `json:"total_time_taken_sec"`
	LatencyStats            LatencyStats `json:"latency_stats"`
	Throughput              Throughput   `json:"throughput"`
	PerformanceRating       string       `json:"performance_rating"`
	ConsistencyRating       string       `json:"consistency_rating"`
}

// DataTransfer carries byte totals from the run's overall statistics.
type DataTransfer struct {
	BytesReceivedTotal int64 `json:"bytes_received_total"`
	BytesSentTotal     int64 `json:"bytes_sent_total"`
	AvgBytesPerQuery   int64 `json:"avg_bytes_per_query"`
}

// SlowQuery is one entry of a run's slowest-queries list.
type SlowQuery struct {
	Query  string  `json:"query"`
	AvgSec float64 `json:"avg_sec"`
}

// RunFiles is the artifact inventory of a run directory.
type RunFiles struct {
	StatisticsJSON     string `json:"statistics_json"`
	TestResultJSON     string `json:"test_result_json"`
	AggregateReportCSV string `json:"aggregate_report_csv"`
	JMeterResultCSV    string `json:"jmeter_result_csv"`
}

// RunEntry is one run inside a runs-index document.
type RunEntry struct {
	RunID             string              `json:"run_id"`
	RunDate           string              `json:"run_date"`
	S3Path            string              `json:"s3_path"`
	ClusterInfo       ClusterInfo         `json:"cluster_info"`
	TestConfig        RunTestConfig       `json:"test_config"`
	ResultsSummary    IndexResultsSummary `json:"results_summary"`
	DataTransfer      DataTransfer        `json:"data_transfer"`
	TopSlowestQueries []SlowQuery         `json:"top_slowest_queries"`
	Status            string              `json:"status"`
	Files             RunFiles            `json:"files"`
}

// RunsIndex is the generated index document for one run-type path.
type RunsIndex struct {
	Metadata IndexMetadata `json:"metadata"`
	Info     IndexInfo     `json:"index_info"`
	Runs     []RunEntry    `json:"runs"`
}

// CatalogRow is the flattened single-level JSONL record consumed by the
// catalog table jmeter_analysis.jmeter_runs_index. One row per run.
type CatalogRow struct {
	RunID   string `json:"run_id"`
	RunDate string `json:"run_date"`
	S3Path  string `json:"s3_path"`
	Status  string `json:"status"`

	ClusterSize      string `json:"cluster_size"`
	EstimatedCores   int    `json:"estimated_cores"`
	InstanceType     string `json:"instance_type"`
	Executors        int    `json:"executors"`
	CoresPerExecutor int    `json:"cores_per_executor"`
	Serverless       bool   `json:"serverless"`
	ClusterHostname  string `json:"cluster_hostname"`

	TestPlanFile      string  `json:"test_plan_file"`
	ConcurrentThreads int     `json:"concurrent_threads"`
	Benchmark         string  `json:"benchmark"`
	TotalQueryCount   int     `json:"total_query_count"`
	HoldPeriodMin     float64 `json:"hold_period_min"`
	RampUpTimeSec     float64 `json:"ramp_up_time_sec"`
	QueryTimeoutSec   float64 `json:"query_timeout_sec"`
	RandomOrder       bool    `json:"random_order"`

	TotalSamples            int     `json:"total_samples"`
	ActualConsideredQueries int     `json:"actual_considered_queries"`
	ExcludedQueries         int     `json:"excluded_queries"`
	TotalSuccess            int     `json:"total_success"`
	TotalFailed             int     `json:"total_failed"`
	ErrorRatePct            float64 `json:"error_rate_pct"`
	TotalTimeTakenSec       float64 `json:"total_time_taken_sec"`

	AvgLatencySec    float64 `json:"avg_latency_sec"`
	MedianLatencySec float64 `json:"median_latency_sec"`
	MinLatencySec    float64 `json:"min_latency_sec"`
	MaxLatencySec    float64 `json:"max_latency_sec"`
	P50LatencySec    float64 `json:"p50_latency_sec"`
	P90LatencySec    float64 `json:"p90_latency_sec"`
	P95LatencySec    float64 `json:"p95_latency_sec"`
	P99LatencySec    float64 `json:"p99_latency_sec"`

	QueriesPerMinute float64 `json:"queries_per_minute"`
	QueriesPerSecond float64 `json:"queries_per_second"`
	AvgThroughputQPM float64 `json:"avg_throughput_qpm"`

	PerformanceRating string `json:"performance_rating"`
	ConsistencyRating string `json:"consistency_rating"`

	BytesReceivedTotal int64 `json:"bytes_received_total"`
	BytesSentTotal     int64 `json:"bytes_sent_total"`
	AvgBytesPerQuery   int64 `json:"avg_bytes_per_query"`

	TopSlowestQueries []SlowQuery `json:"top_slowest_queries"`

	// Partition columns, kept out of the table schema and used only to
	// build the object path.
	Engine               string `json:"engine"`
	ClusterSizePartition string `json:"cluster_size_partition"`
	BenchmarkPartition   string `json:"benchmark_partition"`
	RunType              string `json:"run_type"`
}
