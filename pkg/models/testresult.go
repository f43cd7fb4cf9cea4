package models

import "encoding/json"

// TestResult is the test_result.json document written next to a run's
// statistics. Older runs name the file test_result_<run_id>.json.
type TestResult struct {
	RunInfo           map[string]interface{} `json:"run_info"`
	ClusterConfig     json.RawMessage        `json:"cluster_config"`
	TestConfiguration TestConfiguration      `json:"test_configuration"`
	OverallStatistics OverallStatistics      `json:"overall_statistics"`
}

// TestConfiguration mirrors the test_configuration block.
type TestConfiguration struct {
	TestPlanFile       string  `json:"test_plan_file"`
	ConnectionHostname string  `json:"connection_hostname"`
	HoldPeriod         float64 `json:"hold_period"`
	RampUpTime         float64 `json:"ramp_up_time"`
	QueryTimeout       float64 `json:"query_timeout"`
	RandomOrder        bool    `json:"random_order"`
}

// OverallStatistics mirrors the overall_statistics block.
type OverallStatistics struct {
	ActualTestDurationSec  float64 `json:"actual_test_duration_sec"`
	QueriesPerMinuteActual float64 `json:"queries_per_minute_actual"`
	BytesReceivedTotal     float64 `json:"bytes_received_total"`
	BytesSentTotal         float64 `json:"bytes_sent_total"`
	BytesReceivedAvg       float64 `json:"bytes_received_avg"`
	PerformanceAssessment  string  `json:"performance_assessment"`
	PerformanceConsistency string  `json:"performance_consistency"`
}

// ClusterConfig is the cluster_config block. Some producers embed it as
// a JSON string rather than an object; DecodeClusterConfig handles both.
type ClusterConfig struct {
	ClusterSize      string `json:"cluster_size"`
	EstimatedCores   int    `json:"estimated_cores"`
	InstanceType     string `json:"instance_type"`
	Executors        int    `json:"executors"`
	CoresPerExecutor int    `json:"cores_per_executor"`
	Serverless       string `json:"serverless"`
}

// DecodeClusterConfig parses the cluster_config block, re-parsing it
// when it arrives as a JSON-encoded string. Malformed input yields a
// zero config rather than an error.
func (tr TestResult) DecodeClusterConfig() ClusterConfig {
	var cfg ClusterConfig
	raw := tr.ClusterConfig
	if len(raw) == 0 {
		return cfg
	}
	if raw[0] == '"' {
		var embedded string
		if err := json.Unmarshal(raw, &embedded); err != nil {
			return ClusterConfig{}
		}
		raw = []byte(embedded)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ClusterConfig{}
	}
	return cfg
}

// IsServerless reports whether the cluster ran in serverless mode.
func (c ClusterConfig) IsServerless() bool {
	return c.Serverless == "Y"
}
