// Package models provides data structures used throughout the benchmark toolkit.
package models

import (
	"strings"
	"time"
)

// Query execution status values recorded per query.
const (
	StatusSuccess = "Success"
	StatusFailure = "Failure"
)

// TimeoutMessage is the normalized error recorded for engine connect or
// read timeouts, regardless of the driver's own wording.
const TimeoutMessage = "Connect timeout. Unable to connect."

// QuerySpec is one workload entry loaded from a CSV query file.
type QuerySpec struct {
	Alias    string `json:"alias"`
	Text     string `json:"text"`
	Database string `json:"database,omitempty"`
}

// Sanitized returns the query text with newlines flattened and runs of
// spaces collapsed, the form sent over HTTP/JSON execution paths.
func (q QuerySpec) Sanitized() string {
	s := strings.ReplaceAll(q.Text, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

// QueryRecord is the outcome of a single query execution.
type QueryRecord struct {
	Sequence   int           `json:"sequence"`
	Alias      string        `json:"alias"`
	Query      string        `json:"query"`
	Database   string        `json:"database,omitempty"`
	QueryID    string        `json:"query_id,omitempty"`
	Rows       int64         `json:"rows"`
	ScannedGB  float64       `json:"scanned_gb"`
	EngineTime time.Duration `json:"engine_time"`
	ClientTime time.Duration `json:"client_time"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Failed reports whether the execution ended in failure.
func (r QueryRecord) Failed() bool {
	return r.Status == StatusFailure
}

// RunSummary aggregates a completed workload run.
type RunSummary struct {
	Engine        string        `json:"engine"`
	Dataset       string        `json:"dataset"`
	RunDate       time.Time     `json:"run_date"`
	WallTime      time.Duration `json:"wall_time"`
	Concurrency   int           `json:"concurrency"`
	TotalQueries  int           `json:"total_queries"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	FailedAliases []string      `json:"failed_aliases,omitempty"`
}
