// Package engine provides query execution drivers for the benchmarked
// SQL engines.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/lakebench/lakebench/pkg/models"
)

// Engine executes workload queries against one SQL engine. Execute
// degrades failures into the returned record rather than aborting the
// run; the caller decides process exit status from the totals.
type Engine interface {
	// Name identifies the engine in summaries and partition paths.
	Name() string

	// Execute runs one query and records the outcome.
	Execute(ctx context.Context, seq int, spec models.QuerySpec) models.QueryRecord

	// Close releases connections.
	Close() error
}

// failureRecord builds a Failure record from an execution error,
// normalizing timeout wording.
func failureRecord(seq int, spec models.QuerySpec, started time.Time, err error) models.QueryRecord {
	msg := err.Error()
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		msg = models.TimeoutMessage
	}
	return models.QueryRecord{
		Sequence:   seq,
		Alias:      spec.Alias,
		Query:      spec.Sanitized(),
		Database:   spec.Database,
		Status:     models.StatusFailure,
		Error:      msg,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
}
