// Package runner executes query workloads sequentially or in
// staggered concurrent batches.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakebench/lakebench/pkg/engine"
	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/metrics"
	"github.com/lakebench/lakebench/pkg/models"
)

// Querying modes.
const (
	ModeSequential = "SEQUENTIAL"
	ModeConcurrent = "CONCURRENT"
)

// Config controls workload execution.
type Config struct {
	// Mode selects sequential or concurrent execution.
	Mode string
	// Concurrency is the batch size in concurrent mode.
	Concurrency int
	// Interval is the stagger between batch launches.
	Interval time.Duration
	// Dataset names the database under test for the summary.
	Dataset string
}

// Validate applies defaults and rejects unusable configurations.
func (c *Config) Validate() error {
	if c.Mode == "" {
		c.Mode = ModeSequential
	}
	c.Mode = strings.ToUpper(c.Mode)
	if c.Mode != ModeSequential && c.Mode != ModeConcurrent {
		return errors.Newf(errors.CodeInvalidConfig, "unknown querying mode %q", c.Mode)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.Interval < 0 {
		return errors.New(errors.CodeInvalidConfig, "interval must not be negative")
	}
	return nil
}

// Runner drives a workload through an engine.
type Runner struct {
	engine    engine.Engine
	cfg       Config
	logger    zerolog.Logger
	collector metrics.Collector
}

// New creates a Runner. A nil collector disables metrics.
func New(eng engine.Engine, cfg Config, logger zerolog.Logger, collector metrics.Collector) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if collector == nil {
		collector = metrics.NewNoOpCollector()
	}
	return &Runner{
		engine:    eng,
		cfg:       cfg,
		logger:    logger.With().Str("component", "runner").Logger(),
		collector: collector,
	}, nil
}

// Run executes the workload and returns per-query records in launch
// order plus the run summary. Individual query failures are captured in
// the records; the returned error reports only setup or cancellation
// problems.
func (r *Runner) Run(ctx context.Context, specs []models.QuerySpec) ([]models.QueryRecord, models.RunSummary, error) {
	if len(specs) == 0 {
		return nil, models.RunSummary{}, errors.ErrEmptyWorkload
	}

	started := time.Now()
	var records []models.QueryRecord
	var err error

	if r.cfg.Mode == ModeConcurrent {
		records, err = r.runConcurrent(ctx, specs)
	} else {
		records, err = r.runSequential(ctx, specs)
	}
	if err != nil {
		return records, models.RunSummary{}, err
	}

	summary := r.summarize(started, records)
	r.logSummary(summary)
	return records, summary, nil
}

func (r *Runner) runSequential(ctx context.Context, specs []models.QuerySpec) ([]models.QueryRecord, error) {
	records := make([]models.QueryRecord, 0, len(specs))
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return records, errors.Wrap(err, errors.CodeCanceled, "run canceled")
		}
		rec := r.executeOne(ctx, i+1, spec)
		records = append(records, rec)
	}
	return records, nil
}

func (r *Runner) runConcurrent(ctx context.Context, specs []models.QuerySpec) ([]models.QueryRecord, error) {
	size := r.cfg.Concurrency
	records := make([]models.QueryRecord, len(specs))
	var wg sync.WaitGroup

	batches := len(specs) / size
	if len(specs)%size != 0 {
		batches++
	}

	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return records, errors.Wrap(err, errors.CodeCanceled, "run canceled")
		}

		lo := b * size
		hi := lo + size
		if hi > len(specs) {
			hi = len(specs)
		}
		r.logger.Info().Int("batch", b+1).Int("queries", hi-lo).Msg("Launching batch")

		for i := lo; i < hi; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				records[idx] = r.executeOne(ctx, idx+1, specs[idx])
			}(i)
		}

		if b < batches-1 && r.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.cfg.Interval):
			}
		}
	}

	wg.Wait()
	return records, nil
}

// executeOne runs a single query with panic containment.
func (r *Runner) executeOne(ctx context.Context, seq int, spec models.QuerySpec) (rec models.QueryRecord) {
	defer func() {
		if p := recover(); p != nil {
			rec = models.QueryRecord{
				Sequence:   seq,
				Alias:      spec.Alias,
				Query:      spec.Sanitized(),
				Database:   spec.Database,
				Status:     models.StatusFailure,
				Error:      fmt.Sprintf("panic during execution: %v", p),
				FinishedAt: time.Now(),
			}
		}
	}()

	r.logger.Info().
		Str("alias", spec.Alias).
		Time("started_at", time.Now()).
		Msg("Query started")

	rec = r.engine.Execute(ctx, seq, spec)

	metrics.ObserveQuery(r.collector, r.engine.Name(), rec.Status, rec.ClientTime.Seconds())
	r.logger.Info().
		Int("sequence", seq).
		Str("alias", spec.Alias).
		Str("status", rec.Status).
		Dur("client_time", rec.ClientTime).
		Msg("Query finished")
	return rec
}

func (r *Runner) summarize(started time.Time, records []models.QueryRecord) models.RunSummary {
	summary := models.RunSummary{
		Engine:       r.engine.Name(),
		Dataset:      r.cfg.Dataset,
		RunDate:      started,
		WallTime:     time.Since(started).Truncate(time.Second),
		Concurrency:  r.cfg.Concurrency,
		TotalQueries: len(records),
	}
	if r.cfg.Mode == ModeSequential {
		summary.Concurrency = 1
	}
	for _, rec := range records {
		if rec.Failed() {
			summary.Failed++
			summary.FailedAliases = append(summary.FailedAliases, rec.Alias)
		} else {
			summary.Succeeded++
		}
	}
	return summary
}

func (r *Runner) logSummary(s models.RunSummary) {
	failed := fmt.Sprintf("%d", s.Failed)
	if s.Failed > 0 {
		failed = fmt.Sprintf("%d (Query Alias: %s)", s.Failed, strings.Join(s.FailedAliases, ", "))
	}
	r.logger.Info().
		Str("engine", s.Engine).
		Str("test_run_date", s.RunDate.Format("02-01-2006 15:04:05")).
		Str("dataset", s.Dataset).
		Str("total_run_time", s.WallTime.String()).
		Int("total_queries_run", s.TotalQueries).
		Int("total_queries_successful", s.Succeeded).
		Str("total_queries_failed", failed).
		Msg("Run summary")
}
