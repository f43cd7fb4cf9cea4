package catalog

import (
	"fmt"
	"strings"
)

// Reports builds the canned analytical SQL run against the catalog
// table. resultsURI is the fully qualified results location embedded in
// generated s3_path columns.
type Reports struct {
	table      string
	resultsURI string
}

// NewReports creates a report SQL builder for a qualified table name.
func NewReports(qualifiedTable, resultsURI string) *Reports {
	return &Reports{table: qualifiedTable, resultsURI: strings.TrimSuffix(resultsURI, "/")}
}

// RunFilters narrow canned reports to a slice of the catalog.
type RunFilters struct {
	Engine       string
	ClusterSize  string
	RunType      string
	InstanceType string
}

func (f RunFilters) clauses() string {
	var b strings.Builder
	if f.Engine != "" {
		fmt.Fprintf(&b, " AND engine = '%s'", f.Engine)
	}
	if f.ClusterSize != "" {
		fmt.Fprintf(&b, " AND cluster_size = '%s'", f.ClusterSize)
	}
	if f.RunType != "" {
		fmt.Fprintf(&b, " AND run_type = '%s'", f.RunType)
	}
	if f.InstanceType != "" {
		fmt.Fprintf(&b, " AND instance_type = '%s'", f.InstanceType)
	}
	return b.String()
}

// AllRuns lists recent runs with their headline latencies.
func (r *Reports) AllRuns(f RunFilters) string {
	return fmt.Sprintf(`SELECT
    engine,
    run_id,
    run_date,
    run_type,
    benchmark,
    cluster_size,
    instance_type,
    concurrent_threads,
    ROUND(p50_latency_sec, 2) as p50,
    ROUND(p90_latency_sec, 2) as p90,
    ROUND(p95_latency_sec, 2) as p95,
    ROUND(p99_latency_sec, 2) as p99,
    total_success,
    total_failed
FROM %s
WHERE 1=1%s
ORDER BY engine, run_date DESC LIMIT 50`, r.table, f.clauses())
}

// CompareInstances aggregates performance per instance type.
func (r *Reports) CompareInstances() string {
	return fmt.Sprintf(`SELECT
    engine,
    instance_type,
    cluster_size,
    COUNT(*) as runs,
    ROUND(AVG(avg_latency_sec), 2) as avg_time,
    ROUND(AVG(p50_latency_sec), 2) as avg_p50,
    ROUND(AVG(p90_latency_sec), 2) as avg_p90,
    ROUND(AVG(p95_latency_sec), 2) as avg_p95,
    ROUND(AVG(p99_latency_sec), 2) as avg_p99,
    SUM(total_success) as total_success,
    SUM(total_failed) as total_failed,
    ROUND(MIN(p50_latency_sec), 2) as best_p50,
    ROUND(MIN(p95_latency_sec), 2) as best_p95,
    ROUND(MAX(p50_latency_sec), 2) as worst_p50,
    ROUND(MAX(p95_latency_sec), 2) as worst_p95
FROM %s
WHERE instance_type != 'unknown'
GROUP BY engine, instance_type, cluster_size
ORDER BY engine, cluster_size, avg_p50`, r.table)
}

// CompareClusters aggregates performance per cluster size and run type.
func (r *Reports) CompareClusters() string {
	return fmt.Sprintf(`SELECT
    engine,
    cluster_size,
    run_type,
    COUNT(*) as runs,
    ROUND(AVG(avg_latency_sec), 2) as avg_time,
    ROUND(AVG(p50_latency_sec), 2) as avg_p50,
    ROUND(AVG(p90_latency_sec), 2) as avg_p90,
    ROUND(AVG(p95_latency_sec), 2) as avg_p95,
    ROUND(AVG(p99_latency_sec), 2) as avg_p99,
    SUM(total_success) as total_success,
    SUM(total_failed) as total_failed,
    ROUND(AVG(queries_per_minute), 2) as avg_qpm,
    ROUND(AVG(error_rate_pct), 2) as avg_error_pct
FROM %s
GROUP BY engine, cluster_size, run_type
ORDER BY engine, cluster_size, run_type`, r.table)
}

// SlowestQueries unnests the per-run slowest-query lists for one engine.
func (r *Reports) SlowestQueries(engine string) string {
	return fmt.Sprintf(`SELECT
    slowest.query as query_name,
    ROUND(AVG(slowest.avg_sec), 2) as avg_time_sec,
    ROUND(MIN(slowest.avg_sec), 2) as min_time_sec,
    ROUND(MAX(slowest.avg_sec), 2) as max_time_sec,
    COUNT(*) as times_in_top3
FROM %s
CROSS JOIN UNNEST(top_slowest_queries) as t(slowest)
WHERE engine = '%s'
GROUP BY slowest.query
ORDER BY avg_time_sec DESC
LIMIT 20`, r.table, engine)
}

// CompareConcurrency aggregates per run type across configurations.
func (r *Reports) CompareConcurrency(instanceType string) string {
	filter := ""
	if instanceType != "" {
		filter = fmt.Sprintf(" AND instance_type = '%s'", instanceType)
	}
	return fmt.Sprintf(`SELECT
    engine,
    run_type,
    cluster_size,
    instance_type,
    COUNT(*) as runs,
    ROUND(AVG(avg_latency_sec), 2) as avg_time,
    ROUND(AVG(p50_latency_sec), 2) as avg_p50,
    ROUND(AVG(p90_latency_sec), 2) as avg_p90,
    ROUND(AVG(p95_latency_sec), 2) as avg_p95,
    ROUND(AVG(p99_latency_sec), 2) as avg_p99,
    SUM(total_success) as total_success,
    SUM(total_failed) as total_failed,
    ROUND(AVG(queries_per_minute), 2) as avg_qpm,
    ROUND(AVG(error_rate_pct), 2) as avg_error_pct
FROM %s
WHERE 1=1%s
GROUP BY engine, run_type, cluster_size, instance_type
ORDER BY engine, run_type, cluster_size, instance_type`, r.table, filter)
}

// CompareEngines lines engines up against each other per configuration.
func (r *Reports) CompareEngines(f RunFilters) string {
	return fmt.Sprintf(`SELECT
    engine,
    cluster_size,
    run_type,
    instance_type,
    COUNT(*) as runs,
    ROUND(AVG(avg_latency_sec), 2) as avg_time,
    ROUND(AVG(p50_latency_sec), 2) as avg_p50,
    ROUND(AVG(p90_latency_sec), 2) as avg_p90,
    ROUND(AVG(p95_latency_sec), 2) as avg_p95,
    ROUND(AVG(p99_latency_sec), 2) as avg_p99,
    SUM(total_success) as total_success,
    SUM(total_failed) as total_failed,
    ROUND(AVG(queries_per_minute), 2) as avg_qpm
FROM %s
WHERE 1=1%s
GROUP BY engine, cluster_size, run_type, instance_type
ORDER BY cluster_size, run_type, engine, avg_p90`, r.table, f.clauses())
}

// ScalingAnalysis derives per-thread throughput across concurrency levels.
func (r *Reports) ScalingAnalysis() string {
	return fmt.Sprintf(`WITH concurrency_nums AS (
    SELECT
        engine,
        CAST(REGEXP_EXTRACT(run_type, 'concurrency_(\d+)', 1) AS INTEGER) as concurrency,
        run_type,
        cluster_size,
        instance_type,
        ROUND(AVG(avg_latency_sec), 2) as avg_time,
        ROUND(AVG(p50_latency_sec), 2) as avg_p50,
        ROUND(AVG(p90_latency_sec), 2) as avg_p90,
        ROUND(AVG(p95_latency_sec), 2) as avg_p95,
        ROUND(AVG(p99_latency_sec), 2) as avg_p99,
        SUM(total_success) as total_success,
        SUM(total_failed) as total_failed,
        ROUND(AVG(queries_per_minute), 2) as avg_qpm
    FROM %s
    WHERE run_type LIKE 'concurrency_%%'
    GROUP BY engine, run_type, cluster_size, instance_type
)
SELECT
    engine,
    concurrency,
    cluster_size,
    instance_type,
    avg_time,
    avg_p50,
    avg_p90,
    avg_p95,
    avg_p99,
    total_success,
    total_failed,
    avg_qpm,
    ROUND(avg_qpm / concurrency, 2) as qpm_per_thread
FROM concurrency_nums
ORDER BY engine, cluster_size, concurrency, instance_type`, r.table)
}

// VarianceAnalysis rates run-to-run consistency per configuration by
// coefficient of variation on p90.
func (r *Reports) VarianceAnalysis() string {
	return fmt.Sprintf(`SELECT
    engine,
    benchmark,
    cluster_size,
    run_type,
    instance_type,
    COUNT(*) as num_runs,
    ROUND(AVG(p90_latency_sec), 2) as avg_p90,
    ROUND(MIN(p90_latency_sec), 2) as min_p90,
    ROUND(MAX(p90_latency_sec), 2) as max_p90,
    ROUND(STDDEV(p90_latency_sec), 2) as stddev_p90,
    ROUND((STDDEV(p90_latency_sec) / NULLIF(AVG(p90_latency_sec), 0)) * 100, 1) as cv_p90_pct,
    ROUND(AVG(p95_latency_sec), 2) as avg_p95,
    ROUND(MIN(p95_latency_sec), 2) as min_p95,
    ROUND(MAX(p95_latency_sec), 2) as max_p95,
    ROUND(STDDEV(p95_latency_sec), 2) as stddev_p95,
    ROUND((STDDEV(p95_latency_sec) / NULLIF(AVG(p95_latency_sec), 0)) * 100, 1) as cv_p95_pct,
    CASE
        WHEN COUNT(*) < 2 THEN 'Insufficient data'
        WHEN (STDDEV(p90_latency_sec) / NULLIF(AVG(p90_latency_sec), 0)) * 100 < 5 THEN 'Excellent (CV < 5%%)'
        WHEN (STDDEV(p90_latency_sec) / NULLIF(AVG(p90_latency_sec), 0)) * 100 < 10 THEN 'Good (CV < 10%%)'
        WHEN (STDDEV(p90_latency_sec) / NULLIF(AVG(p90_latency_sec), 0)) * 100 < 20 THEN 'Moderate (CV < 20%%)'
        ELSE 'High variance - investigate'
    END as consistency_rating,
    CONCAT('%s/engine=', engine, '/cluster_size=', cluster_size, '/benchmark=', benchmark, '/run_type=', run_type, '/') as s3_path
FROM %s
GROUP BY engine, benchmark, cluster_size, run_type, instance_type
HAVING COUNT(*) >= 1
ORDER BY cv_p90_pct DESC NULLS LAST, engine, cluster_size, run_type`, r.resultsURI, r.table)
}

// OutlierDetection flags runs whose p90 deviates from their group.
func (r *Reports) OutlierDetection() string {
	return fmt.Sprintf(`WITH group_stats AS (
    SELECT
        engine,
        benchmark,
        cluster_size,
        run_type,
        instance_type,
        AVG(p90_latency_sec) as avg_p90,
        STDDEV(p90_latency_sec) as stddev_p90,
        AVG(p95_latency_sec) as avg_p95,
        STDDEV(p95_latency_sec) as stddev_p95,
        COUNT(*) as total_runs
    FROM %[1]s
    GROUP BY engine, benchmark, cluster_size, run_type, instance_type
    HAVING COUNT(*) >= 2
),
run_deviations AS (
    SELECT
        r.engine,
        r.benchmark,
        r.cluster_size,
        r.run_type,
        r.instance_type,
        r.run_id,
        r.p90_latency_sec,
        r.p95_latency_sec,
        g.avg_p90,
        g.stddev_p90,
        g.avg_p95,
        g.stddev_p95,
        g.total_runs,
        ROUND(((r.p90_latency_sec - g.avg_p90) / NULLIF(g.avg_p90, 0)) * 100, 1) as p90_deviation_pct,
        ROUND(((r.p95_latency_sec - g.avg_p95) / NULLIF(g.avg_p95, 0)) * 100, 1) as p95_deviation_pct,
        ROUND((r.p90_latency_sec - g.avg_p90) / NULLIF(g.stddev_p90, 0), 2) as p90_z_score,
        ROUND((r.p95_latency_sec - g.avg_p95) / NULLIF(g.stddev_p95, 0), 2) as p95_z_score,
        CONCAT('%[2]s/engine=', r.engine,
               '/cluster_size=', r.cluster_size,
               '/benchmark=', r.benchmark,
               '/run_type=', r.run_type,
               '/run_id=', r.run_id, '/') as s3_path
    FROM %[1]s r
    INNER JOIN group_stats g
        ON r.engine = g.engine
        AND r.benchmark = g.benchmark
        AND r.cluster_size = g.cluster_size
        AND r.run_type = g.run_type
        AND r.instance_type = g.instance_type
)
SELECT
    engine,
    benchmark,
    cluster_size,
    run_type,
    instance_type,
    run_id,
    p90_latency_sec,
    avg_p90,
    p90_deviation_pct,
    p90_z_score,
    p95_latency_sec,
    avg_p95,
    p95_deviation_pct,
    p95_z_score,
    total_runs,
    CASE
        WHEN ABS(p90_z_score) > 2 THEN 'SEVERE - Z>2'
        WHEN p90_deviation_pct > 50 THEN 'HIGH - >50%% worse'
        WHEN p90_deviation_pct > 25 THEN 'MODERATE - >25%% worse'
        WHEN p90_deviation_pct < -15 THEN 'SUSPICIOUSLY GOOD'
        ELSE 'NORMAL'
    END as outlier_severity,
    s3_path
FROM run_deviations
WHERE ABS(p90_z_score) > 1.5 OR ABS(p90_deviation_pct) > 20
ORDER BY ABS(p90_z_score) DESC, p90_deviation_pct DESC`, r.table, r.resultsURI)
}

// BestRuns keeps the lowest-p90 run per configuration.
func (r *Reports) BestRuns() string {
	return fmt.Sprintf(`WITH ranked_runs AS (
    SELECT
        engine,
        benchmark,
        cluster_size,
        run_type,
        instance_type,
        run_id,
        avg_latency_sec,
        p50_latency_sec,
        p90_latency_sec,
        p95_latency_sec,
        p99_latency_sec,
        total_success,
        total_failed,
        ROW_NUMBER() OVER (
            PARTITION BY engine, benchmark, cluster_size, run_type, instance_type
            ORDER BY p90_latency_sec ASC
        ) as rank,
        CONCAT('%[2]s/engine=', engine,
               '/cluster_size=', cluster_size,
               '/benchmark=', benchmark,
               '/run_type=', run_type,
               '/run_id=', run_id, '/') as s3_path
    FROM %[1]s
    WHERE total_success > 0
)
SELECT
    engine,
    benchmark,
    cluster_size,
    run_type,
    instance_type,
    run_id as best_run_id,
    ROUND(avg_latency_sec, 2) as avg_time,
    ROUND(p50_latency_sec, 2) as p50,
    ROUND(p90_latency_sec, 2) as p90,
    ROUND(p95_latency_sec, 2) as p95,
    ROUND(p99_latency_sec, 2) as p99,
    total_success,
    total_failed,
    ROUND((total_failed * 100.0) / NULLIF(total_success + total_failed, 0), 2) as error_pct,
    s3_path
FROM ranked_runs
WHERE rank = 1
ORDER BY engine, cluster_size, run_type, instance_type`, r.table, r.resultsURI)
}
