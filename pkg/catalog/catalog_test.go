package catalog

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueryAPI struct {
	states   []types.QueryExecutionState
	reason   string
	pages    [][][]string
	started  []string
	polls    int
	startErr error
}

func (f *fakeQueryAPI) StartQueryExecution(_ context.Context, in *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, aws.ToString(in.QueryString))
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("qid-1")}, nil
}

func (f *fakeQueryAPI) GetQueryExecution(_ context.Context, _ *athena.GetQueryExecutionInput, _ ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	state := f.states[min(f.polls, len(f.states)-1)]
	f.polls++
	status := &types.QueryExecutionStatus{State: state}
	if f.reason != "" {
		status.StateChangeReason = aws.String(f.reason)
	}
	return &athena.GetQueryExecutionOutput{
		QueryExecution: &types.QueryExecution{Status: status},
	}, nil
}

func (f *fakeQueryAPI) GetQueryResults(_ context.Context, in *athena.GetQueryResultsInput, _ ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error) {
	page := 0
	if in.NextToken != nil {
		page = 1
	}
	rows := make([]types.Row, 0, len(f.pages[page]))
	for _, cells := range f.pages[page] {
		data := make([]types.Datum, len(cells))
		for i, cell := range cells {
			data[i] = types.Datum{VarCharValue: aws.String(cell)}
		}
		rows = append(rows, types.Row{Data: data})
	}
	out := &athena.GetQueryResultsOutput{ResultSet: &types.ResultSet{Rows: rows}}
	if page == 0 && len(f.pages) > 1 {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

func testConfig() Config {
	return Config{
		OutputLocation: "s3://bench/athena-results/",
		PollInterval:   time.Millisecond,
	}
}

func TestQueryPaginates(t *testing.T) {
	api := &fakeQueryAPI{
		states: []types.QueryExecutionState{
			types.QueryExecutionStateRunning,
			types.QueryExecutionStateSucceeded,
		},
		pages: [][][]string{
			{{"run_id"}, {"20250110-120000"}},
			{{"20250111-120000"}},
		},
	}
	client, err := newClient(api, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	rows, err := client.Query(context.Background(), "SELECT run_id FROM jmeter_analysis.jmeter_runs_index")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"run_id"}, rows[0])
	assert.Equal(t, []string{"20250111-120000"}, rows[2])
	assert.GreaterOrEqual(t, api.polls, 2)
}

func TestQueryFailureState(t *testing.T) {
	api := &fakeQueryAPI{
		states: []types.QueryExecutionState{types.QueryExecutionStateFailed},
		reason: "SYNTAX_ERROR: line 1",
	}
	client, err := newClient(api, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Query(context.Background(), "SELECT nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNTAX_ERROR")
}

func TestQueryPollTimeout(t *testing.T) {
	api := &fakeQueryAPI{states: []types.QueryExecutionState{types.QueryExecutionStateRunning}}
	cfg := testConfig()
	cfg.MaxPolls = 2
	client, err := newClient(api, cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{OutputLocation: "s3://bench/athena-results/"}
	require.NoError(t, cfg.applyDefaults())
	assert.Equal(t, "jmeter_analysis", cfg.Database)
	assert.Equal(t, "jmeter_runs_index", cfg.Table)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 30, cfg.MaxPolls)

	var missing Config
	assert.Error(t, missing.applyDefaults())
}

func TestIndexedRunIDs(t *testing.T) {
	api := &fakeQueryAPI{
		states: []types.QueryExecutionState{types.QueryExecutionStateSucceeded},
		pages: [][][]string{
			{{"run_id"}, {"20250110-120000"}, {"20250111-120000"}, {""}},
		},
	}
	client, err := newClient(api, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	ids, err := client.IndexedRunIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.True(t, ids["20250110-120000"])
	require.Len(t, api.started, 1)
	assert.Contains(t, api.started[0], "SELECT DISTINCT run_id FROM jmeter_analysis.jmeter_runs_index")
}

func TestReportSQL(t *testing.T) {
	reports := NewReports("jmeter_analysis.jmeter_runs_index", "s3://bench/results/")

	all := reports.AllRuns(RunFilters{Engine: "trino", ClusterSize: "M"})
	assert.Contains(t, all, "FROM jmeter_analysis.jmeter_runs_index")
	assert.Contains(t, all, "AND engine = 'trino'")
	assert.Contains(t, all, "AND cluster_size = 'M'")
	assert.Contains(t, all, "ORDER BY engine, run_date DESC LIMIT 50")

	variance := reports.VarianceAnalysis()
	assert.Contains(t, variance, "CV < 5%")
	assert.Contains(t, variance, "High variance - investigate")
	assert.Contains(t, variance, "CONCAT('s3://bench/results/engine=', engine")
	assert.NotContains(t, variance, "%!")

	outliers := reports.OutlierDetection()
	assert.Contains(t, outliers, "ABS(p90_z_score) > 1.5")
	assert.Contains(t, outliers, "SUSPICIOUSLY GOOD")
	assert.NotContains(t, outliers, "%!")

	best := reports.BestRuns()
	assert.Contains(t, best, "ROW_NUMBER() OVER")
	assert.Contains(t, best, "ORDER BY p90_latency_sec ASC")

	scaling := reports.ScalingAnalysis()
	assert.Contains(t, scaling, `REGEXP_EXTRACT(run_type, 'concurrency_(\d+)', 1)`)
	assert.Contains(t, scaling, "run_type LIKE 'concurrency_%'")

	slowest := reports.SlowestQueries("trino")
	assert.Contains(t, slowest, "CROSS JOIN UNNEST(top_slowest_queries)")
	assert.Contains(t, slowest, "WHERE engine = 'trino'")
}

func TestRenderTable(t *testing.T) {
	rows := [][]string{
		{"engine", "p90"},
		{"trino", "3.25"},
		{"athena", "7.80"},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, rows, "Runs"))

	out := buf.String()
	assert.Contains(t, out, "Runs")
	assert.Contains(t, out, "engine | p90")
	assert.Contains(t, out, "trino  | 3.25")
	assert.Contains(t, out, "athena | 7.80")
}

func TestRenderTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, nil, "Runs"))
	assert.Equal(t, "No results found\n", buf.String())
}

func TestRenderCSV(t *testing.T) {
	rows := [][]string{{"engine", "p90"}, {"trino", "3.25"}}
	var buf bytes.Buffer
	require.NoError(t, RenderCSV(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"engine,p90", "trino,3.25"}, lines)
}
