package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/pkg/models"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestLocalStorePutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a/b/c.json", []byte(`{"x":1}`)))

	data, err := store.Get(ctx, "a/b/c.json")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(data))

	_, err = store.Get(ctx, "a/missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStoreExistsAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "runs/one.json", []byte("1")))
	require.NoError(t, store.Put(ctx, "runs/two.json", []byte("2")))
	require.NoError(t, store.Put(ctx, "other/three.json", []byte("3")))

	ok, err := store.Exists(ctx, "runs/one.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "runs/none.json")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := store.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/one.json", "runs/two.json"}, keys)
}

func TestLocalStoreUploadDownload(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(src, []byte("h1,h2\n"), 0o644))

	require.NoError(t, store.Upload(ctx, src, "results/report.csv"))

	dst := filepath.Join(t.TempDir(), "downloaded.csv")
	require.NoError(t, store.Download(ctx, "results/report.csv", dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "h1,h2\n", string(data))
}

func TestLocalStoreListPrefixes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "base/run_id=20250101-000000/statistics.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, "base/run_id=20250102-000000/statistics.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, "base/loose.json", []byte("{}")))

	prefixes, err := store.ListPrefixes(ctx, "base/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"base/run_id=20250101-000000/",
		"base/run_id=20250102-000000/",
	}, prefixes)
}

func TestListRunIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	prefix := "engine=trino/cluster_size=M/benchmark=tpcds/run_type=concurrency_4/"

	for _, id := range []string{"20250101-090000", "20250301-090000", "20250201-090000"} {
		require.NoError(t, store.Put(ctx, prefix+"run_id="+id+"/statistics.json", []byte("{}")))
	}
	// a non-run directory is ignored
	require.NoError(t, store.Put(ctx, prefix+"scratch/notes.txt", []byte("x")))

	ids, err := ListRunIDs(ctx, store, prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"20250301-090000", "20250201-090000", "20250101-090000"}, ids)

	latest, err := LatestRunID(ctx, store, prefix)
	require.NoError(t, err)
	assert.Equal(t, "20250301-090000", latest)
}

func TestLatestRunIDEmpty(t *testing.T) {
	store := newTestStore(t)
	_, err := LatestRunID(context.Background(), store, "nothing/here/")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFindLatestStatistics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "p/statistics_20250101.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, "p/statistics_20250301.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, "p/other.json", []byte("{}")))

	key, err := FindLatestStatistics(ctx, store, "p/")
	require.NoError(t, err)
	assert.Equal(t, "p/statistics_20250301.json", key)

	_, err = FindLatestStatistics(ctx, store, "empty/")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLoadRunStatistics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	prefix := "engine=athena/cluster_size=L/benchmark=tpcds/run_type=sequential/"

	stats := models.Statistics{
		"TPCDS-1": {SampleCount: 5, MeanResTime: 1200},
		"Total":   {SampleCount: 5},
	}
	data, err := json.Marshal(stats)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, prefix+"run_id=20250110-120000/statistics.json", data))

	loaded, err := LoadRunStatistics(ctx, store, prefix, "20250110-120000")
	require.NoError(t, err)
	assert.Equal(t, 5, loaded["TPCDS-1"].SampleCount)
	assert.InDelta(t, 1200.0, loaded["TPCDS-1"].MeanResTime, 0.001)
}

func TestLoadRunStatisticsFallback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	prefix := "engine=trino/cluster_size=M/benchmark=tpcds/run_type=sequential/"
	runID := "20250110-120000"

	stats := models.Statistics{"Total": {SampleCount: 3}}
	data, err := json.Marshal(stats)
	require.NoError(t, err)

	// timestamped file only, no canonical statistics.json
	require.NoError(t, store.Put(ctx, prefix+"run_id="+runID+"/statistics_20250110.json", data))

	loaded, err := LoadRunStatistics(ctx, store, prefix, runID)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded["Total"].SampleCount)

	_, err = LoadRunStatistics(ctx, store, prefix, "20250111-120000")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLoadTestResultFallback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	prefix := "engine=e6data/cluster_size=M/benchmark=tpcds/run_type=concurrency_2/"
	runID := "20250110-120000"

	doc := `{"test_configuration":{"connection_hostname":"host-1"},"cluster_config":"{\"cluster_size\":\"M\",\"serverless\":\"Y\"}"}`

	// old-style name only
	require.NoError(t, store.Put(ctx, prefix+"run_id="+runID+"/test_result_"+runID+".json", []byte(doc)))

	tr, err := LoadTestResult(ctx, store, prefix, runID)
	require.NoError(t, err)
	assert.Equal(t, "host-1", tr.TestConfiguration.ConnectionHostname)

	cc := tr.DecodeClusterConfig()
	assert.Equal(t, "M", cc.ClusterSize)
	assert.True(t, cc.IsServerless())

	_, err = LoadTestResult(ctx, store, prefix, "20250111-120000")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestUploadRunArtifacts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rp := models.RunPath{
		Engine:      "trino",
		ClusterSize: "M",
		Benchmark:   "tpcds",
		RunType:     "concurrency_4",
		RunID:       "20250110-120000",
	}
	err := UploadRunArtifacts(ctx, store, "jmeter-results/", rp, map[string][]byte{
		StatisticsFile: []byte("{}"),
		TestResultFile: []byte("{}"),
	})
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "jmeter-results/"+rp.Join(StatisticsFile))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDiscoverRunTypes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := "engine=trino/cluster_size=M/benchmark=tpcds/"

	for _, rt := range []string{"run_type=concurrency_8", "run_type=concurrency_2", "run_type=sequential", "run_type=warmup"} {
		require.NoError(t, store.Put(ctx, base+rt+"/run_id=20250101-000000/statistics.json", []byte("{}")))
	}

	runTypes, err := DiscoverRunTypes(ctx, store, base)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"run_type=sequential",
		"run_type=concurrency_2",
		"run_type=concurrency_8",
	}, runTypes)
}
