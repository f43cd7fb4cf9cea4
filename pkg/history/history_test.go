package history

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jdbcConnString = "jdbc:databricks://dbc-33354dfe-277f.cloud.databricks.com:443;httpPath=/sql/1.0/warehouses/e020ff73ae69ed5a"

func TestExtractWarehouseID(t *testing.T) {
	assert.Equal(t, "e020ff73ae69ed5a", ExtractWarehouseID(jdbcConnString))
	assert.Equal(t, "", ExtractWarehouseID("jdbc:databricks://host:443"))
}

func TestExtractHost(t *testing.T) {
	assert.Equal(t, "https://dbc-33354dfe-277f.cloud.databricks.com", ExtractHost(jdbcConnString))
	assert.Equal(t, "", ExtractHost("not a jdbc string"))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Token: "t", WarehouseID: "w"}, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewClient(Config{Host: "https://h", WarehouseID: "w"}, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewClient(Config{Host: "https://h", Token: "t"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewClientNormalizesHost(t *testing.T) {
	c, err := NewClient(Config{Host: "dbc-33354dfe-277f.cloud.databricks.com", Token: "t", WarehouseID: "w"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "https://dbc-33354dfe-277f.cloud.databricks.com", c.cfg.Host)

	c, err = NewClient(Config{Host: "http://localhost:8080/", Token: "t", WarehouseID: "w"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.cfg.Host)
}

func TestFetch(t *testing.T) {
	var gotAuth string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/2.0/sql/history/queries", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(historyResponse{Res: []QueryEntry{
			{
				QueryID:      "q-1",
				QueryText:    "select 1\nfrom t",
				Status:       "FINISHED",
				DurationMS:   1234,
				StartTimeMS:  1738333822000,
				EndTimeMS:    1738333823234,
				UserName:     "bench",
				WarehouseID:  "e020ff73ae69ed5a",
				RowsProduced: 7,
			},
		}})
	}))
	defer srv.Close()

	client, err := NewClient(Config{Host: srv.URL, Token: "tok", WarehouseID: "e020ff73ae69ed5a"}, zerolog.Nop())
	require.NoError(t, err)

	start := time.Date(2025, 1, 31, 14, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	entries, err := client.Fetch(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "q-1", entries[0].QueryID)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "1000", gotQuery.Get("max_results"))
	assert.Equal(t, "e020ff73ae69ed5a", gotQuery.Get("filter_by.warehouse_ids"))
	assert.Equal(t,
		[]string{"1738332000000"},
		gotQuery["filter_by.query_start_time_range.start_time_ms"])
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(Config{Host: srv.URL, Token: "bad", WarehouseID: "w"}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestResolveWindowExplicit(t *testing.T) {
	start, end, err := ResolveWindow(WindowOptions{
		Start: "2025-01-31 14:00:00",
		End:   "2025-01-31 15:30:00",
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 14, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 90*time.Minute, end.Sub(start))
}

func TestResolveWindowRequiresBothBounds(t *testing.T) {
	_, _, err := ResolveWindow(WindowOptions{Start: "2025-01-31 14:00:00"}, time.Now())
	assert.Error(t, err)
}

func TestResolveWindowFromTestResult(t *testing.T) {
	doc := []byte(`{"test_start_time": "2025-01-31T14:30:22", "test_end_time": "2025-01-31T15:02:10"}`)
	start, end, err := ResolveWindow(WindowOptions{TestResult: doc}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 14, 30, 22, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 31, 15, 2, 10, 0, time.UTC), end)
}

func TestResolveWindowLookbackFallback(t *testing.T) {
	now := time.Date(2025, 1, 31, 18, 0, 0, 0, time.UTC)

	// malformed test result falls through to the default lookback
	start, end, err := ResolveWindow(WindowOptions{TestResult: []byte(`{}`)}, now)
	require.NoError(t, err)
	assert.Equal(t, now, end)
	assert.Equal(t, DefaultLookback, end.Sub(start))

	start, end, err = ResolveWindow(WindowOptions{Lookback: 24 * time.Hour}, now)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestWriteCSV(t *testing.T) {
	entries := []QueryEntry{
		{
			QueryID:      "q-1",
			QueryText:    "select 1\nfrom t",
			Status:       "FINISHED",
			DurationMS:   1234,
			StartTimeMS:  time.Date(2025, 1, 31, 14, 30, 22, 0, time.UTC).UnixMilli(),
			UserName:     "bench",
			WarehouseID:  "w-1",
			RowsProduced: 7,
		},
		{QueryID: "q-2", Status: "FAILED", ErrorMessage: "table not found"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, entries))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "query_id", rows[0][0])
	assert.Equal(t, "select 1 from t", rows[1][1])
	assert.Equal(t, "2025-01-31 14:30:22", rows[1][4])
	assert.Equal(t, "", rows[1][5])
	assert.Equal(t, "table not found", rows[2][9])
}

func TestCSVFileName(t *testing.T) {
	ts := time.Date(2025, 1, 31, 14, 30, 22, 0, time.UTC)
	assert.Equal(t, "dbr_query_history_20250131_143022.csv", CSVFileName(ts))
}
