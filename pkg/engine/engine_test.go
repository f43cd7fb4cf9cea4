package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/pkg/models"
)

func TestFailureRecordNormalizesTimeouts(t *testing.T) {
	spec := models.QuerySpec{Alias: "TPCDS-1", Text: "SELECT 1"}

	rec := failureRecord(1, spec, time.Now(), errors.New("read tcp: i/o timeout"))
	assert.Equal(t, models.StatusFailure, rec.Status)
	assert.Equal(t, models.TimeoutMessage, rec.Error)

	rec = failureRecord(1, spec, time.Now(), context.DeadlineExceeded)
	assert.Equal(t, models.TimeoutMessage, rec.Error)

	rec = failureRecord(2, spec, time.Now(), errors.New("table not found: store_sales"))
	assert.Equal(t, "table not found: store_sales", rec.Error)
	assert.Equal(t, 2, rec.Sequence)
	assert.True(t, rec.Failed())
}

func TestDuckDBEngineExecute(t *testing.T) {
	eng, err := NewDuckDBEngine(DuckDBConfig{}, zerolog.Nop())
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, "DuckDB", eng.Name())

	rec := eng.Execute(context.Background(), 1, models.QuerySpec{
		Alias: "smoke",
		Text:  "SELECT * FROM range(10)",
	})
	assert.Equal(t, models.StatusSuccess, rec.Status)
	assert.Equal(t, int64(10), rec.Rows)
	assert.Greater(t, rec.ClientTime, time.Duration(0))
}

func TestDuckDBEngineExecuteFailure(t *testing.T) {
	eng, err := NewDuckDBEngine(DuckDBConfig{}, zerolog.Nop())
	require.NoError(t, err)
	defer eng.Close()

	rec := eng.Execute(context.Background(), 1, models.QuerySpec{
		Alias: "bad",
		Text:  "SELECT * FROM missing_table",
	})
	assert.Equal(t, models.StatusFailure, rec.Status)
	assert.NotEmpty(t, rec.Error)
}

func TestNewTrinoEngineValidation(t *testing.T) {
	_, err := NewTrinoEngine(TrinoConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
