package queryset

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/pkg/errors"
)

func TestLoad(t *testing.T) {
	csvData := `QUERY,QUERY_ALIAS
"SELECT count(*) FROM store_sales",TPCDS-1
"SELECT *
FROM web_sales",TPCDS-2
`
	specs, err := Load(strings.NewReader(csvData), LoadOptions{Database: "tpcds"})
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, "TPCDS-1", specs[0].Alias)
	assert.Equal(t, "SELECT count(*) FROM store_sales", specs[0].Text)
	assert.Equal(t, "tpcds", specs[0].Database)

	assert.Equal(t, "TPCDS-2", specs[1].Alias)
	assert.Equal(t, "SELECT * FROM web_sales", specs[1].Sanitized())
}

func TestLoadLowercaseFallback(t *testing.T) {
	csvData := "query,alias\nSELECT 1,q1\n"
	specs, err := Load(strings.NewReader(csvData), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "q1", specs[0].Alias)
}

func TestLoadCustomQueryColumn(t *testing.T) {
	csvData := "SQL_TEXT,QUERY_ALIAS\nSELECT 1,q1\n"
	specs, err := Load(strings.NewReader(csvData), LoadOptions{QueryColumn: "SQL_TEXT"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", specs[0].Text)
}

func TestLoadMissingAliasGetsDefault(t *testing.T) {
	csvData := "QUERY\nSELECT 1\nSELECT 2\n"
	specs, err := Load(strings.NewReader(csvData), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Q1", specs[0].Alias)
	assert.Equal(t, "Q2", specs[1].Alias)
}

func TestLoadSkipsBlankRows(t *testing.T) {
	csvData := "QUERY,QUERY_ALIAS\nSELECT 1,q1\n\"\",empty\n"
	specs, err := Load(strings.NewReader(csvData), LoadOptions{})
	require.NoError(t, err)
	assert.Len(t, specs, 1)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader("NOT_A_QUERY_COL\nfoo\n"), LoadOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidWorkload, errors.GetCode(err))

	_, err = Load(strings.NewReader("QUERY,QUERY_ALIAS\n"), LoadOptions{})
	assert.ErrorIs(t, err, errors.ErrEmptyWorkload)
}

func TestLoadShuffleIsDeterministicPerSeed(t *testing.T) {
	csvData := "QUERY,QUERY_ALIAS\nSELECT 1,q1\nSELECT 2,q2\nSELECT 3,q3\nSELECT 4,q4\n"

	first, err := Load(strings.NewReader(csvData), LoadOptions{Shuffle: rand.New(rand.NewSource(7))})
	require.NoError(t, err)
	second, err := Load(strings.NewReader(csvData), LoadOptions{Shuffle: rand.New(rand.NewSource(7))})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestConvertQuery(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		opts     ConvertOptions
		expected string
	}{
		{
			name:     "multiline collapse",
			in:       "SELECT 1\nFROM   t",
			expected: "SELECT 1 FROM t",
		},
		{
			name:     "cte missing as after with",
			in:       "with cte1 (select 1) select * from cte1",
			expected: "with cte1 as (select 1) select * from cte1",
		},
		{
			name:     "cte missing as after comma",
			in:       "with a as (select 1), b (select 2) select * from b",
			expected: "with a as (select 1), b as (select 2) select * from b",
		},
		{
			name:     "backticks to double quotes",
			in:       "select `col` from t",
			expected: `select "col" from t`,
		},
		{
			name:     "schema names quoted",
			in:       "select * from cat.global.t join cat.default.u on 1=1",
			expected: `select * from cat."global".t join cat."default".u on 1=1`,
		},
		{
			name:     "reserved keyword column quoted",
			in:       "select t.year from t",
			expected: `select t."year" from t`,
		},
		{
			name:     "keyword function call untouched",
			in:       "select min(date(x)) from t",
			expected: "select min(date(x)) from t",
		},
		{
			name:     "dotted keyword function call untouched",
			in:       "select f.date(x) from t",
			expected: "select f.date(x) from t",
		},
		{
			name:     "keyword after select quoted",
			in:       "select year from t",
			expected: `select "year" from t`,
		},
		{
			name:     "keyword before from quoted",
			in:       "select a, month from t",
			expected: `select a, "month" from t`,
		},
		{
			name:     "concat casing",
			in:       "select concat(a, b) from t",
			expected: "select Concat(a, b) from t",
		},
		{
			name:     "hints removed",
			in:       "select /*+ BROADCAST(t) */ * from t",
			opts:     ConvertOptions{RemoveHints: true},
			expected: "select * from t",
		},
		{
			name:     "hints kept by default",
			in:       "select /*+ BROADCAST(t) */ * from t",
			expected: "select /*+ BROADCAST(t) */ * from t",
		},
		{
			name:     "quotes escaped for json",
			in:       "select `col` from t",
			opts:     ConvertOptions{EscapeQuotes: true},
			expected: `select \"col\" from t`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConvertQuery(tt.in, tt.opts))
		})
	}
}

func TestConvertCSV(t *testing.T) {
	in := "QUERY,QUERY_ALIAS\n\"select `a`\nfrom t\",q1\n"
	var out bytes.Buffer

	n, err := ConvertCSV(strings.NewReader(in), &out, ConvertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Contains(t, out.String(), `select ""a"" from t`) // CSV-escaped double quotes
	assert.Contains(t, out.String(), "QUERY,QUERY_ALIAS")
}
