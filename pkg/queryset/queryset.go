// Package queryset loads and rewrites CSV query workloads.
package queryset

import (
	"encoding/csv"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/models"
)

// Column names recognized in workload CSV headers. The query column is
// configurable; alias and database fall back to lowercase forms.
const (
	DefaultQueryColumn = "QUERY"
	AliasColumn        = "QUERY_ALIAS"
)

// LoadOptions controls workload loading.
type LoadOptions struct {
	// QueryColumn overrides the header of the query text column.
	QueryColumn string
	// Database is assigned to every query that has no database column.
	Database string
	// Shuffle randomizes query order with the given source.
	Shuffle *rand.Rand
}

// LoadFile reads a workload CSV from disk.
func LoadFile(path string, opts LoadOptions) ([]models.QuerySpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidWorkload, "open workload %s", path)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load reads a workload CSV. The header row must contain a query
// column; aliases default to Q<row> when absent.
func Load(r io.Reader, opts LoadOptions) ([]models.QuerySpec, error) {
	queryCol := opts.QueryColumn
	if queryCol == "" {
		queryCol = DefaultQueryColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidWorkload, "read workload header")
	}

	queryIdx := findColumn(header, queryCol, "query", "sql", "statement")
	if queryIdx < 0 {
		return nil, errors.Newf(errors.CodeInvalidWorkload, "no %s column in workload header", queryCol)
	}
	aliasIdx := findColumn(header, AliasColumn, "query_alias_name", "alias")
	dbIdx := findColumn(header, "DATABASE", "db_name")

	var specs []models.QuerySpec
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidWorkload, "read workload row %d", row+1)
		}
		row++

		spec := models.QuerySpec{Database: opts.Database}
		if queryIdx < len(record) {
			spec.Text = record[queryIdx]
		}
		if aliasIdx >= 0 && aliasIdx < len(record) {
			spec.Alias = record[aliasIdx]
		}
		if spec.Alias == "" {
			spec.Alias = "Q" + strconv.Itoa(row)
		}
		if dbIdx >= 0 && dbIdx < len(record) && record[dbIdx] != "" {
			spec.Database = record[dbIdx]
		}
		if strings.TrimSpace(spec.Text) == "" {
			continue
		}
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, errors.ErrEmptyWorkload
	}

	if opts.Shuffle != nil {
		opts.Shuffle.Shuffle(len(specs), func(i, j int) {
			specs[i], specs[j] = specs[j], specs[i]
		})
	}
	return specs, nil
}

func findColumn(header []string, names ...string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}
