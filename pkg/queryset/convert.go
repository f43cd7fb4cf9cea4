package queryset

import (
	"encoding/csv"
	"io"
	"regexp"
	"strings"

	"github.com/lakebench/lakebench/pkg/errors"
)

// ReservedKeywords are column names that must be quoted when a query is
// sent over the HTTP/JSON execution path.
var ReservedKeywords = []string{"year", "week", "month", "quarter", "period", "date", "format", "variant"}

// ConvertOptions controls SQL conversion for the HTTP/JSON path.
type ConvertOptions struct {
	// RemoveHints strips /*+ ... */ optimizer hints.
	RemoveHints bool
	// EscapeQuotes escapes double quotes for embedding in JSON bodies.
	EscapeQuotes bool
}

var (
	cteWithPattern  = regexp.MustCompile(`(?i)\bwith\s+(\w+)\s*\(`)
	cteCommaPattern = regexp.MustCompile(`(?i),\s*(\w+)\s*\((\s*select\b)`)
	schemaGlobal    = regexp.MustCompile(`(?i)\.global\.`)
	schemaDefault   = regexp.MustCompile(`(?i)\.default\.`)
	concatPattern   = regexp.MustCompile(`(?i)\bconcat\s*\(`)
	hintPattern     = regexp.MustCompile(`/\*\+[^*]*\*/`)
	spacesPattern   = regexp.MustCompile(`\s+`)
)

// per-keyword patterns built once
var keywordPatterns = buildKeywordPatterns()

type keywordPattern struct {
	dotted       *regexp.Regexp // .year possibly followed by (
	afterSelect  *regexp.Regexp
	betweenComma *regexp.Regexp
	beforeFrom   *regexp.Regexp
}

func buildKeywordPatterns() map[string]keywordPattern {
	m := make(map[string]keywordPattern, len(ReservedKeywords))
	for _, kw := range ReservedKeywords {
		m[kw] = keywordPattern{
			dotted:       regexp.MustCompile(`(?i)\.(` + kw + `)\b(\()?`),
			afterSelect:  regexp.MustCompile(`(?i)\b(select\s+)(` + kw + `)\b`),
			betweenComma: regexp.MustCompile(`(?i)(,\s*)(` + kw + `)(\s*,)`),
			beforeFrom:   regexp.MustCompile(`(?i)(,\s*)(` + kw + `)(\s+from\b)`),
		}
	}
	return m
}

// ConvertQuery rewrites one query into the single-line JSON-safe form:
// whitespace collapsed, CTEs repaired with a missing AS, backticks to
// double quotes, reserved keywords and global/default schema names
// quoted, concat normalized.
func ConvertQuery(query string, opts ConvertOptions) string {
	q := strings.Join(strings.Fields(query), " ")

	q = cteWithPattern.ReplaceAllString(q, "with $1 as (")
	q = cteCommaPattern.ReplaceAllString(q, ", $1 as ($2")

	q = strings.ReplaceAll(q, "`", `"`)

	q = schemaGlobal.ReplaceAllString(q, `."global".`)
	q = schemaDefault.ReplaceAllString(q, `."default".`)

	for _, kw := range ReservedKeywords {
		p := keywordPatterns[kw]
		q = p.dotted.ReplaceAllStringFunc(q, func(m string) string {
			// a trailing paren means a function call, leave it alone
			if strings.HasSuffix(m, "(") {
				return m
			}
			sub := p.dotted.FindStringSubmatch(m)
			return `."` + sub[1] + `"`
		})
		q = p.afterSelect.ReplaceAllString(q, `$1"$2"`)
		q = p.betweenComma.ReplaceAllString(q, `$1"$2"$3`)
		q = p.beforeFrom.ReplaceAllString(q, `$1"$2"$3`)
	}

	q = concatPattern.ReplaceAllString(q, "Concat(")

	if opts.RemoveHints {
		q = hintPattern.ReplaceAllString(q, "")
		q = strings.TrimSpace(spacesPattern.ReplaceAllString(q, " "))
	}

	if opts.EscapeQuotes {
		q = strings.ReplaceAll(q, `"`, `\"`)
	}
	return q
}

// ConvertCSV rewrites the query column of a workload CSV in place,
// preserving every other column. Rows without a recognizable query
// column pass through untouched.
func ConvertCSV(r io.Reader, w io.Writer, opts ConvertOptions) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header, err := reader.Read()
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInvalidWorkload, "read workload header")
	}
	if err := writer.Write(header); err != nil {
		return 0, errors.Wrap(err, errors.CodeReportFailed, "write header")
	}

	queryIdx := findColumn(header, DefaultQueryColumn, "sql", "statement")
	converted := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return converted, errors.Wrap(err, errors.CodeInvalidWorkload, "read workload row")
		}
		if queryIdx >= 0 && queryIdx < len(record) {
			record[queryIdx] = ConvertQuery(record[queryIdx], opts)
			converted++
		}
		if err := writer.Write(record); err != nil {
			return converted, errors.Wrap(err, errors.CodeReportFailed, "write row")
		}
	}
	return converted, writer.Error()
}
