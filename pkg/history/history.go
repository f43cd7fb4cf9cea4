// Package history fetches warehouse query history over the Databricks
// SQL REST API and exports it for cross-checking benchmark runs.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakebench/lakebench/pkg/errors"
)

// DefaultLookback is used when no explicit time range is given.
const DefaultLookback = 6 * time.Hour

// QueryEntry is one record of the query history response.
type QueryEntry struct {
	QueryID      string `json:"query_id"`
	QueryText    string `json:"query_text"`
	Status       string `json:"status"`
	DurationMS   int64  `json:"duration"`
	StartTimeMS  int64  `json:"query_start_time_ms"`
	EndTimeMS    int64  `json:"query_end_time_ms"`
	UserName     string `json:"user_name"`
	WarehouseID  string `json:"warehouse_id"`
	RowsProduced int64  `json:"rows_produced"`
	ErrorMessage string `json:"error_message"`
}

type historyResponse struct {
	Res []QueryEntry `json:"res"`
}

var (
	warehousePattern = regexp.MustCompile(`/warehouses/([a-f0-9]+)`)
	jdbcHostPattern  = regexp.MustCompile(`jdbc:databricks://([^:;/]+)`)
)

// ExtractWarehouseID pulls the warehouse ID out of a JDBC connection
// string's httpPath.
func ExtractWarehouseID(connectionString string) string {
	if m := warehousePattern.FindStringSubmatch(connectionString); m != nil {
		return m[1]
	}
	return ""
}

// ExtractHost derives the https base URL from a JDBC connection string.
func ExtractHost(connectionString string) string {
	if m := jdbcHostPattern.FindStringSubmatch(connectionString); m != nil {
		return "https://" + m[1]
	}
	return ""
}

// Config identifies the warehouse to pull history from.
type Config struct {
	Host        string
	Token       string
	WarehouseID string
	MaxResults  int
}

// Client talks to the query history endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// NewClient validates the config and builds a history client.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "history host is required")
	}
	if cfg.Token == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "history API token is required")
	}
	if cfg.WarehouseID == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "warehouse id is required")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 1000
	}
	// Bare workspace hostnames are accepted; the API is https-only.
	if !strings.Contains(cfg.Host, "://") {
		cfg.Host = "https://" + cfg.Host
	}
	cfg.Host = strings.TrimSuffix(cfg.Host, "/")
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger.With().Str("component", "history").Logger(),
	}, nil
}

// Fetch returns all queries the warehouse started inside the window.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) ([]QueryEntry, error) {
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(c.cfg.MaxResults))
	params.Set("filter_by.query_start_time_range.start_time_ms", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("filter_by.query_start_time_range.end_time_ms", strconv.FormatInt(end.UnixMilli(), 10))
	params.Set("filter_by.warehouse_ids", c.cfg.WarehouseID)

	endpoint := c.cfg.Host + "/api/2.0/sql/history/queries?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "build history request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	c.logger.Info().
		Time("start", start).
		Time("end", end).
		Str("warehouse_id", c.cfg.WarehouseID).
		Msg("fetching query history")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "fetch query history")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Newf(errors.CodeQueryFailed, "query history returned %d: %s", resp.StatusCode, body)
	}

	var out historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "decode query history")
	}
	c.logger.Info().Int("queries", len(out.Res)).Msg("query history fetched")
	return out.Res, nil
}

// testResultTimes is the slice of a test result document carrying the
// wall-clock bounds of a run.
type testResultTimes struct {
	TestStartTime string `json:"test_start_time"`
	TestEndTime   string `json:"test_end_time"`
}

// WindowOptions choose the history time range. Precedence: explicit
// Start/End, then TestResult, then Lookback (default 6h).
type WindowOptions struct {
	Start      string // "2006-01-02 15:04:05"
	End        string
	TestResult []byte // raw test result document
	Lookback   time.Duration
}

// ResolveWindow turns the options into a concrete time range.
func ResolveWindow(opts WindowOptions, now time.Time) (time.Time, time.Time, error) {
	const layout = "2006-01-02 15:04:05"

	if (opts.Start == "") != (opts.End == "") {
		return time.Time{}, time.Time{}, errors.New(errors.CodeInvalidConfig, "start and end times must be provided together")
	}
	if opts.Start != "" {
		start, err := time.Parse(layout, opts.Start)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(err, errors.CodeInvalidConfig, "invalid start time %q", opts.Start)
		}
		end, err := time.Parse(layout, opts.End)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(err, errors.CodeInvalidConfig, "invalid end time %q", opts.End)
		}
		return start, end, nil
	}

	if len(opts.TestResult) > 0 {
		var times testResultTimes
		if err := json.Unmarshal(opts.TestResult, &times); err == nil &&
			times.TestStartTime != "" && times.TestEndTime != "" {
			start, err1 := parseISO(times.TestStartTime)
			end, err2 := parseISO(times.TestEndTime)
			if err1 == nil && err2 == nil {
				return start, end, nil
			}
		}
	}

	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return now.Add(-lookback), now, nil
}

func parseISO(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
