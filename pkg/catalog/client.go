// Package catalog queries the runs-index table through the managed
// query service and renders canned analytical reports.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lakebench/lakebench/pkg/errors"
)

// queryAPI is the slice of the Athena client the catalog uses.
type queryAPI interface {
	StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, opts ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, opts ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, in *athena.GetQueryResultsInput, opts ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// Config locates the catalog table and result staging area.
type Config struct {
	Region         string
	Database       string
	Table          string
	OutputLocation string
	PollInterval   time.Duration
	MaxPolls       int
}

func (c *Config) applyDefaults() error {
	if c.Database == "" {
		c.Database = "jmeter_analysis"
	}
	if c.Table == "" {
		c.Table = "jmeter_runs_index"
	}
	if c.OutputLocation == "" {
		return errors.New(errors.CodeInvalidConfig, "catalog output location is required")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 30
	}
	return nil
}

// Client executes SQL against the catalog table.
type Client struct {
	api    queryAPI
	cfg    Config
	logger zerolog.Logger
}

// NewClient builds a catalog client from ambient AWS credentials.
func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to load AWS config")
	}
	return newClient(athena.NewFromConfig(awsCfg), cfg, logger)
}

func newClient(api queryAPI, cfg Config, logger zerolog.Logger) (*Client, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &Client{
		api:    api,
		cfg:    cfg,
		logger: logger.With().Str("component", "catalog").Logger(),
	}, nil
}

// QualifiedTable returns database.table for embedding in SQL.
func (c *Client) QualifiedTable() string {
	return c.cfg.Database + "." + c.cfg.Table
}

// Query runs a SQL statement and returns every result row, header
// included, as strings.
func (c *Client) Query(ctx context.Context, sql string) ([][]string, error) {
	start, err := c.api.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString:           aws.String(sql),
		ClientRequestToken:    aws.String(uuid.NewString()),
		QueryExecutionContext: &types.QueryExecutionContext{Database: aws.String(c.cfg.Database)},
		ResultConfiguration:   &types.ResultConfiguration{OutputLocation: aws.String(c.cfg.OutputLocation)},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogFailed, "start catalog query")
	}
	queryID := aws.ToString(start.QueryExecutionId)
	c.logger.Debug().Str("query_id", queryID).Msg("catalog query started")

	if err := c.waitForCompletion(ctx, queryID); err != nil {
		return nil, err
	}
	return c.fetchResults(ctx, queryID)
}

func (c *Client) waitForCompletion(ctx context.Context, queryID string) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.cfg.MaxPolls; attempt++ {
		out, err := c.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(queryID),
		})
		if err != nil {
			return errors.Wrap(err, errors.CodeCatalogFailed, "poll catalog query")
		}
		switch state := out.QueryExecution.Status.State; state {
		case types.QueryExecutionStateSucceeded:
			return nil
		case types.QueryExecutionStateFailed, types.QueryExecutionStateCancelled:
			reason := "unknown"
			if out.QueryExecution.Status.StateChangeReason != nil {
				reason = *out.QueryExecution.Status.StateChangeReason
			}
			return errors.Newf(errors.CodeCatalogFailed, "catalog query %s: %s", state, reason)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.CodeCanceled, "catalog query canceled")
		case <-ticker.C:
		}
	}
	return errors.Newf(errors.CodeDeadlineExceeded, "catalog query %s timed out after %d polls", queryID, c.cfg.MaxPolls)
}

func (c *Client) fetchResults(ctx context.Context, queryID string) ([][]string, error) {
	var rows [][]string
	var nextToken *string
	for {
		out, err := c.api.GetQueryResults(ctx, &athena.GetQueryResultsInput{
			QueryExecutionId: aws.String(queryID),
			NextToken:        nextToken,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeCatalogFailed, "fetch catalog results")
		}
		for _, row := range out.ResultSet.Rows {
			cols := make([]string, len(row.Data))
			for i, d := range row.Data {
				cols[i] = aws.ToString(d.VarCharValue)
			}
			rows = append(rows, cols)
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return rows, nil
}

// IndexedRunIDs returns every run_id present in the catalog table.
// Satisfies index.IndexedRunSource.
func (c *Client) IndexedRunIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := c.Query(ctx, fmt.Sprintf("SELECT DISTINCT run_id FROM %s", c.QualifiedTable()))
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for i, row := range rows {
		if i == 0 || len(row) == 0 || row[0] == "" {
			continue
		}
		ids[row[0]] = true
	}
	return ids, nil
}
