package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/models"
)

// AthenaConfig configures the managed query service driver.
type AthenaConfig struct {
	Region        string
	Database      string
	Bucket        string
	WorkGroup     string
	AssumeRoleARN string
	PollInterval  time.Duration
}

// AthenaEngine drives queries through the managed query service using
// the start/poll/results flow. Query results are staged under
// s3://<bucket>/Athena/<epoch>.
type AthenaEngine struct {
	client     *athena.Client
	cfg        AthenaConfig
	stagingDir string
	logger     zerolog.Logger
}

// NewAthenaEngine connects to the query service, optionally assuming a
// role first.
func NewAthenaEngine(ctx context.Context, cfg AthenaConfig, logger zerolog.Logger) (*AthenaEngine, error) {
	if cfg.Database == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "athena database is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "athena staging bucket is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to load AWS config")
	}

	if cfg.AssumeRoleARN != "" {
		stsClient := sts.NewFromConfig(awsCfg)
		awsCfg.Credentials = aws.NewCredentialsCache(
			stscreds.NewAssumeRoleProvider(stsClient, cfg.AssumeRoleARN))
		logger.Info().Str("role_arn", cfg.AssumeRoleARN).Msg("Assuming role for query service access")
	}

	return &AthenaEngine{
		client:     athena.NewFromConfig(awsCfg),
		cfg:        cfg,
		stagingDir: fmt.Sprintf("s3://%s/Athena/%d", cfg.Bucket, time.Now().Unix()),
		logger:     logger.With().Str("component", "athena").Logger(),
	}, nil
}

// Name implements Engine.
func (e *AthenaEngine) Name() string { return "Athena" }

// Execute implements Engine.
func (e *AthenaEngine) Execute(ctx context.Context, seq int, spec models.QuerySpec) models.QueryRecord {
	started := time.Now()
	database := spec.Database
	if database == "" {
		database = e.cfg.Database
	}

	input := &athena.StartQueryExecutionInput{
		QueryString:        aws.String(spec.Sanitized()),
		ClientRequestToken: aws.String(uuid.NewString()),
		QueryExecutionContext: &types.QueryExecutionContext{
			Database: aws.String(database),
		},
		ResultConfiguration: &types.ResultConfiguration{
			OutputLocation: aws.String(e.stagingDir),
		},
	}
	if e.cfg.WorkGroup != "" {
		input.WorkGroup = aws.String(e.cfg.WorkGroup)
	}

	e.logger.Info().Str("alias", spec.Alias).Msg("Executing query")
	out, err := e.client.StartQueryExecution(ctx, input)
	if err != nil {
		return failureRecord(seq, spec, started, err)
	}
	queryID := aws.ToString(out.QueryExecutionId)

	exec, err := e.waitForCompletion(ctx, queryID)
	if err != nil {
		rec := failureRecord(seq, spec, started, err)
		rec.QueryID = queryID
		return rec
	}

	rows, err := e.countResultRows(ctx, queryID)
	if err != nil {
		rec := failureRecord(seq, spec, started, err)
		rec.QueryID = queryID
		return rec
	}

	finished := time.Now()
	rec := models.QueryRecord{
		Sequence:   seq,
		Alias:      spec.Alias,
		Query:      spec.Sanitized(),
		Database:   database,
		QueryID:    queryID,
		Rows:       rows,
		Status:     models.StatusSuccess,
		StartedAt:  started,
		FinishedAt: finished,
		ClientTime: finished.Sub(started),
	}
	if s := exec.Statistics; s != nil {
		if s.DataScannedInBytes != nil {
			gb := float64(*s.DataScannedInBytes) / (1024 * 1024 * 1024)
			rec.ScannedGB = math.Round(gb*1000) / 1000
		}
		if s.EngineExecutionTimeInMillis != nil {
			rec.EngineTime = time.Duration(*s.EngineExecutionTimeInMillis) * time.Millisecond
		}
	}
	return rec
}

func (e *AthenaEngine) waitForCompletion(ctx context.Context, queryID string) (*types.QueryExecution, error) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		out, err := e.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(queryID),
		})
		if err != nil {
			return nil, err
		}
		exec := out.QueryExecution
		switch exec.Status.State {
		case types.QueryExecutionStateSucceeded:
			return exec, nil
		case types.QueryExecutionStateFailed, types.QueryExecutionStateCancelled:
			reason := "query " + string(exec.Status.State)
			if exec.Status.StateChangeReason != nil {
				reason = *exec.Status.StateChangeReason
			}
			return nil, errors.New(errors.CodeQueryFailed, reason)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *AthenaEngine) countResultRows(ctx context.Context, queryID string) (int64, error) {
	var rows int64
	first := true
	paginator := athena.NewGetQueryResultsPaginator(e.client, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(queryID),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		n := int64(len(page.ResultSet.Rows))
		if first && n > 0 {
			n-- // header row
			first = false
		}
		rows += n
	}
	return rows, nil
}

// Close implements Engine.
func (e *AthenaEngine) Close() error { return nil }
