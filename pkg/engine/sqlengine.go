package engine

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/rs/zerolog"
	_ "github.com/trinodb/trino-go-client/trino"

	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/models"
)

// sqlEngine executes queries through a database/sql driver. The driver
// does not expose engine-side statistics, so EngineTime and ScannedGB
// stay zero and ClientTime carries the measurement.
type sqlEngine struct {
	name    string
	db      *sql.DB
	timeout time.Duration
	logger  zerolog.Logger
}

// TrinoConfig configures the distributed SQL engine driver.
type TrinoConfig struct {
	Host         string
	Port         int
	User         string
	Catalog      string
	Schema       string
	QueryTimeout time.Duration
}

// NewTrinoEngine connects to a distributed SQL engine coordinator.
func NewTrinoEngine(cfg TrinoConfig, logger zerolog.Logger) (Engine, error) {
	if cfg.Host == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "trino host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.User == "" {
		cfg.User = "lakebench"
	}

	dsn := fmt.Sprintf("http://%s@%s:%d", url.User(cfg.User), cfg.Host, cfg.Port)
	params := url.Values{}
	if cfg.Catalog != "" {
		params.Set("catalog", cfg.Catalog)
	}
	if cfg.Schema != "" {
		params.Set("schema", cfg.Schema)
	}
	if len(params) > 0 {
		dsn += "?" + params.Encode()
	}

	db, err := sql.Open("trino", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to open trino connection")
	}
	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlEngine{
		name:    "Trino",
		db:      db,
		timeout: cfg.QueryTimeout,
		logger:  logger.With().Str("component", "trino").Logger(),
	}, nil
}

// DuckDBConfig configures the local warehouse-style driver.
type DuckDBConfig struct {
	// Path is the database file; empty means in-memory.
	Path         string
	QueryTimeout time.Duration
}

// NewDuckDBEngine opens an embedded database for local smoke runs.
func NewDuckDBEngine(cfg DuckDBConfig, logger zerolog.Logger) (Engine, error) {
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to open duckdb")
	}
	return &sqlEngine{
		name:    "DuckDB",
		db:      db,
		timeout: cfg.QueryTimeout,
		logger:  logger.With().Str("component", "duckdb").Logger(),
	}, nil
}

// Name implements Engine.
func (e *sqlEngine) Name() string { return e.name }

// Execute implements Engine.
func (e *sqlEngine) Execute(ctx context.Context, seq int, spec models.QuerySpec) models.QueryRecord {
	started := time.Now()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Info().Str("alias", spec.Alias).Msg("Executing query")
	rows, err := e.db.QueryContext(ctx, spec.Sanitized())
	if err != nil {
		return failureRecord(seq, spec, started, err)
	}
	defer rows.Close()

	var count int64
	for rows.Next() {
		count++
	}
	if err := rows.Err(); err != nil {
		return failureRecord(seq, spec, started, err)
	}

	finished := time.Now()
	return models.QueryRecord{
		Sequence:   seq,
		Alias:      spec.Alias,
		Query:      spec.Sanitized(),
		Database:   spec.Database,
		// database/sql exposes no engine-side query id; mint one so
		// records stay joinable across reports.
		QueryID:    uuid.NewString(),
		Rows:       count,
		Status:     models.StatusSuccess,
		StartedAt:  started,
		FinishedAt: finished,
		ClientTime: finished.Sub(started),
	}
}

// Close implements Engine.
func (e *sqlEngine) Close() error {
	return e.db.Close()
}
