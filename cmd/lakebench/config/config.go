// Package config provides configuration structures for the lakebench CLI.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Engine names accepted by the run command.
const (
	EngineAthena = "athena"
	EngineTrino  = "trino"
	EngineDuckDB = "duckdb"
)

// Config represents the CLI configuration.
type Config struct {
	// Run settings
	Engine   string `yaml:"engine" json:"engine"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Workload execution
	Workload WorkloadConfig `yaml:"workload" json:"workload"`

	// Engine drivers
	Athena AthenaConfig `yaml:"athena" json:"athena"`
	Trino  TrinoConfig  `yaml:"trino" json:"trino"`
	DuckDB DuckDBConfig `yaml:"duckdb" json:"duckdb"`

	// Results object storage
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Catalog query service
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// Warehouse query history endpoint
	History HistoryConfig `yaml:"history" json:"history"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// WorkloadConfig controls how a query workload is executed.
type WorkloadConfig struct {
	Mode        string        `yaml:"mode" json:"mode"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	Interval    time.Duration `yaml:"interval" json:"interval"`
	Dataset     string        `yaml:"dataset" json:"dataset"`
	QueryColumn string        `yaml:"query_column" json:"query_column"`
	Shuffle     bool          `yaml:"shuffle" json:"shuffle"`
	Seed        int64         `yaml:"seed" json:"seed"`
}

// AthenaConfig configures the managed query service driver.
type AthenaConfig struct {
	Region        string        `yaml:"region" json:"region"`
	Database      string        `yaml:"database" json:"database"`
	Bucket        string        `yaml:"bucket" json:"bucket"`
	WorkGroup     string        `yaml:"workgroup" json:"workgroup"`
	AssumeRoleARN string        `yaml:"assume_role_arn" json:"assume_role_arn"`
	PollInterval  time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// TrinoConfig configures the distributed SQL engine driver.
type TrinoConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	User         string        `yaml:"user" json:"user"`
	Catalog      string        `yaml:"catalog" json:"catalog"`
	Schema       string        `yaml:"schema" json:"schema"`
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`
}

// DuckDBConfig configures the embedded database driver.
type DuckDBConfig struct {
	Path         string        `yaml:"path" json:"path"`
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`
}

// StorageConfig locates run artifacts in object storage. An empty
// Bucket selects a local directory store rooted at LocalDir.
type StorageConfig struct {
	Bucket        string `yaml:"bucket" json:"bucket"`
	Region        string `yaml:"region" json:"region"`
	Endpoint      string `yaml:"endpoint" json:"endpoint"`
	PathStyle     bool   `yaml:"path_style" json:"path_style"`
	LocalDir      string `yaml:"local_dir" json:"local_dir"`
	ResultsPrefix string `yaml:"results_prefix" json:"results_prefix"`
	ResultsURI    string `yaml:"results_uri" json:"results_uri"`
	CatalogBase   string `yaml:"catalog_base" json:"catalog_base"`
}

// CatalogConfig configures the catalog query client.
type CatalogConfig struct {
	Region         string        `yaml:"region" json:"region"`
	Database       string        `yaml:"database" json:"database"`
	Table          string        `yaml:"table" json:"table"`
	OutputLocation string        `yaml:"output_location" json:"output_location"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
	MaxPolls       int           `yaml:"max_polls" json:"max_polls"`
}

// HistoryConfig configures the warehouse query history client.
type HistoryConfig struct {
	Host        string        `yaml:"host" json:"host"`
	Token       string        `yaml:"token" json:"token"`
	WarehouseID string        `yaml:"warehouse_id" json:"warehouse_id"`
	MaxResults  int           `yaml:"max_results" json:"max_results"`
	Lookback    time.Duration `yaml:"lookback" json:"lookback"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	c.Engine = strings.ToLower(c.Engine)

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Workload.Interval < 0 {
		return fmt.Errorf("workload interval must not be negative")
	}

	if c.Storage.ResultsPrefix != "" && !strings.HasSuffix(c.Storage.ResultsPrefix, "/") {
		c.Storage.ResultsPrefix += "/"
	}
	if c.Storage.ResultsURI == "" && c.Storage.Bucket != "" {
		c.Storage.ResultsURI = "s3://" + c.Storage.Bucket + "/" + strings.TrimSuffix(c.Storage.ResultsPrefix, "/")
	}
	c.Storage.ResultsURI = strings.TrimSuffix(c.Storage.ResultsURI, "/")

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}

	if c.History.Lookback <= 0 {
		c.History.Lookback = 6 * time.Hour
	}

	return nil
}
