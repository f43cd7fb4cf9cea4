package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	cfg := &Config{
		Engine: "Athena",
		Storage: StorageConfig{
			Bucket:        "bench-results",
			ResultsPrefix: "jmeter-results",
		},
		Metrics: MetricsConfig{Enabled: true},
	}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, "athena", cfg.Engine)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "jmeter-results/", cfg.Storage.ResultsPrefix)
	assert.Equal(t, "s3://bench-results/jmeter-results", cfg.Storage.ResultsURI)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
	assert.Equal(t, 6*time.Hour, cfg.History.Lookback)
}

func TestValidateRejectsNegativeInterval(t *testing.T) {
	cfg := &Config{Workload: WorkloadConfig{Interval: -time.Second}}
	require.Error(t, cfg.Validate())
}
