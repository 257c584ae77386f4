package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NotEmpty(t, cfg.Log.Level)
	assert.NotZero(t, cfg.Pipeline.MaxWorkers)
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.APIKeys)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	assert.Equal(t, 90.0, cfg.Threshold)
	assert.Empty(t, cfg.Disabled)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, 100, cfg.HistoryLimit)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.TTL)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "tailorflow.db", cfg.DSN())
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "tailorflow", cfg.ServiceName)
	assert.Equal(t, 0.1, cfg.SampleRate)
}
