// 配置加载器测试。
package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 90.0, cfg.Pipeline.Threshold)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  api_keys: ["k1", "k2"]

pipeline:
  threshold: 75.5
  disabled: ["validation"]
  max_workers: 8
  collaborator_timeout: 5s

redis:
  enabled: true
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1
  ttl: 1h

database:
  driver: "postgres"
  name: "tailorflow"

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)

	assert.Equal(t, 75.5, cfg.Pipeline.Threshold)
	assert.Equal(t, []string{"validation"}, cfg.Pipeline.Disabled)
	assert.Equal(t, 8, cfg.Pipeline.MaxWorkers)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.CollaboratorTimeout)
	// 未出现在 YAML 中的字段保留默认值
	assert.Equal(t, 16, cfg.Pipeline.QueueSize)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("TAILORFLOW_SERVER_HTTP_PORT", "7777")
	t.Setenv("TAILORFLOW_SERVER_API_KEYS", "a, b,,c")
	t.Setenv("TAILORFLOW_PIPELINE_THRESHOLD", "85")
	t.Setenv("TAILORFLOW_PIPELINE_DISABLED", "validation,refinement")
	t.Setenv("TAILORFLOW_PIPELINE_RUN_TIMEOUT", "45s")
	t.Setenv("TAILORFLOW_REDIS_ENABLED", "true")
	t.Setenv("TAILORFLOW_REDIS_ADDR", "env-redis:6379")
	t.Setenv("TAILORFLOW_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Server.APIKeys)
	assert.Equal(t, 85.0, cfg.Pipeline.Threshold)
	assert.Equal(t, []string{"validation", "refinement"}, cfg.Pipeline.Disabled)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.RunTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
server:
  http_port: 8888
pipeline:
  threshold: 70
  max_workers: 3
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	t.Setenv("TAILORFLOW_SERVER_HTTP_PORT", "9999")
	t.Setenv("TAILORFLOW_PIPELINE_THRESHOLD", "95")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, 95.0, cfg.Pipeline.Threshold)
	assert.Equal(t, 3, cfg.Pipeline.MaxWorkers)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	t.Setenv("MYAPP_TELEMETRY_SERVICE_NAME", "custom")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "custom", cfg.Telemetry.ServiceName)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("TAILORFLOW_PIPELINE_RUN_TIMEOUT", "soon")

	_, err := NewLoader().Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "TAILORFLOW_PIPELINE_RUN_TIMEOUT")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("TAILORFLOW_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Server.HTTPPort < 1024 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/path/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: [invalid\n"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "invalid HTTP port", modify: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: true},
		{name: "negative rate limit", modify: func(c *Config) { c.Server.RateLimitRPS = -1 }, wantErr: true},
		{name: "threshold above 100", modify: func(c *Config) { c.Pipeline.Threshold = 100.5 }, wantErr: true},
		{name: "threshold NaN", modify: func(c *Config) { c.Pipeline.Threshold = math.NaN() }, wantErr: true},
		{name: "threshold boundary", modify: func(c *Config) { c.Pipeline.Threshold = 100 }},
		{name: "no workers", modify: func(c *Config) { c.Pipeline.MaxWorkers = 0 }, wantErr: true},
		{
			name: "redis enabled without addr",
			modify: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Addr = ""
			},
			wantErr: true,
		},
		{name: "unknown database driver", modify: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{
			name: "unknown driver ignored when disabled",
			modify: func(c *Config) {
				c.Database.Enabled = false
				c.Database.Driver = "mysql"
			},
		},
		{name: "sample rate above 1", modify: func(c *Config) { c.Telemetry.SampleRate = 2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8081\n"), 0o644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 8081, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: [yaml"), 0o644))

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("TAILORFLOW_LOG_FORMAT", "console")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Log.Format)
}
