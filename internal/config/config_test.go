package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets variables envconfig falls back to when the prefixed
// name is absent, restoring them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HOST", "PORT", "LEVEL", "OUTPUT", "SEED", "TOPIC", "BROKERS", "ENABLED",
		"ENVIRONMENT", "SERVICE_NAME", "TREES", "TEST_SIZE", ConfigFileEnv,
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(42), cfg.Pipeline.Seed)
	assert.Equal(t, 4, cfg.Pipeline.Clusters)
	assert.Equal(t, 10, cfg.Pipeline.KMeansInit)
	assert.Equal(t, 300, cfg.Pipeline.KMeansMaxIter)
	assert.Equal(t, 0.2, cfg.Pipeline.TestSize)
	assert.Equal(t, 100, cfg.Pipeline.Trees)
	assert.Equal(t, 100, cfg.Pipeline.SampleRows)
	assert.Equal(t, "borrower_risk_report.csv", cfg.Export.CSVFileName)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LRS_SERVER_PORT", "9090")
	t.Setenv("LRS_PIPELINE_SEED", "7")
	t.Setenv("LRS_PIPELINE_TEST_SIZE", "0.25")
	t.Setenv("LRS_LOGGING_LEVEL", "debug")
	t.Setenv("LRS_SECURITY_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("LRS_SECURITY_RATE_LIMIT_RPS", "5")
	t.Setenv("LRS_WEBSOCKET_PING_PERIOD", "10s")
	t.Setenv("LRS_PIPELINE_STEP_TIMEOUTS", "classify_risk:10m,segment_borrowers:90s")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(7), cfg.Pipeline.Seed)
	assert.Equal(t, 0.25, cfg.Pipeline.TestSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 5.0, cfg.Security.RateLimit.RPS)
	assert.Equal(t, 10*time.Second, cfg.WebSocket.PingPeriod)
	assert.Equal(t, map[string]time.Duration{
		"classify_risk":     10 * time.Minute,
		"segment_borrowers": 90 * time.Second,
	}, cfg.Pipeline.StepTimeouts)
	// untouched fields keep defaults
	assert.Equal(t, 100, cfg.Pipeline.Trees)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
  read_timeout: 5s
pipeline:
  seed: 11
  trees: 50
  step_timeouts:
    classify_risk: 2m
kafka:
  enabled: true
  brokers: ["localhost:9092"]
  topic: risk
`), 0o644))
	t.Setenv("LRS_PIPELINE_SEED", "13")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(13), cfg.Pipeline.Seed)
	assert.Equal(t, 50, cfg.Pipeline.Trees)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 300, cfg.Pipeline.KMeansMaxIter)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.StepTimeouts["classify_risk"])
}

func TestLoad_ConfigFileEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  sample_rows: 500\n"), 0o644))
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Pipeline.SampleRows)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"clusters must be four", func(c *Config) { c.Pipeline.Clusters = 3 }},
		{"test size above one", func(c *Config) { c.Pipeline.TestSize = 1.5 }},
		{"no trees", func(c *Config) { c.Pipeline.Trees = 0 }},
		{"sample rows too small", func(c *Config) { c.Pipeline.SampleRows = 5 }},
		{"timeout for unknown step", func(c *Config) {
			c.Pipeline.StepTimeouts = map[string]time.Duration{"train": time.Minute}
		}},
		{"zero step timeout", func(c *Config) {
			c.Pipeline.StepTimeouts = map[string]time.Duration{"classify_risk": 0}
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad trace exporter", func(c *Config) { c.Telemetry.TraceExporter = "jaeger" }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }},
		{"no origins", func(c *Config) { c.Security.AllowedOrigins = nil }},
		{"pong before ping", func(c *Config) { c.WebSocket.PongWait = time.Second }},
		{"file output without path", func(c *Config) {
			c.Logging.Output = "file"
			c.Logging.FilePath = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_NormalisesWarning(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warning"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "warn", cfg.Logging.Level)
}
