// 配置加载器与校验测试。
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Model.Path = "/models/classifier.onnx"
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soundsortd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8888
  max_in_flight: 16
  api_keys: ["k1", "k2"]
scheduler:
  batch_size: 32
  max_wait: 250ms
model:
  path: /models/ast.onnx
  num_classes: 527
  intra_op_threads: 4
cache:
  enabled: true
  addr: redis:6379
  ttl: 1h
log:
  level: debug
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, int64(16), cfg.Server.MaxInFlight)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, 32, cfg.Scheduler.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.MaxWait)
	assert.Equal(t, "/models/ast.onnx", cfg.Model.Path)
	assert.Equal(t, 4, cfg.Model.IntraOpThreads)
	assert.True(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Cache.TLS)
	assert.Equal(t, "redis:6379", cfg.Cache.Addr)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未出现的字段保留默认值
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, "fbank", cfg.Model.InputName)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "scheduler: [unclosed")
	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  batch_size: 4\n")
	t.Setenv("SOUNDSORT_SCHEDULER_BATCH_SIZE", "64")
	t.Setenv("SOUNDSORT_SCHEDULER_MAX_WAIT", "20ms")
	t.Setenv("SOUNDSORT_MODEL_PATH", "/env/model.onnx")
	t.Setenv("SOUNDSORT_SERVER_API_KEYS", "a, b,,c")
	t.Setenv("SOUNDSORT_SERVER_RATE_LIMIT_RPS", "12.5")
	t.Setenv("SOUNDSORT_CACHE_ENABLED", "true")
	t.Setenv("SOUNDSORT_CACHE_TLS", "true")
	t.Setenv("SOUNDSORT_TELEMETRY_SAMPLE_RATE", "1")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Scheduler.BatchSize)
	assert.Equal(t, 20*time.Millisecond, cfg.Scheduler.MaxWait)
	assert.Equal(t, "/env/model.onnx", cfg.Model.Path)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Server.APIKeys)
	assert.Equal(t, 12.5, cfg.Server.RateLimitRPS)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("SORTER_SERVER_HTTP_PORT", "7070")
	t.Setenv("SOUNDSORT_SERVER_HTTP_PORT", "6060")

	cfg, err := NewLoader().WithEnvPrefix("SORTER").Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.HTTPPort)
}

func TestLoader_BadEnvValue(t *testing.T) {
	t.Setenv("SOUNDSORT_SCHEDULER_MAX_WAIT", "soon")
	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOUNDSORT_SCHEDULER_MAX_WAIT")
}

func TestLoader_Validators(t *testing.T) {
	sentinel := errors.New("rejected")
	_, err := NewLoader().WithValidator(func(*Config) error { return sentinel }).Load()
	assert.ErrorIs(t, err, sentinel)

	_, err = NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err, "defaults have no model path")
	assert.Contains(t, err.Error(), "model.path")

	t.Setenv("SOUNDSORT_MODEL_PATH", "/m.onnx")
	_, err = NewLoader().WithValidator((*Config).Validate).Load()
	assert.NoError(t, err)
}

func TestMustLoad(t *testing.T) {
	path := writeConfig(t, "model:\n  path: /m.onnx\n")
	assert.NotPanics(t, func() { MustLoad(path) })

	bad := writeConfig(t, "scheduler:\n  batch_size: 0\nmodel:\n  path: /m.onnx\n")
	assert.Panics(t, func() { MustLoad(bad) })
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero batch size", mutate: func(c *Config) { c.Scheduler.BatchSize = 0 }, wantErr: "scheduler.batch_size"},
		{name: "zero max wait", mutate: func(c *Config) { c.Scheduler.MaxWait = 0 }, wantErr: "scheduler.max_wait"},
		{name: "negative max wait", mutate: func(c *Config) { c.Scheduler.MaxWait = -time.Second }, wantErr: "scheduler.max_wait"},
		{name: "http port", mutate: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: "server.http_port"},
		{name: "metrics port", mutate: func(c *Config) { c.Server.MetricsPort = 0 }, wantErr: "server.metrics_port"},
		{name: "same ports", mutate: func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }, wantErr: "must differ"},
		{name: "body limit", mutate: func(c *Config) { c.Server.MaxBodyBytes = 0 }, wantErr: "max_body_bytes"},
		{name: "burst", mutate: func(c *Config) { c.Server.RateLimitRPS = 5; c.Server.RateLimitBurst = 0 }, wantErr: "rate_limit_burst"},
		{name: "model path", mutate: func(c *Config) { c.Model.Path = "" }, wantErr: "model.path"},
		{name: "too few classes", mutate: func(c *Config) { c.Model.NumClasses = 513 }, wantErr: "model.num_classes"},
		{name: "negative threads", mutate: func(c *Config) { c.Model.IntraOpThreads = -1 }, wantErr: "intra_op_threads"},
		{name: "cache without addr", mutate: func(c *Config) { c.Cache.Enabled = true; c.Cache.Addr = "" }, wantErr: "cache.addr"},
		{name: "disabled cache ignores addr", mutate: func(c *Config) { c.Cache.Addr = "" }},
		{name: "sample rate", mutate: func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.SampleRate = 2 }, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateAggregates(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.BatchSize = 0
	cfg.Scheduler.MaxWait = 0
	cfg.Model.NumClasses = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.batch_size")
	assert.Contains(t, err.Error(), "scheduler.max_wait")
	assert.Contains(t, err.Error(), "model.num_classes")
}
