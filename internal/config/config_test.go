package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "file", cfg.Checkpoint.Backend)
	assert.Equal(t, "./checkpoints", cfg.Checkpoint.Dir)
	assert.Equal(t, 24*time.Hour, cfg.Checkpoint.TTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.LLM.Enabled)
	assert.Equal(t, 5, cfg.Workers.PoolSize)
	assert.Equal(t, 64, cfg.Workers.QueueDepth)
	assert.Equal(t, time.Hour, cfg.Timeouts.RunExecutionTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.NodeExecutionTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MAESTRO_HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CHECKPOINT_BACKEND", "memory")
	t.Setenv("WORKER_POOL_SIZE", "12")
	t.Setenv("TIMEOUT_NODE_EXECUTION", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
	assert.Equal(t, 12, cfg.Workers.PoolSize)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.NodeExecutionTimeout)
	assert.Equal(t, ":9090", cfg.GetHTTPAddr())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.HTTPPort = 0 }},
		{"bad backend", func(c *Config) { c.Checkpoint.Backend = "postgres" }},
		{"file backend without dir", func(c *Config) { c.Checkpoint.Dir = "" }},
		{"redis backend without addr", func(c *Config) {
			c.Checkpoint.Backend = "redis"
			c.Redis.Addr = ""
		}},
		{"llm enabled without key", func(c *Config) { c.LLM.Enabled = true }},
		{"llm enabled with unknown provider", func(c *Config) {
			c.LLM.Enabled = true
			c.LLM.APIKey = "key"
			c.LLM.Provider = "other"
		}},
		{"zero pool size", func(c *Config) { c.Workers.PoolSize = 0 }},
		{"zero queue depth", func(c *Config) { c.Workers.QueueDepth = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsLLMConfig(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.LLM.Enabled = true
	cfg.LLM.APIKey = "key"
	assert.NoError(t, cfg.Validate())
}
