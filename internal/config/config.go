package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the Maestro scheduling service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"MAESTRO_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Checkpoint store configuration
	Checkpoint CheckpointConfig

	// Redis configuration
	Redis RedisConfig

	// LLM configuration
	LLM LLMConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// CheckpointConfig selects and configures the checkpoint backend
type CheckpointConfig struct {
	// Backend is one of: memory, file, redis
	Backend string        `env:"CHECKPOINT_BACKEND" envDefault:"file"`
	Dir     string        `env:"CHECKPOINT_DIR" envDefault:"./checkpoints"`
	TTL     time.Duration `env:"CHECKPOINT_TTL" envDefault:"24h"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// LLMConfig holds the optional agent executor configuration
type LLMConfig struct {
	Enabled  bool   `env:"LLM_ENABLED" envDefault:"false"`
	Provider string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	APIKey   string `env:"LLM_API_KEY"`

	// Default model settings
	DefaultModel string `env:"LLM_DEFAULT_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	QueueDepth          int           `env:"WORKER_QUEUE_DEPTH" envDefault:"64"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	RunExecutionTimeout  time.Duration `env:"TIMEOUT_RUN_EXECUTION" envDefault:"3600s"` // 1 hour
	NodeExecutionTimeout time.Duration `env:"TIMEOUT_NODE_EXECUTION" envDefault:"300s"` // 5 minutes
	ShutdownTimeout      time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.Checkpoint.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("invalid checkpoint backend: %s (must be memory, file, or redis)", c.Checkpoint.Backend)
	}
	if c.Checkpoint.Backend == "file" && c.Checkpoint.Dir == "" {
		return fmt.Errorf("checkpoint directory is required for the file backend")
	}
	if c.Checkpoint.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required for the redis backend")
	}

	if c.LLM.Enabled {
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM API key is required when the LLM executor is enabled")
		}
		if c.LLM.Provider != "anthropic" {
			return fmt.Errorf("unsupported LLM provider: %s (only 'anthropic' is supported)", c.LLM.Provider)
		}
	}

	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueDepth < 1 {
		return fmt.Errorf("worker queue depth must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
