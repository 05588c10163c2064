package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for the batchflow server
type Config struct {
	// Server configuration
	HTTPPort int    `env:"BATCHFLOW_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"BATCHFLOW_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// GraphFile seeds the shared graph with a record set at startup
	GraphFile string `env:"BATCHFLOW_GRAPH_FILE"`

	// Backends for job events and job states
	EventsBackend  string `env:"BATCHFLOW_EVENTS_BACKEND" envDefault:"memory"`
	StorageBackend string `env:"BATCHFLOW_STORAGE_BACKEND" envDefault:"memory"`

	// Redis configuration
	Redis RedisConfig

	// Engine defaults applied to job submissions
	Engine EngineConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
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

	// Streams and state settings
	ConsumerGroup string        `env:"REDIS_CONSUMER_GROUP" envDefault:"batchflow"`
	ConsumerName  string        `env:"REDIS_CONSUMER_NAME" envDefault:"batchflow-1"`
	StreamMaxLen  int64         `env:"REDIS_STREAM_MAX_LEN" envDefault:"10000"`
	StateTTL      time.Duration `env:"REDIS_STATE_TTL" envDefault:"24h"`
}

// EngineConfig holds the defaults for jobs that do not set them
type EngineConfig struct {
	BatchSize      int `env:"BATCHFLOW_BATCH_SIZE" envDefault:"100"`
	MaxConcurrency int `env:"BATCHFLOW_MAX_CONCURRENCY" envDefault:"25"`
}

// WorkerConfig holds the shared worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"25"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	JobExecutionTimeout time.Duration `env:"TIMEOUT_JOB_EXECUTION" envDefault:"3600s"` // 1 hour
	ShutdownTimeout     time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
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
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	for name, backend := range map[string]string{"events": c.EventsBackend, "storage": c.StorageBackend} {
		if backend != BackendMemory && backend != BackendRedis {
			return fmt.Errorf("invalid %s backend: %s (must be memory or redis)", name, backend)
		}
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Engine.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if c.Engine.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1")
	}
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}

	// Validate log level
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

// UsesRedis reports whether any backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.EventsBackend == BackendRedis || c.StorageBackend == BackendRedis
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
