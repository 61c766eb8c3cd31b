package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Sync struct {
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"sync"`

	Sandbox struct {
		Runtime     string            `yaml:"runtime"`
		Images      map[string]string `yaml:"images"`
		MemoryLimit string            `yaml:"memory_limit"`
		CPULimit    string            `yaml:"cpu_limit"`
	} `yaml:"sandbox"`

	RateLimiting struct {
		Execute struct {
			Enabled     bool          `yaml:"enabled"`
			Window      time.Duration `yaml:"window"`
			MaxRequests int           `yaml:"max_requests"`
		} `yaml:"execute"`

		WebSocket struct {
			MessagesPerSecond   float64 `yaml:"messages_per_second"`
			Burst               int     `yaml:"burst"`
			MaxMessageSizeBytes int64   `yaml:"max_message_size_bytes"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Sync
	if c.Sync.PingInterval <= 0 {
		return fmt.Errorf("sync.ping_interval must be > 0")
	}
	if c.Sync.PongTimeout <= 0 {
		return fmt.Errorf("sync.pong_timeout must be > 0")
	}
	if c.Sync.WriteTimeout <= 0 {
		return fmt.Errorf("sync.write_timeout must be > 0")
	}

	// Sandbox
	if c.Sandbox.Runtime == "" {
		return fmt.Errorf("sandbox.runtime must not be empty")
	}
	if len(c.Sandbox.Images) == 0 {
		return fmt.Errorf("sandbox.images must map at least one language")
	}
	if c.Sandbox.MemoryLimit == "" {
		return fmt.Errorf("sandbox.memory_limit must not be empty")
	}
	if c.Sandbox.CPULimit == "" {
		return fmt.Errorf("sandbox.cpu_limit must not be empty")
	}

	// Rate limiting
	if c.RateLimiting.Execute.Enabled {
		if c.RateLimiting.Execute.Window <= 0 {
			return fmt.Errorf("rate_limiting.execute.window must be > 0 when enabled")
		}
		if c.RateLimiting.Execute.MaxRequests <= 0 {
			return fmt.Errorf("rate_limiting.execute.max_requests must be > 0 when enabled")
		}
	}
	if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
		return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0")
	}
	if c.RateLimiting.WebSocket.Burst <= 0 {
		return fmt.Errorf("rate_limiting.websocket.burst must be > 0")
	}
	if c.RateLimiting.WebSocket.MaxMessageSizeBytes < 0 {
		return fmt.Errorf("rate_limiting.websocket.max_message_size_bytes must be >= 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in (0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":3000"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Sync.PingInterval = 30 * time.Second
	cfg.Sync.PongTimeout = 60 * time.Second
	cfg.Sync.WriteTimeout = 10 * time.Second

	cfg.Sandbox.Runtime = "docker"
	cfg.Sandbox.Images = map[string]string{
		"python":     "python-runner",
		"javascript": "node-runner",
	}
	cfg.Sandbox.MemoryLimit = "256m"
	cfg.Sandbox.CPULimit = "0.5"

	cfg.RateLimiting.Execute.Enabled = true
	cfg.RateLimiting.Execute.Window = time.Minute
	cfg.RateLimiting.Execute.MaxRequests = 5
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 100
	cfg.RateLimiting.WebSocket.Burst = 200
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 64 * 1024

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	return cfg
}

func (c *Config) applyEnvOverrides() {
	// Apply environment variable overrides
	if addr := os.Getenv("SYNCCODE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("SYNCCODE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if runtime := os.Getenv("SYNCCODE_SANDBOX_RUNTIME"); runtime != "" {
		c.Sandbox.Runtime = runtime
	}
	if addr := os.Getenv("SYNCCODE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
}
