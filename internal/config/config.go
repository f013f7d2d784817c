// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"` // bearer key guarding the jobs API
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // default cache TTL
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	GeminiKey       string `yaml:"gemini_key"`
	DefaultModel    string `yaml:"default_model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
}

type QueueConfig struct {
	Workers           int           `yaml:"workers"`            // concurrent job executors
	PollInterval      time.Duration `yaml:"poll_interval"`      // dispatch poll cadence
	StartsPerMinute   int           `yaml:"starts_per_minute"`  // rolling-window job start cap
	MaxAttempts       int           `yaml:"max_attempts"`       // per-job AI call attempts
	InitialDelay      time.Duration `yaml:"initial_delay"`      // first retry backoff
	MaxDelay          time.Duration `yaml:"max_delay"`          // retry backoff ceiling
	JobTimeout        time.Duration `yaml:"job_timeout"`        // per-routine deadline
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`   // terminal-job purge cadence
	TerminalRetention time.Duration `yaml:"terminal_retention"` // age before terminal jobs are purged
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Queue    QueueConfig    `yaml:"queue"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) ApplyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 3
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = 500 * time.Millisecond
	}
	if cfg.Queue.StartsPerMinute <= 0 {
		cfg.Queue.StartsPerMinute = 30
	}
	if cfg.Queue.MaxAttempts <= 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.InitialDelay <= 0 {
		cfg.Queue.InitialDelay = 2 * time.Second
	}
	if cfg.Queue.MaxDelay <= 0 {
		cfg.Queue.MaxDelay = 30 * time.Second
	}
	if cfg.Queue.JobTimeout <= 0 {
		cfg.Queue.JobTimeout = 2 * time.Minute
	}
	if cfg.Queue.CleanupInterval <= 0 {
		cfg.Queue.CleanupInterval = time.Hour
	}
	if cfg.Queue.TerminalRetention <= 0 {
		cfg.Queue.TerminalRetention = 24 * time.Hour
	}
}
