// Package config loads the application configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/patentindex/ai"
)

// EmbedderConfig configures the OpenAI-compatible embedding service.
type EmbedderConfig struct {
	Host        string `yaml:"host"`
	Model       string `yaml:"model"`
	TokenEnv    string `yaml:"token_env"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// BuildConfig tunes corpus builds.
type BuildConfig struct {
	Workers      int `yaml:"workers"`
	MaxAttempts  int `yaml:"max_attempts"`
	RetryDelayMs int `yaml:"retry_delay_ms"`

	// RateLimit caps embedding requests per second; 0 disables the limit.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// SearchConfig tunes query serving.
type SearchConfig struct {
	DefaultK    int `yaml:"default_k"`
	TimeoutSecs int `yaml:"timeout_secs"`
}

// ServerConfig configures the HTTP endpoint.
type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DataDir  string         `yaml:"data_dir"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Build    BuildConfig    `yaml:"build"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// AIConfig converts the embedder section into a validated ai.Config.
// The token is read from the environment variable named by TokenEnv.
func (c *AppConfig) AIConfig() (*ai.Config, error) {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(c.Embedder.Host),
		ai.WithEmbeddingModel(c.Embedder.Model),
		ai.WithBatchSize(c.Embedder.BatchSize),
		ai.WithRequestTimeout(time.Duration(c.Embedder.TimeoutSecs) * time.Second),
	}
	if c.Embedder.TokenEnv != "" {
		if token := os.Getenv(c.Embedder.TokenEnv); token != "" {
			opts = append(opts, ai.WithToken(token))
		}
	}
	cfg := ai.NewConfig(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RetryDelay returns the build retry base delay.
func (c *AppConfig) RetryDelay() time.Duration {
	return time.Duration(c.Build.RetryDelayMs) * time.Millisecond
}

// SearchTimeout returns the per-query timeout.
func (c *AppConfig) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSecs) * time.Second
}

func applyDefaults(cfg *AppConfig) {
	defaults := ai.DefaultConfig()
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Embedder.Host == "" {
		cfg.Embedder.Host = defaults.EmbeddingHost
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = defaults.EmbeddingModel
	}
	if cfg.Embedder.TokenEnv == "" {
		cfg.Embedder.TokenEnv = "EMBEDDING_TOKEN"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = defaults.BatchSize
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = int(defaults.RequestTimeout / time.Second)
	}
	if cfg.Build.MaxAttempts == 0 {
		cfg.Build.MaxAttempts = 3
	}
	if cfg.Build.RetryDelayMs == 0 {
		cfg.Build.RetryDelayMs = 500
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 3
	}
	if cfg.Search.TimeoutSecs == 0 {
		cfg.Search.TimeoutSecs = 10
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = []string{"*"}
	}
}
