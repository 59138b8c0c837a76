// Package config provides configuration loading and structs for semsearch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides of IndexConfig (PINECONE_API_KEY, ...).
const EnvPrefix = "PINECONE"

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Index     IndexConfig     `yaml:"index"`
	Loader    LoaderConfig    `yaml:"loader"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Server    ServerConfig    `yaml:"server"`
}

// IndexConfig holds the vector index service settings. APIKey, Environment and
// ControllerURL can be overridden from the environment.
type IndexConfig struct {
	Name              string        `yaml:"name" ignored:"true"`
	Dimension         int           `yaml:"dimension" ignored:"true"`
	Metric            string        `yaml:"metric" ignored:"true"`
	APIKey            string        `yaml:"api_key" envconfig:"API_KEY"`
	Environment       string        `yaml:"environment" envconfig:"ENVIRONMENT"`
	ControllerURL     string        `yaml:"controller_url" envconfig:"CONTROLLER_URL"`
	RequestsPerSecond float64       `yaml:"requests_per_second" ignored:"true"`
	RequestTimeout    time.Duration `yaml:"request_timeout" ignored:"true"`
}

// ResolvedControllerURL returns ControllerURL, or the legacy per-environment controller
// when only Environment is set, or the global control plane.
func (c *IndexConfig) ResolvedControllerURL() string {
	if c.ControllerURL != "" {
		return strings.TrimRight(c.ControllerURL, "/")
	}
	if c.Environment != "" {
		return fmt.Sprintf("https://controller.%s.pinecone.io", c.Environment)
	}
	return "https://api.pinecone.io"
}

// LoaderConfig holds bulk load settings.
type LoaderConfig struct {
	BatchSize                   int           `yaml:"batch_size"`
	MaxAttempts                 int           `yaml:"max_attempts"`
	RetryDelay                  time.Duration `yaml:"retry_delay"`
	PreviouslyFailedMaxAttempts int           `yaml:"previously_failed_max_attempts"`
}

// StorageConfig holds local file paths.
type StorageConfig struct {
	SnapshotPath   string `yaml:"snapshot_path"`
	CheckpointPath string `yaml:"checkpoint_path"`
	IndexDataPath  string `yaml:"index_data_path"`
}

// EmbeddingConfig holds ONNX encoder settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// SearchConfig holds query settings for the demo run.
type SearchConfig struct {
	DemoQuery string `yaml:"demo_query"`
	TopK      int    `yaml:"top_k"`
	MaxTopK   int    `yaml:"max_top_k"`
}

// ServerConfig holds the local index server settings.
type ServerConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// Load reads and parses the config file at path, applies environment overrides and defaults,
// and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := finish(&cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv returns the default configuration with environment overrides applied.
// Relative paths resolve against the current directory.
func FromEnv() (*Config, error) {
	var cfg Config
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	if err := finish(&cfg, cwd); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *Config, configDir string) error {
	if err := envconfig.Process(EnvPrefix, &cfg.Index); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}
	cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
	cfg.Storage.CheckpointPath = expandPath(cfg.Storage.CheckpointPath, configDir)
	cfg.Storage.IndexDataPath = expandPath(cfg.Storage.IndexDataPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	return nil
}

// Validate rejects settings that no default can repair.
func Validate(cfg *Config) error {
	if cfg.Loader.BatchSize < 0 {
		return fmt.Errorf("loader.batch_size must be positive, got %d", cfg.Loader.BatchSize)
	}
	if cfg.Loader.RetryDelay < 0 {
		return fmt.Errorf("loader.retry_delay must not be negative")
	}
	if cfg.Embedding.Dimensions != cfg.Index.Dimension {
		return fmt.Errorf("embedding.dimensions (%d) must match index.dimension (%d)",
			cfg.Embedding.Dimensions, cfg.Index.Dimension)
	}
	switch cfg.Index.Metric {
	case "dotproduct", "cosine", "euclidean":
	default:
		return fmt.Errorf("unknown index.metric: %s", cfg.Index.Metric)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
