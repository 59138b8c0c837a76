package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}

func TestLoad(t *testing.T) {
	unsetEnv(t, "PINECONE_API_KEY")
	unsetEnv(t, "PINECONE_ENVIRONMENT")
	path := writeConfig(t, `
index:
  name: "quora"
  api_key: "file-key"
loader:
  batch_size: 50
  retry_delay: 2s
storage:
  snapshot_path: "./data/snap.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Index.Name != "quora" {
		t.Errorf("index name: got %s", cfg.Index.Name)
	}
	if cfg.Loader.BatchSize != 50 {
		t.Errorf("batch size: got %d", cfg.Loader.BatchSize)
	}
	if cfg.Loader.RetryDelay != 2*time.Second {
		t.Errorf("retry delay: got %s", cfg.Loader.RetryDelay)
	}
	if cfg.Index.APIKey != "file-key" {
		t.Errorf("api key: got %q", cfg.Index.APIKey)
	}
	wantSnap := filepath.Join(filepath.Dir(path), "data", "snap.db")
	if cfg.Storage.SnapshotPath != wantSnap {
		t.Errorf("snapshot_path = %s, want %s", cfg.Storage.SnapshotPath, wantSnap)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_envOverridesFile(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "env-key")
	t.Setenv("PINECONE_ENVIRONMENT", "us-west1-gcp")
	path := writeConfig(t, `
index:
  api_key: "file-key"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Index.APIKey != "env-key" {
		t.Errorf("api key: got %q, want env-key", cfg.Index.APIKey)
	}
	if got := cfg.Index.ResolvedControllerURL(); got != "https://controller.us-west1-gcp.pinecone.io" {
		t.Errorf("controller url: got %s", got)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_dimensionMismatch(t *testing.T) {
	path := writeConfig(t, `
index:
  dimension: 768
embedding:
  dimensions: 384
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error when embedding and index dimensions differ")
	}
}

func TestLoad_unknownMetric(t *testing.T) {
	path := writeConfig(t, `
index:
  metric: "manhattan"
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Index.Name != "semantic-search-fast" {
		t.Errorf("default index name: got %s", cfg.Index.Name)
	}
	if cfg.Index.Dimension != 384 || cfg.Embedding.Dimensions != 384 {
		t.Errorf("default dimensions: index=%d embedding=%d", cfg.Index.Dimension, cfg.Embedding.Dimensions)
	}
	if cfg.Index.Metric != "dotproduct" {
		t.Errorf("default metric: got %s", cfg.Index.Metric)
	}
	if cfg.Loader.BatchSize != 100 || cfg.Loader.MaxAttempts != 3 || cfg.Loader.PreviouslyFailedMaxAttempts != 1 {
		t.Errorf("loader defaults: %+v", cfg.Loader)
	}
	if cfg.Loader.RetryDelay != 10*time.Second {
		t.Errorf("default retry delay: got %s", cfg.Loader.RetryDelay)
	}
	if cfg.Search.TopK != 5 {
		t.Errorf("default top_k: got %d", cfg.Search.TopK)
	}
}

func TestApplyDefaults_embeddingFollowsIndexDimension(t *testing.T) {
	cfg := &Config{Index: IndexConfig{Dimension: 768}}
	ApplyDefaults(cfg)
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("embedding dimensions: got %d, want 768", cfg.Embedding.Dimensions)
	}
}

func TestResolvedControllerURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  IndexConfig
		want string
	}{
		{"explicit wins", IndexConfig{ControllerURL: "http://localhost:8080/", Environment: "x"}, "http://localhost:8080"},
		{"legacy environment", IndexConfig{Environment: "gcp-starter"}, "https://controller.gcp-starter.pinecone.io"},
		{"global default", IndexConfig{}, "https://api.pinecone.io"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolvedControllerURL(); got != tt.want {
				t.Errorf("ResolvedControllerURL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "k")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Index.APIKey != "k" {
		t.Errorf("api key: got %q", cfg.Index.APIKey)
	}
	if !filepath.IsAbs(cfg.Storage.SnapshotPath) {
		t.Errorf("snapshot path should be absolute, got %s", cfg.Storage.SnapshotPath)
	}
}
