package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/semsearch/internal/checkpoint"
	"github.com/hyperjump/semsearch/internal/config"
	"github.com/hyperjump/semsearch/internal/dataset"
	"github.com/hyperjump/semsearch/internal/embedding"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/vectorindex"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"flags after query are moved first", []string{"digital nomads", "-top-k", "3"}, []string{"-top-k", "3", "digital nomads"}},
		{"flags first returns unchanged", []string{"-top-k", "3", "digital nomads"}, []string{"-top-k", "3", "digital nomads"}},
		{"query only returns unchanged", []string{"digital nomads"}, []string{"digital nomads"}},
		{"empty args returns unchanged", []string{}, []string{}},
		{"file then flags", []string{"quora.jsonl", "-limit", "5"}, []string{"-limit", "5", "quora.jsonl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"nomads"}, "nomads"},
		{"multiple words", []string{"digital", "nomads"}, "digital nomads"},
		{"quoted phrase", []string{"digital nomads"}, "digital nomads"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
index:
  name: "quora-test"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || cfg.Index.Name != "quora-test" {
		t.Errorf("unexpected config: debug=%v name=%s", cfg.Debug, cfg.Index.Name)
	}
}

func TestLoadConfig_fallsBackToEnvironment(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("default config file exists on this machine")
	}
	chdir(t, t.TempDir())
	t.Setenv("PINECONE_API_KEY", "from-env")

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != envConfigSource {
		t.Errorf("resolved = %q, want %q", resolved, envConfigSource)
	}
	if cfg.Index.APIKey != "from-env" || cfg.Index.Name != "semantic-search-fast" {
		t.Errorf("unexpected index config: %+v", cfg.Index)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

var corpus = []string{
	"Which countries are best for digital nomads?",
	"How do I bake sourdough bread?",
	"What is the fastest way to learn Go?",
	"Is it safe to travel alone in Japan?",
	"How can I improve my credit score?",
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Index.Name = "quora"
	cfg.Index.Dimension = 128
	config.ApplyDefaults(cfg)
	cfg.Loader.BatchSize = 2
	cfg.Search.TopK = 2
	return cfg
}

func testComponents(t *testing.T, cfg *config.Config) (*Components, *vectorindex.MemoryClient) {
	t.Helper()
	ctx := context.Background()
	enc := embedding.NewMockEncoder(cfg.Index.Dimension)
	snap, err := dataset.OpenSnapshot(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	docs := make([]*models.Document, len(corpus))
	for i, text := range corpus {
		vec, err := enc.Encode(ctx, text)
		require.NoError(t, err)
		docs[i] = &models.Document{ID: string(rune('a' + i)), Values: vec, Metadata: map[string]interface{}{"text": text}}
	}
	require.NoError(t, snap.Append(ctx, docs))
	mc := vectorindex.NewMemoryClient()
	c := &Components{Client: mc, Encoder: enc, Snapshot: snap, Checkpoints: checkpoint.NewMemoryStore()}
	t.Cleanup(c.Close)
	return c, mc
}

func TestRunPipeline_PopulatesEmptyIndexAndQueries(t *testing.T) {
	cfg := testConfig(t)
	c, mc := testComponents(t, cfg)
	var out bytes.Buffer

	require.NoError(t, runPipeline(context.Background(), c, cfg, zaptest.NewLogger(t), &out))

	mem, err := mc.Memory("quora")
	require.NoError(t, err)
	assert.Equal(t, len(corpus), mem.Size())
	assert.Equal(t, models.MetricDotProduct, mem.Describe().Metric)

	lines := strings.Split(out.String(), "\n")
	var queryAt int
	for i, l := range lines {
		if strings.HasPrefix(l, "Original query: ") {
			queryAt = i
		}
	}
	require.NotZero(t, queryAt, out.String())
	assert.Contains(t, lines[queryAt+1], "Which countries are best for digital nomads?")
	assert.Contains(t, out.String(), "Loaded 5 documents in 3 batches")
}

func TestRunPipeline_SkipsLoadWhenPopulated(t *testing.T) {
	cfg := testConfig(t)
	c, mc := testComponents(t, cfg)
	ctx := context.Background()
	require.NoError(t, mc.CreateIndex(ctx, vectorindex.CreateIndexRequest{Name: "quora", Dimension: 128}))
	mem, _ := mc.Memory("quora")
	v, _ := c.Encoder.Encode(ctx, "digital nomads")
	require.NoError(t, mem.Upsert(ctx, []*models.Document{{ID: "x", Values: v, Metadata: map[string]interface{}{"text": "already here"}}}))

	var out bytes.Buffer
	require.NoError(t, runPipeline(ctx, c, cfg, zaptest.NewLogger(t), &out))
	assert.Equal(t, 1, mem.Size())
	assert.NotContains(t, out.String(), "Loaded")
	assert.Contains(t, out.String(), "already here")
}

func TestLoadSnapshot_DimensionMismatch(t *testing.T) {
	cfg := testConfig(t)
	c, _ := testComponents(t, cfg)
	ctx := context.Background()
	cfg.Index.Dimension = 64
	cfg.Embedding.Dimensions = 64
	idx, err := ensureIndex(ctx, c, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = loadSnapshot(ctx, c, idx, cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "does not match")
}

func TestLoadSnapshot_Empty(t *testing.T) {
	cfg := testConfig(t)
	c, _ := testComponents(t, cfg)
	ctx := context.Background()
	require.NoError(t, c.Snapshot.Reset(ctx))
	idx, err := ensureIndex(ctx, c, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = loadSnapshot(ctx, c, idx, cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "snapshot is empty")
}

func TestWriteImportSummary(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.db")
	snap, err := dataset.OpenSnapshot(path)
	require.NoError(t, err)
	require.NoError(t, snap.Append(ctx, []*models.Document{{ID: "a", Values: []float32{1, 0}}}))

	var out bytes.Buffer
	writeImportSummary(ctx, &out, zaptest.NewLogger(t), snap, path, 1)
	assert.Contains(t, out.String(), "(1 total)")

	require.NoError(t, snap.Close())
	core, logs := observer.New(zapcore.WarnLevel)
	out.Reset()
	writeImportSummary(ctx, &out, zap.New(core), snap, path, 1)
	assert.Equal(t, "Imported 1 documents into "+path+"\n", out.String())
	assert.Equal(t, 1, logs.FilterMessage("failed to count snapshot documents").Len())
}
