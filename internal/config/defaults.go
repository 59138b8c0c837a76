package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Index.Name == "" {
		cfg.Index.Name = "semantic-search-fast"
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = 384 // all-MiniLM-L6-v2
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "dotproduct"
	}
	if cfg.Index.RequestTimeout == 0 {
		cfg.Index.RequestTimeout = 30 * time.Second
	}
	if cfg.Loader.BatchSize == 0 {
		cfg.Loader.BatchSize = 100
	}
	if cfg.Loader.MaxAttempts == 0 {
		cfg.Loader.MaxAttempts = 3
	}
	if cfg.Loader.RetryDelay == 0 {
		cfg.Loader.RetryDelay = 10 * time.Second
	}
	if cfg.Loader.PreviouslyFailedMaxAttempts == 0 {
		cfg.Loader.PreviouslyFailedMaxAttempts = 1
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = "./data/quora-80k.db"
	}
	if cfg.Storage.CheckpointPath == "" {
		cfg.Storage.CheckpointPath = "./data/checkpoints.db"
	}
	if cfg.Storage.IndexDataPath == "" {
		cfg.Storage.IndexDataPath = "./data/indexes"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = cfg.Index.Dimension
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Search.DemoQuery == "" {
		cfg.Search.DemoQuery = "what countries are favorable to digital nomads?"
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}
