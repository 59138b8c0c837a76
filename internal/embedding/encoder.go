// Package embedding turns query text into vectors in the same space as the loaded documents.
package embedding

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/config"
	"github.com/hyperjump/semsearch/pkg/utils"
)

// ErrEmptyText is returned when there is nothing to encode.
var ErrEmptyText = errors.New("text is empty")

// Encoder produces one L2-normalized vector per text.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// New returns the ONNX encoder for cfg.ModelPath wrapped in a cache. When the model
// cannot be loaded it logs a warning and falls back to a MockEncoder, whose vectors
// only match documents encoded the same way.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) Encoder {
	logger = utils.OrNop(logger)
	var enc Encoder
	onnx, err := NewONNXEncoder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	if err != nil {
		logger.Warn("ONNX encoder unavailable, using mock encoder",
			zap.String("model_path", cfg.ModelPath),
			zap.Error(err))
		enc = NewMockEncoder(cfg.Dimensions)
	} else {
		enc = onnx
	}
	return WithCache(enc, cfg.CacheSize)
}
