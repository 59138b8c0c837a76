package embedding

import (
	"context"

	"github.com/hyperjump/semsearch/pkg/utils"
)

// MockEncoder is a deterministic encoder for tests and for running without a model.
// Each word is hashed to a signed bucket, so texts sharing words get similar vectors.
type MockEncoder struct {
	dimensions int
}

// NewMockEncoder returns a MockEncoder producing vectors of the given dimensions (384 when
// not positive).
func NewMockEncoder(dimensions int) *MockEncoder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEncoder{dimensions: dimensions}
}

func (e *MockEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := Words(text)
	if len(words) == 0 {
		return nil, ErrEmptyText
	}
	vec := make([]float32, e.dimensions)
	for _, w := range words {
		h := hash64(w)
		sign := float32(1)
		if h>>63 == 1 {
			sign = -1
		}
		vec[h%uint64(e.dimensions)] += sign
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

func (e *MockEncoder) Dimensions() int { return e.dimensions }

func (e *MockEncoder) Close() error { return nil }
