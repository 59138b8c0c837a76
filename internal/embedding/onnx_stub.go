//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("ONNX encoder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEncoder is unavailable without CGO.
type ONNXEncoder struct{}

// NewONNXEncoder always fails when built without CGO.
func NewONNXEncoder(_ string, _, _ int) (*ONNXEncoder, error) {
	return nil, errNoCGO
}

func (e *ONNXEncoder) Encode(context.Context, string) ([]float32, error) { return nil, errNoCGO }

func (e *ONNXEncoder) Dimensions() int { return 0 }

func (e *ONNXEncoder) Close() error { return nil }
