//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Mutex

// ONNXEncoder runs a sentence-transformer model (all-MiniLM-L6-v2 by default) with
// ONNX Runtime and mean-pools the last hidden state over the attention mask.
// It requires CGO and the onnxruntime shared library.
type ONNXEncoder struct {
	session    *ort.AdvancedSession
	tokenizer  Tokenizer
	dimensions int
	maxTokens  int

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	hiddenState   *ort.Tensor[float32]
	mu            sync.Mutex
}

// NewONNXEncoder loads the model at modelPath. The ONNX Runtime environment is
// initialized on first use.
func NewONNXEncoder(modelPath string, dimensions, maxTokens int) (*ONNXEncoder, error) {
	if dimensions <= 0 || maxTokens < 2 {
		return nil, fmt.Errorf("invalid encoder shape: dimensions=%d max_tokens=%d", dimensions, maxTokens)
	}
	ortInit.Lock()
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			ortInit.Unlock()
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	ortInit.Unlock()

	e := &ONNXEncoder{tokenizer: WordTokenizer{}, dimensions: dimensions, maxTokens: maxTokens}
	seqShape := ort.NewShape(1, int64(maxTokens))
	var err error
	if e.inputIDs, err = ort.NewEmptyTensor[int64](seqShape); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if e.attentionMask, err = ort.NewEmptyTensor[int64](seqShape); err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if e.tokenTypeIDs, err = ort.NewEmptyTensor[int64](seqShape); err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	if e.hiddenState, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(maxTokens), int64(dimensions))); err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	e.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		[]ort.ArbitraryTensor{e.inputIDs, e.attentionMask, e.tokenTypeIDs},
		[]ort.ArbitraryTensor{e.hiddenState},
		nil,
	)
	if err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return e, nil
}

// Encode tokenizes text, runs the model once, and returns the normalized mean-pooled vector.
func (e *ONNXEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	enc := e.tokenizer.Tokenize(text, e.maxTokens)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("encoder is closed")
	}
	copy(e.inputIDs.GetData(), enc.InputIDs)
	copy(e.attentionMask.GetData(), enc.AttentionMask)
	copy(e.tokenTypeIDs.GetData(), enc.TokenTypeIDs)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return meanPool(e.hiddenState.GetData(), enc.AttentionMask, e.dimensions), nil
}

func (e *ONNXEncoder) Dimensions() int { return e.dimensions }

// Close releases the session and tensors. Encode fails afterwards.
func (e *ONNXEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	e.destroyTensors()
	return err
}

func (e *ONNXEncoder) destroyTensors() {
	if e.inputIDs != nil {
		_ = e.inputIDs.Destroy()
		e.inputIDs = nil
	}
	if e.attentionMask != nil {
		_ = e.attentionMask.Destroy()
		e.attentionMask = nil
	}
	if e.tokenTypeIDs != nil {
		_ = e.tokenTypeIDs.Destroy()
		e.tokenTypeIDs = nil
	}
	if e.hiddenState != nil {
		_ = e.hiddenState.Destroy()
		e.hiddenState = nil
	}
}
