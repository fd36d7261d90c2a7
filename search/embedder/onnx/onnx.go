//go:build onnx

// Package onnx runs a local sentence-transformer (all-MiniLM-L6-v2
// style) through ONNX Runtime for fully offline embeddings.
package onnx

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/lumenstay/copilot/core"
)

const sequenceLength = 128

// Config configures the local embedder.
type Config struct {
	// ModelPath points at the exported model.onnx file.
	ModelPath string
	// TokenizerPath points at the HuggingFace tokenizer.json.
	TokenizerPath string
	// LibraryPath points at libonnxruntime.so; empty uses the runtime's
	// default lookup.
	LibraryPath string
	// Dimensions is the hidden size. Defaults to 384.
	Dimensions int
}

// Embedder runs tokenization and inference for one model session.
// Sessions are not safe for concurrent Run calls, so Embed serializes.
type Embedder struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	tokenizer *wordPieceTokenizer
	dims      int
}

// New loads the tokenizer and opens an inference session.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("%w: model and tokenizer paths are required", core.ErrInvalidInput)
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 384
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	tokenizer, err := loadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("open onnx session: %w", err)
	}

	return &Embedder{session: session, tokenizer: tokenizer, dims: cfg.Dimensions}, nil
}

// Embed tokenizes text, runs the model, mean-pools over attended
// tokens, and returns a unit vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", core.ErrInvalidInput)
	}

	ids, mask := e.tokenizer.encode(text, sequenceLength)
	typeIDs := make([]int64, sequenceLength)

	e.mu.Lock()
	defer e.mu.Unlock()

	shape := ort.NewShape(1, sequenceLength)
	inputs := make([]ort.Value, 0, 3)
	for _, data := range [][]int64{ids, mask, typeIDs} {
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			for _, t := range inputs {
				t.Destroy()
			}
			return nil, fmt.Errorf("create input tensor: %w", err)
		}
		inputs = append(inputs, tensor)
	}
	defer func() {
		for _, t := range inputs {
			t.Destroy()
		}
	}()

	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	return e.pool(tensor, mask)
}

// pool mean-pools [1, seq, hidden] hidden states over attended tokens.
// A [1, hidden] output means the model already pooled; it is used as is.
func (e *Embedder) pool(tensor *ort.Tensor[float32], mask []int64) ([]float32, error) {
	data := tensor.GetData()
	shape := tensor.GetShape()

	vec := make([]float32, e.dims)
	switch len(shape) {
	case 2:
		if len(data) < e.dims {
			return nil, fmt.Errorf("%w: output has %d values, want %d", core.ErrDimensionMismatch, len(data), e.dims)
		}
		copy(vec, data[:e.dims])
	case 3:
		hidden := int(shape[2])
		if hidden != e.dims {
			return nil, fmt.Errorf("%w: hidden size %d, want %d", core.ErrDimensionMismatch, hidden, e.dims)
		}
		var attended float32
		for i := 0; i < int(shape[1]); i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			off := i * hidden
			for j := 0; j < hidden; j++ {
				vec[j] += data[off+j]
			}
		}
		if attended == 0 {
			return nil, fmt.Errorf("%w: no attended tokens", core.ErrInvalidInput)
		}
		for j := range vec {
			vec[j] /= attended
		}
	default:
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}

	normalize(vec)
	return vec, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int { return e.dims }

// Close releases the inference session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= n
	}
}
