// Package embedding turns text into fixed-dimension vectors. The retrieval
// engine only depends on the Embedder interface; the concrete backend (remote
// API or local ONNX model) is selected by configuration.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Backend identifiers accepted by NewEmbedder.
const (
	BackendOpenAI = "openai"
	BackendONNX   = "onnx"
	BackendMock   = "mock"
)

// Options configures embedder construction.
type Options struct {
	Backend    string
	Dimensions int
	// Remote backend.
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Local ONNX backend.
	ModelPath string
	MaxTokens int
	CacheSize int
}

// NewEmbedder creates an embedder for the configured backend.
// Supported backends: "openai" (default), "onnx", "mock".
func NewEmbedder(opts Options) (Embedder, error) {
	switch opts.Backend {
	case BackendOpenAI, "":
		return NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    opts.BaseURL,
			APIKeyEnv:  opts.APIKeyEnv,
			Model:      opts.Model,
			Dimensions: opts.Dimensions,
		})
	case BackendONNX:
		return NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens, opts.CacheSize)
	case BackendMock:
		return NewMockEmbedder(opts.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s (supported: openai, onnx, mock)", opts.Backend)
	}
}
