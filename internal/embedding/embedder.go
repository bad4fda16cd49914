// Package embedding provides text embedding via ONNX or Ollama, with lazy loading and caching.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kioku/internal/apperr"
)

// Embedder produces vector embeddings for text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// embedEach calls embed for every text in order.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// checkDimensions reports a model that returned vectors of the wrong size.
func checkDimensions(emb []float32, want int) error {
	if len(emb) != want {
		return apperr.Wrap(apperr.ModelUnavailable,
			fmt.Errorf("model returned %d dimensions, expected %d", len(emb), want),
			"embedding dimension mismatch")
	}
	return nil
}
