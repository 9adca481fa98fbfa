package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
)

// LangChain adapts a langchaingo embedder to the Model interface, so any
// provider langchaingo supports (OpenAI-compatible endpoints, Ollama, ...)
// can back the service.
type LangChain struct {
	embedder  embeddings.Embedder
	dimension int
}

// NewLangChain wraps the given langchaingo embedder. The dimension must match
// what the underlying provider emits; it is validated on the first call.
func NewLangChain(embedder embeddings.Embedder, dimension int) *LangChain {
	return &LangChain{embedder: embedder, dimension: dimension}
}

// Embed implements Model.
func (l *LangChain) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := l.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != l.dimension {
			return nil, fmt.Errorf("embedder returned %d-dimensional vector at row %d, want %d", len(v), i, l.dimension)
		}
	}

	return vectors, nil
}

// Dimension implements Model.
func (l *LangChain) Dimension() int { return l.dimension }
