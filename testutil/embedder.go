package testutil

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// MockEmbedder is a deterministic embedding.Model test double: each text maps
// to a fixed pseudo-random vector seeded by its FNV hash, so identical texts
// always embed identically and similar corpora stay stable across runs.
// Custom behavior can be injected via EmbedFunc.
type MockEmbedder struct {
	// Dim is the embedding dimensionality. Zero means 64.
	Dim int

	// EmbedFunc overrides the default deterministic behavior if set.
	EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

// Embed generates deterministic embeddings for the texts.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = deterministicVector(text, m.Dimension())
	}
	return out, nil
}

// Dimension returns the embedding dimensionality.
func (m *MockEmbedder) Dimension() int {
	if m.Dim <= 0 {
		return 64
	}
	return m.Dim
}

func deterministicVector(text string, dim int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}
