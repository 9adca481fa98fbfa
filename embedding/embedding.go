// Package embedding defines the dense-embedding collaborator interface and
// adapters for concrete providers.
package embedding

import "context"

// Model produces dense vector embeddings for text.
type Model interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimensionality.
	Dimension() int
}
