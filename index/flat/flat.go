// Package flat provides an exact inner-product index over a fixed matrix of
// unit-normalized vectors. The index is immutable: it is built once per
// training run and replaced wholesale on retrain.
package flat

import (
	"context"
	"errors"
	"fmt"

	"github.com/franchisehub/listingsearch/internal/math32"
	"github.com/franchisehub/listingsearch/internal/queue"
)

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Result is a single nearest-neighbor hit.
type Result struct {
	Index int     // Row position in the corpus ordering used at build time.
	Score float32 // Inner product with the query (cosine for unit vectors).
}

// Flat is an exact inner-product index.
type Flat struct {
	dimension int
	vectors   [][]float32
}

// Build creates a flat index from a matrix. Row i of the matrix must
// correspond to the i-th document of the corpus ordering; the index preserves
// that correspondence in search results. All rows must share one dimension.
// Vectors are stored as given - callers normalize beforehand if they want
// inner product to equal cosine similarity.
func Build(matrix [][]float32) (*Flat, error) {
	f := &Flat{}
	if len(matrix) == 0 {
		return f, nil
	}

	f.dimension = len(matrix[0])
	if f.dimension == 0 {
		return nil, fmt.Errorf("flat: zero-dimensional vectors")
	}

	f.vectors = make([][]float32, len(matrix))
	for i, v := range matrix {
		if len(v) != f.dimension {
			return nil, &ErrDimensionMismatch{Expected: f.dimension, Actual: len(v)}
		}
		row := make([]float32, f.dimension)
		copy(row, v)
		f.vectors[i] = row
	}

	return f, nil
}

// Len returns the number of vectors in the index.
func (f *Flat) Len() int { return len(f.vectors) }

// Dimension returns the vector dimensionality, or 0 for an empty index.
func (f *Flat) Dimension() int { return f.dimension }

// Vector returns the stored vector for the given row.
// The returned slice must be treated as read-only.
func (f *Flat) Vector(i int) ([]float32, error) {
	if i < 0 || i >= len(f.vectors) {
		return nil, fmt.Errorf("flat: row %d out of range [0,%d)", i, len(f.vectors))
	}
	return f.vectors[i], nil
}

// Search returns the k rows with the highest inner product against q,
// ordered best-first. Ties are broken by lower row index. Requesting
// k >= Len() scores the entire corpus.
func (f *Flat) Search(ctx context.Context, q []float32, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(f.vectors) == 0 {
		return nil, nil
	}
	if len(q) != f.dimension {
		return nil, &ErrDimensionMismatch{Expected: f.dimension, Actual: len(q)}
	}

	if k > len(f.vectors) {
		k = len(f.vectors)
	}

	top := queue.NewTopK(k)
	for i, v := range f.vectors {
		top.Push(queue.Item{Index: int32(i), Score: math32.Dot(q, v)})
	}

	items := top.Sorted()
	results := make([]Result, len(items))
	for i, it := range items {
		results[i] = Result{Index: int(it.Index), Score: it.Score}
	}
	return results, nil
}
