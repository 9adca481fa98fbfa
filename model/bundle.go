// Package model manages the trained artifact bundle and its lifecycle:
// training, local persistence, remote backup/restore, and the atomic swap
// that publishes a new bundle to concurrent readers.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/franchisehub/listingsearch/index/flat"
	"github.com/franchisehub/listingsearch/keyword"
)

// ErrBundleNotFound is returned when no bundle exists remotely or locally.
var ErrBundleNotFound = errors.New("model bundle not found")

// TrainingError indicates a failed training attempt. The previously served
// bundle is never affected.
type TrainingError struct {
	Stage string
	Err   error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed at %s: %v", e.Stage, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// ConsistencyError indicates artifact row counts that do not line up. A
// bundle failing this check is treated as absent rather than served.
type ConsistencyError struct {
	EmbeddingRows int
	IndexRows     int
	MatrixRows    int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent bundle: %d embedding rows, %d index rows, %d keyword rows",
		e.EmbeddingRows, e.IndexRows, e.MatrixRows)
}

// Metadata describes a trained bundle.
type Metadata struct {
	CorpusSize        int       `json:"corpus_size"`
	TrainedAt         time.Time `json:"trained_at"`
	StorageProvenance string    `json:"storage_provenance"`
}

// Bundle is one complete, immutable set of trained artifacts. Row i of
// Embeddings, the index, and Matrix all refer to the same corpus listing.
//
// Stale marks a bundle whose keyword surface was rebuilt after a dataset
// mutation while the semantic artifacts still reflect the pre-mutation
// corpus; results scored from it must be flagged as needing a retrain.
type Bundle struct {
	Embeddings [][]float32
	Index      *flat.Flat
	Vectorizer *keyword.Vectorizer
	Matrix     []keyword.SparseVector
	Meta       Metadata
	Stale      bool
}

// Validate enforces the row-count invariant across all artifacts.
func (b *Bundle) Validate() error {
	if len(b.Embeddings) != b.Index.Len() || len(b.Embeddings) != len(b.Matrix) {
		return &ConsistencyError{
			EmbeddingRows: len(b.Embeddings),
			IndexRows:     b.Index.Len(),
			MatrixRows:    len(b.Matrix),
		}
	}
	return nil
}

// withMatrix clones the bundle with a replacement keyword surface, marked
// stale. The semantic artifacts are shared, not copied - bundles are
// immutable once published.
func (b *Bundle) withMatrix(matrix []keyword.SparseVector) *Bundle {
	clone := *b
	clone.Matrix = matrix
	clone.Stale = true
	return &clone
}
