// Package search implements hybrid semantic+keyword ranking, recommendations,
// and autocomplete over the dataset store and the served model bundle.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/franchisehub/listingsearch/dataset"
	"github.com/franchisehub/listingsearch/keyword"
	"github.com/franchisehub/listingsearch/model"
)

var (
	// ErrInvalidTopN is returned when top_n is not positive.
	ErrInvalidTopN = errors.New("top_n must be positive")

	// ErrInvalidWeight is returned when semantic_weight is outside [0,1].
	ErrInvalidWeight = errors.New("semantic_weight must be within [0,1]")

	// ErrNotIndexed is returned when a listing exists in the dataset but not
	// yet in the semantic index; a retrain is needed first.
	ErrNotIndexed = errors.New("listing not yet in the semantic index")
)

// Result is one ranked listing with its score breakdown.
type Result struct {
	Listing       dataset.Listing `json:"listing"`
	Score         float32         `json:"score"`
	SemanticScore float32         `json:"semantic_score"`
	KeywordScore  float32         `json:"keyword_score"`
}

// Response carries ranked results plus the staleness signal: when the
// dataset mutated after the last training run, RetrainRequired is true and
// the semantic half of the scores reflects the pre-mutation corpus.
type Response struct {
	Results         []Result `json:"results"`
	RetrainRequired bool     `json:"retrain_required"`
}

// ModelProvider supplies the served bundle snapshot and query embeddings.
// *model.Manager satisfies it.
type ModelProvider interface {
	Current() (*model.Bundle, bool)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Options contains configuration options for the engine.
type Options struct {
	Logger *slog.Logger
}

// Engine scores listings against the served bundle snapshot.
type Engine struct {
	store  *dataset.Store
	models ModelProvider
	logger *slog.Logger
}

// NewEngine creates an engine over the given store and model manager.
func NewEngine(store *dataset.Store, models ModelProvider, optFns ...func(o *Options)) *Engine {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{store: store, models: models, logger: opts.Logger}
}

// Search ranks the corpus against the query with the hybrid score
// `w*semantic + (1-w)*keyword`, applies the filters to the top 2*topN
// candidates, and returns at most topN survivors. A shortfall under
// restrictive filters is accepted; no re-querying happens.
func (e *Engine) Search(ctx context.Context, query string, topN int, semanticWeight float64, filters Filters) (*Response, error) {
	if topN <= 0 {
		return nil, ErrInvalidTopN
	}
	if semanticWeight < 0 || semanticWeight > 1 {
		return nil, ErrInvalidWeight
	}

	b, ok := e.models.Current()
	if !ok {
		return nil, model.ErrBundleNotFound
	}

	listings := e.store.All()
	filterIdx := e.store.Filter()

	// The retrain signal is derived, not read off the bundle alone: a bundle
	// whose matrix no longer lines up with the live corpus needs a retrain
	// even when its stale flag was lost to a racing mutation.
	retrain := b.Stale || len(b.Matrix) != len(listings)

	// The keyword surface tracks the live corpus; the semantic artifacts may
	// lag behind after a mutation. Score over the rows both sides agree on.
	n := len(listings)
	if len(b.Matrix) < n {
		n = len(b.Matrix)
	}
	if n == 0 {
		return &Response{RetrainRequired: retrain}, nil
	}

	semantic := make([]float32, n)
	q, err := e.models.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if b.Index.Len() > 0 {
		// Request the entire corpus so every indexed listing gets a defined
		// semantic score; unindexed rows keep 0.
		hits, err := b.Index.Search(ctx, q, b.Index.Len())
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			if hit.Index < n {
				semantic[hit.Index] = hit.Score
			}
		}
	}

	qv, err := b.Vectorizer.TransformOne(query)
	if err != nil {
		return nil, err
	}

	kw := make([]float32, n)
	for i := 0; i < n; i++ {
		kw[i] = keyword.Cosine(qv, b.Matrix[i])
	}

	combined := combine(semantic, kw, semanticWeight)
	rows := rankRows(combined)

	pool := 2 * topN
	if pool > len(rows) {
		pool = len(rows)
	}

	results := make([]Result, 0, topN)
	for _, row := range rows[:pool] {
		if !filters.match(listings[row], row, filterIdx) {
			continue
		}
		results = append(results, Result{
			Listing:       listings[row],
			Score:         combined[row],
			SemanticScore: semantic[row],
			KeywordScore:  kw[row],
		})
		if len(results) == topN {
			break
		}
	}

	e.logger.Debug("search complete",
		"query", query,
		"candidates", pool,
		"returned", len(results),
		"retrain_required", retrain,
	)

	return &Response{Results: results, RetrainRequired: retrain}, nil
}

// combine merges per-row score vectors into the hybrid score
// `w*semantic + (1-w)*keyword`.
func combine(semantic, kw []float32, w float64) []float32 {
	out := make([]float32, len(semantic))
	for i := range out {
		out[i] = float32(w)*semantic[i] + float32(1-w)*kw[i]
	}
	return out
}

// rankRows returns row indices ordered by score descending; equal scores
// keep corpus insertion order (lower row first).
func rankRows(scores []float32) []int {
	rows := make([]int, len(scores))
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return scores[rows[a]] > scores[rows[b]]
	})
	return rows
}
