package search

import (
	"context"
	"strings"

	"github.com/franchisehub/listingsearch/dataset"
	"github.com/franchisehub/listingsearch/model"
)

// recommendSlack is the extra candidate headroom requested from the index to
// survive the self-exclusion and sector filter.
const recommendSlack = 10

// Recommend returns up to topN listings similar to the given one, using its
// stored embedding as the query. The source listing is always excluded; with
// sameSectorOnly, candidates from other sectors are excluded too. Running out
// of candidates returns a short list, never an error.
func (e *Engine) Recommend(ctx context.Context, listingID, topN int, sameSectorOnly bool) (*Response, error) {
	if topN <= 0 {
		return nil, ErrInvalidTopN
	}

	b, ok := e.models.Current()
	if !ok {
		return nil, model.ErrBundleNotFound
	}

	row, ok := e.store.IndexOf(listingID)
	if !ok {
		return nil, dataset.ErrNotFound
	}
	if row >= b.Index.Len() {
		// Added after the last training run; it has no embedding yet.
		return nil, ErrNotIndexed
	}

	source, err := e.store.Get(listingID)
	if err != nil {
		return nil, err
	}

	vec, err := b.Index.Vector(row)
	if err != nil {
		return nil, err
	}

	hits, err := b.Index.Search(ctx, vec, topN+recommendSlack)
	if err != nil {
		return nil, err
	}

	listings := e.store.All()

	results := make([]Result, 0, topN)
	for _, hit := range hits {
		if hit.Index == row || hit.Index >= len(listings) {
			continue
		}

		candidate := listings[hit.Index]
		if sameSectorOnly && !strings.EqualFold(candidate.Sector, source.Sector) {
			continue
		}

		results = append(results, Result{
			Listing:       candidate,
			Score:         hit.Score,
			SemanticScore: hit.Score,
		})
		if len(results) == topN {
			break
		}
	}

	e.logger.Debug("recommend complete",
		"listing_id", listingID,
		"same_sector_only", sameSectorOnly,
		"returned", len(results),
	)

	// Same derivation as Search: row misalignment implies a lost stale flag.
	retrain := b.Stale || len(b.Matrix) != len(listings)
	return &Response{Results: results, RetrainRequired: retrain}, nil
}
