package search

import (
	"strings"

	"github.com/franchisehub/listingsearch/dataset"
)

// Filters narrow ranked results. Zero values mean no filtering on that axis.
// Sector is a case-insensitive exact match, Location a case-insensitive
// substring match, Tags matches listings carrying any of the given tags.
type Filters struct {
	Sector   string
	Location string
	Tags     []string
}

func (f Filters) empty() bool {
	return f.Sector == "" && f.Location == "" && len(f.Tags) == 0
}

// match evaluates the filters against a listing at the given corpus row.
// Sector and tag membership go through the store's inverted filter index;
// location falls back to a substring scan since locations are free text.
func (f Filters) match(l dataset.Listing, row int, idx *dataset.FilterIndex) bool {
	if f.empty() {
		return true
	}

	if f.Sector != "" {
		if idx != nil && row < idx.Size() {
			if !idx.MatchSector(row, f.Sector) {
				return false
			}
		} else if !strings.EqualFold(strings.TrimSpace(l.Sector), strings.TrimSpace(f.Sector)) {
			return false
		}
	}

	if f.Location != "" {
		if !strings.Contains(strings.ToLower(l.Location), strings.ToLower(strings.TrimSpace(f.Location))) {
			return false
		}
	}

	if len(f.Tags) > 0 {
		if idx != nil && row < idx.Size() {
			if !idx.MatchAnyTag(row, f.Tags) {
				return false
			}
		} else if !anyTagFold(l.Tags, f.Tags) {
			return false
		}
	}

	return true
}

func anyTagFold(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}
