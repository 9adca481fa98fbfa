package dataset

import (
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// FilterIndex is an inverted index over the listing collection: lowercased
// sector and tag values map to bitmaps of corpus rows. It is built once per
// load/mutation and never mutated afterwards, so lookups are lock-free.
type FilterIndex struct {
	size    int
	sectors map[string]*roaring.Bitmap
	tags    map[string]*roaring.Bitmap
}

func newFilterIndex(listings []Listing) *FilterIndex {
	idx := &FilterIndex{
		size:    len(listings),
		sectors: make(map[string]*roaring.Bitmap),
		tags:    make(map[string]*roaring.Bitmap),
	}

	for row, l := range listings {
		if sector := strings.ToLower(strings.TrimSpace(l.Sector)); sector != "" {
			bm, ok := idx.sectors[sector]
			if !ok {
				bm = roaring.New()
				idx.sectors[sector] = bm
			}
			bm.Add(uint32(row))
		}

		for _, tag := range l.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" {
				continue
			}
			bm, ok := idx.tags[tag]
			if !ok {
				bm = roaring.New()
				idx.tags[tag] = bm
			}
			bm.Add(uint32(row))
		}
	}

	return idx
}

// Size returns the number of corpus rows the index was built over.
func (f *FilterIndex) Size() int { return f.size }

// MatchSector reports whether the given corpus row has the sector,
// case-insensitively.
func (f *FilterIndex) MatchSector(row int, sector string) bool {
	bm, ok := f.sectors[strings.ToLower(strings.TrimSpace(sector))]
	if !ok {
		return false
	}
	return bm.Contains(uint32(row))
}

// MatchAnyTag reports whether the given corpus row carries at least one of
// the tags, case-insensitively.
func (f *FilterIndex) MatchAnyTag(row int, tags []string) bool {
	for _, tag := range tags {
		bm, ok := f.tags[strings.ToLower(strings.TrimSpace(tag))]
		if ok && bm.Contains(uint32(row)) {
			return true
		}
	}
	return false
}

// SectorRows returns the bitmap of corpus rows for a sector, or nil when the
// sector is unknown. The returned bitmap must be treated as read-only.
func (f *FilterIndex) SectorRows(sector string) *roaring.Bitmap {
	return f.sectors[strings.ToLower(strings.TrimSpace(sector))]
}
