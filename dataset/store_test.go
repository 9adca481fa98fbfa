package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const bareCorpus = `[
  {"id": 1, "title": "Bean Scene", "sector": "Food & Beverage", "location": "Austin, TX", "tags": ["coffee", "cafe"], "roi_months": 18},
  {"id": 2, "title": "FlexFit Gym", "sector": "Fitness", "location": "Denver, CO", "tags": ["gym"]}
]`

func TestStore_LoadBareArray(t *testing.T) {
	s := Open(writeFile(t, bareCorpus))
	require.NoError(t, s.Load())

	require.Equal(t, 2, s.Len())
	require.Equal(t, []string{"Fitness", "Food & Beverage"}, s.Sectors())
	require.Equal(t, []string{"cafe", "coffee", "gym"}, s.Tags())
	require.Equal(t, []string{"Austin, TX", "Denver, CO"}, s.Locations())
}

func TestStore_LoadWrappedObject(t *testing.T) {
	s := Open(writeFile(t, `{"listings": [{"id": 7, "title": "A", "sector": "Retail"}]}`))
	require.NoError(t, s.Load())
	require.Equal(t, 1, s.Len())

	// Writes must reproduce the wrapped shape.
	_, err := s.Add(Listing{Title: "B", Sector: "Retail"})
	require.NoError(t, err)

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)

	var wrapped map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wrapped))
	require.Contains(t, wrapped, "listings")
}

func TestStore_UnknownFieldsSurviveRoundTrip(t *testing.T) {
	s := Open(writeFile(t, bareCorpus))
	require.NoError(t, s.Load())

	// Trigger a persist, then reload from disk.
	_, err := s.Add(Listing{Title: "New", Sector: "Retail"})
	require.NoError(t, err)
	require.NoError(t, s.Load())

	l, err := s.Get(1)
	require.NoError(t, err)
	require.Contains(t, l.Extra, "roi_months")
	require.JSONEq(t, "18", string(l.Extra["roi_months"]))
}

func TestStore_AddAssignsNextID(t *testing.T) {
	s := Open(writeFile(t, bareCorpus))
	require.NoError(t, s.Load())

	added, err := s.Add(Listing{Title: "Taco Town", Sector: "Food & Beverage"})
	require.NoError(t, err)
	require.Equal(t, 3, added.ID)
}

func TestStore_AddValidation(t *testing.T) {
	s := Open(writeFile(t, bareCorpus))
	require.NoError(t, s.Load())

	var ve *ValidationError

	_, err := s.Add(Listing{Sector: "Retail"})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "title", ve.Field)

	_, err = s.Add(Listing{Title: "No Sector"})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "sector", ve.Field)

	_, err = s.Add(Listing{ID: 1, Title: "Dup", Sector: "Retail"})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "id", ve.Field)
}

func TestStore_Update(t *testing.T) {
	s := Open(writeFile(t, bareCorpus))
	require.NoError(t, s.Load())

	title := "Bean Scene Deluxe"
	updated, err := s.Update(1, Patch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "Bean Scene Deluxe", updated.Title)
	require.Equal(t, "Food & Beverage", updated.Sector)
	require.Contains(t, updated.Extra, "roi_months")

	empty := ""
	_, err = s.Update(1, Patch{Title: &empty})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = s.Update(99, Patch{Title: &title})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := Open(writeFile(t, bareCorpus))
	require.NoError(t, s.Load())

	require.NoError(t, s.Delete(2))
	require.Equal(t, 1, s.Len())
	require.ErrorIs(t, s.Delete(2), ErrNotFound)
}

func TestStore_HasChanged(t *testing.T) {
	path := writeFile(t, bareCorpus)
	s := Open(path)
	require.NoError(t, s.Load())
	require.False(t, s.HasChanged())

	// External edit to the backing file.
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1, "title": "X", "sector": "Y"}]`), 0o644))
	require.True(t, s.HasChanged())

	// A mutation through the store refreshes the hash.
	require.NoError(t, s.Load())
	_, err := s.Add(Listing{Title: "Z", Sector: "Y"})
	require.NoError(t, err)
	require.False(t, s.HasChanged())
}

func TestStore_Texts(t *testing.T) {
	s := Open(writeFile(t, bareCorpus))
	require.NoError(t, s.Load())

	texts := s.Texts()
	require.Len(t, texts, 2)
	require.Contains(t, texts[0], "Bean Scene")
	require.Contains(t, texts[0], "coffee cafe")
	require.Contains(t, texts[1], "FlexFit Gym")
}

func TestStore_IndexOf(t *testing.T) {
	s := Open(writeFile(t, bareCorpus))
	require.NoError(t, s.Load())

	row, ok := s.IndexOf(2)
	require.True(t, ok)
	require.Equal(t, 1, row)

	_, ok = s.IndexOf(42)
	require.False(t, ok)
}

func TestFilterIndex(t *testing.T) {
	s := Open(writeFile(t, bareCorpus))
	require.NoError(t, s.Load())

	f := s.Filter()
	require.Equal(t, 2, f.Size())

	require.True(t, f.MatchSector(0, "food & beverage"))
	require.False(t, f.MatchSector(1, "Food & Beverage"))

	require.True(t, f.MatchAnyTag(0, []string{"COFFEE", "nope"}))
	require.False(t, f.MatchAnyTag(1, []string{"coffee"}))

	rows := f.SectorRows("Fitness")
	require.NotNil(t, rows)
	require.True(t, rows.Contains(1))
	require.Nil(t, f.SectorRows("Unknown"))
}
