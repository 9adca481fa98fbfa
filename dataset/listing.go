// Package dataset manages the listing collection: loading and persisting the
// backing JSON file, CRUD with validation, change detection via content hash,
// and the derived filter index used to narrow search results.
package dataset

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Listing is a single franchise listing. Known fields are typed; anything
// else in the source JSON is kept verbatim in Extra so that round-tripping
// the file never loses data.
type Listing struct {
	ID              int
	Title           string
	Sector          string
	Description     string
	InvestmentRange string
	Location        string
	Tags            []string
	Extra           map[string]json.RawMessage
}

// knownKeys are the JSON keys mapped onto typed fields.
var knownKeys = map[string]struct{}{
	"id":               {},
	"title":            {},
	"sector":           {},
	"description":      {},
	"investment_range": {},
	"location":         {},
	"tags":             {},
}

type listingJSON struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	Sector          string   `json:"sector"`
	Description     string   `json:"description,omitempty"`
	InvestmentRange string   `json:"investment_range,omitempty"`
	Location        string   `json:"location,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler, routing unknown keys into Extra.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var known listingJSON
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.ID = known.ID
	l.Title = known.Title
	l.Sector = known.Sector
	l.Description = known.Description
	l.InvestmentRange = known.InvestmentRange
	l.Location = known.Location
	l.Tags = known.Tags
	l.Extra = nil

	for key, value := range raw {
		if _, ok := knownKeys[key]; ok {
			continue
		}
		if l.Extra == nil {
			l.Extra = make(map[string]json.RawMessage)
		}
		l.Extra[key] = value
	}

	return nil
}

// MarshalJSON implements json.Marshaler, merging Extra back in. A passthrough
// key colliding with a known key is dropped in favor of the typed field.
func (l Listing) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(knownKeys)+len(l.Extra))
	for key, value := range l.Extra {
		if _, ok := knownKeys[key]; ok {
			continue
		}
		out[key] = value
	}

	known, err := json.Marshal(listingJSON{
		ID:              l.ID,
		Title:           l.Title,
		Sector:          l.Sector,
		Description:     l.Description,
		InvestmentRange: l.InvestmentRange,
		Location:        l.Location,
		Tags:            l.Tags,
	})
	if err != nil {
		return nil, err
	}

	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for key, value := range knownMap {
		out[key] = value
	}

	return json.Marshal(out)
}

// Clone returns a deep copy of the listing.
func (l Listing) Clone() Listing {
	out := l

	if l.Tags != nil {
		out.Tags = make([]string, len(l.Tags))
		copy(out.Tags, l.Tags)
	}

	if l.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(l.Extra))
		for key, value := range l.Extra {
			raw := make(json.RawMessage, len(value))
			copy(raw, value)
			out.Extra[key] = raw
		}
	}

	return out
}

// CorpusText flattens a listing into the single text string fed to the
// embedding model and the keyword vectorizer. Field order matters only in
// that it must stay stable across retrains.
func CorpusText(l Listing) string {
	return strings.Join([]string{
		l.Title,
		l.Sector,
		l.Description,
		l.InvestmentRange,
		l.Location,
		strings.Join(l.Tags, " "),
	}, " ")
}

// ValidationError indicates malformed listing data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid listing: field %q %s", e.Field, e.Reason)
}

func validate(l Listing) error {
	if strings.TrimSpace(l.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if strings.TrimSpace(l.Sector) == "" {
		return &ValidationError{Field: "sector", Reason: "is required"}
	}
	return nil
}
