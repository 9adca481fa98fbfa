package search

import "strings"

// Suggestion is one autocomplete candidate. Type names the field the text
// came from ("title", "sector", or "tags"); Category is the listing's sector.
type Suggestion struct {
	Text     string `json:"text"`
	Type     string `json:"type"`
	Category string `json:"category"`
}

// Autocomplete returns up to max suggestions whose text contains the partial
// query, case-insensitively, drawn from listing titles, sectors, and tags.
// The whole corpus is scanned and duplicates (case-insensitive) collapse to
// their first occurrence in corpus order, so results are deterministic for a
// given corpus regardless of where matches sit in it.
func (e *Engine) Autocomplete(partial string, max int) []Suggestion {
	query := strings.ToLower(strings.TrimSpace(partial))
	if query == "" || max <= 0 {
		return nil
	}

	var suggestions []Suggestion
	seen := make(map[string]struct{})

	add := func(text, fieldType, sector string) {
		if !strings.Contains(strings.ToLower(text), query) {
			return
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		suggestions = append(suggestions, Suggestion{Text: text, Type: fieldType, Category: sector})
	}

	for _, l := range e.store.All() {
		add(l.Title, "title", l.Sector)
		add(l.Sector, "sector", l.Sector)
		for _, tag := range l.Tags {
			add(tag, "tags", l.Sector)
		}
	}

	if len(suggestions) > max {
		suggestions = suggestions[:max]
	}
	return suggestions
}
