package dataset

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrNotFound is returned when a listing id does not exist.
var ErrNotFound = errors.New("listing not found")

// fileShape records the top-level JSON shape of the backing file so that
// writes reproduce what was read.
type fileShape int

const (
	shapeArray   fileShape = iota // bare JSON array
	shapeWrapped                  // object with a "listings" key
)

// Options contains configuration options for the store.
type Options struct {
	Logger *slog.Logger
}

// Store holds the listing collection backed by a JSON file. Mutations are
// serialized by a single-writer lock and persisted with a write-then-rename;
// reads may run concurrently with each other and with mutations.
type Store struct {
	mu       sync.RWMutex
	path     string
	listings []Listing
	shape    fileShape
	hash     string
	filter   *FilterIndex

	sectors   map[string]struct{}
	tags      map[string]struct{}
	locations map[string]struct{}

	logger *slog.Logger
}

// Open creates a store for the given file path. Call Load before use.
func Open(path string, optFns ...func(o *Options)) *Store {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		path:   path,
		filter: newFilterIndex(nil),
		logger: opts.Logger,
	}
}

// Load reads the backing file, remembering its shape, and rebuilds the
// content hash, metadata sets, and filter index.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}

	listings, shape, err := decodeListings(data)
	if err != nil {
		return fmt.Errorf("parse dataset: %w", err)
	}

	sum := md5.Sum(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.listings = listings
	s.shape = shape
	s.hash = hex.EncodeToString(sum[:])
	s.refreshDerived()

	s.logger.Info("dataset loaded",
		"path", s.path,
		"listings", len(s.listings),
		"sectors", len(s.sectors),
		"tags", len(s.tags),
		"locations", len(s.locations),
	)

	return nil
}

func decodeListings(data []byte) ([]Listing, fileShape, error) {
	var wrapped struct {
		Listings []Listing `json:"listings"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Listings != nil {
		return wrapped.Listings, shapeWrapped, nil
	}

	var listings []Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, shapeArray, err
	}
	return listings, shapeArray, nil
}

// Len returns the number of listings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listings)
}

// All returns a deep copy of the listings in corpus order.
func (s *Store) All() []Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Listing, len(s.listings))
	for i, l := range s.listings {
		out[i] = l.Clone()
	}
	return out
}

// Get returns the listing with the given id.
func (s *Store) Get(id int) (Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.listings {
		if l.ID == id {
			return l.Clone(), nil
		}
	}
	return Listing{}, ErrNotFound
}

// IndexOf returns the corpus-order row of the listing with the given id.
func (s *Store) IndexOf(id int) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, l := range s.listings {
		if l.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Texts returns the corpus text of every listing, in corpus order.
func (s *Store) Texts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.listings))
	for i, l := range s.listings {
		out[i] = CorpusText(l)
	}
	return out
}

// Add validates and appends a listing, persists, and refreshes derived state.
// A zero ID gets max(id)+1 assigned; a non-zero duplicate ID is rejected.
// The stored listing (with its assigned id) is returned.
func (s *Store) Add(l Listing) (Listing, error) {
	if err := validate(l); err != nil {
		return Listing{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == 0 {
		l.ID = s.nextID()
	} else {
		for _, existing := range s.listings {
			if existing.ID == l.ID {
				return Listing{}, &ValidationError{Field: "id", Reason: fmt.Sprintf("%d already exists", l.ID)}
			}
		}
	}

	stored := l.Clone()
	s.listings = append(s.listings, stored)

	if err := s.persist(); err != nil {
		s.listings = s.listings[:len(s.listings)-1]
		return Listing{}, err
	}

	s.logger.Info("listing added", "id", stored.ID, "title", stored.Title)
	return stored.Clone(), nil
}

// Patch describes a partial update. Nil fields are left unchanged; the id is
// immutable by construction. Extra entries are merged key-by-key.
type Patch struct {
	Title           *string
	Sector          *string
	Description     *string
	InvestmentRange *string
	Location        *string
	Tags            *[]string
	Extra           map[string]json.RawMessage
}

// Update applies a patch to the listing with the given id, re-validates, and
// persists. The updated listing is returned.
func (s *Store) Update(id int, p Patch) (Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, l := range s.listings {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Listing{}, ErrNotFound
	}

	updated := s.listings[idx].Clone()
	if p.Title != nil {
		updated.Title = *p.Title
	}
	if p.Sector != nil {
		updated.Sector = *p.Sector
	}
	if p.Description != nil {
		updated.Description = *p.Description
	}
	if p.InvestmentRange != nil {
		updated.InvestmentRange = *p.InvestmentRange
	}
	if p.Location != nil {
		updated.Location = *p.Location
	}
	if p.Tags != nil {
		updated.Tags = append([]string(nil), (*p.Tags)...)
	}
	for key, value := range p.Extra {
		if updated.Extra == nil {
			updated.Extra = make(map[string]json.RawMessage)
		}
		updated.Extra[key] = append(json.RawMessage(nil), value...)
	}

	if err := validate(updated); err != nil {
		return Listing{}, err
	}

	previous := s.listings[idx]
	s.listings[idx] = updated

	if err := s.persist(); err != nil {
		s.listings[idx] = previous
		return Listing{}, err
	}

	s.logger.Info("listing updated", "id", id)
	return updated.Clone(), nil
}

// Delete removes the listing with the given id and persists.
func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, l := range s.listings {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}

	previous := s.listings
	remaining := make([]Listing, 0, len(s.listings)-1)
	remaining = append(remaining, s.listings[:idx]...)
	remaining = append(remaining, s.listings[idx+1:]...)
	s.listings = remaining

	if err := s.persist(); err != nil {
		s.listings = previous
		return err
	}

	s.logger.Info("listing deleted", "id", id)
	return nil
}

// HasChanged recomputes the backing file hash and reports whether it differs
// from the hash recorded at the last load or persist.
func (s *Store) HasChanged() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Error("dataset hash check failed", "error", err)
		return false
	}

	sum := md5.Sum(data)
	current := hex.EncodeToString(sum[:])

	s.mu.RLock()
	defer s.mu.RUnlock()
	return current != s.hash
}

// Sectors returns the distinct sectors in alphabetical order.
func (s *Store) Sectors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.sectors)
}

// Tags returns the distinct tags in alphabetical order.
func (s *Store) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.tags)
}

// Locations returns the distinct locations in alphabetical order.
func (s *Store) Locations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.locations)
}

// Filter returns the current filter index snapshot. The snapshot maps corpus
// rows as of the time of the call; it is immutable and safe for concurrent
// use, but goes stale after a mutation.
func (s *Store) Filter() *FilterIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

func (s *Store) nextID() int {
	maxID := 0
	for _, l := range s.listings {
		if l.ID > maxID {
			maxID = l.ID
		}
	}
	return maxID + 1
}

// persist writes the collection back in the remembered shape via a temp file
// and atomic rename, then refreshes hash, metadata, and filter index.
// Callers hold the write lock.
func (s *Store) persist() error {
	var payload any
	if s.shape == shapeWrapped {
		payload = map[string]any{"listings": s.listings}
	} else {
		payload = s.listings
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dataset-*.json")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace dataset: %w", err)
	}

	sum := md5.Sum(data)
	s.hash = hex.EncodeToString(sum[:])
	s.refreshDerived()

	return nil
}

// refreshDerived rebuilds metadata sets and the filter index from the current
// listings. Callers hold the write lock.
func (s *Store) refreshDerived() {
	s.sectors = make(map[string]struct{})
	s.tags = make(map[string]struct{})
	s.locations = make(map[string]struct{})

	for _, l := range s.listings {
		sector := l.Sector
		if sector == "" {
			sector = "Other"
		}
		s.sectors[sector] = struct{}{}

		for _, tag := range l.Tags {
			s.tags[tag] = struct{}{}
		}

		location := l.Location
		if location == "" {
			location = "Unknown"
		}
		s.locations[location] = struct{}{}
	}

	s.filter = newFilterIndex(s.listings)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
