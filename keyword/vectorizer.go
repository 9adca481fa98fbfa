// Package keyword provides a TF-IDF vectorizer with a bounded vocabulary and
// sparse cosine similarity. It is the lexical half of the hybrid ranking: the
// fitted vocabulary plus the per-document matrix travel inside the model
// bundle alongside the dense embeddings.
package keyword

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"
)

// ErrNotFitted is returned when Transform is called before Fit.
var ErrNotFitted = errors.New("keyword: vectorizer is not fitted")

// Options contains configuration options for the vectorizer.
type Options struct {
	// MaxFeatures bounds the vocabulary size. When the corpus yields more
	// terms, the most frequent ones (by total corpus count) are kept.
	// <= 0 means unbounded.
	MaxFeatures int

	// NGramMin and NGramMax bound the word n-gram range, inclusive.
	NGramMin int
	NGramMax int

	// MinDocFreq drops terms appearing in fewer documents than this.
	MinDocFreq int

	// Stopwords are removed from the token stream before n-gram generation.
	// Defaults to the built-in English list.
	Stopwords map[string]struct{}
}

// DefaultOptions mirror the training configuration of the search service:
// 500 features, unigrams and bigrams, English stopwords, min-df 1.
var DefaultOptions = Options{
	MaxFeatures: 500,
	NGramMin:    1,
	NGramMax:    2,
	MinDocFreq:  1,
}

// Vectorizer converts text into sparse TF-IDF vectors.
// Fit builds the vocabulary and IDF weights; Transform is then safe for
// concurrent use.
type Vectorizer struct {
	opts  Options
	vocab map[string]int32
	terms []string
	idf   []float32
}

// NewVectorizer creates a vectorizer with the given options.
func NewVectorizer(optFns ...func(o *Options)) *Vectorizer {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.NGramMin < 1 {
		opts.NGramMin = 1
	}
	if opts.NGramMax < opts.NGramMin {
		opts.NGramMax = opts.NGramMin
	}
	if opts.MinDocFreq < 1 {
		opts.MinDocFreq = 1
	}
	if opts.Stopwords == nil {
		opts.Stopwords = englishStopwords
	}

	return &Vectorizer{opts: opts}
}

// Fitted reports whether Fit has completed.
func (v *Vectorizer) Fitted() bool { return v.vocab != nil }

// FeatureCount returns the fitted vocabulary size.
func (v *Vectorizer) FeatureCount() int { return len(v.vocab) }

// Features returns the fitted vocabulary ordered by slot index.
// The returned slice must be treated as read-only.
func (v *Vectorizer) Features() []string { return v.terms }

// Fit learns the vocabulary and IDF weights from the corpus.
// Refitting replaces the previous state.
func (v *Vectorizer) Fit(texts []string) error {
	df := make(map[string]int)   // documents containing the term
	cf := make(map[string]int64) // total corpus count, for MaxFeatures pruning

	for _, text := range texts {
		counts := v.termCounts(text)
		for term, n := range counts {
			df[term]++
			cf[term] += int64(n)
		}
	}

	terms := make([]string, 0, len(df))
	for term, n := range df {
		if n >= v.opts.MinDocFreq {
			terms = append(terms, term)
		}
	}

	if v.opts.MaxFeatures > 0 && len(terms) > v.opts.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if cf[terms[i]] != cf[terms[j]] {
				return cf[terms[i]] > cf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.opts.MaxFeatures]
	}

	// Vocabulary slots are assigned alphabetically so that a refit over the
	// same corpus yields identical vectors.
	sort.Strings(terms)

	vocab := make(map[string]int32, len(terms))
	idf := make([]float32, len(terms))
	n := float64(len(texts))
	for i, term := range terms {
		vocab[term] = int32(i)
		// Smoothed IDF: ln((1+N)/(1+df)) + 1.
		idf[i] = float32(math.Log((1+n)/(1+float64(df[term]))) + 1)
	}

	v.vocab = vocab
	v.terms = terms
	v.idf = idf
	return nil
}

// Transform converts texts into L2-normalized TF-IDF vectors, one per input,
// in input order.
func (v *Vectorizer) Transform(texts []string) ([]SparseVector, error) {
	if !v.Fitted() {
		return nil, ErrNotFitted
	}

	out := make([]SparseVector, len(texts))
	for i, text := range texts {
		out[i] = v.transformOne(text)
	}
	return out, nil
}

// TransformOne converts a single text into an L2-normalized TF-IDF vector.
func (v *Vectorizer) TransformOne(text string) (SparseVector, error) {
	if !v.Fitted() {
		return SparseVector{}, ErrNotFitted
	}
	return v.transformOne(text), nil
}

func (v *Vectorizer) transformOne(text string) SparseVector {
	counts := v.termCounts(text)

	indices := make([]int32, 0, len(counts))
	for term := range counts {
		if idx, ok := v.vocab[term]; ok {
			indices = append(indices, idx)
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = float32(counts[v.terms[idx]]) * v.idf[idx]
	}

	vec := SparseVector{Indices: indices, Values: values}
	vec.normalize()
	return vec
}

// termCounts tokenizes text and counts every n-gram in the configured range.
func (v *Vectorizer) termCounts(text string) map[string]int {
	tokens := v.tokenize(text)
	counts := make(map[string]int)
	for n := v.opts.NGramMin; n <= v.opts.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			counts[strings.Join(tokens[i:i+n], " ")]++
		}
	}
	return counts
}

// tokenize lowercases, splits on non-alphanumeric runs, drops single-rune
// tokens and stopwords. Stopwords are removed before n-gram generation, so
// bigrams bridge them ("best of breed" yields "best breed").
func (v *Vectorizer) tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := v.opts.Stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
