package keyword

import (
	"bytes"
	"encoding/gob"
	"io"
	"sort"
)

type vectorizerState struct {
	MaxFeatures int
	NGramMin    int
	NGramMax    int
	MinDocFreq  int
	Stopwords   []string
	Terms       []string
	IDF         []float32
}

// GobEncode implements gob.GobEncoder.
func (v *Vectorizer) GobEncode() ([]byte, error) {
	stop := make([]string, 0, len(v.opts.Stopwords))
	for w := range v.opts.Stopwords {
		stop = append(stop, w)
	}
	sort.Strings(stop)

	state := vectorizerState{
		MaxFeatures: v.opts.MaxFeatures,
		NGramMin:    v.opts.NGramMin,
		NGramMax:    v.opts.NGramMax,
		MinDocFreq:  v.opts.MinDocFreq,
		Stopwords:   stop,
		Terms:       v.terms,
		IDF:         v.idf,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (v *Vectorizer) GobDecode(data []byte) error {
	var state vectorizerState
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&state); err != nil {
		return err
	}

	stop := make(map[string]struct{}, len(state.Stopwords))
	for _, w := range state.Stopwords {
		stop[w] = struct{}{}
	}

	v.opts = Options{
		MaxFeatures: state.MaxFeatures,
		NGramMin:    state.NGramMin,
		NGramMax:    state.NGramMax,
		MinDocFreq:  state.MinDocFreq,
		Stopwords:   stop,
	}

	v.terms = state.Terms
	v.idf = state.IDF
	v.vocab = make(map[string]int32, len(state.Terms))
	for i, term := range state.Terms {
		v.vocab[term] = int32(i)
	}

	return nil
}

// Save writes the fitted vectorizer to w.
func (v *Vectorizer) Save(w io.Writer) error {
	if !v.Fitted() {
		return ErrNotFitted
	}
	return gob.NewEncoder(w).Encode(v)
}

// Load reads a vectorizer previously written with Save.
func Load(r io.Reader) (*Vectorizer, error) {
	v := &Vectorizer{}
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return nil, err
	}
	return v, nil
}
