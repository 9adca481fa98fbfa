package model

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franchisehub/listingsearch/index/flat"
	"github.com/franchisehub/listingsearch/keyword"
)

// Artifact file names within the models directory. The keyword model file
// carries both the fitted vectorizer and the per-listing document matrix.
const (
	ArtifactVectorizer = "vectorizer.gob"
	ArtifactIndex      = "index.gob"
	ArtifactEmbeddings = "embeddings.gob"
	ArtifactMetadata   = "metadata.json"
)

// ArtifactNames lists every file making up a bundle.
var ArtifactNames = []string{ArtifactVectorizer, ArtifactIndex, ArtifactEmbeddings, ArtifactMetadata}

type keywordArtifact struct {
	Vectorizer *keyword.Vectorizer
	Matrix     []keyword.SparseVector
}

// saveBundle writes all artifact files into dir, each through a temp file and
// atomic rename.
func saveBundle(dir string, b *Bundle) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}

	var vbuf bytes.Buffer
	if err := gob.NewEncoder(&vbuf).Encode(keywordArtifact{Vectorizer: b.Vectorizer, Matrix: b.Matrix}); err != nil {
		return fmt.Errorf("encode keyword model: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, ArtifactVectorizer), vbuf.Bytes()); err != nil {
		return err
	}

	var ibuf bytes.Buffer
	if err := b.Index.Save(&ibuf); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, ArtifactIndex), ibuf.Bytes()); err != nil {
		return err
	}

	var ebuf bytes.Buffer
	if err := gob.NewEncoder(&ebuf).Encode(b.Embeddings); err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, ArtifactEmbeddings), ebuf.Bytes()); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(b.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, ArtifactMetadata), meta)
}

// loadBundle reads all artifact files from dir. A missing file maps to
// ErrBundleNotFound.
func loadBundle(dir string) (*Bundle, error) {
	for _, name := range ArtifactNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			if os.IsNotExist(err) {
				return nil, ErrBundleNotFound
			}
			return nil, err
		}
	}

	vdata, err := os.ReadFile(filepath.Join(dir, ArtifactVectorizer))
	if err != nil {
		return nil, err
	}
	var ka keywordArtifact
	if err := gob.NewDecoder(bytes.NewReader(vdata)).Decode(&ka); err != nil {
		return nil, fmt.Errorf("decode keyword model: %w", err)
	}

	idata, err := os.ReadFile(filepath.Join(dir, ArtifactIndex))
	if err != nil {
		return nil, err
	}
	idx, err := flat.Load(bytes.NewReader(idata))
	if err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}

	edata, err := os.ReadFile(filepath.Join(dir, ArtifactEmbeddings))
	if err != nil {
		return nil, err
	}
	var embeddings [][]float32
	if err := gob.NewDecoder(bytes.NewReader(edata)).Decode(&embeddings); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}

	mdata, err := os.ReadFile(filepath.Join(dir, ArtifactMetadata))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(mdata, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	return &Bundle{
		Embeddings: embeddings,
		Index:      idx,
		Vectorizer: ka.Vectorizer,
		Matrix:     ka.Matrix,
		Meta:       meta,
	}, nil
}

// artifactPaths maps artifact names to their paths in dir, for backup.
func artifactPaths(dir string) map[string]string {
	out := make(map[string]string, len(ArtifactNames))
	for _, name := range ArtifactNames {
		out[name] = filepath.Join(dir, name)
	}
	return out
}

// localSize sums the artifact file sizes in dir.
func localSize(dir string) int64 {
	var total int64
	for _, name := range ArtifactNames {
		if fi, err := os.Stat(filepath.Join(dir, name)); err == nil {
			total += fi.Size()
		}
	}
	return total
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
