package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franchisehub/listingsearch/backup"
	"github.com/franchisehub/listingsearch/blobstore"
	"github.com/franchisehub/listingsearch/embedding"
	"github.com/franchisehub/listingsearch/index/flat"
	"github.com/franchisehub/listingsearch/internal/math32"
	"github.com/franchisehub/listingsearch/keyword"
)

// State describes the manager lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDegraded
	StateTraining
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateTraining:
		return "training"
	default:
		return "unknown"
	}
}

// Options contains configuration options for the manager.
type Options struct {
	// ModelsDir is the local artifact directory.
	ModelsDir string

	// Backup enables remote backup/restore when set.
	Backup *backup.Service

	// KeepVersions bounds remote backup retention.
	KeepVersions int

	Logger *slog.Logger
}

// StorageInfo summarizes where artifacts live.
type StorageInfo struct {
	StorageType    string           `json:"storage_type"`
	ModelsDir      string           `json:"models_dir"`
	LocalSizeBytes int64            `json:"local_size_bytes"`
	Loaded         bool             `json:"loaded"`
	RemoteVersions []backup.Version `json:"remote_versions,omitempty"`
}

// Manager owns the served bundle reference. Readers snapshot it once per
// request via Current; Train builds a complete replacement off to the side
// and publishes it with a single pointer swap, so reads are never blocked
// and never observe a partial bundle.
type Manager struct {
	embedder embedding.Model
	opts     Options

	current atomic.Pointer[Bundle]
	state   atomic.Int32

	// trainMu serializes training runs; swapMu serializes publishes so a
	// keyword refresh cannot drop a concurrently trained bundle.
	trainMu sync.Mutex
	swapMu  sync.Mutex

	// refreshGen counts keyword refreshes. Train captures it before building
	// and re-checks at publish time: a refresh landing mid-build means the
	// new bundle may miss a mutation, so it publishes stale.
	refreshGen atomic.Uint64
}

// NewManager creates a manager around the given embedding model.
func NewManager(embedder embedding.Model, optFns ...func(o *Options)) *Manager {
	opts := Options{
		ModelsDir:    "models",
		KeepVersions: 5,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.KeepVersions < 1 {
		opts.KeepVersions = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Manager{embedder: embedder, opts: opts}
}

// Current returns the served bundle snapshot, if any.
func (m *Manager) Current() (*Bundle, bool) {
	b := m.current.Load()
	return b, b != nil
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// Load restores the bundle from storage: remote first when backup is
// configured, then the local artifact directory. A bundle failing the
// row-count invariant is treated as absent. Returns ErrBundleNotFound when
// no usable bundle exists anywhere.
func (m *Manager) Load(ctx context.Context) error {
	m.setState(StateLoading)

	restored := false
	if m.opts.Backup != nil {
		if _, err := m.opts.Backup.Restore(ctx, m.opts.ModelsDir); err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				m.opts.Logger.Info("no remote backup, trying local artifacts")
			} else {
				m.opts.Logger.Warn("remote restore failed, trying local artifacts", "error", err)
			}
		} else {
			restored = true
			m.opts.Logger.Info("restored artifacts from remote backup", "dir", m.opts.ModelsDir)
		}
	}

	b, err := loadBundle(m.opts.ModelsDir)
	if err != nil {
		m.setState(StateDegraded)
		if errors.Is(err, ErrBundleNotFound) {
			return ErrBundleNotFound
		}
		return fmt.Errorf("load bundle: %w", err)
	}

	if verr := b.Validate(); verr != nil {
		m.opts.Logger.Error("loaded bundle is inconsistent, treating as absent", "error", verr)
		m.setState(StateDegraded)
		return errors.Join(ErrBundleNotFound, verr)
	}

	if restored {
		b.Meta.StorageProvenance = "remote"
	}

	m.publish(b)
	m.setState(StateReady)
	m.opts.Logger.Info("bundle loaded",
		"corpus_size", b.Meta.CorpusSize,
		"trained_at", b.Meta.TrainedAt,
		"provenance", b.Meta.StorageProvenance,
	)
	return nil
}

// Train builds a new bundle from the corpus texts and publishes it. Only one
// training run may be in flight; a second concurrent call fails fast with a
// TrainingError. Failures before the publish leave the served bundle
// untouched. Local persistence and remote backup failures are logged but do
// not fail the training - the new bundle still serves. A keyword refresh
// landing while the build is in flight marks the published bundle stale, so
// the retrain-required signal survives the race.
func (m *Manager) Train(ctx context.Context, texts []string) error {
	if !m.trainMu.TryLock() {
		return &TrainingError{Stage: "begin", Err: errors.New("another training run is in progress")}
	}
	defer m.trainMu.Unlock()

	gen := m.refreshGen.Load()
	previous := m.State()
	m.setState(StateTraining)

	b, err := m.buildBundle(ctx, texts)
	if err != nil {
		if previous == StateReady {
			m.setState(StateReady)
		} else {
			m.setState(StateDegraded)
		}
		return err
	}

	m.swapMu.Lock()
	if m.refreshGen.Load() != gen {
		// The corpus mutated after this run captured its texts; the bundle
		// must keep signaling that a retrain is needed.
		b.Stale = true
	}
	m.current.Store(b)
	m.swapMu.Unlock()

	m.setState(StateReady)
	if b.Stale {
		m.opts.Logger.Warn("corpus mutated during training, publishing stale")
	}
	m.opts.Logger.Info("training complete", "corpus_size", len(texts), "dimension", b.Index.Dimension())

	if err := saveBundle(m.opts.ModelsDir, b); err != nil {
		m.opts.Logger.Error("bundle persistence failed, serving from memory only", "error", err)
		return nil
	}

	if m.opts.Backup != nil {
		if _, err := m.opts.Backup.Backup(ctx, artifactPaths(m.opts.ModelsDir)); err != nil {
			m.opts.Logger.Error("remote backup failed", "error", err)
		} else if err := m.opts.Backup.Prune(ctx, m.opts.KeepVersions); err != nil {
			m.opts.Logger.Warn("backup retention pruning failed", "error", err)
		}
	}

	return nil
}

func (m *Manager) buildBundle(ctx context.Context, texts []string) (*Bundle, error) {
	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, &TrainingError{Stage: "embed", Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &TrainingError{
			Stage: "embed",
			Err:   fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts)),
		}
	}

	for _, v := range vectors {
		math32.NormalizeL2InPlace(v)
	}

	idx, err := flat.Build(vectors)
	if err != nil {
		return nil, &TrainingError{Stage: "index", Err: err}
	}

	vec := keyword.NewVectorizer()
	if err := vec.Fit(texts); err != nil {
		return nil, &TrainingError{Stage: "keyword fit", Err: err}
	}
	matrix, err := vec.Transform(texts)
	if err != nil {
		return nil, &TrainingError{Stage: "keyword transform", Err: err}
	}

	b := &Bundle{
		Embeddings: vectors,
		Index:      idx,
		Vectorizer: vec,
		Matrix:     matrix,
		Meta: Metadata{
			CorpusSize:        len(texts),
			TrainedAt:         time.Now().UTC(),
			StorageProvenance: "local",
		},
	}
	if err := b.Validate(); err != nil {
		return nil, &TrainingError{Stage: "validate", Err: err}
	}

	return b, nil
}

// EmbedQuery embeds and L2-normalizes a single query text.
func (m *Manager) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vectors))
	}

	q := vectors[0]
	math32.NormalizeL2InPlace(q)
	return q, nil
}

// RefreshKeywordMatrix re-transforms the corpus texts through the served
// bundle's fitted vectorizer and publishes a clone carrying the new keyword
// surface, marked stale. The semantic artifacts are left as-is; callers must
// surface the retrain-required signal until the next Train realigns them.
func (m *Manager) RefreshKeywordMatrix(texts []string) error {
	// Bump the generation first so an in-flight training run sees the
	// mutation at publish time.
	m.refreshGen.Add(1)

	b, ok := m.Current()
	if !ok {
		return ErrBundleNotFound
	}

	matrix, err := b.Vectorizer.Transform(texts)
	if err != nil {
		return err
	}

	m.swapMu.Lock()
	defer m.swapMu.Unlock()

	// Re-read under the lock: a training run may have published meanwhile,
	// and its matrix already reflects the latest corpus.
	latest := m.current.Load()
	if latest != b {
		m.opts.Logger.Info("skipping keyword refresh, newer bundle already published")
		return nil
	}

	m.current.Store(b.withMatrix(matrix))
	m.opts.Logger.Info("keyword surface refreshed", "rows", len(matrix), "stale_semantic", true)
	return nil
}

func (m *Manager) publish(b *Bundle) {
	m.swapMu.Lock()
	defer m.swapMu.Unlock()
	m.current.Store(b)
}

// StorageInfo reports where artifacts live and what remote versions exist.
func (m *Manager) StorageInfo(ctx context.Context) StorageInfo {
	info := StorageInfo{
		StorageType:    "local",
		ModelsDir:      m.opts.ModelsDir,
		LocalSizeBytes: localSize(m.opts.ModelsDir),
		Loaded:         m.current.Load() != nil,
	}

	if m.opts.Backup != nil {
		info.StorageType = "local+remote"
		versions, err := m.opts.Backup.List(ctx, 5)
		if err != nil {
			m.opts.Logger.Warn("listing remote backups failed", "error", err)
		} else {
			info.RemoteVersions = versions
		}
	}

	return info
}
