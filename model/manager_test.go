package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franchisehub/listingsearch/backup"
	"github.com/franchisehub/listingsearch/blobstore"
	"github.com/franchisehub/listingsearch/testutil"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"Bean Scene Coffee Food & Beverage specialty coffee shop",
	"FlexFit Gyms Fitness 24-hour access fitness club",
	"Brew Brothers Espresso Food & Beverage artisan espresso bar",
}

func newManager(t *testing.T, optFns ...func(o *Options)) *Manager {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "models")
	base := func(o *Options) { o.ModelsDir = dir }
	return NewManager(&testutil.MockEmbedder{Dim: 32}, append([]func(o *Options){base}, optFns...)...)
}

func TestTrain_BuildsConsistentBundle(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	require.NoError(t, m.Train(ctx, corpus))
	require.Equal(t, StateReady, m.State())

	b, ok := m.Current()
	require.True(t, ok)
	require.NoError(t, b.Validate())
	require.Len(t, b.Embeddings, len(corpus))
	require.Equal(t, len(corpus), b.Index.Len())
	require.Len(t, b.Matrix, len(corpus))
	require.Equal(t, len(corpus), b.Meta.CorpusSize)
	require.False(t, b.Stale)
}

func TestTrain_FailureLeavesServedBundle(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	require.NoError(t, m.Train(ctx, corpus))
	served, _ := m.Current()

	embedder := m.embedder.(*testutil.MockEmbedder)
	embedder.EmbedFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("provider down")
	}

	err := m.Train(ctx, corpus)
	var te *TrainingError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "embed", te.Stage)

	current, ok := m.Current()
	require.True(t, ok)
	require.Same(t, served, current)
	require.Equal(t, StateReady, m.State())
}

func TestLoad_LocalRoundTripServesSameResults(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	require.NoError(t, m.Train(ctx, corpus))
	trained, _ := m.Current()

	// A fresh manager over the same models dir loads what Train persisted.
	fresh := NewManager(&testutil.MockEmbedder{Dim: 32}, func(o *Options) {
		o.ModelsDir = m.opts.ModelsDir
	})
	require.NoError(t, fresh.Load(ctx))
	require.Equal(t, StateReady, fresh.State())

	loaded, ok := fresh.Current()
	require.True(t, ok)
	require.Equal(t, trained.Meta.CorpusSize, loaded.Meta.CorpusSize)
	require.Equal(t, "local", loaded.Meta.StorageProvenance)

	q, err := fresh.EmbedQuery(ctx, "coffee shop")
	require.NoError(t, err)

	want, err := trained.Index.Search(ctx, q, 3)
	require.NoError(t, err)
	got, err := loaded.Index.Search(ctx, q, 3)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestLoad_NothingAnywhere(t *testing.T) {
	m := newManager(t)
	require.ErrorIs(t, m.Load(context.Background()), ErrBundleNotFound)
	require.Equal(t, StateDegraded, m.State())
}

func TestLoad_InconsistentBundleTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	require.NoError(t, m.Train(ctx, corpus))

	// Corrupt the embeddings artifact by replacing it with a shorter matrix.
	b, _ := m.Current()
	broken := &Bundle{
		Embeddings: b.Embeddings[:1],
		Index:      b.Index,
		Vectorizer: b.Vectorizer,
		Matrix:     b.Matrix,
		Meta:       b.Meta,
	}
	require.NoError(t, saveBundle(m.opts.ModelsDir, broken))

	fresh := NewManager(&testutil.MockEmbedder{Dim: 32}, func(o *Options) {
		o.ModelsDir = m.opts.ModelsDir
	})

	err := fresh.Load(ctx)
	require.ErrorIs(t, err, ErrBundleNotFound)

	var ce *ConsistencyError
	require.ErrorAs(t, err, &ce)

	_, ok := fresh.Current()
	require.False(t, ok)
}

func TestLoad_RemoteRestore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	svc := backup.NewService(store)

	m := newManager(t, func(o *Options) { o.Backup = svc })
	require.NoError(t, m.Train(ctx, corpus))

	// New manager with an empty models dir restores from the remote store.
	fresh := NewManager(&testutil.MockEmbedder{Dim: 32}, func(o *Options) {
		o.ModelsDir = filepath.Join(t.TempDir(), "restored")
		o.Backup = svc
	})
	require.NoError(t, fresh.Load(ctx))

	b, ok := fresh.Current()
	require.True(t, ok)
	require.Equal(t, len(corpus), b.Meta.CorpusSize)
	require.Equal(t, "remote", b.Meta.StorageProvenance)

	for _, name := range ArtifactNames {
		_, err := os.Stat(filepath.Join(fresh.opts.ModelsDir, name))
		require.NoError(t, err)
	}
}

func TestRefreshKeywordMatrix_MarksStale(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	require.NoError(t, m.Train(ctx, corpus))
	before, _ := m.Current()

	mutated := append(append([]string(nil), corpus...), "Taco Trail Food & Beverage fast casual tacos")
	require.NoError(t, m.RefreshKeywordMatrix(mutated))

	after, ok := m.Current()
	require.True(t, ok)
	require.NotSame(t, before, after)
	require.True(t, after.Stale)
	require.Len(t, after.Matrix, len(mutated))

	// Semantic artifacts are shared, untouched.
	require.Equal(t, before.Index.Len(), after.Index.Len())
	require.Error(t, after.Validate())

	// A retrain realigns everything and clears the stale flag.
	require.NoError(t, m.Train(ctx, mutated))
	final, _ := m.Current()
	require.False(t, final.Stale)
	require.NoError(t, final.Validate())
}

func TestTrain_RefreshDuringBuildPublishesStale(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	require.NoError(t, m.Train(ctx, corpus))

	mutated := append(append([]string(nil), corpus...), "Taco Trail Food & Beverage fast casual tacos")

	// Gate the embedder so the next training run blocks mid-build.
	inner := &testutil.MockEmbedder{Dim: 32}
	started := make(chan struct{})
	release := make(chan struct{})
	m.embedder.(*testutil.MockEmbedder).EmbedFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		close(started)
		<-release
		return inner.Embed(ctx, texts)
	}

	// 1. Training starts from the pre-mutation corpus and blocks.
	trainErr := make(chan error, 1)
	go func() { trainErr <- m.Train(ctx, corpus) }()
	<-started

	// 2. A mutation refreshes the keyword surface while the build is stuck.
	require.NoError(t, m.RefreshKeywordMatrix(mutated))

	// 3. The run finishes and publishes a bundle missing the mutation; the
	// stale signal must survive the overwrite.
	close(release)
	require.NoError(t, <-trainErr)

	b, ok := m.Current()
	require.True(t, ok)
	require.True(t, b.Stale)
	require.Len(t, b.Matrix, len(corpus))

	// Retraining from the mutated corpus clears the flag again.
	m.embedder.(*testutil.MockEmbedder).EmbedFunc = nil
	require.NoError(t, m.Train(ctx, mutated))
	final, _ := m.Current()
	require.False(t, final.Stale)
}

func TestRefreshKeywordMatrix_NoBundle(t *testing.T) {
	m := newManager(t)
	require.ErrorIs(t, m.RefreshKeywordMatrix(corpus), ErrBundleNotFound)
}

func TestStorageInfo(t *testing.T) {
	ctx := context.Background()
	svc := backup.NewService(blobstore.NewMemoryStore())
	m := newManager(t, func(o *Options) { o.Backup = svc })

	info := m.StorageInfo(ctx)
	require.Equal(t, "local+remote", info.StorageType)
	require.False(t, info.Loaded)

	require.NoError(t, m.Train(ctx, corpus))

	info = m.StorageInfo(ctx)
	require.True(t, info.Loaded)
	require.Positive(t, info.LocalSizeBytes)
	require.Len(t, info.RemoteVersions, 1)
}
