package listingsearch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/franchisehub/listingsearch/blobstore"
	"github.com/franchisehub/listingsearch/config"
	"github.com/franchisehub/listingsearch/dataset"
	"github.com/franchisehub/listingsearch/search"
	"github.com/franchisehub/listingsearch/testutil"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.DataPath = testutil.WriteDataset(t, testutil.FixtureListings())
	cfg.ModelsDir = filepath.Join(t.TempDir(), "models")
	return cfg
}

func newService(t *testing.T, optFns ...func(o *Options)) *Service {
	t.Helper()

	base := func(o *Options) { o.Logger = NoopLogger() }
	svc, err := New(testConfig(t), &testutil.MockEmbedder{Dim: 32}, append([]func(o *Options){base}, optFns...)...)
	require.NoError(t, err)
	return svc
}

func TestService_ColdStartUnavailable(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	// 1. Before Init, every read operation reports unavailable.
	require.NoError(t, svc.store.Load())

	_, err := svc.Search(ctx, SearchRequest{Query: "coffee"})
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.Recommend(ctx, 1, 3, false)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.Autocomplete("cof", 5)
	require.ErrorIs(t, err, ErrUnavailable)

	// 2. Init trains from scratch and everything comes online.
	require.NoError(t, svc.Init(ctx))

	resp, err := svc.Search(ctx, SearchRequest{Query: "coffee"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
}

func TestService_InitLoadsPersistedBundle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	require.NoError(t, svc.Init(ctx))

	// A second service over the same config loads instead of retraining.
	fresh, err := New(svc.cfg, &testutil.MockEmbedder{Dim: 32}, func(o *Options) {
		o.Logger = NoopLogger()
	})
	require.NoError(t, err)
	require.NoError(t, fresh.Init(ctx))

	b, ok := fresh.models.Current()
	require.True(t, ok)
	require.Equal(t, len(testutil.FixtureListings()), b.Meta.CorpusSize)
}

func TestService_SearchDefaultsAndClamping(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))

	// Defaulted top-n comes from config; absurd requests clamp to the max.
	resp, err := svc.Search(ctx, SearchRequest{Query: "franchise", TopN: 100000})
	require.NoError(t, err)
	require.LessOrEqual(t, len(resp.Results), svc.cfg.Search.MaxTopN)

	// An explicit weight overrides the configured default.
	zero := 0.0
	resp, err = svc.Search(ctx, SearchRequest{Query: "coffee", SemanticWeight: &zero})
	require.NoError(t, err)
	require.Equal(t, resp.Results[0].Score, resp.Results[0].KeywordScore)
}

func TestService_MutationsFlagRetrain(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))

	added, err := svc.AddListing(ctx, dataset.Listing{
		Title:  "Espresso Express",
		Sector: "Food & Beverage",
		Tags:   []string{"coffee"},
	})
	require.NoError(t, err)
	require.Equal(t, 6, added.ID)

	resp, err := svc.Search(ctx, SearchRequest{Query: "coffee"})
	require.NoError(t, err)
	require.True(t, resp.RetrainRequired)

	// Retraining realigns artifacts and clears the flag.
	require.NoError(t, svc.Train(ctx))
	resp, err = svc.Search(ctx, SearchRequest{Query: "coffee"})
	require.NoError(t, err)
	require.False(t, resp.RetrainRequired)

	// Update and delete behave the same way.
	title := "Espresso Express Deluxe"
	_, err = svc.UpdateListing(ctx, added.ID, dataset.Patch{Title: &title})
	require.NoError(t, err)

	resp, err = svc.Search(ctx, SearchRequest{Query: "coffee"})
	require.NoError(t, err)
	require.True(t, resp.RetrainRequired)

	require.NoError(t, svc.DeleteListing(ctx, added.ID))
	require.ErrorIs(t, svc.DeleteListing(ctx, added.ID), ErrNotFound)
}

func TestService_RecommendUnknownListing(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))

	_, err := svc.Recommend(ctx, 404, 3, false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_SearchFilters(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))

	resp, err := svc.Search(ctx, SearchRequest{
		Query:   "franchise",
		Filters: search.Filters{Sector: "food & beverage"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		require.Equal(t, "Food & Beverage", r.Listing.Sector)
	}
}

func TestService_StorageInfoWithBackup(t *testing.T) {
	store := blobstore.NewMemoryStore()
	svc := newService(t, func(o *Options) { o.BackupStore = store })
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))

	info := svc.StorageInfo(ctx)
	require.Equal(t, "local+remote", info.StorageType)
	require.True(t, info.Loaded)
	require.Len(t, info.RemoteVersions, 1)

	// A new service restores from the remote store with an empty local dir.
	cfg := testConfig(t)
	cfg.DataPath = svc.cfg.DataPath
	restored, err := New(cfg, &testutil.MockEmbedder{Dim: 32}, func(o *Options) {
		o.Logger = NoopLogger()
		o.BackupStore = store
	})
	require.NoError(t, err)
	require.NoError(t, restored.Init(ctx))

	b, ok := restored.models.Current()
	require.True(t, ok)
	require.Equal(t, len(testutil.FixtureListings()), b.Meta.CorpusSize)
}

func TestService_UnknownBackupCodec(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.Codec = "msgpack"

	_, err := New(cfg, &testutil.MockEmbedder{Dim: 32}, func(o *Options) {
		o.Logger = NoopLogger()
		o.BackupStore = blobstore.NewMemoryStore()
	})
	require.ErrorContains(t, err, "backup codec")
}

func TestService_HasChanged(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))
	require.False(t, svc.HasChanged())

	_, err := svc.AddListing(ctx, dataset.Listing{Title: "X", Sector: "Y"})
	require.NoError(t, err)
	// Mutations through the service refresh the stored hash themselves.
	require.False(t, svc.HasChanged())
}

func TestMonitor_RetrainsOnDatasetChange(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))

	monitor, err := NewMonitor(svc, 20*time.Millisecond)
	require.NoError(t, err)
	monitor.Start()
	defer monitor.Stop()

	// An external writer edits the dataset file behind the service's back.
	external := dataset.Open(svc.cfg.DataPath)
	require.NoError(t, external.Load())
	_, err = external.Add(dataset.Listing{
		Title:  "Smoothie Shack",
		Sector: "Food & Beverage",
		Tags:   []string{"juice"},
	})
	require.NoError(t, err)
	require.True(t, svc.HasChanged())

	require.Eventually(t, func() bool {
		b, ok := svc.models.Current()
		return ok && b.Meta.CorpusSize == len(testutil.FixtureListings())+1 && !b.Stale
	}, 5*time.Second, 20*time.Millisecond)
}

func TestMonitor_InvalidInterval(t *testing.T) {
	svc := newService(t)
	_, err := NewMonitor(svc, 0)
	require.Error(t, err)
}
