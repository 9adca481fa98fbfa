// Package listingsearch is a hybrid listing-search service: dense semantic
// similarity and TF-IDF keyword matching combined into one ranking, with a
// managed model lifecycle (train, atomic swap, local artifacts, versioned
// remote backup) over a JSON-backed listing dataset.
package listingsearch

import (
	"context"
	"errors"
	"fmt"

	"github.com/franchisehub/listingsearch/backup"
	"github.com/franchisehub/listingsearch/blobstore"
	minioblob "github.com/franchisehub/listingsearch/blobstore/minio"
	s3blob "github.com/franchisehub/listingsearch/blobstore/s3"
	"github.com/franchisehub/listingsearch/codec"
	"github.com/franchisehub/listingsearch/config"
	"github.com/franchisehub/listingsearch/dataset"
	"github.com/franchisehub/listingsearch/embedding"
	"github.com/franchisehub/listingsearch/model"
	"github.com/franchisehub/listingsearch/search"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options contains configuration options for the service.
type Options struct {
	// Logger overrides the logger built from config.
	Logger *Logger

	// BackupStore overrides the blobstore built from config. Useful for
	// tests and custom backends.
	BackupStore blobstore.Store
}

// Service wires the dataset store, model manager, and search engine into the
// outward-facing operations. Construct with New, then call Init once before
// serving.
type Service struct {
	cfg    *config.Config
	logger *Logger

	store  *dataset.Store
	models *model.Manager
	engine *search.Engine
	backup *backup.Service
}

// New creates a service from configuration and an embedding model.
func New(cfg *config.Config, embedder embedding.Model, optFns ...func(o *Options)) (*Service, error) {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		level := ParseLevel(cfg.LogLevel)
		if cfg.LogFormat == "json" {
			logger = NewJSONLogger(level)
		} else {
			logger = NewTextLogger(level)
		}
	}

	store := dataset.Open(cfg.DataPath, func(o *dataset.Options) {
		o.Logger = logger.WithComponent("dataset").Logger
	})

	var backupSvc *backup.Service
	blobStore := opts.BackupStore
	if blobStore == nil && cfg.Backup.Enabled() {
		var err error
		blobStore, err = newBlobStore(cfg.Backup)
		if err != nil {
			return nil, fmt.Errorf("backup store: %w", err)
		}
	}
	if blobStore != nil {
		compression, err := backup.ParseCompression(cfg.Backup.Compression)
		if err != nil {
			return nil, err
		}
		manifestCodec := codec.Default
		if cfg.Backup.Codec != "" {
			var ok bool
			if manifestCodec, ok = codec.ByName(cfg.Backup.Codec); !ok {
				return nil, fmt.Errorf("unknown backup codec %q", cfg.Backup.Codec)
			}
		}
		backupSvc = backup.NewService(blobStore, func(o *backup.Options) {
			o.Compression = compression
			o.Codec = manifestCodec
			o.Logger = logger.WithComponent("backup").Logger
		})
	}

	models := model.NewManager(embedder, func(o *model.Options) {
		o.ModelsDir = cfg.ModelsDir
		o.Backup = backupSvc
		o.KeepVersions = cfg.Backup.KeepVersions
		o.Logger = logger.WithComponent("model").Logger
	})

	engine := search.NewEngine(store, models, func(o *search.Options) {
		o.Logger = logger.WithComponent("search").Logger
	})

	return &Service{
		cfg:    cfg,
		logger: logger,
		store:  store,
		models: models,
		engine: engine,
		backup: backupSvc,
	}, nil
}

func newBlobStore(cfg config.BackupConfig) (blobstore.Store, error) {
	switch cfg.Provider {
	case "s3":
		return s3blob.NewDefaultStore(context.Background(), cfg.Bucket, cfg.Prefix, cfg.Region)
	case "minio":
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds: credentials.NewEnvMinio(),
		})
		if err != nil {
			return nil, err
		}
		return minioblob.NewStore(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown backup provider %q", cfg.Provider)
	}
}

// Init loads the dataset and brings a model bundle online: restored from
// storage when one exists, trained from scratch otherwise.
func (s *Service) Init(ctx context.Context) error {
	if err := s.store.Load(); err != nil {
		return err
	}

	err := s.models.Load(ctx)
	if err == nil {
		// A bundle trained on a different corpus size cannot line up with
		// the live dataset rows.
		if b, ok := s.models.Current(); ok && b.Meta.CorpusSize == s.store.Len() {
			return nil
		}
		s.logger.Warn("loaded bundle does not match dataset size, retraining")
	} else if !errors.Is(err, model.ErrBundleNotFound) {
		s.logger.Warn("bundle load failed, retraining", "error", err)
	}

	return s.Train(ctx)
}

// SearchRequest parameterizes Search. Zero TopN and nil SemanticWeight fall
// back to the configured defaults.
type SearchRequest struct {
	Query          string
	TopN           int
	SemanticWeight *float64
	Filters        search.Filters
}

// Search runs a hybrid search. While no bundle is ready it fails with
// ErrUnavailable.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*search.Response, error) {
	topN := req.TopN
	if topN <= 0 {
		topN = s.cfg.Search.DefaultTopN
	}
	if topN > s.cfg.Search.MaxTopN {
		topN = s.cfg.Search.MaxTopN
	}

	weight := s.cfg.Search.SemanticWeight
	if req.SemanticWeight != nil {
		weight = *req.SemanticWeight
	}

	resp, err := s.engine.Search(ctx, req.Query, topN, weight, req.Filters)
	return resp, translateError(err)
}

// Recommend returns listings similar to the given one.
func (s *Service) Recommend(ctx context.Context, listingID, topN int, sameSectorOnly bool) (*search.Response, error) {
	if topN <= 0 {
		topN = s.cfg.Search.DefaultTopN
	}
	if topN > s.cfg.Search.MaxTopN {
		topN = s.cfg.Search.MaxTopN
	}

	resp, err := s.engine.Recommend(ctx, listingID, topN, sameSectorOnly)
	return resp, translateError(err)
}

// Autocomplete suggests completions for a partial query.
func (s *Service) Autocomplete(partial string, max int) ([]search.Suggestion, error) {
	if _, ok := s.models.Current(); !ok {
		return nil, ErrUnavailable
	}
	if max <= 0 {
		max = 8
	}
	return s.engine.Autocomplete(partial, max), nil
}

// AddListing validates and stores a new listing, then synchronously rebuilds
// the keyword scoring surface. The semantic index stays stale until the next
// Train; search responses flag this via RetrainRequired.
func (s *Service) AddListing(ctx context.Context, l dataset.Listing) (dataset.Listing, error) {
	added, err := s.store.Add(l)
	if err != nil {
		return dataset.Listing{}, translateError(err)
	}

	s.refreshKeywordSurface()
	return added, nil
}

// UpdateListing applies a partial update to a listing.
func (s *Service) UpdateListing(ctx context.Context, id int, patch dataset.Patch) (dataset.Listing, error) {
	updated, err := s.store.Update(id, patch)
	if err != nil {
		return dataset.Listing{}, translateError(err)
	}

	s.refreshKeywordSurface()
	return updated, nil
}

// DeleteListing removes a listing.
func (s *Service) DeleteListing(ctx context.Context, id int) error {
	if err := s.store.Delete(id); err != nil {
		return translateError(err)
	}

	s.refreshKeywordSurface()
	return nil
}

func (s *Service) refreshKeywordSurface() {
	err := s.models.RefreshKeywordMatrix(s.store.Texts())
	if err != nil && !errors.Is(err, model.ErrBundleNotFound) {
		s.logger.Error("keyword surface refresh failed", "error", err)
	}
}

// Train rebuilds the model bundle from the current dataset and publishes it.
func (s *Service) Train(ctx context.Context) error {
	return s.models.Train(ctx, s.store.Texts())
}

// HasChanged reports whether the dataset file changed since the last load or
// mutation, signaling that a retrain is warranted.
func (s *Service) HasChanged() bool {
	return s.store.HasChanged()
}

// StorageInfo reports artifact storage state.
func (s *Service) StorageInfo(ctx context.Context) model.StorageInfo {
	return s.models.StorageInfo(ctx)
}

// State returns the model lifecycle state.
func (s *Service) State() model.State {
	return s.models.State()
}

// Store exposes the dataset store for read-side helpers (sectors, tags).
func (s *Service) Store() *dataset.Store {
	return s.store
}
