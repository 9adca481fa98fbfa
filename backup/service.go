// Package backup implements versioned remote backups of model artifacts over
// a blobstore. Each backup version is a timestamped set of compressed
// artifact objects plus a manifest; a single latest pointer marks the most
// recent complete version.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/franchisehub/listingsearch/blobstore"
	"github.com/franchisehub/listingsearch/codec"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	backupPrefix   = "backups/"
	manifestPrefix = backupPrefix + "manifest_"
	latestKey      = "latest.json"

	timestampFormat = "20060102_150405"
)

// StorageError indicates a failed remote storage operation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("backup storage: %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("backup storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Manifest describes one backup version: the artifact name to remote key
// mapping uploaded under a shared timestamp.
type Manifest struct {
	Timestamp string            `json:"timestamp"`
	CreatedAt time.Time         `json:"created_at"`
	Artifacts map[string]string `json:"artifacts"`
}

// Version is a backup version summary as listed from the remote store.
type Version struct {
	Timestamp string
	CreatedAt time.Time
}

// Options contains configuration options for the backup service.
type Options struct {
	// Compression applied to artifacts before upload.
	Compression Compression

	// Concurrency bounds parallel artifact transfers.
	Concurrency int

	// UploadBytesPerSec throttles upload reads. 0 disables throttling.
	UploadBytesPerSec int

	// Clock supplies backup timestamps. Overridable for tests.
	Clock func() time.Time

	// Codec encodes manifests and the latest pointer.
	Codec codec.Codec

	Logger *slog.Logger
}

// Service uploads and restores model artifact versions.
type Service struct {
	store blobstore.Store
	opts  Options
}

// NewService creates a backup service over the given object store.
func NewService(store blobstore.Store, optFns ...func(o *Options)) *Service {
	opts := Options{
		Compression: CompressionGzip,
		Concurrency: 4,
		Clock:       time.Now,
		Codec:       codec.Default,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Service{store: store, opts: opts}
}

// artifactKey derives the remote key for an artifact within a version:
// backups/{stem}_{timestamp}{ext}{compression ext}.
func (s *Service) artifactKey(name, stamp string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s%s_%s%s%s", backupPrefix, stem, stamp, ext, s.opts.Compression.ext())
}

// Backup uploads the given artifacts (name to local path) as one new version.
// Artifacts upload in parallel; if any fails the version is incomplete, the
// latest pointer is left untouched, and a StorageError is returned.
func (s *Service) Backup(ctx context.Context, artifacts map[string]string) (*Manifest, error) {
	stamp := s.opts.Clock().UTC().Format(timestampFormat)

	manifest := &Manifest{
		Timestamp: stamp,
		CreatedAt: s.opts.Clock().UTC(),
		Artifacts: make(map[string]string, len(artifacts)),
	}
	for name := range artifacts {
		manifest.Artifacts[name] = s.artifactKey(name, stamp)
	}

	var (
		mu     sync.Mutex
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for name, localPath := range artifacts {
		g.Go(func() error {
			if err := s.uploadArtifact(gctx, localPath, manifest.Artifacts[name]); err != nil {
				s.opts.Logger.Error("artifact upload failed",
					"artifact", name, "key", manifest.Artifacts[name], "error", err)
				mu.Lock()
				failed = append(failed, name)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &StorageError{Op: "upload", Err: err}
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		return nil, &StorageError{
			Op:  "upload",
			Err: fmt.Errorf("%d of %d artifacts failed: %s", len(failed), len(artifacts), strings.Join(failed, ", ")),
		}
	}

	data, err := s.opts.Codec.Marshal(manifest)
	if err != nil {
		return nil, &StorageError{Op: "encode manifest", Err: err}
	}

	manifestKey := manifestPrefix + stamp + ".json"
	if err := s.store.Put(ctx, manifestKey, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, &StorageError{Op: "put", Key: manifestKey, Err: err}
	}

	// The latest pointer is updated last - readers either see the previous
	// complete version or this one, never a partial upload.
	if err := s.store.Put(ctx, latestKey, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, &StorageError{Op: "put", Key: latestKey, Err: err}
	}

	s.opts.Logger.Info("backup complete", "timestamp", stamp, "artifacts", len(artifacts))
	return manifest, nil
}

func (s *Service) uploadArtifact(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var src io.Reader = f
	if s.opts.UploadBytesPerSec > 0 {
		limiter := rate.NewLimiter(rate.Limit(s.opts.UploadBytesPerSec), s.opts.UploadBytesPerSec)
		src = &limitedReader{r: f, limiter: limiter, ctx: ctx}
	}

	var buf bytes.Buffer
	cw, err := s.opts.Compression.compress(&buf)
	if err != nil {
		return err
	}
	if _, err := io.Copy(cw, src); err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}

	return s.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
}

// Restore downloads the latest complete backup version into targetDir. Every
// artifact is downloaded to a temp file, its raw byte count validated against
// the remote object size, and only when all artifacts verified are they
// renamed into place. Any failure aborts the whole restore.
func (s *Service) Restore(ctx context.Context, targetDir string) (*Manifest, error) {
	manifest, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, &StorageError{Op: "restore", Err: err}
	}

	names := make([]string, 0, len(manifest.Artifacts))
	for name := range manifest.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	type staged struct {
		tmp   string
		final string
	}

	var stagedFiles []staged
	cleanup := func() {
		for _, f := range stagedFiles {
			os.Remove(f.tmp)
		}
	}

	for _, name := range names {
		key := manifest.Artifacts[name]

		tmp, err := s.downloadArtifact(ctx, key, targetDir)
		if err != nil {
			cleanup()
			return nil, err
		}
		stagedFiles = append(stagedFiles, staged{tmp: tmp, final: filepath.Join(targetDir, name)})
	}

	for _, f := range stagedFiles {
		if err := os.Rename(f.tmp, f.final); err != nil {
			cleanup()
			return nil, &StorageError{Op: "restore", Key: f.final, Err: err}
		}
	}

	s.opts.Logger.Info("restore complete", "timestamp", manifest.Timestamp, "artifacts", len(names), "dir", targetDir)
	return manifest, nil
}

// downloadArtifact fetches one artifact to a temp file in dir, validating the
// transferred byte count, and returns the temp path.
func (s *Service) downloadArtifact(ctx context.Context, key, dir string) (string, error) {
	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return "", &StorageError{Op: "stat", Key: key, Err: err}
	}

	r, err := s.store.Get(ctx, key)
	if err != nil {
		return "", &StorageError{Op: "get", Key: key, Err: err}
	}
	defer r.Close()

	counted := &countingReader{r: r}
	dec, err := decompressorForKey(key, counted)
	if err != nil {
		return "", &StorageError{Op: "decompress", Key: key, Err: err}
	}
	defer dec.Close()

	tmp, err := os.CreateTemp(dir, ".restore-*")
	if err != nil {
		return "", &StorageError{Op: "restore", Key: key, Err: err}
	}

	if _, err := io.Copy(tmp, dec); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &StorageError{Op: "download", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", &StorageError{Op: "restore", Key: key, Err: err}
	}

	// Raw (compressed) bytes read must match the remote object size, or the
	// transfer was truncated.
	if counted.n != info.Size {
		os.Remove(tmp.Name())
		return "", &StorageError{
			Op:  "download",
			Key: key,
			Err: fmt.Errorf("size mismatch: got %d bytes, want %d", counted.n, info.Size),
		}
	}

	return tmp.Name(), nil
}

// Latest fetches the manifest the latest pointer refers to. A missing pointer
// surfaces blobstore.ErrNotFound through the returned StorageError.
func (s *Service) Latest(ctx context.Context) (*Manifest, error) {
	r, err := s.store.Get(ctx, latestKey)
	if err != nil {
		return nil, &StorageError{Op: "get", Key: latestKey, Err: err}
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &StorageError{Op: "get", Key: latestKey, Err: err}
	}

	var manifest Manifest
	if err := s.opts.Codec.Unmarshal(data, &manifest); err != nil {
		return nil, &StorageError{Op: "decode", Key: latestKey, Err: err}
	}
	return &manifest, nil
}

// List returns backup versions newest-first. limit <= 0 returns all.
func (s *Service) List(ctx context.Context, limit int) ([]Version, error) {
	infos, err := s.store.List(ctx, manifestPrefix)
	if err != nil {
		return nil, &StorageError{Op: "list", Key: manifestPrefix, Err: err}
	}

	versions := make([]Version, 0, len(infos))
	for _, info := range infos {
		stamp := strings.TrimSuffix(strings.TrimPrefix(info.Name, manifestPrefix), ".json")
		created, err := time.Parse(timestampFormat, stamp)
		if err != nil {
			s.opts.Logger.Warn("skipping unparsable manifest key", "key", info.Name)
			continue
		}
		versions = append(versions, Version{Timestamp: stamp, CreatedAt: created})
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].Timestamp > versions[j].Timestamp })

	if limit > 0 && len(versions) > limit {
		versions = versions[:limit]
	}
	return versions, nil
}

// Prune deletes all but the keepN most recent versions. Deletion is
// best-effort: individual failures are logged and skipped.
func (s *Service) Prune(ctx context.Context, keepN int) error {
	if keepN < 1 {
		keepN = 1
	}

	versions, err := s.List(ctx, 0)
	if err != nil {
		return err
	}
	if len(versions) <= keepN {
		return nil
	}

	for _, v := range versions[keepN:] {
		s.pruneVersion(ctx, v.Timestamp)
	}
	return nil
}

func (s *Service) pruneVersion(ctx context.Context, stamp string) {
	manifestKey := manifestPrefix + stamp + ".json"

	r, err := s.store.Get(ctx, manifestKey)
	if err != nil {
		s.opts.Logger.Warn("prune: manifest unreadable", "key", manifestKey, "error", err)
	} else {
		data, err := io.ReadAll(r)
		r.Close()

		var manifest Manifest
		if err == nil {
			err = s.opts.Codec.Unmarshal(data, &manifest)
		}
		if err != nil {
			s.opts.Logger.Warn("prune: manifest undecodable", "key", manifestKey, "error", err)
		} else {
			for _, key := range manifest.Artifacts {
				if err := s.store.Delete(ctx, key); err != nil {
					s.opts.Logger.Warn("prune: delete failed", "key", key, "error", err)
				}
			}
		}
	}

	if err := s.store.Delete(ctx, manifestKey); err != nil {
		s.opts.Logger.Warn("prune: delete failed", "key", manifestKey, "error", err)
		return
	}

	s.opts.Logger.Info("pruned backup version", "timestamp", stamp)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// limitedReader throttles reads through a token bucket.
type limitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if burst := l.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}

	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.limiter.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
