// Package blobstore abstracts the object storage used for remote backups.
// Backends exist for the local file system, in-memory (tests), MinIO, and S3.
package blobstore

import (
	"context"
	"io"
	"os"
	"time"
)

// ErrNotFound is returned when an object does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// Store is an abstraction for accessing immutable backup objects.
type Store interface {
	// Put writes an object. size is the exact byte count of r; backends may
	// pass -1 for unknown sizes where the implementation supports it.
	Put(ctx context.Context, name string, r io.Reader, size int64) error

	// Get opens an object for reading. The caller closes the reader.
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Stat returns object metadata without reading the body.
	Stat(ctx context.Context, name string) (ObjectInfo, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all objects under the given prefix, sorted by name.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
