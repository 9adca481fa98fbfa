package listingsearch

import (
	"errors"
	"fmt"

	"github.com/franchisehub/listingsearch/dataset"
	"github.com/franchisehub/listingsearch/model"
	"github.com/franchisehub/listingsearch/search"
)

var (
	// ErrNotFound is returned when a listing does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned while no trained model bundle is ready to
	// serve requests.
	ErrUnavailable = errors.New("service unavailable: model not ready")
)

// translateError maps inner package errors onto the service-level taxonomy.
// Typed errors carrying detail (ValidationError, StorageError, TrainingError)
// pass through untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, dataset.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// A missing or not-yet-aligned bundle means the caller retries later.
	if errors.Is(err, model.ErrBundleNotFound) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if errors.Is(err, search.ErrNotIndexed) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return err
}
