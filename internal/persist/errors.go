package persist

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Storage.Get and Storage.Delete for an identity
// with no stored record.
var ErrNotFound = errors.New("record not found")

// ErrClosed is returned for writes submitted after Flusher.Close.
var ErrClosed = errors.New("flusher closed")

// StorageError reports a failed storage operation.
type StorageError struct {
	// Op is the storage operation: get, put, delete or list.
	Op string

	// Identity is the affected record key, if any.
	Identity string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Identity == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Identity, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
