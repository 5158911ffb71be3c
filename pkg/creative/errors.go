package creative

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrObjectNotFound indicates the object store has no such object (yet)
	ErrObjectNotFound = errors.New("object not found")

	// ErrEmptyObject indicates the object exists but returned no bytes
	ErrEmptyObject = errors.New("object is empty")

	// ErrRecordNotFound indicates no analysis record is stored for a content id
	ErrRecordNotFound = errors.New("analysis record not found")

	// ErrSideMetadataNotFound indicates no side metadata was written for a content id
	ErrSideMetadataNotFound = errors.New("side metadata not found")

	// ErrCorruptRecord indicates a stored record could not be decoded
	ErrCorruptRecord = errors.New("stored record is corrupt")

	// ErrInvalidCategory indicates an unknown category value
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInvalidLocator indicates an object URL or name that cannot be addressed
	ErrInvalidLocator = errors.New("invalid object locator")

	// ErrMissingContentID indicates a record or metadata entry without a key
	ErrMissingContentID = errors.New("content id is required")
)

// ConfigurationError reports a missing or unusable store configuration.
type ConfigurationError struct {
	Component string
	Err       error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Component, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// RetrievalError reports an object that could not be obtained within the
// retry budget, or a non-retryable fetch failure.
type RetrievalError struct {
	Locator  Locator
	Attempts int
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval of %s failed after %d attempt(s): %v", e.Locator, e.Attempts, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a record that could not be written.
type PersistenceError struct {
	ContentID string
	Attempts  int
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting analysis record %s failed after %d attempt(s): %v", e.ContentID, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to object store operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
