package models

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteSelection is returned before any network call when a
	// commodity, district or market is missing.
	ErrIncompleteSelection = errors.New("incomplete selection: commodity, district and market are required")

	// ErrStaleSelection is returned when a value is not a member of the
	// currently fetched option set for its level.
	ErrStaleSelection = errors.New("stale selection")

	// ErrEmptyResultSet marks a remote lookup that succeeded with zero options.
	ErrEmptyResultSet = errors.New("empty result set")
)

// ConnectionError means the remote call could not complete (network, timeout, bad body).
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %s", e.Message)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// PredictionFailedError carries a structured business error returned by the service.
type PredictionFailedError struct {
	Message    string
	StatusCode int
}

func (e *PredictionFailedError) Error() string {
	return fmt.Sprintf("prediction failed: %s", e.Message)
}

// ValidationError rejects malformed input at the call site.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// StorageCorruptError describes a durable payload that could not be decoded.
// It is logged and recovered from, never returned to callers of the store.
type StorageCorruptError struct {
	Namespace string
	Err       error
}

func (e *StorageCorruptError) Error() string {
	return fmt.Sprintf("storage corrupt for namespace %q: %v", e.Namespace, e.Err)
}

func (e *StorageCorruptError) Unwrap() error {
	return e.Err
}
