package backup

import (
	"errors"
	"fmt"
)

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("backup store is closed")

// StoreError represents an error from a backup store backend.
type StoreError struct {
	Backend   string // Store backend ("memory", "sqlite", "s3")
	Operation string // Operation that failed ("list", "delete", "store_marker", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, operation string, cause error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
