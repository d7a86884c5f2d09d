package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrStorage is returned when the backing store is unreachable or a
	// write fails. Callers retry the surrounding operation on the next
	// tick rather than dropping work.
	ErrStorage = errors.New("storage operation failed")

	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrJobNotFound indicates that the requested job does not exist in the
	// live queue. Completion treats this as a no-op; see JobStore.Complete.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)

	// ErrScheduleNotFound indicates that no arming record exists for the
	// requested schedule name.
	ErrScheduleNotFound = fmt.Errorf("%w: schedule", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// This includes the generic ErrNotFound and all entity-specific not found errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStorageError checks if the error indicates a failure of the backing
// store itself, as opposed to a domain-level outcome such as "not found".
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage)
}
