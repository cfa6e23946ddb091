package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) when a point read finds no row.
var ErrNotFound = errors.New("item not found")

// StorageError is a transport or table level failure of a storage operation.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s failed on table %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PartialWriteError is returned by bulk operations when some rows were not
// written or deleted. Result holds the keys that were left behind.
type PartialWriteError struct {
	Op     string
	Result BulkResult
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s left %d of %d items unprocessed", e.Op, len(e.Result.Unprocessed), e.Result.Total())
}

// ValidationError reports an entity that violates a key invariant. No I/O is
// performed when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError wraps a failure of an external collaborator (feed, model,
// publisher, secret store) with the item it was working on.
type UpstreamError struct {
	Service    string
	Op         string
	Identifier ItemIdentifier
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Identifier == (ItemIdentifier{}) {
		return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
	}

	return fmt.Sprintf("%s %s failed for %s: %v", e.Service, e.Op, e.Identifier, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
