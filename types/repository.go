package types

import "context"

// BulkResult is the outcome of a bulk write or delete. Processed plus
// len(Unprocessed) always equals the number of input items: keys in chunks
// that were never attempted are reported as unprocessed too.
type BulkResult struct {
	Processed   int              `json:"processed"`
	Unprocessed []ItemIdentifier `json:"unprocessed,omitempty"`
}

// Total returns the number of items the operation was asked to handle.
func (r BulkResult) Total() int {
	return r.Processed + len(r.Unprocessed)
}

// Complete reports whether every item was handled.
func (r BulkResult) Complete() bool {
	return len(r.Unprocessed) == 0
}

// StagingStore owns ExecutionItem rows.
type StagingStore interface {
	// CreateOne writes a single execution item, omitting absent attributes.
	CreateOne(ctx context.Context, item *ExecutionItem) error

	// CreateBatch writes items in chunks of 25. Chunks are not atomic as a
	// whole: on failure the result tells which keys were left behind and
	// the error is a *PartialWriteError or a *StorageError.
	CreateBatch(ctx context.Context, items []*ExecutionItem) (BulkResult, error)

	// GetOne reads one execution item or returns an error wrapping
	// ErrNotFound.
	GetOne(ctx context.Context, executionID, guid string) (*ExecutionItem, error)

	// UpdateSummary sets the summary attribute of an existing item. It never
	// creates a row.
	UpdateSummary(ctx context.Context, executionID, guid, summary string) error

	// DeleteByRun removes every execution item of a run. Partial failure is
	// reported the same way as CreateBatch.
	DeleteByRun(ctx context.Context, executionID string) (BulkResult, error)
}

// DedupStore owns RecordItem rows.
type DedupStore interface {
	// Create marks guid as processed. Last write wins.
	Create(ctx context.Context, guid string) error

	// Exists reports whether guid has been processed.
	Exists(ctx context.Context, guid string) (bool, error)

	// Get reads the record item for guid or returns an error wrapping
	// ErrNotFound.
	Get(ctx context.Context, guid string) (*RecordItem, error)
}

// Repository is the union of both stores bound to one table and connection.
type Repository interface {
	StagingStore
	DedupStore
}
