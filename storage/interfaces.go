package storage

import (
	"context"

	"github.com/poiesic/patentindex/core"
)

// VectorIndex stores embedding collections keyed by document id and answers
// nearest-neighbour queries. Implementations must be thread-safe.
type VectorIndex interface {
	// CreateCollection creates an empty collection.
	// Returns ErrAlreadyExists if the collection exists.
	CreateCollection(ctx context.Context, name string) error

	// DeleteCollection removes a collection and all of its entries.
	// Deleting a missing collection is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// Collections lists the names of all collections.
	Collections(ctx context.Context) ([]string, error)

	// Add stores entries in a collection. Every vector in a collection must
	// have the same dimension.
	// Returns ErrNotFound if the collection doesn't exist.
	Add(ctx context.Context, name string, entries ...*core.VectorEntry) error

	// Query returns up to k entries closest to vector, ordered by ascending
	// cosine distance with ties broken by ascending id.
	// Returns ErrNotFound if the collection doesn't exist.
	Query(ctx context.Context, name string, vector []float32, k int) ([]*core.VectorMatch, error)

	// IDs returns every id stored in a collection, ascending.
	IDs(ctx context.Context, name string) ([]core.ID, error)

	// Close releases resources held by the index.
	Close() error
}

// Predicate selects rows from a structured table. Zero-valued fields do not
// constrain the result; a zero Predicate selects every row.
type Predicate struct {
	// IDs restricts rows to the given document ids.
	IDs []core.ID

	// ApplicationNumber matches the application number exactly.
	ApplicationNumber string

	// SummaryContains matches rows whose summary contains the text after
	// core.NormalizeText is applied to it.
	SummaryContains string

	// Limit caps the number of rows returned. 0 means no limit.
	Limit int
}

// StructuredStore keeps documents in relational tables keyed by document id.
// Implementations must be thread-safe.
type StructuredStore interface {
	// CreateTable creates an empty document table.
	// Returns ErrAlreadyExists if the table exists.
	CreateTable(ctx context.Context, name string) error

	// ReplaceTable replaces every row in the table with docs in one transaction.
	// Returns ErrNotFound if the table doesn't exist.
	ReplaceTable(ctx context.Context, name string, docs []*core.Document) error

	// Select returns rows matching the predicate, ordered by ascending id.
	Select(ctx context.Context, name string, pred Predicate) ([]*core.Document, error)

	// IDs returns every id stored in the table, ascending.
	IDs(ctx context.Context, name string) ([]core.ID, error)

	// DropTable removes a table. Dropping a missing table is not an error.
	DropTable(ctx context.Context, name string) error

	// Tables lists the document tables.
	Tables(ctx context.Context) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// Catalog persists the pointer to the active snapshot.
type Catalog interface {
	// LoadCurrent returns the active snapshot, or nil, nil if none was ever published.
	LoadCurrent(ctx context.Context) (*core.SnapshotInfo, error)

	// SaveCurrent atomically replaces the active snapshot pointer.
	SaveCurrent(ctx context.Context, info *core.SnapshotInfo) error

	// NextGeneration returns a new, never before issued generation number.
	NextGeneration(ctx context.Context) (uint64, error)
}

// RunLog records the outcome of completed builds.
type RunLog interface {
	// RecordRun appends a build report.
	RecordRun(ctx context.Context, report *core.BuildReport) error

	// RecentRuns returns up to limit reports, newest first.
	RecentRuns(ctx context.Context, limit int) ([]*core.BuildReport, error)
}
