package snapshot

import "errors"

var (
	// ErrStructuredStoreRequired is returned when a structured store is not provided.
	ErrStructuredStoreRequired = errors.New("structured store required")

	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrCatalogRequired is returned when a catalog is not provided.
	ErrCatalogRequired = errors.New("catalog required")

	// ErrInvalidSnapshot is returned when publishing a snapshot without a table or collection.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
