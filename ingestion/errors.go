package ingestion

import "errors"

var (
	// ErrStructuredStoreRequired is returned when a structured store is not provided.
	ErrStructuredStoreRequired = errors.New("structured store required")

	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrSnapshotManagerRequired is returned when a snapshot manager is not provided.
	ErrSnapshotManagerRequired = errors.New("snapshot manager required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrIDCollision is returned when two different documents derive the same id.
	ErrIDCollision = errors.New("document id collision")
)
