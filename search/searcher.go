package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/patentindex/ai"
	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/snapshot"
	"github.com/poiesic/patentindex/storage"
)

const (
	// DefaultK is the number of results returned when the caller asks for none.
	DefaultK = 3

	// DefaultTimeout bounds query embedding and retrieval.
	DefaultTimeout = 10 * time.Second
)

// Searcher answers similarity queries against the active snapshot.
type Searcher struct {
	store    storage.StructuredStore
	index    storage.VectorIndex
	manager  *snapshot.Manager
	embedder ai.Embedder
	defaultK int
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithDefaultK sets the result count used when Search is called with k <= 0.
func WithDefaultK(k int) Option {
	return func(s *Searcher) error {
		if k < 1 {
			return fmt.Errorf("default k must be positive, got %d", k)
		}
		s.defaultK = k
		return nil
	}
}

// WithTimeout bounds each query's embedding and retrieval.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Searcher) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", timeout)
		}
		s.timeout = timeout
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	store storage.StructuredStore,
	index storage.VectorIndex,
	manager *snapshot.Manager,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if store == nil {
		return nil, ErrStructuredStoreRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if manager == nil {
		return nil, ErrSnapshotManagerRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		store:    store,
		index:    index,
		manager:  manager,
		embedder: provider.Embedder(),
		defaultK: DefaultK,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search returns up to k documents closest to query.
// k <= 0 selects the default.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, k, nil)
}

// SearchWithMonitor is Search with callbacks at each stage of the query.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, k int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query)

	normalized := core.NormalizeText(query)
	if normalized == "" {
		return nil, core.ErrEmptyQuery
	}
	monitor.AfterNormalization(normalized)
	if k <= 0 {
		k = s.defaultK
	}

	lease, err := s.manager.Acquire()
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vector, err := s.embedder.EmbedText(ctx, normalized)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	if err := core.ValidateVector(vector); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	monitor.AfterEmbedding(len(vector))

	matches, err := s.index.Query(ctx, lease.Collection(), vector, k)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Error("error querying vector index", "collection", lease.Collection(), "err", err)
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	monitor.AfterVectorSearch(matches)

	if len(matches) == 0 {
		monitor.Finish(nil)
		return []*core.SearchResult{}, nil
	}

	ids := make([]core.ID, len(matches))
	for i, match := range matches {
		ids[i] = match.Id
	}
	docs, err := s.store.Select(ctx, lease.Table(), storage.Predicate{IDs: ids})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Error("error retrieving documents", "table", lease.Table(), "count", len(ids), "err", err)
		return nil, fmt.Errorf("retrieving documents: %w", err)
	}
	monitor.AfterRecordRetrieval(docs)

	byID := make(map[core.ID]*core.Document, len(docs))
	for _, doc := range docs {
		byID[doc.Id] = doc
	}

	// Keep retrieval order, not table order.
	results := make([]*core.SearchResult, 0, len(matches))
	for _, match := range matches {
		doc, ok := byID[match.Id]
		if !ok {
			s.logger.Warn("vector has no matching row", "id", match.Id, "table", lease.Table())
			continue
		}
		results = append(results, &core.SearchResult{
			Document: doc,
			Distance: match.Distance,
		})
	}
	monitor.Finish(results)

	return results, nil
}

// Lookup returns the document with the given application number.
func (s *Searcher) Lookup(ctx context.Context, applicationNumber string) (*core.Document, error) {
	if applicationNumber == "" {
		return nil, fmt.Errorf("%w: application number is required", storage.ErrInvalidQuery)
	}
	docs, err := s.selectActive(ctx, storage.Predicate{ApplicationNumber: applicationNumber, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrDocumentNotFound
	}
	return docs[0], nil
}

// Browse returns up to limit documents whose summary contains text.
// An empty text lists documents in id order.
func (s *Searcher) Browse(ctx context.Context, text string, limit int) ([]*core.Document, error) {
	if limit <= 0 {
		limit = s.defaultK
	}
	return s.selectActive(ctx, storage.Predicate{SummaryContains: text, Limit: limit})
}

// selectActive runs a structured query against the active snapshot's table.
func (s *Searcher) selectActive(ctx context.Context, pred storage.Predicate) ([]*core.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lease, err := s.manager.Acquire()
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	docs, err := s.store.Select(ctx, lease.Table(), pred)
	if err != nil {
		return nil, fmt.Errorf("selecting documents: %w", err)
	}
	return docs, nil
}
