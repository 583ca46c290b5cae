package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/poiesic/patentindex/core"
)

// Vector metadata keys stored alongside each embedding.
const (
	MetaApplicationNumber = core.AttrApplicationNumber
	MetaFilingDate        = core.AttrFilingDate
	MetaEntityType        = core.AttrEntityType
	MetaFingerprint       = "source_fingerprint"
	MetaQualityScore      = "quality_score"
)

// embed computes one vector entry per document, in document order.
// Batches run concurrently on the builder's pool; each batch is retried
// independently. The first failure cancels the remaining batches.
func (b *Builder) embed(ctx context.Context, docs []*core.Document, progress *ProgressTracker) ([]*core.VectorEntry, error) {
	entries := make([]*core.VectorEntry, len(docs))
	if len(docs) == 0 {
		return entries, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for start := 0; start < len(docs); start += b.batchSize {
		end := min(start+b.batchSize, len(docs))
		batch := docs[start:end]
		offset := start

		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			vectors, err := b.embedBatch(ctx, batch)
			if err != nil {
				fail(fmt.Errorf("batch at %d: %w", offset, err))
				return
			}
			for i, doc := range batch {
				entries[offset+i] = newVectorEntry(doc, vectors[i])
			}
			if progress != nil {
				progress.Increment(len(batch))
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submitting batch at %d: %w", offset, err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingBatch, firstErr)
	}

	dim := len(entries[0].Vector)
	for _, entry := range entries {
		if len(entry.Vector) != dim {
			return nil, fmt.Errorf("%w: document %d has %d dimensions, expected %d",
				core.ErrEmbeddingBatch, entry.Id, len(entry.Vector), dim)
		}
	}
	return entries, nil
}

// embedBatch embeds one batch with retries and validates the response.
func (b *Builder) embedBatch(ctx context.Context, batch []*core.Document) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.DerivedText
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		vectors, err = b.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(vectors))
		}
		return nil
	}, b.maxAttempts, b.retryDelay)
	if err != nil {
		return nil, err
	}

	for i, vector := range vectors {
		if err := core.ValidateVector(vector); err != nil {
			return nil, fmt.Errorf("document %d: %w", batch[i].Id, err)
		}
	}
	return vectors, nil
}

func newVectorEntry(doc *core.Document, vector []float32) *core.VectorEntry {
	return &core.VectorEntry{
		Id:     doc.Id,
		Vector: vector,
		Metadata: map[string]string{
			MetaApplicationNumber: doc.Attributes.ApplicationNumber,
			MetaFilingDate:        doc.Attributes.FilingDate,
			MetaEntityType:        doc.Attributes.EntityType,
			MetaFingerprint:       doc.Fingerprint,
			MetaQualityScore:      strconv.Itoa(doc.QualityScore),
		},
	}
}
