package ingestion

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/poiesic/patentindex/ai/mock"
	"github.com/poiesic/patentindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReembed_PublishesNewGenerationWithSameDocuments(t *testing.T) {
	h := newHarness(t)
	b := h.builder(t)
	ctx := context.Background()

	_, err := b.Build(ctx, sampleRecords())
	require.NoError(t, err)
	before, beforeDocs, beforeIDs := h.active(t)

	var (
		mu   sync.Mutex
		seen []string
	)
	h.embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		mu.Lock()
		seen = append(seen, texts...)
		mu.Unlock()
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.HashVector("reembedded "+text, mock.Dimension)
		}
		return out, nil
	}

	report, err := b.Reembed(ctx)
	require.NoError(t, err)
	assert.Greater(t, report.Generation, before.Generation)
	assert.Equal(t, len(beforeDocs), report.Documents)
	assert.Equal(t, len(beforeDocs), report.Records)
	assert.Zero(t, report.Duplicates)

	after, afterDocs, afterIDs := h.active(t)
	assert.Equal(t, report.Generation, after.Generation)
	assert.Equal(t, beforeIDs, afterIDs)
	require.Len(t, afterDocs, len(beforeDocs))
	for i := range beforeDocs {
		assert.Equal(t, beforeDocs[i].Fingerprint, afterDocs[i].Fingerprint)
		assert.Equal(t, beforeDocs[i].DerivedText, afterDocs[i].DerivedText)
	}

	summaries := make([]string, len(beforeDocs))
	for i, doc := range beforeDocs {
		summaries[i] = doc.DerivedText
	}
	slices.Sort(seen)
	slices.Sort(summaries)
	assert.Equal(t, summaries, seen)
}

func TestReembed_NoSnapshot(t *testing.T) {
	h := newHarness(t)
	_, err := h.builder(t).Reembed(context.Background())
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)
}

func TestReembed_FailureKeepsActiveSnapshot(t *testing.T) {
	h := newHarness(t)
	b := h.builder(t)
	ctx := context.Background()

	_, err := b.Build(ctx, sampleRecords())
	require.NoError(t, err)
	before, _, _ := h.active(t)

	h.embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("model unloaded")
	}
	_, err = b.Reembed(ctx)
	assert.ErrorIs(t, err, core.ErrEmbeddingBatch)

	after, _, _ := h.active(t)
	assert.Equal(t, before, after)
}
