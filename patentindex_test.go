package patentindex

import (
	"context"
	"sync"
	"testing"

	"github.com/poiesic/patentindex/ai/mock"
	"github.com/poiesic/patentindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPatents = "source/testdata/patents.json"

func openTestCorpus(t *testing.T, dir string) (*Corpus, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider().(*mock.MockProvider)
	corpus, err := Open(context.Background(), dir, WithProvider(provider))
	require.NoError(t, err)
	return corpus, provider
}

func TestOpen_EmptyDirectoryHasNoSnapshot(t *testing.T) {
	corpus, _ := openTestCorpus(t, t.TempDir())
	defer corpus.Close()

	status, err := corpus.Status(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, status.Snapshot)
	assert.Empty(t, status.Runs)

	searcher, err := corpus.NewSearcher()
	require.NoError(t, err)
	_, err = searcher.Search(context.Background(), "alice", 3)
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)
}

func TestCorpus_BuildSearchAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	corpus, provider := openTestCorpus(t, dir)
	builder, err := corpus.NewBuilder()
	require.NoError(t, err)
	report, err := builder.BuildFile(ctx, testPatents)
	require.NoError(t, err)
	builder.Release()
	assert.Equal(t, 2, report.Documents)

	status, err := corpus.Status(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, status.Snapshot)
	assert.Equal(t, report.Generation, status.Snapshot.Generation)
	require.Len(t, status.Runs, 1)
	assert.Equal(t, report.RunID, status.Runs[0].RunID)

	require.NoError(t, corpus.Close())
	assert.True(t, provider.Closed())

	reopened, _ := openTestCorpus(t, dir)
	defer reopened.Close()

	info, ok := reopened.Snapshots().Current()
	require.True(t, ok)
	assert.Equal(t, report.Generation, info.Generation)

	searcher, err := reopened.NewSearcher()
	require.NoError(t, err)
	results, err := searcher.Search(ctx, "alice smith", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)

	numbers := []string{results[0].Document.Attributes.ApplicationNumber, results[1].Document.Attributes.ApplicationNumber}
	assert.ElementsMatch(t, []string{"17123456", "18000001"}, numbers)

	doc, err := searcher.Lookup(ctx, "18000001")
	require.NoError(t, err)
	assert.Equal(t, "SMALL", doc.Attributes.EntityType)
}

func TestCorpus_RebuildReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	corpus, _ := openTestCorpus(t, t.TempDir())
	defer corpus.Close()

	builder, err := corpus.NewBuilder()
	require.NoError(t, err)
	defer builder.Release()

	first, err := builder.BuildFile(ctx, testPatents)
	require.NoError(t, err)
	second, err := builder.BuildFile(ctx, testPatents)
	require.NoError(t, err)
	assert.Greater(t, second.Generation, first.Generation)

	status, err := corpus.Status(ctx, 1)
	require.NoError(t, err)
	require.Len(t, status.Runs, 1)
	assert.Equal(t, second.RunID, status.Runs[0].RunID)
	assert.Equal(t, second.Generation, status.Snapshot.Generation)
}

func TestNewSourceBuilder_RequiresPath(t *testing.T) {
	corpus, _ := openTestCorpus(t, t.TempDir())
	defer corpus.Close()

	_, err := corpus.NewSourceBuilder("")
	assert.ErrorIs(t, err, ErrSourceRequired)
}

func TestCorpus_BuildersShareWriterSlot(t *testing.T) {
	ctx := context.Background()
	corpus, provider := openTestCorpus(t, t.TempDir())
	defer corpus.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		once.Do(func() { close(entered) })
		<-release
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.HashVector(text, mock.Dimension)
		}
		return out, nil
	}

	rebuilder, err := corpus.NewSourceBuilder(testPatents)
	require.NoError(t, err)
	defer rebuilder.Release()
	other, err := corpus.NewBuilder()
	require.NoError(t, err)
	defer other.Release()

	done := make(chan error, 1)
	go func() {
		_, err := rebuilder.Rebuild(ctx)
		done <- err
	}()
	<-entered

	_, err = other.BuildFile(ctx, testPatents)
	assert.ErrorIs(t, err, core.ErrBuildInProgress)

	close(release)
	require.NoError(t, <-done)

	status, err := corpus.Status(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, status.Snapshot)
	assert.Equal(t, uint64(1), status.Snapshot.Generation)
	assert.Len(t, status.Runs, 1)
}
