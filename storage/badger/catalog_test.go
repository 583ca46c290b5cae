package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/patentindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_LoadCurrentEmpty(t *testing.T) {
	index, catalog, backend, err := NewMemoryStores()
	require.NoError(t, err)
	defer func() {
		index.Close()
		catalog.Close()
		backend.Close()
	}()

	info, err := catalog.LoadCurrent(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestCatalog_SaveAndLoadCurrent(t *testing.T) {
	index, catalog, backend, err := NewMemoryStores()
	require.NoError(t, err)
	defer func() {
		index.Close()
		catalog.Close()
		backend.Close()
	}()
	ctx := context.Background()

	info := &core.SnapshotInfo{
		Generation: 3,
		Table:      "documents_g000003",
		Collection: "documents_g000003",
		Documents:  12,
		RunID:      "run-1",
		BuiltAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, catalog.SaveCurrent(ctx, info))

	loaded, err := catalog.LoadCurrent(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, info.Generation, loaded.Generation)
	assert.Equal(t, info.Table, loaded.Table)
	assert.Equal(t, info.Documents, loaded.Documents)
	assert.Equal(t, info.RunID, loaded.RunID)
	assert.True(t, info.BuiltAt.Equal(loaded.BuiltAt))

	info.Generation = 4
	require.NoError(t, catalog.SaveCurrent(ctx, info))
	loaded, err = catalog.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), loaded.Generation)
}

func TestCatalog_NextGenerationIncreases(t *testing.T) {
	index, catalog, backend, err := NewMemoryStores()
	require.NoError(t, err)
	defer func() {
		index.Close()
		catalog.Close()
		backend.Close()
	}()
	ctx := context.Background()

	first, err := catalog.NextGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)

	second, err := catalog.NextGeneration(ctx)
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestCatalog_NextGenerationSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	catalog, err := NewCatalog(backend)
	require.NoError(t, err)
	first, err := catalog.NextGeneration(ctx)
	require.NoError(t, err)
	require.NoError(t, catalog.Close())
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	catalog, err = NewCatalog(backend)
	require.NoError(t, err)
	defer catalog.Close()

	next, err := catalog.NextGeneration(ctx)
	require.NoError(t, err)
	assert.Greater(t, next, first)
}

func TestCatalog_NextGenerationAfterClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()
	catalog, err := NewCatalog(backend)
	require.NoError(t, err)
	require.NoError(t, catalog.Close())

	_, err = catalog.NextGeneration(context.Background())
	assert.Error(t, err)
}
