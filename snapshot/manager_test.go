package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/storage"
	"github.com/poiesic/patentindex/storage/badger"
	"github.com/poiesic/patentindex/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStores struct {
	store   *sqlite.Store
	index   *badger.VectorIndex
	catalog *badger.Catalog
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()
	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	index, catalog, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		catalog.Close()
		backend.Close()
		store.Close()
	})
	return &testStores{store: store, index: index, catalog: catalog}
}

func (s *testStores) manager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(s.store, s.index, s.catalog, nil)
	require.NoError(t, err)
	return m
}

// stage creates the table and collection for a generation.
func (s *testStores) stage(t *testing.T, generation uint64) core.SnapshotInfo {
	t.Helper()
	ctx := context.Background()
	name := storage.SnapshotName(generation)
	require.NoError(t, s.store.CreateTable(ctx, name))
	require.NoError(t, s.index.CreateCollection(ctx, name))
	return core.SnapshotInfo{
		Generation: generation,
		Table:      name,
		Collection: name,
		BuiltAt:    time.Now().UTC(),
	}
}

func (s *testStores) names(t *testing.T) ([]string, []string) {
	t.Helper()
	ctx := context.Background()
	tables, err := s.store.Tables(ctx)
	require.NoError(t, err)
	collections, err := s.index.Collections(ctx)
	require.NoError(t, err)
	return tables, collections
}

func TestNewManager_RequiresStores(t *testing.T) {
	s := newTestStores(t)

	_, err := NewManager(nil, s.index, s.catalog, nil)
	assert.ErrorIs(t, err, ErrStructuredStoreRequired)
	_, err = NewManager(s.store, nil, s.catalog, nil)
	assert.ErrorIs(t, err, ErrVectorIndexRequired)
	_, err = NewManager(s.store, s.index, nil, nil)
	assert.ErrorIs(t, err, ErrCatalogRequired)
}

func TestAcquire_BeforePublish(t *testing.T) {
	m := newTestStores(t).manager(t)

	_, err := m.Acquire()
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)

	_, ok := m.Current()
	assert.False(t, ok)
}

func TestPublish_SwapsAndRetires(t *testing.T) {
	s := newTestStores(t)
	m := s.manager(t)
	ctx := context.Background()

	first := s.stage(t, 1)
	require.NoError(t, m.Publish(ctx, first))

	lease, err := m.Acquire()
	require.NoError(t, err)
	assert.Equal(t, first.Table, lease.Table())
	assert.Equal(t, first.Collection, lease.Collection())
	lease.Release()
	lease.Release() // idempotent

	second := s.stage(t, 2)
	require.NoError(t, m.Publish(ctx, second))

	info, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(2), info.Generation)

	tables, collections := s.names(t)
	assert.Equal(t, []string{second.Table}, tables)
	assert.Equal(t, []string{second.Collection}, collections)

	persisted, err := s.catalog.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), persisted.Generation)
}

func TestPublish_Invalid(t *testing.T) {
	m := newTestStores(t).manager(t)

	err := m.Publish(context.Background(), core.SnapshotInfo{Generation: 1})
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestPublish_WaitsForLeases(t *testing.T) {
	s := newTestStores(t)
	m := s.manager(t)
	ctx := context.Background()

	first := s.stage(t, 1)
	require.NoError(t, m.Publish(ctx, first))
	lease, err := m.Acquire()
	require.NoError(t, err)

	second := s.stage(t, 2)
	done := make(chan error, 1)
	go func() {
		done <- m.Publish(ctx, second)
	}()

	// New readers see the new snapshot while the old one is still leased.
	require.Eventually(t, func() bool {
		info, _ := m.Current()
		return info.Generation == 2
	}, time.Second, 5*time.Millisecond)

	newLease, err := m.Acquire()
	require.NoError(t, err)
	assert.Equal(t, second.Table, newLease.Table())
	newLease.Release()

	select {
	case <-done:
		t.Fatal("publish retired a snapshot that is still leased")
	case <-time.After(50 * time.Millisecond):
	}
	ids, err := s.store.IDs(ctx, lease.Table())
	require.NoError(t, err, "leased table must still exist")
	assert.Empty(t, ids)

	lease.Release()
	require.NoError(t, <-done)

	tables, _ := s.names(t)
	assert.Equal(t, []string{second.Table}, tables)
}

func TestPublish_ConcurrentReaders(t *testing.T) {
	s := newTestStores(t)
	m := s.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Publish(ctx, s.stage(t, 1)))

	var (
		stop     atomic.Bool
		failures atomic.Int64
		wg       sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				lease, err := m.Acquire()
				if err != nil {
					failures.Add(1)
					continue
				}
				if _, err := s.store.IDs(ctx, lease.Table()); err != nil {
					failures.Add(1)
				}
				if _, err := s.index.IDs(ctx, lease.Collection()); err != nil {
					failures.Add(1)
				}
				lease.Release()
			}
		}()
	}

	for gen := uint64(2); gen <= 6; gen++ {
		require.NoError(t, m.Publish(ctx, s.stage(t, gen)))
	}
	stop.Store(true)
	wg.Wait()

	assert.Zero(t, failures.Load(), "readers must never observe a dropped snapshot")
	tables, collections := s.names(t)
	assert.Equal(t, []string{storage.SnapshotName(6)}, tables)
	assert.Equal(t, []string{storage.SnapshotName(6)}, collections)
}

func TestOpen_RestoresAndDropsOrphans(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	s.stage(t, 1)
	active := s.stage(t, 2)
	s.stage(t, 3)
	require.NoError(t, s.catalog.SaveCurrent(ctx, &active))
	require.NoError(t, s.store.CreateTable(ctx, "unrelated"))

	m := s.manager(t)
	require.NoError(t, m.Open(ctx))

	info, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, active.Generation, info.Generation)

	tables, collections := s.names(t)
	assert.Equal(t, []string{active.Table, "unrelated"}, tables)
	assert.Equal(t, []string{active.Collection}, collections)
}

func TestOpen_MissingStores(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	info := core.SnapshotInfo{Generation: 4, Table: "documents_g000004", Collection: "documents_g000004"}
	require.NoError(t, s.catalog.SaveCurrent(ctx, &info))
	require.NoError(t, s.store.CreateTable(ctx, info.Table))

	m := s.manager(t)
	require.NoError(t, m.Open(ctx))

	_, err := m.Acquire()
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)

	tables, _ := s.names(t)
	assert.Empty(t, tables)
}

func TestOpen_Empty(t *testing.T) {
	m := newTestStores(t).manager(t)
	require.NoError(t, m.Open(context.Background()))

	_, ok := m.Current()
	assert.False(t, ok)
}

func TestNextGeneration(t *testing.T) {
	m := newTestStores(t).manager(t)
	ctx := context.Background()

	a, err := m.NextGeneration(ctx)
	require.NoError(t, err)
	b, err := m.NextGeneration(ctx)
	require.NoError(t, err)
	assert.Greater(t, b, a)
}

func TestDiscard(t *testing.T) {
	s := newTestStores(t)
	m := s.manager(t)
	info := s.stage(t, 1)

	require.NoError(t, m.Discard(context.Background(), info.Table, info.Collection))
	tables, collections := s.names(t)
	assert.Empty(t, tables)
	assert.Empty(t, collections)
}

func TestBeginBuild_SingleWriter(t *testing.T) {
	m := newTestStores(t).manager(t)

	done, err := m.BeginBuild()
	require.NoError(t, err)

	_, err = m.BeginBuild()
	assert.ErrorIs(t, err, core.ErrBuildInProgress)

	done()
	again, err := m.BeginBuild()
	require.NoError(t, err)
	again()
}
