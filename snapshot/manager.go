// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/storage"
)

// stagedName matches names produced by storage.SnapshotName.
var stagedName = regexp.MustCompile(`^documents_g[0-9]+$`)

// Snapshot is one published (table, collection) pair.
type Snapshot struct {
	info core.SnapshotInfo

	mu      sync.RWMutex
	retired bool
}

// Lease pins a snapshot for reading until Release is called.
type Lease struct {
	snap *Snapshot
	once sync.Once
}

// Info returns the leased snapshot's description.
func (l *Lease) Info() core.SnapshotInfo {
	return l.snap.info
}

// Table returns the leased snapshot's table name.
func (l *Lease) Table() string {
	return l.snap.info.Table
}

// Collection returns the leased snapshot's collection name.
func (l *Lease) Collection() string {
	return l.snap.info.Collection
}

// Release unpins the snapshot. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(l.snap.mu.RUnlock)
}

// Manager owns the active snapshot pointer.
type Manager struct {
	store   storage.StructuredStore
	index   storage.VectorIndex
	catalog storage.Catalog
	logger  *slog.Logger

	current   atomic.Pointer[Snapshot]
	publishMu sync.Mutex
	buildMu   sync.Mutex
}

// NewManager creates a Manager. Call Open before use to restore the
// persisted snapshot.
func NewManager(store storage.StructuredStore, index storage.VectorIndex, catalog storage.Catalog, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, ErrStructuredStoreRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		index:   index,
		catalog: catalog,
		logger:  logger.With("component", "snapshot"),
	}, nil
}

// Open restores the persisted snapshot and drops staged tables and
// collections that no snapshot references, such as those left behind by a
// crashed build. It must not run concurrently with a build.
func (m *Manager) Open(ctx context.Context) error {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	info, err := m.catalog.LoadCurrent(ctx)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	var keepTable, keepCollection string
	if info != nil {
		ok, err := m.intact(ctx, info)
		if err != nil {
			return err
		}
		if ok {
			m.current.Store(&Snapshot{info: *info})
			keepTable, keepCollection = info.Table, info.Collection
			m.logger.Info("restored snapshot", "generation", info.Generation, "documents", info.Documents)
		} else {
			m.logger.Error("catalog references missing stores, index unavailable until next build",
				"table", info.Table, "collection", info.Collection)
		}
	}

	return m.dropOrphans(ctx, keepTable, keepCollection)
}

// Acquire leases the active snapshot.
// Returns core.ErrIndexUnavailable if nothing has been published.
func (m *Manager) Acquire() (*Lease, error) {
	for {
		snap := m.current.Load()
		if snap == nil {
			return nil, core.ErrIndexUnavailable
		}
		snap.mu.RLock()
		if !snap.retired {
			return &Lease{snap: snap}, nil
		}
		// Lost a race with Publish; the pointer already moved on.
		snap.mu.RUnlock()
	}
}

// Current returns the active snapshot's description.
func (m *Manager) Current() (core.SnapshotInfo, bool) {
	snap := m.current.Load()
	if snap == nil {
		return core.SnapshotInfo{}, false
	}
	return snap.info, true
}

// BeginBuild claims the single writer slot for a build and returns the func
// that releases it. Returns core.ErrBuildInProgress while another build holds it.
func (m *Manager) BeginBuild() (func(), error) {
	if !m.buildMu.TryLock() {
		return nil, core.ErrBuildInProgress
	}
	return m.buildMu.Unlock, nil
}

// NextGeneration reserves a generation number for a new build.
func (m *Manager) NextGeneration(ctx context.Context) (uint64, error) {
	return m.catalog.NextGeneration(ctx)
}

// Publish makes info the active snapshot and retires the previous one.
// The catalog is written before the swap, so a crash never leaves the
// persisted pointer behind the in-memory one.
func (m *Manager) Publish(ctx context.Context, info core.SnapshotInfo) error {
	if info.Table == "" || info.Collection == "" {
		return fmt.Errorf("%w: table and collection are required", ErrInvalidSnapshot)
	}

	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	if err := m.catalog.SaveCurrent(ctx, &info); err != nil {
		return fmt.Errorf("saving catalog: %w", err)
	}
	old := m.current.Swap(&Snapshot{info: info})
	m.logger.Info("published snapshot", "generation", info.Generation, "documents", info.Documents)

	if old != nil && old.info.Table != info.Table {
		m.retire(context.WithoutCancel(ctx), old)
	}
	return nil
}

// Discard drops a staged table and collection pair.
func (m *Manager) Discard(ctx context.Context, table, collection string) error {
	var errs []error
	if table != "" {
		if err := m.store.DropTable(ctx, table); err != nil {
			errs = append(errs, err)
		}
	}
	if collection != "" {
		if err := m.index.DeleteCollection(ctx, collection); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// retire waits for outstanding leases on snap, then drops its stores.
func (m *Manager) retire(ctx context.Context, snap *Snapshot) {
	snap.mu.Lock()
	snap.retired = true
	snap.mu.Unlock()

	if err := m.Discard(ctx, snap.info.Table, snap.info.Collection); err != nil {
		// Orphans are collected on the next Open.
		m.logger.Warn("failed to drop retired snapshot", "generation", snap.info.Generation, "err", err)
		return
	}
	m.logger.Debug("retired snapshot", "generation", snap.info.Generation)
}

// intact reports whether both stores of a snapshot exist.
func (m *Manager) intact(ctx context.Context, info *core.SnapshotInfo) (bool, error) {
	tables, err := m.store.Tables(ctx)
	if err != nil {
		return false, fmt.Errorf("listing tables: %w", err)
	}
	collections, err := m.index.Collections(ctx)
	if err != nil {
		return false, fmt.Errorf("listing collections: %w", err)
	}
	return slices.Contains(tables, info.Table) && slices.Contains(collections, info.Collection), nil
}

// dropOrphans removes every staged table and collection not being kept.
func (m *Manager) dropOrphans(ctx context.Context, keepTable, keepCollection string) error {
	tables, err := m.store.Tables(ctx)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	for _, name := range tables {
		if name == keepTable || !stagedName.MatchString(name) {
			continue
		}
		if err := m.store.DropTable(ctx, name); err != nil {
			return err
		}
		m.logger.Info("dropped orphaned table", "table", name)
	}

	collections, err := m.index.Collections(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}
	for _, name := range collections {
		if name == keepCollection || !stagedName.MatchString(name) {
			continue
		}
		if err := m.index.DeleteCollection(ctx, name); err != nil {
			return err
		}
		m.logger.Info("dropped orphaned collection", "collection", name)
	}
	return nil
}
