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

package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/storage"
)

// Catalog implements storage.Catalog for BadgerDB.
type Catalog struct {
	backend *Backend

	mu  sync.Mutex
	seq *badger.Sequence
}

var _ storage.Catalog = (*Catalog)(nil)

// NewCatalog creates a new Catalog.
func NewCatalog(backend *Backend) (*Catalog, error) {
	seq, err := backend.GetSequence(catalogGenerations)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		backend: backend,
		seq:     seq,
	}, nil
}

// SaveCurrent persists the active snapshot pointer.
func (c *Catalog) SaveCurrent(ctx context.Context, info *core.SnapshotInfo) error {
	if info == nil {
		return fmt.Errorf("%w: snapshot info is nil", storage.ErrInvalidQuery)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	value := storage.MarshalSnapshotInfo(info)
	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(catalogCurrentKey), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCurrent retrieves the active snapshot pointer.
// Returns nil, nil if nothing was ever published.
func (c *Catalog) LoadCurrent(ctx context.Context) (*core.SnapshotInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var info *core.SnapshotInfo
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(catalogCurrentKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			info, unmarshalErr = storage.UnmarshalSnapshotInfo(val)
			return unmarshalErr
		})
	}, false)

	return info, err
}

// NextGeneration returns a new generation number. Generations start at 1.
func (c *Catalog) NextGeneration(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == nil {
		return 0, storage.ErrStorageClosed
	}
	n, err := c.seq.Next()
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// Close releases the generation sequence. The backend stays open.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq == nil {
		return nil
	}
	err := c.seq.Release()
	c.seq = nil
	return err
}
