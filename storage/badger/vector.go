package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/storage"
)

// ctxCheckInterval is how many entries a scan visits between context checks.
const ctxCheckInterval = 256

type collectionMeta struct {
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

// collection is the decoded contents of a collection, ordered by id.
type collection struct {
	meta    collectionMeta
	entries []*core.VectorEntry
}

// VectorIndex implements storage.VectorIndex for BadgerDB.
// Decoded collections are cached in memory until they are modified or deleted.
type VectorIndex struct {
	backend *Backend
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]*collection
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a VectorIndex on an open backend.
// The backend is owned by the caller and is not closed by Close.
func NewVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{
		backend: backend,
		logger:  slog.Default().With("component", "vector-index"),
		cache:   make(map[string]*collection),
	}
}

// CreateCollection creates an empty collection.
func (v *VectorIndex) CreateCollection(ctx context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCollectionKey(name)
		if _, err := tx.Get(key); err == nil {
			return fmt.Errorf("collection %s: %w", name, storage.ErrAlreadyExists)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := sonic.Marshal(&collectionMeta{CreatedAt: time.Now().UTC()})
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		if err := tx.Set(key, data); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteCollection removes a collection and all of its entries.
func (v *VectorIndex) DeleteCollection(ctx context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.cache, name)

	keys, err := v.backend.scanKeys(makeVectorPrefix(name))
	if err != nil {
		return err
	}
	keys = append(keys, makeCollectionKey(name))
	err = v.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, key := range keys {
			if err := wb.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	v.logger.Debug("deleted collection", "collection", name, "entries", len(keys)-1)
	return nil
}

// Collections lists the names of all collections.
func (v *VectorIndex) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys, err := v.backend.scanKeys([]byte(collectionPrefix))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, parseCollectionKey(key))
	}
	return names, nil
}

// Add stores entries in a collection.
// Returns storage.ErrDuplicateKey if an id is already present.
func (v *VectorIndex) Add(ctx context.Context, name string, entries ...*core.VectorEntry) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	meta, err := v.loadMeta(name)
	if err != nil {
		return err
	}

	seen := make(map[core.ID]struct{}, len(entries))
	err = v.backend.WithTx(func(tx *badger.Txn) error {
		for _, entry := range entries {
			if err := core.ValidateVector(entry.Vector); err != nil {
				return fmt.Errorf("entry %d: %w", entry.Id, err)
			}
			if meta.Dimension == 0 {
				meta.Dimension = len(entry.Vector)
			}
			if len(entry.Vector) != meta.Dimension {
				return fmt.Errorf("entry %d has %d dimensions, collection has %d: %w",
					entry.Id, len(entry.Vector), meta.Dimension, storage.ErrDimensionMismatch)
			}
			if _, ok := seen[entry.Id]; ok {
				return fmt.Errorf("entry %d: %w", entry.Id, storage.ErrDuplicateKey)
			}
			seen[entry.Id] = struct{}{}
			if _, err := tx.Get(makeVectorKey(name, entry.Id)); err == nil {
				return fmt.Errorf("entry %d: %w", entry.Id, storage.ErrDuplicateKey)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	metaData, err := sonic.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	delete(v.cache, name)
	return v.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for i, entry := range entries {
			if i%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := wb.Set(makeVectorKey(name, entry.Id), storage.MarshalVectorEntry(entry)); err != nil {
				return err
			}
		}
		return wb.Set(makeCollectionKey(name), metaData)
	})
}

// Query returns up to k entries closest to vector by cosine distance.
func (v *VectorIndex) Query(ctx context.Context, name string, vector []float32, k int) ([]*core.VectorMatch, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	if err := core.ValidateVector(vector); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coll, err := v.collection(name)
	if err != nil {
		return nil, err
	}
	if len(coll.entries) > 0 && coll.meta.Dimension != len(vector) {
		return nil, fmt.Errorf("query has %d dimensions, collection %s has %d: %w",
			len(vector), name, coll.meta.Dimension, storage.ErrDimensionMismatch)
	}

	matches := make([]*core.VectorMatch, 0, len(coll.entries))
	for i, entry := range coll.entries {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		matches = append(matches, &core.VectorMatch{
			Id:       entry.Id,
			Distance: cosineDistance(vector, entry.Vector),
			Metadata: entry.Metadata,
		})
	}

	slices.SortFunc(matches, func(a, b *core.VectorMatch) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// IDs returns every id stored in a collection, ascending.
func (v *VectorIndex) IDs(ctx context.Context, name string) ([]core.ID, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if _, err := v.loadMeta(name); err != nil {
		return nil, err
	}
	keys, err := v.backend.scanKeys(makeVectorPrefix(name))
	if err != nil {
		return nil, err
	}
	ids := make([]core.ID, 0, len(keys))
	for _, key := range keys {
		id, err := parseVectorKey(name, key)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Close drops cached collections. The backend stays open.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.cache)
	return nil
}

// collection returns the decoded collection, loading it on first use.
func (v *VectorIndex) collection(name string) (*collection, error) {
	v.mu.RLock()
	coll, ok := v.cache[name]
	v.mu.RUnlock()
	if ok {
		return coll, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if coll, ok := v.cache[name]; ok {
		return coll, nil
	}
	meta, err := v.loadMeta(name)
	if err != nil {
		return nil, err
	}
	coll = &collection{meta: *meta}
	err = v.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorPrefix(name)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				entry, err := storage.UnmarshalVectorEntry(val)
				if err != nil {
					return err
				}
				coll.entries = append(coll.entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(coll.entries, func(a, b *core.VectorEntry) int {
		return cmp.Compare(a.Id, b.Id)
	})
	v.cache[name] = coll
	v.logger.Debug("loaded collection", "collection", name, "entries", len(coll.entries))
	return coll, nil
}

// loadMeta reads a collection's marker. Callers hold v.mu.
func (v *VectorIndex) loadMeta(name string) (*collectionMeta, error) {
	var meta collectionMeta
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCollectionKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("collection %s: %w", name, storage.ErrNotFound)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if err := sonic.Unmarshal(val, &meta); err != nil {
				return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
			}
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// cosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
