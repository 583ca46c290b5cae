package ingestion

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/patentindex/core"
)

// addChunkSize bounds the entries written per VectorIndex.Add call.
const addChunkSize = 512

// stage populates a new table and collection named name, concurrently, then
// checks that both hold exactly the expected ids.
func (b *Builder) stage(ctx context.Context, name string, docs []*core.Document, entries []*core.VectorEntry) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := b.store.CreateTable(gctx, name); err != nil {
			return err
		}
		return b.store.ReplaceTable(gctx, name, docs)
	})

	g.Go(func() error {
		if err := b.index.CreateCollection(gctx, name); err != nil {
			return err
		}
		for start := 0; start < len(entries); start += addChunkSize {
			end := min(start+addChunkSize, len(entries))
			if err := b.index.Add(gctx, name, entries[start:end]...); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return b.verify(ctx, name, docs)
}

// verify checks the one-to-one correspondence between table rows and
// collection entries.
func (b *Builder) verify(ctx context.Context, name string, docs []*core.Document) error {
	expected := make([]core.ID, len(docs))
	for i, doc := range docs {
		expected[i] = doc.Id
	}
	slices.Sort(expected)

	tableIDs, err := b.store.IDs(ctx, name)
	if err != nil {
		return err
	}
	collectionIDs, err := b.index.IDs(ctx, name)
	if err != nil {
		return err
	}
	if !slices.Equal(expected, tableIDs) {
		return fmt.Errorf("table %s ids do not match documents (%d rows, %d documents)", name, len(tableIDs), len(expected))
	}
	if !slices.Equal(expected, collectionIDs) {
		return fmt.Errorf("collection %s ids do not match documents (%d entries, %d documents)", name, len(collectionIDs), len(expected))
	}
	return nil
}
