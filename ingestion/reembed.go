package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/storage"
)

// Reembed re-embeds every document of the active snapshot with the
// builder's embedder and publishes the result as a new generation.
// Documents are taken as stored, so the source file is not needed.
// Switching embedding models goes through here.
func (b *Builder) Reembed(ctx context.Context) (*core.BuildReport, error) {
	done, err := b.manager.BeginBuild()
	if err != nil {
		return nil, err
	}
	defer done()

	start := time.Now()
	docs, from, err := b.activeDocuments(ctx)
	if err != nil {
		return nil, err
	}

	report := &core.BuildReport{
		RunID:   uuid.NewString(),
		Records: len(docs),
	}
	logger := b.logger.With("run_id", report.RunID)
	logger.Info("starting reembed", "from_generation", from, "documents", len(docs))

	if err := b.publish(ctx, report, docs, logger); err != nil {
		return nil, err
	}
	report.Elapsed = time.Since(start)
	b.recordRun(ctx, report, logger)

	logger.Info("reembed complete",
		"from_generation", from,
		"generation", report.Generation,
		"documents", report.Documents,
		"elapsed", report.Elapsed)
	return report, nil
}

// activeDocuments reads all rows of the active table under a lease.
func (b *Builder) activeDocuments(ctx context.Context) ([]*core.Document, uint64, error) {
	lease, err := b.manager.Acquire()
	if err != nil {
		return nil, 0, err
	}
	defer lease.Release()

	docs, err := b.store.Select(ctx, lease.Table(), storage.Predicate{})
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", lease.Table(), err)
	}
	return docs, lease.Info().Generation, nil
}
