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

package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/poiesic/patentindex/ai"
	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/snapshot"
	"github.com/poiesic/patentindex/source"
	"github.com/poiesic/patentindex/storage"
)

const (
	defaultBatchSize   = 32
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
)

// Builder turns source records into published snapshots.
// Builders sharing a snapshot.Manager run one build at a time; the others
// fail with core.ErrBuildInProgress.
type Builder struct {
	store    storage.StructuredStore
	index    storage.VectorIndex
	manager  *snapshot.Manager
	embedder ai.Embedder
	runLog   storage.RunLog

	pool        *ants.Pool
	limiter     *rate.Limiter
	batchSize   int
	maxAttempts int
	retryDelay  time.Duration
	progress    io.Writer
	logger      *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithPoolSize sets how many embedding batches run concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			size = 1
		}

		if b.pool != nil {
			b.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		b.pool = pool
		return nil
	}
}

// WithBatchSize sets the number of documents embedded per request.
// Default is 32.
func WithBatchSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		b.batchSize = size
		return nil
	}
}

// WithRetry sets how many times each batch is attempted and the base
// backoff delay, which doubles after every failed attempt.
// Default is 3 attempts starting at 500ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(b *Builder) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		b.maxAttempts = maxAttempts
		b.retryDelay = baseDelay
		return nil
	}
}

// WithRateLimit caps embedding requests at perSecond, allowing bursts of
// burst requests. Retries count against the limit. Default is unlimited.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(b *Builder) error {
		if perSecond <= 0 {
			b.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithProgress reports embedding progress to w.
func WithProgress(w io.Writer) Option {
	return func(b *Builder) error {
		b.progress = w
		return nil
	}
}

// WithRunLog records a report for every successful build.
func WithRunLog(runLog storage.RunLog) Option {
	return func(b *Builder) error {
		b.runLog = runLog
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a new Builder.
func NewBuilder(
	store storage.StructuredStore,
	index storage.VectorIndex,
	manager *snapshot.Manager,
	provider ai.AIProvider,
	opts ...Option,
) (*Builder, error) {
	if store == nil {
		return nil, ErrStructuredStoreRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if manager == nil {
		return nil, ErrSnapshotManagerRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		store:       store,
		index:       index,
		manager:     manager,
		embedder:    provider.Embedder(),
		pool:        pool,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(b); optErr != nil {
			b.Release()
			return nil, optErr
		}
	}
	b.logger = b.logger.With("component", "builder")

	return b, nil
}

// BuildFile loads records from path and builds a snapshot from them.
func (b *Builder) BuildFile(ctx context.Context, path string) (*core.BuildReport, error) {
	records, err := source.Load(path)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, records)
}

// Build normalizes, embeds and stages records, then publishes them as the
// active snapshot. Either the whole build becomes visible or nothing does.
func (b *Builder) Build(ctx context.Context, records []source.Record) (*core.BuildReport, error) {
	done, err := b.manager.BeginBuild()
	if err != nil {
		return nil, err
	}
	defer done()

	start := time.Now()
	report := &core.BuildReport{
		RunID:   uuid.NewString(),
		Records: len(records),
	}
	logger := b.logger.With("run_id", report.RunID)
	logger.Info("starting build", "records", len(records))

	prep, err := prepare(records, logger)
	if err != nil {
		return nil, err
	}
	report.Duplicates = prep.duplicates
	report.Malformed = prep.malformed

	if err := b.publish(ctx, report, prep.docs, logger); err != nil {
		return nil, err
	}
	report.Elapsed = time.Since(start)
	b.recordRun(ctx, report, logger)

	logger.Info("build complete",
		"generation", report.Generation,
		"documents", report.Documents,
		"duplicates", report.Duplicates,
		"malformed", report.Malformed,
		"elapsed", report.Elapsed)
	return report, nil
}

// publish embeds docs, stages them under a fresh generation and makes that
// generation active. On success report carries the generation and document count.
func (b *Builder) publish(ctx context.Context, report *core.BuildReport, docs []*core.Document, logger *slog.Logger) error {
	var progress *ProgressTracker
	if b.progress != nil && len(docs) > 0 {
		progress = NewProgressTracker(b.progress, len(docs), b.batchSize)
		progress.Start()
	}
	entries, err := b.embed(ctx, docs, progress)
	if err != nil {
		if progress != nil {
			progress.Stop()
		}
		logger.Error("embedding failed", "err", err)
		return err
	}
	if progress != nil {
		progress.Finish()
	}

	generation, err := b.manager.NextGeneration(ctx)
	if err != nil {
		return fmt.Errorf("%w: reserving generation: %w", core.ErrStoreWrite, err)
	}
	name := storage.SnapshotName(generation)

	if err := b.stage(ctx, name, docs, entries); err != nil {
		b.discard(ctx, name, logger)
		logger.Error("staging failed", "generation", generation, "err", err)
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}

	info := core.SnapshotInfo{
		Generation: generation,
		Table:      name,
		Collection: name,
		Documents:  len(docs),
		RunID:      report.RunID,
		BuiltAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := b.manager.Publish(ctx, info); err != nil {
		b.discard(ctx, name, logger)
		return fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}

	report.Generation = generation
	report.Documents = len(docs)
	report.FinishedAt = info.BuiltAt
	return nil
}

func (b *Builder) recordRun(ctx context.Context, report *core.BuildReport, logger *slog.Logger) {
	if b.runLog == nil {
		return
	}
	if err := b.runLog.RecordRun(context.WithoutCancel(ctx), report); err != nil {
		logger.Warn("failed to record build run", "err", err)
	}
}

// Release releases resources including the worker pool.
// The builder should not be used after calling Release.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

func (b *Builder) discard(ctx context.Context, name string, logger *slog.Logger) {
	if err := b.manager.Discard(context.WithoutCancel(ctx), name, name); err != nil {
		// Open collects anything left behind.
		logger.Warn("failed to drop staged snapshot", "name", name, "err", err)
	}
}
