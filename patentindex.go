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

package patentindex

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/poiesic/patentindex/ai"
	"github.com/poiesic/patentindex/ai/openai"
	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/ingestion"
	"github.com/poiesic/patentindex/search"
	"github.com/poiesic/patentindex/snapshot"
	"github.com/poiesic/patentindex/storage/badger"
	"github.com/poiesic/patentindex/storage/sqlite"
)

// VectorDir is the badger directory inside the data directory.
const VectorDir = "vectors"

// ErrSourceRequired is returned when a SourceBuilder is created without a source path.
var ErrSourceRequired = errors.New("source path required")

// Corpus wires the stores, the snapshot manager and the embedding provider
// together for one data directory.
type Corpus struct {
	backend  *badger.Backend
	index    *badger.VectorIndex
	catalog  *badger.Catalog
	store    *sqlite.Store
	manager  *snapshot.Manager
	provider ai.AIProvider
	logger   *slog.Logger
}

// CorpusOption configures a Corpus.
type CorpusOption func(*corpusOptions)

type corpusOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) CorpusOption {
	return func(o *corpusOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses an existing provider instead of building one from the AI config.
// The corpus takes ownership and closes it on Close.
func WithProvider(provider ai.AIProvider) CorpusOption {
	return func(o *corpusOptions) {
		o.provider = provider
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) CorpusOption {
	return func(o *corpusOptions) {
		o.logger = logger
	}
}

// Open opens or creates the corpus stored in dataDir and restores the
// last published snapshot.
func Open(ctx context.Context, dataDir string, opts ...CorpusOption) (*Corpus, error) {
	options := &corpusOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filepath.Join(dataDir, VectorDir), false)
	if err != nil {
		return nil, err
	}

	catalog, err := badger.NewCatalog(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	index := badger.NewVectorIndex(backend)

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		catalog.Close()
		backend.Close()
		return nil, err
	}

	c := &Corpus{
		backend: backend,
		index:   index,
		catalog: catalog,
		store:   store,
		logger:  options.logger,
	}

	c.manager, err = snapshot.NewManager(store, index, catalog, options.logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	if err := c.manager.Open(ctx); err != nil {
		c.Close()
		return nil, err
	}

	c.provider = options.provider
	if c.provider == nil {
		c.provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	return c, nil
}

// Close releases the provider and every store. Errors are joined.
func (c *Corpus) Close() error {
	var errs []error
	if c.provider != nil {
		if err := c.provider.Close(); err != nil {
			c.logger.Error("error closing AI provider", "err", err)
		}
	}
	if err := c.store.Close(); err != nil {
		c.logger.Error("error closing structured store", "err", err)
		errs = append(errs, err)
	}
	if err := c.index.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.catalog.Close(); err != nil {
		c.logger.Error("error closing catalog", "err", err)
		errs = append(errs, err)
	}
	if err := c.backend.Close(); err != nil {
		c.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Snapshots returns the snapshot manager.
func (c *Corpus) Snapshots() *snapshot.Manager {
	return c.manager
}

// NewBuilder creates a builder that records its runs in the corpus run log.
func (c *Corpus) NewBuilder(opts ...ingestion.Option) (*ingestion.Builder, error) {
	opts = append([]ingestion.Option{ingestion.WithRunLog(c.store), ingestion.WithLogger(c.logger)}, opts...)
	return ingestion.NewBuilder(c.store, c.index, c.manager, c.provider, opts...)
}

// SourceBuilder rebuilds the corpus from one source file. A running server
// uses it so rebuilds are published through the manager its searcher reads.
type SourceBuilder struct {
	builder *ingestion.Builder
	path    string
}

// NewSourceBuilder creates a SourceBuilder that reads path on every Rebuild.
func (c *Corpus) NewSourceBuilder(path string, opts ...ingestion.Option) (*SourceBuilder, error) {
	if path == "" {
		return nil, ErrSourceRequired
	}
	builder, err := c.NewBuilder(opts...)
	if err != nil {
		return nil, err
	}
	return &SourceBuilder{builder: builder, path: path}, nil
}

// Rebuild rereads the source file and publishes it as a new generation.
// It fails with core.ErrBuildInProgress while any other build of the corpus runs.
func (s *SourceBuilder) Rebuild(ctx context.Context) (*core.BuildReport, error) {
	return s.builder.BuildFile(ctx, s.path)
}

// Release frees the underlying builder.
func (s *SourceBuilder) Release() {
	s.builder.Release()
}

// NewSearcher creates a searcher over the corpus.
func (c *Corpus) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(c.logger)}, opts...)
	return search.NewSearcher(c.store, c.index, c.manager, c.provider, opts...)
}

// Status describes the active snapshot and recent builds.
type Status struct {
	Snapshot *core.SnapshotInfo
	Runs     []*core.BuildReport
}

// Status reports the active snapshot and up to runs recent builds.
func (c *Corpus) Status(ctx context.Context, runs int) (*Status, error) {
	status := &Status{}
	if info, ok := c.manager.Current(); ok {
		status.Snapshot = &info
	}
	recent, err := c.store.RecentRuns(ctx, runs)
	if err != nil {
		return nil, err
	}
	status.Runs = recent
	return status, nil
}
