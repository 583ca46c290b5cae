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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/patentindex"
	"github.com/poiesic/patentindex/ai"
	"github.com/poiesic/patentindex/ai/openai"
	"github.com/poiesic/patentindex/config"
	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/httpapi"
	"github.com/poiesic/patentindex/ingestion"
	"github.com/poiesic/patentindex/search"
)

// newProvider builds the embedding provider. Tests replace it.
var newProvider func(*ai.Config) (ai.AIProvider, error) = openai.NewProvider

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "patentindex",
		Usage: "Semantic search over patent application metadata",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "patentindex.yaml",
				EnvVars: []string{"PATENTINDEX_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to .env file loaded before anything else",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"PATENTINDEX_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the document and vector stores",
				EnvVars: []string{"PATENTINDEX_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				EnvVars: []string{"PATENTINDEX_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				EnvVars: []string{"PATENTINDEX_EMBEDDING_MODEL"},
			},
		},
		Before: func(c *cli.Context) error {
			if err := loadEnv(c.String("env-file")); err != nil {
				return err
			}
			return setupLogger(c)
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Build a new snapshot from a patent JSON export",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Path to the patentdata JSON file",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent embedding requests (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "Suppress the progress line",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed the active snapshot with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent embedding requests (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "Suppress the progress line",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query the active snapshot",
				ArgsUsage: "<query text>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of results (0 uses the configured default)",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the active snapshot and recent builds",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "runs",
						Usage: "Number of recent builds to list",
						Value: 5,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the query endpoint over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides config)",
					},
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Patentdata JSON file to rebuild from on SIGHUP or POST /rebuild",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent embedding requests during rebuilds (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "Suppress the rebuild progress line",
						Value: true,
					},
				},
			},
		},
	}
}

// loadEnv loads a .env file if one exists. Values already in the
// environment win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("embedding-host") {
		cfg.Embedder.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedder.Model = c.String("embedding-model")
	}
	return cfg, nil
}

func openCorpus(c *cli.Context, cfg *config.AppConfig) (*patentindex.Corpus, error) {
	aiConfig, err := cfg.AIConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	provider, err := newProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	corpus, err := patentindex.Open(c.Context, cfg.DataDir, patentindex.WithProvider(provider))
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to open corpus at %s: %w", cfg.DataDir, err)
	}
	return corpus, nil
}

func searcherOptions(cfg *config.AppConfig) []search.Option {
	return []search.Option{
		search.WithDefaultK(cfg.Search.DefaultK),
		search.WithTimeout(cfg.SearchTimeout()),
	}
}

// builderOptions applies config and the shared ingest/reembed flags.
func builderOptions(c *cli.Context, cfg *config.AppConfig) []ingestion.Option {
	opts := []ingestion.Option{
		ingestion.WithBatchSize(cfg.Embedder.BatchSize),
		ingestion.WithRetry(cfg.Build.MaxAttempts, cfg.RetryDelay()),
		ingestion.WithRateLimit(cfg.Build.RateLimit, cfg.Build.RateBurst),
	}
	workers := cfg.Build.Workers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}
	if workers > 0 {
		opts = append(opts, ingestion.WithPoolSize(workers))
	}
	if !c.Bool("quiet") {
		opts = append(opts, ingestion.WithProgress(c.App.ErrWriter))
	}
	return opts
}

func printReport(w io.Writer, report *core.BuildReport) {
	fmt.Fprintf(w, "Run %s published generation %d\n", report.RunID, report.Generation)
	fmt.Fprintf(w, "  records:    %d\n", report.Records)
	fmt.Fprintf(w, "  documents:  %d\n", report.Documents)
	fmt.Fprintf(w, "  duplicates: %d\n", report.Duplicates)
	fmt.Fprintf(w, "  malformed:  %d\n", report.Malformed)
	fmt.Fprintf(w, "  elapsed:    %s\n", report.Elapsed.Round(time.Millisecond))
}

func ingestCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	corpus, err := openCorpus(c, cfg)
	if err != nil {
		return err
	}
	defer corpus.Close()

	builder, err := corpus.NewBuilder(builderOptions(c, cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}
	defer builder.Release()

	source := c.String("source")
	slog.Info("building snapshot", "source", source, "data_dir", cfg.DataDir)
	report, err := builder.BuildFile(c.Context, source)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	printReport(c.App.Writer, report)
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	corpus, err := openCorpus(c, cfg)
	if err != nil {
		return err
	}
	defer corpus.Close()

	builder, err := corpus.NewBuilder(builderOptions(c, cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}
	defer builder.Release()

	slog.Info("reembedding active snapshot", "embedding_host", cfg.Embedder.Host, "embedding_model", cfg.Embedder.Model)
	report, err := builder.Reembed(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	printReport(c.App.Writer, report)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query text is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	corpus, err := openCorpus(c, cfg)
	if err != nil {
		return err
	}
	defer corpus.Close()

	searcher, err := corpus.NewSearcher(searcherOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	results, err := searcher.Search(c.Context, query, c.Int("k"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No results.")
		return nil
	}
	for i, result := range results {
		doc := result.Document
		fmt.Fprintf(c.App.Writer, "%d. %s  %s  %s  (distance %.4f, quality %d)\n",
			i+1, doc.Attributes.ApplicationNumber, doc.Attributes.FilingDate,
			doc.Attributes.EntityType, result.Distance, doc.QualityScore)
		fmt.Fprintf(c.App.Writer, "   %s\n", doc.DerivedText)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	corpus, err := openCorpus(c, cfg)
	if err != nil {
		return err
	}
	defer corpus.Close()

	status, err := corpus.Status(c.Context, c.Int("runs"))
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	w := c.App.Writer
	if status.Snapshot == nil {
		fmt.Fprintln(w, "No snapshot published.")
	} else {
		snap := status.Snapshot
		fmt.Fprintf(w, "Active snapshot: generation %d\n", snap.Generation)
		fmt.Fprintf(w, "  table:      %s\n", snap.Table)
		fmt.Fprintf(w, "  collection: %s\n", snap.Collection)
		fmt.Fprintf(w, "  documents:  %d\n", snap.Documents)
		fmt.Fprintf(w, "  run:        %s\n", snap.RunID)
		fmt.Fprintf(w, "  built at:   %s\n", snap.BuiltAt.Format(time.RFC3339))
	}

	if len(status.Runs) > 0 {
		fmt.Fprintln(w, "Recent builds:")
		for _, run := range status.Runs {
			fmt.Fprintf(w, "  %s  generation %d  %d documents  %d duplicates  %d malformed  %s\n",
				run.FinishedAt.Format(time.RFC3339), run.Generation, run.Documents,
				run.Duplicates, run.Malformed, run.RunID)
		}
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	corpus, err := openCorpus(c, cfg)
	if err != nil {
		return err
	}
	defer corpus.Close()

	searcher, err := corpus.NewSearcher(searcherOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	var handlerOpts []httpapi.HandlerOption
	if path := c.String("source"); path != "" {
		rebuilder, err := corpus.NewSourceBuilder(path, builderOptions(c, cfg)...)
		if err != nil {
			return fmt.Errorf("failed to create builder: %w", err)
		}
		defer rebuilder.Release()
		handlerOpts = append(handlerOpts, httpapi.WithRebuilder(rebuilder))

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go rebuildOnSignal(ctx, hup, rebuilder, slog.Default())
		slog.Info("rebuilds enabled", "source", path)
	}

	handler, err := httpapi.NewHandler(searcher, corpus.Snapshots(), slog.Default(), handlerOpts...)
	if err != nil {
		return err
	}
	router := httpapi.NewRouter(handler, cfg.Server.AllowOrigins, slog.Default())

	if _, ok := corpus.Snapshots().Current(); !ok {
		slog.Warn("no snapshot published; searches return 503 until a build completes")
	}
	return httpapi.NewServer(cfg.Server.Addr, router, slog.Default()).Run(ctx)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// rebuildOnSignal runs one rebuild per signal until ctx is done. Searches are
// served from the current snapshot while a rebuild runs.
func rebuildOnSignal(ctx context.Context, signals <-chan os.Signal, rebuilder httpapi.Rebuilder, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			logger.Info("rebuild requested", "signal", sig.String())
			report, err := rebuilder.Rebuild(ctx)
			if err != nil {
				logger.Error("rebuild failed, previous snapshot still served", "err", err)
				continue
			}
			logger.Info("rebuild published",
				"generation", report.Generation,
				"documents", report.Documents,
				"malformed", report.Malformed,
				"elapsed", report.Elapsed)
		}
	}
}
