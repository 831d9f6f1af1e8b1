package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"pdfrag/internal/app"
	"pdfrag/internal/config"
	"pdfrag/internal/rag"
	"pdfrag/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// configKey holds the loaded configuration in the cli metadata.
const configKey = "config"

func newApp() *cli.App {
	return &cli.App{
		Name:  "ingest",
		Usage: "Index PDF documents into a vector collection and query it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input-dir", Aliases: []string{"i"}, Usage: "Directory scanned for PDF files", EnvVars: []string{"INPUT_DIR"}},
			&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Usage: "Vector collection name", EnvVars: []string{"COLLECTION"}},
			&cli.StringFlag{Name: "vector-store", Usage: "Vector store backend (qdrant, memory)", EnvVars: []string{"VECTOR_STORE"}},
			&cli.StringFlag{Name: "qdrant-url", Usage: "Qdrant HTTP URL", EnvVars: []string{"QDRANT_URL"}},
			&cli.StringFlag{Name: "embedding-provider", Usage: "Embedding provider (local, remote, openai)", EnvVars: []string{"EMBEDDING_PROVIDER"}},
			&cli.StringFlag{Name: "embedding-base-url", Usage: "Embedding service base URL", EnvVars: []string{"EMBEDDING_BASE_URL"}},
			&cli.StringFlag{Name: "embedding-model", Usage: "Embedding model name", EnvVars: []string{"EMBEDDING_MODEL"}},
			&cli.IntFlag{Name: "chunk-size", Usage: "Maximum chunk length in characters", EnvVars: []string{"CHUNK_SIZE"}},
			&cli.IntFlag{Name: "chunk-overlap", Usage: "Characters shared by consecutive chunks", EnvVars: []string{"CHUNK_OVERLAP"}},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Documents processed concurrently", EnvVars: []string{"INGEST_WORKERS"}},
			&cli.StringFlag{Name: "pdf-extractor", Usage: "PDF text extractor (native, pdftotext)", EnvVars: []string{"PDF_EXTRACTOR"}},
			&cli.StringFlag{Name: "ledger", Usage: "Path to the ingestion ledger database", EnvVars: []string{"LEDGER_PATH"}},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: "Set logging level (debug, info, warn, error)", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: loadConfig,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Index every PDF under the input directory",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "reset", Usage: "Delete the collection before indexing"},
				},
			},
			{
				Name:      "search",
				Usage:     "Retrieve the chunks most relevant to a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Number of chunks to return"},
					&cli.StringFlag{Name: "category", Usage: "Restrict results to one category"},
					&cli.BoolFlag{Name: "json", Usage: "Print the full response as JSON"},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show the collection size and a sample of stored chunks",
				Action: statsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "sample", Usage: "Number of chunks to sample", Value: 5},
				},
			},
			{
				Name:   "delete-collection",
				Usage:  "Delete the vector collection",
				Action: deleteCollectionCommand,
			},
			{
				Name:   "runs",
				Usage:  "List recorded ingestion runs",
				Action: runsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs", Value: 10},
					&cli.StringFlag{Name: "id", Usage: "Show the documents of one run"},
				},
			},
		},
	}
}

// loadConfig reads the environment configuration, applies flag overrides,
// validates the result once and configures logging.
func loadConfig(c *cli.Context) error {
	cfg, err := config.LoadUnvalidated()
	if err != nil {
		return err
	}

	strs := map[string]*string{
		"input-dir":          &cfg.InputDir,
		"collection":         &cfg.Collection,
		"vector-store":       &cfg.VectorStore,
		"qdrant-url":         &cfg.QdrantURL,
		"embedding-provider": &cfg.EmbeddingProvider,
		"embedding-base-url": &cfg.EmbeddingBaseURL,
		"embedding-model":    &cfg.EmbeddingModel,
		"pdf-extractor":      &cfg.PDFExtractor,
		"ledger":             &cfg.LedgerPath,
		"log-level":          &cfg.LogLevel,
	}
	for name, dest := range strs {
		if c.IsSet(name) {
			*dest = c.String(name)
		}
	}
	ints := map[string]*int{
		"chunk-size":    &cfg.ChunkSize,
		"chunk-overlap": &cfg.ChunkOverlap,
		"workers":       &cfg.IngestWorkers,
	}
	for name, dest := range ints {
		if c.IsSet(name) {
			*dest = c.Int(name)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := app.NewLogger(cfg, c.App.ErrWriter)
	c.App.Metadata = map[string]any{configKey: cfg}
	slog.SetDefault(logger)
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}

// withApp wires the components for one command and releases them afterwards.
func withApp(c *cli.Context, fn func(*app.App) error) error {
	a, err := app.New(c.Context, configFrom(c))
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()
	return fn(a)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ingestCommand(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		ingest := service.NewIngestService(a.Indexer, a.Store, a.Config.InputDir)
		report, err := ingest.Run(c.Context, c.Bool("reset"))
		if report != nil {
			fmt.Fprintf(c.App.Writer, "Run %s: %d discovered, %d indexed, %d partial, %d skipped, %d failed, %d chunks stored\n",
				report.ID,
				report.Stats.DocsDiscovered,
				report.Stats.DocsIndexed,
				report.Stats.DocsPartial,
				report.Stats.DocsSkipped,
				report.Stats.DocsFailed,
				report.Stats.ChunksStored,
			)
			for _, doc := range report.Documents {
				if doc.Reason != "" {
					fmt.Fprintf(c.App.Writer, "  %s: %s (%s)\n", doc.Path, doc.Outcome, doc.Reason)
				}
			}
		}
		return err
	})
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	return withApp(c, func(a *app.App) error {
		resp := a.Engine.Search(c.Context, rag.Query{
			Text:     query,
			TopK:     c.Int("top-k"),
			Category: c.String("category"),
		})
		if c.Bool("json") {
			if err := printJSON(c, resp); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(c.App.Writer, resp.Text)
		}
		switch resp.Status {
		case rag.StatusEmbeddingUnavailable, rag.StatusStoreUnavailable:
			return fmt.Errorf("search failed: %s", resp.Status)
		}
		return nil
	})
}

func statsCommand(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		stats, err := service.NewCollectionService(a.Store, a.Config.Collection).Stats(c.Context, c.Int("sample"))
		if err != nil {
			return err
		}
		return printJSON(c, stats)
	})
}

func deleteCollectionCommand(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		if err := service.NewCollectionService(a.Store, a.Config.Collection).Delete(c.Context); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Deleted collection %s\n", a.Config.Collection)
		return nil
	})
}

func runsCommand(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		if id := c.String("id"); id != "" {
			docs, err := a.Ledger.Documents(c.Context, id)
			if err != nil {
				return err
			}
			return printJSON(c, docs)
		}
		runs, err := a.Ledger.List(c.Context, c.Int("limit"))
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(c.App.Writer, "%s  %s  %s  indexed=%d partial=%d skipped=%d failed=%d chunks=%d",
				r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Collection,
				r.Indexed, r.Partial, r.Skipped, r.Failed, r.ChunksStored)
			if r.Error != "" {
				fmt.Fprintf(c.App.Writer, "  error=%q", r.Error)
			}
			fmt.Fprintln(c.App.Writer)
		}
		return nil
	})
}
