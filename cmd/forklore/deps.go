package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ersonp/forklore-core/internal/application/handlers"
	"github.com/ersonp/forklore-core/internal/domain/services"
	"github.com/ersonp/forklore-core/internal/infrastructure/cache"
	"github.com/ersonp/forklore-core/internal/infrastructure/config"
	embedder "github.com/ersonp/forklore-core/internal/infrastructure/embedder/openai"
	"github.com/ersonp/forklore-core/internal/infrastructure/httpapi"
	llm "github.com/ersonp/forklore-core/internal/infrastructure/llm/openai"
	"github.com/ersonp/forklore-core/internal/infrastructure/observability"
	"github.com/ersonp/forklore-core/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/forklore-core/internal/infrastructure/vectordb/qdrant"
)

var (
	errSearchDisabled = errors.New("search is disabled (set search.enabled and an embedder api key)")
	errAssistDisabled = errors.New("AI assist is disabled (set llm.api_key or OPENAI_API_KEY)")
)

// Deps holds high-level dependencies for commands.
type Deps struct {
	Config        *config.Config
	Services      httpapi.Services
	ImportHandler *handlers.ImportHandler
	// DraftHandler and SearchHandler are nil when their providers are
	// not configured.
	DraftHandler  *handlers.DraftHandler
	SearchHandler *handlers.SearchHandler
}

// internalDeps holds all dependencies including low-level components.
type internalDeps struct {
	Deps
	relationalDB *sqlite.Repository
	snapshots    *cache.Snapshots
	registry     *prometheus.Registry
	metrics      *observability.Metrics
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	return withInternalDeps(ctx, func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

// withInternalDeps provides access to all dependencies including low-level components.
func withInternalDeps(ctx context.Context, fn func(*internalDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	relationalDB, err := sqlite.NewRepository(cfg.SQLite)
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer relationalDB.Close()

	if err := relationalDB.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	snapshots := cache.NewSnapshots(cfg.Cache.Entries)
	observability.RegisterCacheStats(registry, snapshots.Stats)

	promotion := services.NewPromotionService(relationalDB, metrics)
	visibility := services.NewVisibilityService(relationalDB, services.NewStoredProgress(relationalDB), snapshots)
	branches := services.NewBranchService(relationalDB, services.BranchSettings{
		DefaultVoteThreshold: cfg.Branching.DefaultVoteThreshold,
		ForkDedupWindow:      cfg.Branching.ForkDedupWindow,
	}, metrics)

	var (
		search  *services.SearchService
		indexer services.SnapshotIndexer
	)
	if cfg.Search.Enabled {
		index, err := qdrant.NewRepository(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		defer index.Close()

		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		if err := index.EnsureCollection(ctx, emb.Dimensions()); err != nil {
			return fmt.Errorf("ensuring qdrant collection: %w", err)
		}

		search = services.NewSearchService(index, emb, relationalDB, visibility)
		indexer = search
	}

	wiki := services.NewWikiService(relationalDB, visibility, indexer)

	var assist *services.AssistService
	if cfg.AssistEnabled() {
		llmClient, err := llm.NewClient(cfg.LLM)
		if err != nil {
			return fmt.Errorf("creating llm client: %w", err)
		}
		assist = services.NewAssistService(llmClient, wiki, visibility)
	}

	deps := &internalDeps{
		Deps: Deps{
			Config: cfg,
			Services: httpapi.Services{
				Works:      services.NewWorkService(relationalDB),
				Branches:   branches,
				Promotion:  promotion,
				Votes:      services.NewVoteService(relationalDB, promotion, metrics),
				Visibility: visibility,
				Wiki:       wiki,
				Search:     search,
				Assist:     assist,
			},
			ImportHandler: handlers.NewImportHandler(services.NewImportService(wiki)),
		},
		relationalDB: relationalDB,
		snapshots:    snapshots,
		registry:     registry,
		metrics:      metrics,
	}
	if search != nil {
		deps.SearchHandler = handlers.NewSearchHandler(search, branches, visibility)
	}
	if assist != nil {
		deps.DraftHandler = handlers.NewDraftHandler(assist)
	}

	return fn(deps)
}

// requireUser returns the acting user or an error naming how to set one.
func requireUser() (string, error) {
	if globalUser == "" {
		return "", fmt.Errorf("user is required (use --user or set %s)", EnvUser)
	}
	return globalUser, nil
}
