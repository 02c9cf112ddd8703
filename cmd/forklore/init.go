package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/forklore-core/internal/application/handlers"
	"github.com/ersonp/forklore-core/internal/domain/ports"
	"github.com/ersonp/forklore-core/internal/infrastructure/config"
	embedder "github.com/ersonp/forklore-core/internal/infrastructure/embedder/openai"
	"github.com/ersonp/forklore-core/internal/infrastructure/vectordb/qdrant"
)

func newInitCmd() *cobra.Command {
	var withSearch bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize forklore in the current directory",
		Long:  "Writes .forklore/config.yaml and creates the database. With --search the Qdrant collection is created too.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, withSearch)
		},
	}

	cmd.Flags().BoolVar(&withSearch, "search", false, "Also create the Qdrant collection for semantic search")

	return cmd
}

func runInit(cmd *cobra.Command, withSearch bool) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	var (
		collections ports.CollectionManager
		vectorSize  uint64
	)
	if withSearch {
		cfg := config.Default()
		index, err := qdrant.NewRepository(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		defer index.Close()

		emb, err := embedder.NewEmbedder(config.EmbedderConfig{
			Model:  cfg.Embedder.Model,
			APIKey: os.Getenv("OPENAI_API_KEY"),
		})
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		collections = index
		vectorSize = emb.Dimensions()
	}

	result, err := handlers.NewInitHandler(collections, vectorSize).Handle(ctx, cwd)
	if err != nil {
		return err
	}

	// Opening the dependencies once creates the database schema.
	if err := withDeps(ctx, func(*Deps) error { return nil }); err != nil {
		return err
	}

	fmt.Printf("Initialized forklore\n")
	fmt.Printf("  Config:   %s\n", result.ConfigPath)
	fmt.Printf("  Database: %s\n", result.DatabasePath)
	if result.CollectionName != "" {
		fmt.Printf("  Qdrant collection: %s\n", result.CollectionName)
		fmt.Println("\nSet search.enabled: true in the config to index wiki snapshots.")
	}
	return nil
}
